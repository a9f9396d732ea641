package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/dropbot/backendapi"
	"github.com/onnwee/dropbot/shopify"
	"github.com/onnwee/dropbot/telemetry"
)

const (
	discountCooldown = 30 * time.Second
	dropCooldown     = 5 * time.Minute
)

// ClaimBackend brokers viewer discount claims through the bot's backend.
type ClaimBackend interface {
	RequestClaim(ctx context.Context, channel, username string) (*backendapi.ClaimResult, error)
}

// PersonalIssuer issues single-use viewer codes directly against the store.
type PersonalIssuer interface {
	IssuePersonalDiscount(ctx context.Context, username string) (*shopify.Discount, error)
}

// DropIssuer is the slice of the Shopify client the drop command needs.
type DropIssuer interface {
	IssueGlobalDrop(ctx context.Context, code string, percent int) (*shopify.Discount, error)
}

// Deps wires the built-in commands to their collaborators. When Personal is
// set the discount command issues directly against the store; otherwise it
// brokers the claim through Backend.
type Deps struct {
	Backend  ClaimBackend
	Personal PersonalIssuer
	Issuer   DropIssuer

	// ResyncChannels re-runs the channel membership sync (reload command).
	ResyncChannels func(ctx context.Context) error
}

// RegisterBuiltins installs ping, help, discount, drop, and reload.
func RegisterBuiltins(d *Dispatcher, deps Deps) {
	d.Register(&Command{
		Name:        "ping",
		Description: "check that the bot is alive",
		Handler: func(_ context.Context, inv *Invocation) (string, error) {
			return fmt.Sprintf("@%s pong!", inv.Username), nil
		},
	})
	d.Register(&Command{
		Name:        "help",
		Description: "list available commands",
		Handler: func(_ context.Context, _ *Invocation) (string, error) {
			return helpText(d), nil
		},
	})
	d.Register(&Command{
		Name:         "discount",
		Description:  "claim a personal discount code",
		Cooldown:     discountCooldown,
		SelfCooldown: true,
		Handler:      discountHandler(d, deps.Backend, deps.Personal),
	})
	d.Register(&Command{
		Name:            "drop",
		Description:     "drop a stream-wide discount (1-50 percent)",
		Cooldown:        dropCooldown,
		SelfCooldown:    true,
		BroadcasterOnly: true,
		Handler:         dropHandler(d, deps.Issuer),
	})
	d.Register(&Command{
		Name:        "reload",
		Description: "re-sync joined channels",
		OwnerOnly:   true,
		Handler: func(ctx context.Context, inv *Invocation) (string, error) {
			if deps.ResyncChannels == nil {
				return "", nil
			}
			if err := deps.ResyncChannels(ctx); err != nil {
				return "", fmt.Errorf("channel resync: %w", err)
			}
			return fmt.Sprintf("@%s channel list reloaded.", inv.Username), nil
		},
	})
}

func helpText(d *Dispatcher) string {
	cmds := d.Commands()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	parts := make([]string, 0, len(cmds))
	for _, c := range cmds {
		parts = append(parts, d.prefix+c.Name+" ("+c.Description+")")
	}
	return "Commands: " + strings.Join(parts, ", ")
}

// discountHandler claims a viewer discount, directly against the store when a
// personal issuer is wired, otherwise through the backend. It manages its own
// cooldown: the 30s window is committed only after a successful issuance,
// never merely because a reply went out.
func discountHandler(d *Dispatcher, backend ClaimBackend, personal PersonalIssuer) HandlerFunc {
	return func(ctx context.Context, inv *Invocation) (string, error) {
		l := d.Ledger()

		if remaining := l.RemainingCooldown("discount", inv.Username); remaining > 0 {
			if telemetry.CommandsRejected != nil {
				telemetry.CommandsRejected.WithLabelValues("discount").Inc()
			}
			return fmt.Sprintf("@%s please wait %ds before requesting another code.", inv.Username, remaining), nil
		}

		if claim, ok := l.ActiveClaim(inv.Channel, inv.Username); ok {
			return fmt.Sprintf("@%s you already have a code: %s (valid for 10 minutes after claiming).", inv.Username, claim.Code), nil
		}

		var code string
		if personal != nil {
			var disc *shopify.Discount
			var err error
			telemetry.TimeFunc(telemetry.IssuanceDuration, func() {
				disc, err = personal.IssuePersonalDiscount(ctx, inv.Username)
			})
			if err != nil {
				if telemetry.IssuanceFailed != nil {
					telemetry.IssuanceFailed.WithLabelValues("upstream").Inc()
				}
				return "", fmt.Errorf("personal discount issuance: %w", err)
			}
			code = disc.Code
		} else {
			var res *backendapi.ClaimResult
			var err error
			telemetry.TimeFunc(telemetry.IssuanceDuration, func() {
				res, err = backend.RequestClaim(ctx, inv.Channel, inv.Username)
			})
			if err != nil {
				return "", err
			}
			if !res.OK {
				if telemetry.IssuanceFailed != nil {
					telemetry.IssuanceFailed.WithLabelValues(string(res.Reason)).Inc()
				}
				return claimFailureReply(inv.Username, res), nil
			}
			code = res.DiscountCode
		}

		l.RecordClaim(inv.Channel, inv.Username, code)
		l.SetCooldown("discount", inv.Username, discountCooldown)
		if telemetry.IssuanceSucceeded != nil {
			telemetry.IssuanceSucceeded.Inc()
		}
		return fmt.Sprintf("@%s here's your code: %s (10%% off, valid 10 minutes).", inv.Username, code), nil
	}
}

// claimFailureReply maps each taxonomy entry to its chat reply.
func claimFailureReply(user string, res *backendapi.ClaimResult) string {
	switch res.Reason {
	case backendapi.ReasonNotFound:
		return fmt.Sprintf("@%s this channel isn't registered for drops.", user)
	case backendapi.ReasonDisabled:
		return fmt.Sprintf("@%s drops are currently disabled for this channel.", user)
	case backendapi.ReasonNotConnected:
		return fmt.Sprintf("@%s the store isn't connected yet. Tell the streamer!", user)
	case backendapi.ReasonCooldown:
		return fmt.Sprintf("@%s too fast! Try again in %ds.", user, res.RetryAfterSeconds)
	case backendapi.ReasonLimitReached:
		return fmt.Sprintf("@%s you've already claimed a code this stream.", user)
	case backendapi.ReasonPlanLimit:
		if res.Message != "" {
			return fmt.Sprintf("@%s %s", user, res.Message)
		}
		return fmt.Sprintf("@%s the channel hit its plan limit for this month.", user)
	default:
		// network_error, http_error, and unclassified share a generic line.
		return fmt.Sprintf("@%s sorry, something went wrong. Try again in a bit.", user)
	}
}

// dropHandler issues an unlimited-use stream-wide code directly via Shopify.
// Percent validation happens before any external call. The handler manages its
// own cooldown so that usage and gate rejections don't consume the 5-minute
// window; both it and the shared drop gate commit only after a successful
// issuance.
func dropHandler(d *Dispatcher, issuer DropIssuer) HandlerFunc {
	return func(ctx context.Context, inv *Invocation) (string, error) {
		if issuer == nil {
			return fmt.Sprintf("@%s the store isn't connected yet.", inv.Username), nil
		}

		l := d.Ledger()
		if remaining := l.RemainingCooldown("drop", inv.Username); remaining > 0 {
			if telemetry.CommandsRejected != nil {
				telemetry.CommandsRejected.WithLabelValues("drop").Inc()
			}
			return fmt.Sprintf("@%s please wait %ds before using %sdrop again.", inv.Username, remaining, d.prefix), nil
		}

		if len(inv.Args) == 0 {
			return fmt.Sprintf("@%s usage: %sdrop <percent 1-50>", inv.Username, d.prefix), nil
		}
		percent, err := strconv.Atoi(inv.Args[0])
		if err != nil || percent < 1 || percent > 50 {
			return fmt.Sprintf("@%s percent must be a number between 1 and 50.", inv.Username), nil
		}

		if !l.GlobalDropReady(inv.Channel) {
			return fmt.Sprintf("@%s next drop available in %ds.", inv.Username, l.GlobalDropRemaining(inv.Channel)), nil
		}

		code := fmt.Sprintf("DROP-%s-%d", strings.ToUpper(strings.TrimPrefix(inv.Channel, "#")), percent)
		var disc *shopify.Discount
		telemetry.TimeFunc(telemetry.IssuanceDuration, func() {
			disc, err = issuer.IssueGlobalDrop(ctx, code, percent)
		})
		if err != nil {
			if telemetry.IssuanceFailed != nil {
				telemetry.IssuanceFailed.WithLabelValues("upstream").Inc()
			}
			return "", fmt.Errorf("global drop issuance: %w", err)
		}
		l.MarkGlobalDropUsed(inv.Channel)
		l.SetCooldown("drop", inv.Username, dropCooldown)
		if telemetry.IssuanceSucceeded != nil {
			telemetry.IssuanceSucceeded.Inc()
		}
		slog.Info("global drop issued",
			slog.String("channel", inv.Channel),
			slog.String("code", disc.Code),
			slog.Int("percent", percent))
		return fmt.Sprintf("STREAM-WIDE DROP! Use code %s for %d%% off, next 10 minutes only!", disc.Code, percent), nil
	}
}
