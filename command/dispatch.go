package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/dropbot/ledger"
	"github.com/onnwee/dropbot/telemetry"
)

// Dispatcher routes chat messages to registered commands and enforces the
// cooldown policy. Construct with NewDispatcher.
type Dispatcher struct {
	prefix   string
	owner    string
	ledger   *ledger.Ledger
	registry map[string]*Command
}

// NewDispatcher returns a dispatcher with an empty registry.
func NewDispatcher(prefix, owner string, l *ledger.Ledger) *Dispatcher {
	return &Dispatcher{
		prefix:   prefix,
		owner:    strings.ToLower(owner),
		ledger:   l,
		registry: make(map[string]*Command),
	}
}

// Register adds a command to the registry, replacing any previous entry with
// the same name. Names are matched case-insensitively at dispatch time.
func (d *Dispatcher) Register(c *Command) {
	d.registry[strings.ToLower(c.Name)] = c
}

// Commands returns the registry entries for help output, in no fixed order.
func (d *Dispatcher) Commands() []*Command {
	out := make([]*Command, 0, len(d.registry))
	for _, c := range d.registry {
		out = append(out, c)
	}
	return out
}

// Ledger exposes the dispatcher's ledger for self-managed handlers.
func (d *Dispatcher) Ledger() *ledger.Ledger { return d.ledger }

// Dispatch processes one chat line. It returns the reply to send and whether
// there is one; non-prefixed, empty, and unknown-command messages are silently
// ignored. Handler errors and panics are contained here and surface as a
// single generic failure reply.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) (reply string, ok bool) {
	if telemetry.MessagesSeen != nil {
		telemetry.MessagesSeen.Inc()
	}

	rest, found := strings.CutPrefix(msg.Text, d.prefix)
	if !found {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}

	fields := strings.Fields(rest)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	cmd, known := d.registry[name]
	if !known {
		return "", false
	}

	user := strings.ToLower(msg.Username)
	inv := &Invocation{
		Channel:       msg.Channel,
		Username:      user,
		Args:          args,
		IsBroadcaster: user == strings.TrimPrefix(strings.ToLower(msg.Channel), "#"),
		IsOwner:       d.owner != "" && user == d.owner,
	}
	if cmd.BroadcasterOnly && !inv.IsBroadcaster && !inv.IsOwner {
		return "", false
	}
	if cmd.OwnerOnly && !inv.IsOwner {
		return "", false
	}

	if !cmd.SelfCooldown {
		if remaining := d.ledger.RemainingCooldown(cmd.Name, user); remaining > 0 {
			if telemetry.CommandsRejected != nil {
				telemetry.CommandsRejected.WithLabelValues(cmd.Name).Inc()
			}
			return fmt.Sprintf("@%s please wait %ds before using %s%s again.", user, remaining, d.prefix, cmd.Name), true
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "dispatch", "command "+cmd.Name,
		attribute.String("command", cmd.Name),
		attribute.String("channel", msg.Channel),
	)
	defer span.End()

	var (
		out string
		err error
	)
	telemetry.TimeFunc(telemetry.DispatchDuration, func() {
		out, err = d.execute(ctx, cmd, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if telemetry.CommandErrors != nil {
			telemetry.CommandErrors.Inc()
		}
		slog.Error("command handler failed",
			slog.String("command", cmd.Name),
			slog.String("channel", msg.Channel),
			slog.String("user", user),
			slog.Any("err", err))
		return fmt.Sprintf("@%s sorry, something went wrong. Try again in a bit.", user), true
	}

	// Commit only after successful execution; the discount command commits
	// inside its handler, keyed to the issuance outcome.
	if !cmd.SelfCooldown {
		d.ledger.SetCooldown(cmd.Name, user, cmd.cooldown())
	}
	if telemetry.CommandsDispatched != nil {
		telemetry.CommandsDispatched.WithLabelValues(cmd.Name).Inc()
	}
	return out, out != ""
}

// execute runs the handler with panic containment.
func (d *Dispatcher) execute(ctx context.Context, cmd *Command, inv *Invocation) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return cmd.Handler(ctx, inv)
}
