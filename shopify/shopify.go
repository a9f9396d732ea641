// Package shopify contains minimal helpers to create promotional discounts
// through the Shopify admin REST API. An issuance is a two-step sequence:
// create a price rule (the time-boxed, percentage-off policy), then create a
// discount code bound to that rule. Both steps must succeed; an orphaned price
// rule left behind by a step-two failure is not cleaned up.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/onnwee/dropbot/telemetry"
)

const (
	// PersonalDropPercent is the fixed discount on viewer drops.
	PersonalDropPercent = 10

	// DropValidity is how long an issued code can be redeemed.
	DropValidity = 10 * time.Minute

	// startSkew backdates the rule start to tolerate clock drift on the
	// commerce platform.
	startSkew = time.Minute
)

// UpstreamError reports a non-success HTTP response from either issuance step.
type UpstreamError struct {
	Step   string // "price_rule" or "discount_code"
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("shopify %s request failed: status %d: %s", e.Step, e.Status, e.Body)
}

// Client issues discounts against one store. BaseURL and HTTPClient are
// overridable for tests; BaseURL defaults to https://<StoreDomain>.
type Client struct {
	StoreDomain string
	AdminToken  string
	APIVersion  string
	BaseURL     string
	HTTPClient  *http.Client

	// Rand drives the personal-code suffix. Tests may pin it.
	Rand func() int
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return "https://" + c.StoreDomain
}

func (c *Client) apiVersion() string {
	if c.APIVersion != "" {
		return c.APIVersion
	}
	return "2024-01"
}

// suffix returns a uniform random integer in [1000, 9999]. Collisions with
// existing codes are rare enough to be accepted.
func (c *Client) suffix() int {
	if c.Rand != nil {
		return c.Rand()
	}
	return 1000 + rand.IntN(9000)
}

// Discount is the outcome of a successful issuance.
type Discount struct {
	Code        string
	PriceRuleID int64
	CodeID      int64
	URL         string
}

type priceRule struct {
	ID int64 `json:"id,omitempty"`

	Title             string `json:"title"`
	TargetType        string `json:"target_type"`
	TargetSelection   string `json:"target_selection"`
	AllocationMethod  string `json:"allocation_method"`
	ValueType         string `json:"value_type"`
	Value             string `json:"value"`
	CustomerSelection string `json:"customer_selection"`
	UsageLimit        *int   `json:"usage_limit"`
	OncePerCustomer   bool   `json:"once_per_customer"`
	StartsAt          string `json:"starts_at"`
	EndsAt            string `json:"ends_at"`
}

type discountCode struct {
	ID   int64  `json:"id,omitempty"`
	Code string `json:"code"`
}

// IssuePersonalDiscount creates a single-use 10%-off code for one viewer.
// The code format is DROP-<UPPERCASED_USERNAME>-<4-digit-random>.
func (c *Client) IssuePersonalDiscount(ctx context.Context, username string) (*Discount, error) {
	code := fmt.Sprintf("DROP-%s-%d", strings.ToUpper(username), c.suffix())
	one := 1
	rule := priceRule{
		Title:             code,
		TargetType:        "line_item",
		TargetSelection:   "all",
		AllocationMethod:  "across",
		ValueType:         "percentage",
		Value:             fmt.Sprintf("-%d.0", PersonalDropPercent),
		CustomerSelection: "all",
		UsageLimit:        &one,
		OncePerCustomer:   true,
	}
	return c.issue(ctx, rule, code)
}

// IssueGlobalDrop creates an unlimited-use code for the whole audience.
// The caller supplies the literal code and a percent in [1, 50].
func (c *Client) IssueGlobalDrop(ctx context.Context, code string, percent int) (*Discount, error) {
	if percent < 1 || percent > 50 {
		return nil, fmt.Errorf("percent %d out of range [1,50]", percent)
	}
	rule := priceRule{
		Title:             code,
		TargetType:        "line_item",
		TargetSelection:   "all",
		AllocationMethod:  "across",
		ValueType:         "percentage",
		Value:             fmt.Sprintf("-%d.0", percent),
		CustomerSelection: "all",
		UsageLimit:        nil, // unlimited
	}
	return c.issue(ctx, rule, code)
}

func (c *Client) issue(ctx context.Context, rule priceRule, code string) (*Discount, error) {
	ctx, span := telemetry.StartSpan(ctx, "shopify", "issue-discount")
	defer span.End()

	now := time.Now().UTC()
	rule.StartsAt = now.Add(-startSkew).Format(time.RFC3339)
	rule.EndsAt = now.Add(DropValidity).Format(time.RFC3339)

	created, err := c.createPriceRule(ctx, rule)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	dc, err := c.createDiscountCode(ctx, created.ID, code)
	if err != nil {
		// The price rule stays behind; there is no compensating delete.
		slog.Warn("discount code creation failed after price rule succeeded",
			slog.Int64("price_rule_id", created.ID), slog.Any("err", err))
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &Discount{
		Code:        dc.Code,
		PriceRuleID: created.ID,
		CodeID:      dc.ID,
		URL:         c.baseURL() + "/discount/" + dc.Code,
	}, nil
}

func (c *Client) createPriceRule(ctx context.Context, rule priceRule) (*priceRule, error) {
	var out struct {
		PriceRule priceRule `json:"price_rule"`
	}
	in := map[string]priceRule{"price_rule": rule}
	if err := c.post(ctx, fmt.Sprintf("/admin/api/%s/price_rules.json", c.apiVersion()), "price_rule", in, &out); err != nil {
		return nil, err
	}
	return &out.PriceRule, nil
}

func (c *Client) createDiscountCode(ctx context.Context, priceRuleID int64, code string) (*discountCode, error) {
	var out struct {
		DiscountCode discountCode `json:"discount_code"`
	}
	in := map[string]discountCode{"discount_code": {Code: code}}
	path := fmt.Sprintf("/admin/api/%s/price_rules/%d/discount_codes.json", c.apiVersion(), priceRuleID)
	if err := c.post(ctx, path, "discount_code", in, &out); err != nil {
		return nil, err
	}
	return &out.DiscountCode, nil
}

func (c *Client) post(ctx context.Context, path, step string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.AdminToken)
	resp, err := c.http().Do(req)
	if err != nil {
		return fmt.Errorf("shopify %s request: %w", step, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{Step: step, Status: resp.StatusCode, Body: string(b)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
