// Package command turns raw chat lines into command executions and replies.
//
// The dispatcher owns a fixed registry of commands and the eligibility policy
// around them: prefix parsing, cooldown checks against the ledger, role
// gating, and containment of handler failures. Each inbound message yields at
// most one command execution and at most one reply. Cooldowns are committed
// only after a handler succeeds, so a failed execution never consumes one.
package command

import (
	"context"
	"time"
)

// DefaultCooldown applies to commands that don't configure their own.
const DefaultCooldown = 10 * time.Second

// Message is one inbound chat line, as seen by the dispatcher.
type Message struct {
	Channel  string // "#bob"
	Username string // lowercased login
	Text     string
}

// Invocation carries the parsed context a handler executes with.
type Invocation struct {
	Channel       string
	Username      string
	Args          []string
	IsBroadcaster bool
	IsOwner       bool
}

// HandlerFunc executes a command and returns the reply text ("" for none).
type HandlerFunc func(ctx context.Context, inv *Invocation) (string, error)

// Command is a registry entry: identifier, description, handler, and policy.
type Command struct {
	Name        string
	Description string
	Cooldown    time.Duration
	Handler     HandlerFunc

	// SelfCooldown exempts the command from the dispatcher's automatic
	// cooldown check and commit; the handler consults and commits the
	// ledger itself, tying the cooldown to the external call's outcome
	// rather than to the reply.
	SelfCooldown bool

	// BroadcasterOnly and OwnerOnly silently drop invocations from anyone
	// without the role.
	BroadcasterOnly bool
	OwnerOnly       bool
}

func (c *Command) cooldown() time.Duration {
	if c.Cooldown > 0 {
		return c.Cooldown
	}
	return DefaultCooldown
}
