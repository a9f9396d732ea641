// Package chat connects the bot to Twitch IRC and keeps its channel
// membership in sync.
//
// It provides two pieces:
//   - Bot: wraps the IRC client, feeds every private message through the
//     command dispatcher, and sends at most one reply per message.
//   - Synchronizer: periodically reconciles joined channels against the
//     roster served by the backend. Channels missing from the join set are
//     joined with a fixed inter-join delay to respect Twitch's rate limits;
//     channels that leave the roster are never parted, and the join set is
//     never pruned.
//
// Credentials: the IRC client requires a bot username and an OAuth token with
// chat:read/chat:edit scopes. Both are startup-fatal when absent.
package chat
