package bus

import (
	"errors"
	"time"

	"ma-assistant/internal/pkg/logger"
	"ma-assistant/pkg/protocol"
)

// ErrAwaitTimeout is returned when no matching message arrived in time.
var ErrAwaitTimeout = errors.New("bus: await deadline exceeded")

// defaultPoll bounds each individual pull so the overall deadline is checked
// between pulls.
const defaultPoll = 1 * time.Second

// AwaitRole pulls messages from ep until one matches both conversationID and
// wantRole, or the deadline elapses. Every pulled non-matching message is
// logged once and dropped, not requeued; that is only correct while a single
// conversation is in flight at a time. Concurrent conversations would need a
// per-conversation mailbox instead.
func AwaitRole(ep Endpoint, conversationID, wantRole string, deadline time.Duration, log logger.ILogger) (protocol.Message, error) {
	end := time.Now().Add(deadline)
	for {
		remaining := time.Until(end)
		if remaining <= 0 {
			return protocol.Message{}, ErrAwaitTimeout
		}
		poll := defaultPoll
		if remaining < poll {
			poll = remaining
		}

		msg, ok := ep.Receive(poll)
		if !ok {
			continue
		}
		if msg.ConversationID == conversationID && msg.Role == wantRole {
			return msg, nil
		}
		log.Warn("bus", "discarding unmatched message", map[string]interface{}{
			"endpoint":             ep.Name(),
			"want_role":            wantRole,
			"want_conversation_id": conversationID,
			"got_role":             msg.Role,
			"got_conversation_id":  msg.ConversationID,
		})
	}
}
