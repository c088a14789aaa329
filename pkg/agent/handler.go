// Package agent implements the three cooperating roles of the assistant:
// the coordinator driving the per-turn state machine, and the researcher and
// verifier request/result handlers.
package agent

import (
	"context"
	"time"

	"ma-assistant/internal/pkg/logger"
	"ma-assistant/pkg/bus"
	"ma-assistant/pkg/protocol"
)

const handlerPoll = 1 * time.Second

// WorkFunc performs the role-specific work for one request message and
// returns the encoded result body.
type WorkFunc func(ctx context.Context, req protocol.Message) (string, error)

// RoleHandler is the shared receive/parse/respond skeleton for the researcher
// and verifier: it watches its endpoint for requests carrying a fixed role
// tag and answers each with exactly one result message on the corresponding
// result role, correlated by the request's conversation ID.
type RoleHandler struct {
	endpoint   bus.Endpoint
	role       string
	resultRole string
	work       WorkFunc
	log        logger.ILogger
}

func NewRoleHandler(endpoint bus.Endpoint, role, resultRole string, work WorkFunc, log logger.ILogger) *RoleHandler {
	return &RoleHandler{
		endpoint:   endpoint,
		role:       role,
		resultRole: resultRole,
		work:       work,
		log:        log,
	}
}

// Run polls the endpoint until ctx is canceled. Each loop iteration handles
// at most one request; the handler itself is single-threaded.
func (h *RoleHandler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, ok := h.endpoint.Receive(handlerPoll)
		if !ok {
			continue
		}
		if msg.Role != h.role {
			h.log.Warn("agent", "ignoring message with unexpected role", map[string]interface{}{
				"endpoint": h.endpoint.Name(),
				"want":     h.role,
				"got":      msg.Role,
			})
			continue
		}

		body, err := h.work(ctx, msg)
		if err != nil {
			// No reply is sent; the requester's await will run out. The
			// generation gateway has already exhausted its own retries here.
			h.log.Error("agent", "role work failed", map[string]interface{}{
				"endpoint":        h.endpoint.Name(),
				"role":            h.role,
				"conversation_id": msg.ConversationID,
				"error":           err.Error(),
			})
			continue
		}

		reply := protocol.NewReply(msg, h.resultRole, body)
		if err := h.endpoint.Send(reply); err != nil {
			h.log.Error("agent", "sending result failed", map[string]interface{}{
				"endpoint":        h.endpoint.Name(),
				"role":            h.resultRole,
				"conversation_id": msg.ConversationID,
				"error":           err.Error(),
			})
		}
	}
}
