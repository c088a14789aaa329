// Package bus delivers tagged protocol messages between named agent
// endpoints. Delivery is at-most-once; there is no replay and no persistence.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"ma-assistant/internal/pkg/logger"
	"ma-assistant/pkg/protocol"
)

const topicPrefix = "agents."

// Endpoint is one named mailbox on the bus.
type Endpoint interface {
	// Name returns the endpoint's bus address.
	Name() string

	// Send delivers a message to msg.Recipient.
	Send(msg protocol.Message) error

	// Receive pulls the next inbound message, waiting up to timeout.
	// The second return is false when no message arrived in time.
	Receive(timeout time.Duration) (protocol.Message, bool)
}

// Transport creates endpoints over a concrete delivery mechanism.
type Transport interface {
	Endpoint(name string) (Endpoint, error)
	Close() error
}

// GoChannelTransport is the in-process transport over watermill's gochannel
// pub/sub. It simulates the agent network inside a single process.
type GoChannelTransport struct {
	pubSub *gochannel.GoChannel
	cancel context.CancelFunc
	ctx    context.Context
	log    logger.ILogger
}

func NewGoChannelTransport(log logger.ILogger) *GoChannelTransport {
	ctx, cancel := context.WithCancel(context.Background())
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NopLogger{},
	)
	return &GoChannelTransport{
		pubSub: pubSub,
		cancel: cancel,
		ctx:    ctx,
		log:    log,
	}
}

// Endpoint subscribes a named mailbox. Subscribe before any Send targeting
// this name: gochannel drops messages published to topics without consumers.
func (t *GoChannelTransport) Endpoint(name string) (Endpoint, error) {
	messages, err := t.pubSub.Subscribe(t.ctx, topicPrefix+name)
	if err != nil {
		return nil, fmt.Errorf("bus: subscribe %s: %w", name, err)
	}
	return &goChannelEndpoint{
		name:     name,
		pubSub:   t.pubSub,
		messages: messages,
		log:      t.log,
	}, nil
}

func (t *GoChannelTransport) Close() error {
	t.cancel()
	return t.pubSub.Close()
}

type goChannelEndpoint struct {
	name     string
	pubSub   *gochannel.GoChannel
	messages <-chan *message.Message
	log      logger.ILogger
}

func (e *goChannelEndpoint) Name() string { return e.name }

func (e *goChannelEndpoint) Send(msg protocol.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bus: marshal message: %w", err)
	}
	wmsg := message.NewMessage(watermill.NewUUID(), payload)
	if err := e.pubSub.Publish(topicPrefix+msg.Recipient, wmsg); err != nil {
		return fmt.Errorf("bus: publish to %s: %w", msg.Recipient, err)
	}
	logTraffic(e.log, "send", msg)
	return nil
}

func (e *goChannelEndpoint) Receive(timeout time.Duration) (protocol.Message, bool) {
	select {
	case wmsg, ok := <-e.messages:
		if !ok {
			return protocol.Message{}, false
		}
		wmsg.Ack()
		var msg protocol.Message
		if err := json.Unmarshal(wmsg.Payload, &msg); err != nil {
			e.log.Error("bus", "dropping undecodable message", map[string]interface{}{
				"endpoint": e.name,
				"error":    err.Error(),
			})
			return protocol.Message{}, false
		}
		logTraffic(e.log, "recv", msg)
		return msg, true
	case <-time.After(timeout):
		return protocol.Message{}, false
	}
}

// logTraffic records every message crossing the bus, mirroring the envelope
// metadata so conversations can be traced from the log alone.
func logTraffic(log logger.ILogger, direction string, msg protocol.Message) {
	log.Info("bus", "message "+direction, map[string]interface{}{
		"direction":       direction,
		"from":            msg.Sender,
		"to":              msg.Recipient,
		"performative":    msg.Performative,
		"ontology":        msg.Ontology,
		"protocol":        msg.Protocol,
		"conversation_id": msg.ConversationID,
		"role":            msg.Role,
		"body":            msg.Body,
	})
}
