package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"ma-assistant/internal/pkg/logger"
	"ma-assistant/pkg/protocol"
)

// NATSTransport runs the agent bus over a NATS server so the three agent
// loops can be split across processes. Core NATS only: at-most-once, no
// replay, matching the bus contract.
type NATSTransport struct {
	nc  *nats.Conn
	log logger.ILogger
}

func NewNATSTransport(url string, log logger.ILogger) (*NATSTransport, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: connect to NATS: %w", err)
	}
	return &NATSTransport{nc: nc, log: log}, nil
}

func (t *NATSTransport) Endpoint(name string) (Endpoint, error) {
	sub, err := t.nc.SubscribeSync(topicPrefix + name)
	if err != nil {
		return nil, fmt.Errorf("bus: subscribe %s: %w", name, err)
	}
	return &natsEndpoint{
		name: name,
		nc:   t.nc,
		sub:  sub,
		log:  t.log,
	}, nil
}

func (t *NATSTransport) Close() error {
	t.nc.Close()
	return nil
}

type natsEndpoint struct {
	name string
	nc   *nats.Conn
	sub  *nats.Subscription
	log  logger.ILogger
}

func (e *natsEndpoint) Name() string { return e.name }

func (e *natsEndpoint) Send(msg protocol.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bus: marshal message: %w", err)
	}
	if err := e.nc.Publish(topicPrefix+msg.Recipient, payload); err != nil {
		return fmt.Errorf("bus: publish to %s: %w", msg.Recipient, err)
	}
	logTraffic(e.log, "send", msg)
	return nil
}

func (e *natsEndpoint) Receive(timeout time.Duration) (protocol.Message, bool) {
	nmsg, err := e.sub.NextMsg(timeout)
	if err != nil {
		if !errors.Is(err, nats.ErrTimeout) {
			e.log.Error("bus", "receive failed", map[string]interface{}{
				"endpoint": e.name,
				"error":    err.Error(),
			})
		}
		return protocol.Message{}, false
	}
	var msg protocol.Message
	if err := json.Unmarshal(nmsg.Data, &msg); err != nil {
		e.log.Error("bus", "dropping undecodable message", map[string]interface{}{
			"endpoint": e.name,
			"error":    err.Error(),
		})
		return protocol.Message{}, false
	}
	logTraffic(e.log, "recv", msg)
	return msg, true
}
