package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subject layout, below "<prefix>.<server>":
//
//	events.<type>   match events, published
//	host.<type>     host events, subscribed
//	world.paint     structure requests, request/reply
const (
	eventsToken = "events"
	hostToken   = "host"
	paintToken  = "world.paint"
)

// PaintReply is the host's answer to a paint request
type PaintReply struct {
	Error string `json:"error,omitempty"`
}

// Client bridges the match to a game host over NATS
type Client struct {
	nc       *nats.Conn
	prefix   string
	serverID string
	log      zerolog.Logger
}

// Connect dials url and keeps reconnecting for the life of the process
func Connect(url, prefix, serverID string, logger zerolog.Logger) (*Client, error) {
	log := logger.With().Str("component", "bus").Logger()
	nc, err := nats.Connect(url,
		nats.Name("arena-"+serverID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
	return &Client{nc: nc, prefix: prefix, serverID: serverID, log: log}, nil
}

// Subject joins tokens under this server's root
func (c *Client) Subject(tokens ...string) string {
	return strings.Join(append([]string{c.prefix, c.serverID}, tokens...), ".")
}

// Emit publishes a match event. Failures are logged; events are best effort.
func (c *Client) Emit(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.log.Error().Err(err).Str("event", ev.Type).Msg("Failed to marshal event")
		return
	}
	if err := c.nc.Publish(c.Subject(eventsToken, ev.Type), data); err != nil {
		c.log.Warn().Err(err).Str("event", ev.Type).Msg("Failed to publish event")
	}
}

// Paint asks the host to build a structure and waits for its reply
func (c *Client) Paint(ctx context.Context, s domain.StructureEvent) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling structure: %w", err)
	}
	msg, err := c.nc.RequestWithContext(ctx, c.Subject(paintToken), data)
	if err != nil {
		return fmt.Errorf("requesting %s platform: %w", s.Kind, err)
	}
	var reply PaintReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("decoding paint reply: %w", err)
	}
	if reply.Error != "" {
		return errors.New(reply.Error)
	}
	return nil
}

// SubscribeHost delivers host events to handler. The event type defaults
// to the last subject token.
func (c *Client) SubscribeHost(handler func(domain.HostEvent)) (*nats.Subscription, error) {
	sub, err := c.nc.Subscribe(c.Subject(hostToken, ">"), func(m *nats.Msg) {
		ev, err := decodeHostEvent(m.Subject, m.Data)
		if err != nil {
			c.log.Warn().Err(err).Str("subject", m.Subject).Msg("Dropping malformed host event")
			return
		}
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to host events: %w", err)
	}
	return sub, nil
}

// HandlePaint answers paint requests with fn. Hosts use it; so do tests.
func (c *Client) HandlePaint(fn func(domain.StructureEvent) error) (*nats.Subscription, error) {
	return c.nc.Subscribe(c.Subject(paintToken), func(m *nats.Msg) {
		var reply PaintReply
		var s domain.StructureEvent
		if err := json.Unmarshal(m.Data, &s); err != nil {
			reply.Error = err.Error()
		} else if err := fn(s); err != nil {
			reply.Error = err.Error()
		}
		data, _ := json.Marshal(reply)
		if err := m.Respond(data); err != nil {
			c.log.Warn().Err(err).Msg("Failed to answer paint request")
		}
	})
}

// PublishHost sends a host event, as a game host would
func (c *Client) PublishHost(ev domain.HostEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.nc.Publish(c.Subject(hostToken, ev.Type), data)
}

// Flush waits for the server to process everything published so far
func (c *Client) Flush() error {
	return c.nc.Flush()
}

// Close drains subscriptions and closes the connection
func (c *Client) Close() {
	if err := c.nc.Drain(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to drain NATS connection")
		c.nc.Close()
	}
}

func decodeHostEvent(subject string, data []byte) (domain.HostEvent, error) {
	var ev domain.HostEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, err
	}
	if ev.Type == "" {
		ev.Type = subject[strings.LastIndexByte(subject, '.')+1:]
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev, nil
}
