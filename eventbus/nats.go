package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"event-ticketing/shared"
)

// SubjectFor maps a reservation state to its NATS subject.
func SubjectFor(state shared.ReservationState) (string, error) {
	switch state {
	case shared.StateHeld:
		return shared.NATSSubjectHeld, nil
	case shared.StateConfirmed:
		return shared.NATSSubjectConfirmed, nil
	case shared.StateReleased:
		return shared.NATSSubjectReleased, nil
	case shared.StateExpired:
		return shared.NATSSubjectExpired, nil
	}
	return "", fmt.Errorf("no subject for state %q", state)
}

type natsConn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher forwards bus events to NATS so that edge servers in other
// processes can broadcast them. Publishing is fire-and-forget.
type NATSPublisher struct {
	conn natsConn
}

// NewNATSPublisher wraps conn, normally a *nats.Conn.
func NewNATSPublisher(conn natsConn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// Forward is a Handler.
func (p *NATSPublisher) Forward(evt shared.ReservationEvent) {
	subject, err := SubjectFor(evt.NewState)
	if err != nil {
		log.Printf("[NATS] dropping event %s: %v", evt.ReservationID, err)
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal event %s: %v", evt.ReservationID, err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		log.Printf("[NATS] publish %s for reservation %s failed: %v", subject, evt.ReservationID, err)
	}
}

// NATSSubscriber turns NATS messages back into bus events.
type NATSSubscriber struct {
	target Publisher
}

func NewNATSSubscriber(target Publisher) *NATSSubscriber {
	return &NATSSubscriber{target: target}
}

// HandleMsg decodes one NATS message and republishes it locally.
// Malformed messages are logged and dropped.
func (s *NATSSubscriber) HandleMsg(msg *nats.Msg) {
	var evt shared.ReservationEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		log.Printf("[ERROR] Failed to parse NATS event on %s: %v", msg.Subject, err)
		return
	}
	if evt.ReservationID == "" || evt.NewState == "" {
		log.Printf("[ERROR] Ignoring incomplete NATS event on %s", msg.Subject)
		return
	}
	s.target.Publish(evt)
}

// Subscribe attaches s to every reservation subject on nc.
func (s *NATSSubscriber) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(shared.NATSSubjectAll, s.HandleMsg)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", shared.NATSSubjectAll, err)
	}
	log.Printf("[NATS] Subscribed to %s", sub.Subject)
	return sub, nil
}

// Connect dials NATS with the reconnect policy both services share.
func Connect(url, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("[NATS] Disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] Reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Printf("[NATS] Error: %v", err)
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	if !nc.IsConnected() {
		nc.Close()
		return nil, fmt.Errorf("NATS connection not established")
	}
	return nc, nil
}
