// Package notifier publishes balance-updated events to the downstream
// consumer. Delivery is fire-and-forget by contract: the transfer path
// hands an event to a buffered channel and moves on, a single
// dispatcher goroutine does the publishing, and every failure mode
// (send error, full buffer, shutdown) is logged and swallowed.
package notifier

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const EventBalanceUpdated = "account.balance.updated"

type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	AccountID string  `json:"accountId"`
	Balance   Balance `json:"balance"`
}

type Balance struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Producer is satisfied by mq.Producer.
type Producer interface {
	Send(topic, key, value string) error
}

type Notifier struct {
	producer Producer
	topic    string
	events   chan Event
	done     chan struct{}
	log      logrus.FieldLogger
}

func New(producer Producer, topic string, buffer int, log logrus.FieldLogger) *Notifier {
	if buffer <= 0 {
		buffer = 256
	}
	n := &Notifier{
		producer: producer,
		topic:    topic,
		events:   make(chan Event, buffer),
		done:     make(chan struct{}),
		log:      log,
	}
	go n.run()
	return n
}

// Notify never blocks the caller. When the buffer is full the event is
// dropped: losing a best-effort notification is acceptable, delaying a
// committed transfer is not.
func (n *Notifier) Notify(accountID uuid.UUID, balance decimal.Decimal, currency string) {
	event := Event{
		Type: EventBalanceUpdated,
		Data: EventData{
			AccountID: accountID.String(),
			Balance: Balance{
				Value:    balance.StringFixed(2),
				Currency: currency,
			},
		},
	}

	select {
	case n.events <- event:
	default:
		n.log.WithField("account_id", accountID).Warn("notification buffer full, event dropped")
	}
}

func (n *Notifier) run() {
	for {
		select {
		case <-n.done:
			return
		case event := <-n.events:
			n.send(event)
		}
	}
}

func (n *Notifier) send(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.WithError(err).Error("encode balance event")
		return
	}
	if err := n.producer.Send(n.topic, event.Data.AccountID, string(payload)); err != nil {
		n.log.WithError(err).WithField("account_id", event.Data.AccountID).
			Warn("balance notification failed")
		return
	}
	n.log.WithField("account_id", event.Data.AccountID).Debug("balance notification sent")
}

// Close stops the dispatcher without draining the buffer: shutdown
// must not wait on pending notifications.
func (n *Notifier) Close() {
	close(n.done)
}
