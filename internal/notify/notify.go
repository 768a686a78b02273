package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/mentormesh/mentormesh/internal/common"
)

type Kind string

const (
	KindConnectionRequest Kind = "connection_request"
	KindSessionBooked     Kind = "session_booked"
	KindSessionAccepted   Kind = "session_accepted"
	KindSessionRejected   Kind = "session_rejected"
	KindSessionCancelled  Kind = "session_cancelled"
	KindSessionCompleted  Kind = "session_completed"
)

// Notification is the queued payload. Everything the notifier worker needs to
// render and deliver is carried in Data; the worker never touches the DB.
type Notification struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	To        string            `json:"to"`
	ToName    string            `json:"to_name"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
}

// Queue is the durable transport; implemented by store/rabbitmq.Publisher.
type Queue interface {
	Publish(ctx context.Context, body []byte) error
}

// Dispatcher queues notifications after a state transition has committed.
// Delivery is best-effort: failures are logged and never returned to the
// caller, so a broken broker cannot fail or roll back the primary operation.
type Dispatcher struct {
	queue Queue
}

func NewDispatcher(q Queue) *Dispatcher {
	return &Dispatcher{queue: q}
}

func (d *Dispatcher) Dispatch(kind Kind, to, toName string, data map[string]string) {
	if d == nil || d.queue == nil || to == "" {
		return
	}

	id, err := common.NewULID()
	if err != nil {
		log.Printf("notify dispatch id failed kind=%s to=%s err=%v", kind, to, err)
		return
	}

	n := Notification{
		ID:        id,
		Kind:      kind,
		To:        to,
		ToName:    toName,
		Data:      data,
		CreatedAt: time.Now(),
	}

	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("notify marshal failed id=%s kind=%s err=%v", id, kind, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.queue.Publish(ctx, body); err != nil {
			log.Printf("notify publish failed id=%s kind=%s to=%s err=%v", id, kind, to, err)
		}
	}()
}
