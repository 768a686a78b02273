package notify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

type captureQueue struct {
	bodies chan []byte
}

func (q *captureQueue) Publish(ctx context.Context, body []byte) error {
	q.bodies <- body
	return nil
}

func TestDispatch_QueuesRenderablePayload(t *testing.T) {
	q := &captureQueue{bodies: make(chan []byte, 1)}
	d := NewDispatcher(q)

	d.Dispatch(KindSessionBooked, "mentee@example.com", "Pat Mentee", map[string]string{
		"initiator_name": "Sam Mentor",
		"topic":          "Go interfaces",
		"date":           "Mon, 01 Jun 2026 12:00:00 UTC",
		"duration":       "60",
		"room_link":      "http://localhost:5173/meet/01ARZ3NDEKTSV4RRFFQ69G5FAV",
	})

	var body []byte
	select {
	case body = <-q.bodies:
	case <-time.After(2 * time.Second):
		t.Fatalf("nothing published")
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.ID == "" {
		t.Fatalf("missing id")
	}
	if n.Kind != KindSessionBooked || n.To != "mentee@example.com" {
		t.Fatalf("payload wrong: %+v", n)
	}

	subject, bodyText := Render(n)
	if subject == "" || bodyText == "" {
		t.Fatalf("render produced empty output")
	}
	if !strings.Contains(bodyText, "Go interfaces") {
		t.Fatalf("body missing topic: %q", bodyText)
	}
	if !strings.Contains(bodyText, "Sam Mentor") {
		t.Fatalf("body missing initiator: %q", bodyText)
	}
}

func TestDispatch_NilSafe(t *testing.T) {
	// a nil dispatcher or nil queue must both be silent no-ops
	var d *Dispatcher
	d.Dispatch(KindConnectionRequest, "x@example.com", "X", nil)

	NewDispatcher(nil).Dispatch(KindConnectionRequest, "x@example.com", "X", nil)
}

func TestDispatch_SkipsEmptyRecipient(t *testing.T) {
	q := &captureQueue{bodies: make(chan []byte, 1)}
	NewDispatcher(q).Dispatch(KindConnectionRequest, "", "Nobody", nil)

	select {
	case <-q.bodies:
		t.Fatalf("published despite empty recipient")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRender_AllKindsProduceSubjectAndBody(t *testing.T) {
	kinds := []Kind{
		KindConnectionRequest,
		KindSessionBooked,
		KindSessionAccepted,
		KindSessionRejected,
		KindSessionCancelled,
		KindSessionCompleted,
	}
	for _, k := range kinds {
		n := Notification{Kind: k, To: "u@example.com", ToName: "U", Data: map[string]string{}}
		subject, body := Render(n)
		if subject == "" || body == "" {
			t.Fatalf("kind %s rendered empty subject or body", k)
		}
	}
}
