package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/mentormesh/mentormesh/internal/common"
	"github.com/mentormesh/mentormesh/internal/connection"
	"github.com/mentormesh/mentormesh/internal/models"
	"github.com/mentormesh/mentormesh/internal/notify"
	"github.com/mentormesh/mentormesh/internal/ws"
)

type fakeFanout struct {
	events map[uint64][]ws.Event
}

func newFakeFanout() *fakeFanout {
	return &fakeFanout{events: map[uint64][]ws.Event{}}
}

func (f *fakeFanout) Publish(userID uint64, ev ws.Event) {
	f.events[userID] = append(f.events[userID], ev)
}

type fakeConnections struct {
	pairs map[string]bool
}

func newFakeConnections() *fakeConnections {
	return &fakeConnections{pairs: map[string]bool{}}
}

func (f *fakeConnections) connect(a, b uint64) {
	f.pairs[connection.PairKey(a, b)] = true
}

func (f *fakeConnections) Connected(ctx context.Context, a, b uint64) (bool, error) {
	return f.pairs[connection.PairKey(a, b)], nil
}

var testDBSeq int

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:sesssvc%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &Session{}, &Feedback{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, n int) []models.User {
	t.Helper()
	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		u := models.User{
			FirstName:    fmt.Sprintf("User%d", i+1),
			LastName:     "Test",
			Email:        fmt.Sprintf("user%d@example.com", i+1),
			Role:         "member",
			PasswordHash: "x",
		}
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("seed user %d: %v", i, err)
		}
		users = append(users, u)
	}
	return users
}

func newTestService(t *testing.T) (*Service, *fakeFanout, *fakeConnections, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	fanout := newFakeFanout()
	conns := newFakeConnections()
	svc := NewService(NewRepo(db), fanout, notify.NewDispatcher(nil), conns, "http://localhost:5173")
	return svc, fanout, conns, db
}

func validInput(recipientID uint64, date time.Time) ProposeInput {
	return ProposeInput{
		RecipientID: recipientID,
		Date:        date,
		Duration:    60,
		Topic:       "Go interfaces",
		Type:        TypeOneOnOne,
	}
}

func TestPropose_CreatesPendingWithRoomToken(t *testing.T) {
	svc, fanout, conns, db := newTestService(t)
	users := seedUsers(t, db, 2)
	x, y := users[0], users[1]
	conns.connect(x.ID, y.ID)

	sess, err := svc.Propose(context.Background(), x.ID, validInput(y.ID, time.Now().Add(24*time.Hour)))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if sess.Status != StatusPending {
		t.Fatalf("status = %s, want pending", sess.Status)
	}
	if len(sess.RoomToken) != 26 {
		t.Fatalf("room token %q is not a ULID", sess.RoomToken)
	}

	evs := fanout.events[y.ID]
	if len(evs) != 1 || evs[0].Type != ws.EventSessionUpdated {
		t.Fatalf("expected sessionUpdated for recipient, got %+v", evs)
	}
}

func TestPropose_Validation(t *testing.T) {
	svc, _, conns, db := newTestService(t)
	users := seedUsers(t, db, 2)
	x, y := users[0], users[1]
	conns.connect(x.ID, y.ID)
	date := time.Now().Add(24 * time.Hour)

	cases := []struct {
		name string
		in   ProposeInput
		want error
	}{
		{"self", validInput(x.ID, date), common.ErrInvalidArgument},
		{"too short", func() ProposeInput { in := validInput(y.ID, date); in.Duration = MinDuration - 1; return in }(), common.ErrInvalidArgument},
		{"too long", func() ProposeInput { in := validInput(y.ID, date); in.Duration = MaxDuration + 1; return in }(), common.ErrInvalidArgument},
		{"bad type", func() ProposeInput { in := validInput(y.ID, date); in.Type = "webinar"; return in }(), common.ErrInvalidArgument},
		{"no topic", func() ProposeInput { in := validInput(y.ID, date); in.Topic = ""; return in }(), common.ErrInvalidArgument},
		{"no date", validInput(y.ID, time.Time{}), common.ErrInvalidArgument},
		{"unknown recipient", validInput(9999, date), common.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Propose(context.Background(), x.ID, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestPropose_RequiresConnection(t *testing.T) {
	svc, _, _, db := newTestService(t)
	users := seedUsers(t, db, 2)
	x, y := users[0], users[1]

	_, err := svc.Propose(context.Background(), x.ID, validInput(y.ID, time.Now().Add(time.Hour)))
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func mustSession(t *testing.T, svc *Service, conns *fakeConnections, initiator, recipient uint64, date time.Time) *Session {
	t.Helper()
	conns.connect(initiator, recipient)
	sess, err := svc.Propose(context.Background(), initiator, validInput(recipient, date))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	return sess
}

func TestSetStatus_FullLifecycle(t *testing.T) {
	svc, fanout, conns, db := newTestService(t)
	users := seedUsers(t, db, 2)
	x, y := users[0], users[1]
	date := time.Now().Add(24 * time.Hour)

	sess := mustSession(t, svc, conns, x.ID, y.ID, date)

	accepted, err := svc.SetStatus(context.Background(), sess.ID, y.ID, StatusAccepted)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != StatusAccepted {
		t.Fatalf("status = %s", accepted.Status)
	}
	// acceptance notifies the initiator's room
	evs := fanout.events[x.ID]
	if len(evs) != 1 || evs[0].Type != ws.EventSessionUpdated {
		t.Fatalf("expected sessionUpdated for initiator, got %+v", evs)
	}

	completed, err := svc.SetStatus(context.Background(), sess.ID, x.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Fatalf("status = %s", completed.Status)
	}
}

func TestSetStatus_RecipientOnlyForAcceptReject(t *testing.T) {
	svc, _, conns, db := newTestService(t)
	users := seedUsers(t, db, 2)
	x, y := users[0], users[1]
	sess := mustSession(t, svc, conns, x.ID, y.ID, time.Now().Add(time.Hour))

	if _, err := svc.SetStatus(context.Background(), sess.ID, x.ID, StatusAccepted); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("initiator accept: expected forbidden, got %v", err)
	}
	if _, err := svc.SetStatus(context.Background(), sess.ID, x.ID, StatusRejected); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("initiator reject: expected forbidden, got %v", err)
	}

	// the failed attempts changed nothing
	got, err := svc.repo.GetByID(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("status mutated to %s", got.Status)
	}
}

func TestSetStatus_EitherParticipantMayCancel(t *testing.T) {
	svc, _, conns, db := newTestService(t)
	users := seedUsers(t, db, 2)
	x, y := users[0], users[1]

	for _, actor := range []uint64{x.ID, y.ID} {
		sess := mustSession(t, svc, conns, x.ID, y.ID, time.Now().Add(time.Hour))
		if _, err := svc.SetStatus(context.Background(), sess.ID, y.ID, StatusAccepted); err != nil {
			t.Fatalf("accept: %v", err)
		}
		if _, err := svc.SetStatus(context.Background(), sess.ID, actor, StatusCancelled); err != nil {
			t.Fatalf("cancel by %d: %v", actor, err)
		}
	}
}

func TestSetStatus_InvalidTransitionsLeaveStatusUnchanged(t *testing.T) {
	svc, _, conns, db := newTestService(t)
	users := seedUsers(t, db, 3)
	x, y, z := users[0], users[1], users[2]
	sess := mustSession(t, svc, conns, x.ID, y.ID, time.Now().Add(time.Hour))

	ctx := context.Background()

	// pending cannot be completed or cancelled
	if _, err := svc.SetStatus(ctx, sess.ID, y.ID, StatusCompleted); !errors.Is(err, common.ErrInvalidTransition) {
		t.Fatalf("pending->completed: expected invalid transition, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, sess.ID, x.ID, StatusCancelled); !errors.Is(err, common.ErrInvalidTransition) {
		t.Fatalf("pending->cancelled: expected invalid transition, got %v", err)
	}

	// pending is a real status, but nothing transitions back into it
	if _, err := svc.SetStatus(ctx, sess.ID, y.ID, StatusPending); !errors.Is(err, common.ErrInvalidTransition) {
		t.Fatalf("->pending: expected invalid transition, got %v", err)
	}
	if _, err := svc.SetStatus(ctx, sess.ID, y.ID, Status("postponed")); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("unknown status: expected invalid argument, got %v", err)
	}

	// outsiders never touch the machine
	if _, err := svc.SetStatus(ctx, sess.ID, z.ID, StatusAccepted); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("outsider: expected forbidden, got %v", err)
	}

	if _, err := svc.SetStatus(ctx, sess.ID, y.ID, StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// rejected is terminal
	for _, target := range []Status{StatusAccepted, StatusCancelled, StatusCompleted} {
		if _, err := svc.SetStatus(ctx, sess.ID, y.ID, target); !errors.Is(err, common.ErrInvalidTransition) {
			t.Fatalf("rejected->%s: expected invalid transition, got %v", target, err)
		}
	}

	got, err := svc.repo.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusRejected {
		t.Fatalf("terminal status mutated to %s", got.Status)
	}
}

func TestSetStatus_DoubleDecisionLosesCAS(t *testing.T) {
	svc, _, conns, db := newTestService(t)
	users := seedUsers(t, db, 2)
	x, y := users[0], users[1]
	sess := mustSession(t, svc, conns, x.ID, y.ID, time.Now().Add(time.Hour))

	if _, err := svc.SetStatus(context.Background(), sess.ID, y.ID, StatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err := svc.SetStatus(context.Background(), sess.ID, y.ID, StatusRejected)
	if !errors.Is(err, common.ErrInvalidTransition) {
		t.Fatalf("second decision: expected invalid transition, got %v", err)
	}

	// an accepted session cannot be pushed back to pending by either side
	for _, actor := range []uint64{x.ID, y.ID} {
		if _, err := svc.SetStatus(context.Background(), sess.ID, actor, StatusPending); !errors.Is(err, common.ErrInvalidTransition) {
			t.Fatalf("accepted->pending by %d: expected invalid transition, got %v", actor, err)
		}
	}
	got, err := svc.repo.GetByID(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Fatalf("status mutated to %s", got.Status)
	}
}

func TestAddFeedback(t *testing.T) {
	svc, _, conns, db := newTestService(t)
	users := seedUsers(t, db, 3)
	x, y, z := users[0], users[1], users[2]
	sess := mustSession(t, svc, conns, x.ID, y.ID, time.Now().Add(time.Hour))

	ctx := context.Background()

	// nothing to rate while pending
	if _, err := svc.AddFeedback(ctx, sess.ID, x.ID, 5, "great"); !errors.Is(err, common.ErrInvalidTransition) {
		t.Fatalf("pending feedback: expected invalid transition, got %v", err)
	}

	if _, err := svc.SetStatus(ctx, sess.ID, y.ID, StatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.SetStatus(ctx, sess.ID, x.ID, StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := svc.AddFeedback(ctx, sess.ID, x.ID, 0, ""); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("rating 0: expected invalid argument, got %v", err)
	}
	if _, err := svc.AddFeedback(ctx, sess.ID, x.ID, 6, ""); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("rating 6: expected invalid argument, got %v", err)
	}
	if _, err := svc.AddFeedback(ctx, sess.ID, z.ID, 4, "nope"); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("outsider feedback: expected forbidden, got %v", err)
	}

	got, err := svc.AddFeedback(ctx, sess.ID, x.ID, 5, "great talk")
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if len(got.Feedback) != 1 || got.Feedback[0].Rating != 5 || got.Feedback[0].UserID != x.ID {
		t.Fatalf("feedback not recorded: %+v", got.Feedback)
	}

	// both participants may leave feedback
	if _, err := svc.AddFeedback(ctx, sess.ID, y.ID, 4, "useful"); err != nil {
		t.Fatalf("recipient feedback: %v", err)
	}
	fresh, err := svc.Get(ctx, sess.ID, x.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(fresh.Feedback) != 2 {
		t.Fatalf("expected 2 feedback entries, got %d", len(fresh.Feedback))
	}
}

func TestGet_ParticipantOnlyAndResolved(t *testing.T) {
	svc, _, conns, db := newTestService(t)
	users := seedUsers(t, db, 3)
	x, y, z := users[0], users[1], users[2]
	sess := mustSession(t, svc, conns, x.ID, y.ID, time.Now().Add(time.Hour))

	view, err := svc.Get(context.Background(), sess.ID, y.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Initiator.ID != x.ID || view.Recipient.ID != y.ID {
		t.Fatalf("summaries not resolved: %+v", view)
	}

	if _, err := svc.Get(context.Background(), sess.ID, z.ID); !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("outsider: expected forbidden, got %v", err)
	}
	if _, err := svc.Get(context.Background(), 9999, x.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing: expected not found, got %v", err)
	}
}

func TestListFor_FiltersAndUpcomingCount(t *testing.T) {
	svc, _, conns, db := newTestService(t)
	users := seedUsers(t, db, 2)
	x, y := users[0], users[1]

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	ctx := context.Background()

	// upcoming pending
	pendingFuture := mustSession(t, svc, conns, x.ID, y.ID, base.Add(48*time.Hour))

	// upcoming accepted
	acceptedFuture := mustSession(t, svc, conns, x.ID, y.ID, base.Add(24*time.Hour))
	if _, err := svc.SetStatus(ctx, acceptedFuture.ID, y.ID, StatusAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// history: completed in the past
	past := mustSession(t, svc, conns, x.ID, y.ID, base.Add(-24*time.Hour))
	if _, err := svc.SetStatus(ctx, past.ID, y.ID, StatusAccepted); err != nil {
		t.Fatalf("accept past: %v", err)
	}
	if _, err := svc.SetStatus(ctx, past.ID, x.ID, StatusCompleted); err != nil {
		t.Fatalf("complete past: %v", err)
	}

	all, err := svc.ListFor(ctx, x.ID, FilterAll)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d, want 3", len(all))
	}

	pending, err := svc.ListFor(ctx, x.ID, FilterPending)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != pendingFuture.ID {
		t.Fatalf("pending filter wrong: %+v", pending)
	}

	// upcoming covers accepted future sessions only
	upcoming, err := svc.ListFor(ctx, x.ID, FilterUpcoming)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != acceptedFuture.ID {
		t.Fatalf("upcoming filter wrong: %+v", upcoming)
	}

	history, err := svc.ListFor(ctx, x.ID, FilterHistory)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != past.ID {
		t.Fatalf("history filter wrong: %+v", history)
	}

	// empty filter falls back to all, junk is rejected
	if _, err := svc.ListFor(ctx, x.ID, ""); err != nil {
		t.Fatalf("empty filter: %v", err)
	}
	if _, err := svc.ListFor(ctx, x.ID, Filter("bogus")); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("bogus filter: expected invalid argument, got %v", err)
	}

	count, err := svc.CountUpcoming(ctx, x.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("upcoming count = %d, want 1", count)
	}
}
