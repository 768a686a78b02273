package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/mentormesh/mentormesh/internal/common"
	"github.com/mentormesh/mentormesh/internal/models"
	"github.com/mentormesh/mentormesh/internal/notify"
	"github.com/mentormesh/mentormesh/internal/ws"
)

type Fanout interface {
	Publish(userID uint64, ev ws.Event)
}

type ConnectionChecker interface {
	Connected(ctx context.Context, a, b uint64) (bool, error)
}

type Service struct {
	repo        *Repo
	fanout      Fanout
	dispatcher  *notify.Dispatcher
	connections ConnectionChecker
	frontendURL string
	now         func() time.Time
}

func NewService(repo *Repo, fanout Fanout, dispatcher *notify.Dispatcher, connections ConnectionChecker, frontendURL string) *Service {
	return &Service{
		repo:        repo,
		fanout:      fanout,
		dispatcher:  dispatcher,
		connections: connections,
		frontendURL: frontendURL,
		now:         time.Now,
	}
}

type ProposeInput struct {
	RecipientID uint64    `json:"recipient_id"`
	Date        time.Time `json:"date"`
	Duration    int       `json:"duration"`
	Topic       string    `json:"topic"`
	Type        string    `json:"type"`
	Notes       string    `json:"notes"`
	Description string    `json:"description"`
}

// Propose creates a pending session and queues the booking notification for
// the recipient. The room token is minted here, once.
func (s *Service) Propose(ctx context.Context, initiatorID uint64, in ProposeInput) (*Session, error) {
	if in.RecipientID == initiatorID {
		return nil, fmt.Errorf("%w: cannot create a session with yourself", common.ErrInvalidArgument)
	}
	if in.Duration < MinDuration || in.Duration > MaxDuration {
		return nil, fmt.Errorf("%w: duration must be between %d and %d minutes", common.ErrInvalidArgument, MinDuration, MaxDuration)
	}
	if in.Type != TypeOneOnOne && in.Type != TypeGroup {
		return nil, fmt.Errorf("%w: type must be %q or %q", common.ErrInvalidArgument, TypeOneOnOne, TypeGroup)
	}
	if in.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", common.ErrInvalidArgument)
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", common.ErrInvalidArgument)
	}

	recipient, err := s.repo.GetUser(ctx, in.RecipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: recipient", common.ErrNotFound)
		}
		return nil, err
	}

	connected, err := s.connections.Connected(ctx, initiatorID, in.RecipientID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, fmt.Errorf("%w: users are not connected", common.ErrForbidden)
	}

	roomToken, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		InitiatorID: initiatorID,
		RecipientID: in.RecipientID,
		Date:        in.Date,
		Duration:    in.Duration,
		Topic:       in.Topic,
		Type:        in.Type,
		Notes:       in.Notes,
		Description: in.Description,
		Status:      StatusPending,
		RoomToken:   roomToken,
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}

	s.fanout.Publish(in.RecipientID, ws.Event{Type: ws.EventSessionUpdated, Data: sess})

	initiator, err := s.repo.GetUser(ctx, initiatorID)
	if err == nil {
		s.dispatcher.Dispatch(notify.KindSessionBooked, recipient.Email, recipient.FullName(), map[string]string{
			"initiator_name": initiator.FullName(),
			"topic":          sess.Topic,
			"date":           sess.Date.Format(time.RFC1123),
			"duration":       strconv.Itoa(sess.Duration),
			"accept_url":     fmt.Sprintf("%s/sessions/action/%d/accept", s.frontendURL, sess.ID),
			"reject_url":     fmt.Sprintf("%s/sessions/action/%d/reject", s.frontendURL, sess.ID),
			"room_link":      s.roomLink(sess.RoomToken),
		})
	}

	return sess, nil
}

// SetStatus applies one state-machine transition. pending -> accepted or
// rejected, by the recipient only; accepted -> cancelled or completed, by
// either participant. Everything else is an invalid transition.
func (s *Service) SetStatus(ctx context.Context, sessionID, actingUserID uint64, newStatus Status) (*Session, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session", common.ErrNotFound)
		}
		return nil, err
	}

	if !sess.IsParticipant(actingUserID) {
		return nil, fmt.Errorf("%w: not a participant", common.ErrForbidden)
	}

	from, ok := predecessor[newStatus]
	if !ok {
		// pending is in the enum but nothing transitions back into it;
		// only out-of-enum strings are an argument error.
		if newStatus.valid() {
			return nil, fmt.Errorf("%w: no transition leads to %s", common.ErrInvalidTransition, newStatus)
		}
		return nil, fmt.Errorf("%w: unknown target status %q", common.ErrInvalidArgument, newStatus)
	}

	// Accept/reject is the recipient's decision alone.
	if from == StatusPending && actingUserID != sess.RecipientID {
		return nil, fmt.Errorf("%w: only the recipient can %s a session", common.ErrForbidden, newStatus)
	}

	won, err := s.repo.TransitionCAS(ctx, sessionID, from, newStatus)
	if err != nil {
		return nil, err
	}
	if !won {
		current, rerr := s.repo.GetByID(ctx, sessionID)
		if rerr != nil {
			return nil, rerr
		}
		return nil, fmt.Errorf("%w: cannot go from %s to %s", common.ErrInvalidTransition, current.Status, newStatus)
	}

	sess.Status = newStatus

	s.fanout.Publish(sess.OtherParticipant(actingUserID), ws.Event{Type: ws.EventSessionUpdated, Data: sess})

	s.notifyStatusChange(ctx, sess, actingUserID)

	return sess, nil
}

// AddFeedback appends a participant's rating. A pending session has nothing
// to rate yet; any other status is fair game.
func (s *Service) AddFeedback(ctx context.Context, sessionID, actingUserID uint64, rating int, comment string) (*Session, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", common.ErrInvalidArgument)
	}

	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session", common.ErrNotFound)
		}
		return nil, err
	}
	if !sess.IsParticipant(actingUserID) {
		return nil, fmt.Errorf("%w: not a participant", common.ErrForbidden)
	}
	if sess.Status == StatusPending {
		return nil, fmt.Errorf("%w: cannot leave feedback on a pending session", common.ErrInvalidTransition)
	}

	f := &Feedback{
		SessionID: sessionID,
		UserID:    actingUserID,
		Rating:    rating,
		Comment:   comment,
	}
	if err := s.repo.AppendFeedback(ctx, f); err != nil {
		return nil, err
	}

	sess.Feedback = append(sess.Feedback, *f)
	return sess, nil
}

// Get returns one session with participant summaries; participants only.
func (s *Service) Get(ctx context.Context, sessionID, requestingUserID uint64) (*View, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session", common.ErrNotFound)
		}
		return nil, err
	}
	if !sess.IsParticipant(requestingUserID) {
		return nil, fmt.Errorf("%w: not a participant", common.ErrForbidden)
	}

	views, err := s.resolve(ctx, []Session{*sess})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) ListFor(ctx context.Context, userID uint64, f Filter) ([]View, error) {
	switch f {
	case FilterAll, FilterPending, FilterAccepted, FilterHistory, FilterUpcoming:
	case "":
		f = FilterAll
	default:
		return nil, fmt.Errorf("%w: unknown filter %q", common.ErrInvalidArgument, f)
	}

	sessions, err := s.repo.ListFor(ctx, userID, f, s.now())
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, sessions)
}

func (s *Service) CountUpcoming(ctx context.Context, userID uint64) (int64, error) {
	return s.repo.CountUpcoming(ctx, userID, s.now())
}

func (s *Service) resolve(ctx context.Context, sessions []Session) ([]View, error) {
	ids := make([]uint64, 0, len(sessions)*2)
	for _, sess := range sessions {
		ids = append(ids, sess.InitiatorID, sess.RecipientID)
	}
	users, err := s.repo.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]View, 0, len(sessions))
	for _, sess := range sessions {
		v := View{Session: sess}
		if u, ok := users[sess.InitiatorID]; ok {
			v.Initiator = u.Summary()
		}
		if u, ok := users[sess.RecipientID]; ok {
			v.Recipient = u.Summary()
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) roomLink(token string) string {
	return s.frontendURL + "/meet/" + token
}

// notifyStatusChange queues the per-status emails after the transition has
// committed. Accepted/rejected/cancelled/completed each notify per the
// platform's rules; failures never surface to the caller.
func (s *Service) notifyStatusChange(ctx context.Context, sess *Session, actingUserID uint64) {
	users, err := s.repo.GetUsers(ctx, []uint64{sess.InitiatorID, sess.RecipientID})
	if err != nil {
		return
	}
	initiator, iok := users[sess.InitiatorID]
	recipient, rok := users[sess.RecipientID]
	if !iok || !rok {
		return
	}

	actor := initiator
	if actingUserID == recipient.ID {
		actor = recipient
	}

	data := map[string]string{
		"topic":      sess.Topic,
		"date":       sess.Date.Format(time.RFC1123),
		"room_link":  s.roomLink(sess.RoomToken),
		"actor_name": actor.FullName(),
	}

	both := []models.User{initiator, recipient}

	switch sess.Status {
	case StatusAccepted:
		for _, u := range both {
			s.dispatcher.Dispatch(notify.KindSessionAccepted, u.Email, u.FullName(), data)
		}
	case StatusRejected:
		s.dispatcher.Dispatch(notify.KindSessionRejected, initiator.Email, initiator.FullName(), data)
	case StatusCancelled:
		for _, u := range both {
			s.dispatcher.Dispatch(notify.KindSessionCancelled, u.Email, u.FullName(), data)
		}
	case StatusCompleted:
		for _, u := range both {
			s.dispatcher.Dispatch(notify.KindSessionCompleted, u.Email, u.FullName(), data)
		}
	}
}
