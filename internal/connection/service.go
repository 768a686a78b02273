package connection

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mentormesh/mentormesh/internal/common"
	"github.com/mentormesh/mentormesh/internal/models"
	"github.com/mentormesh/mentormesh/internal/notify"
	"github.com/mentormesh/mentormesh/internal/ws"
)

// Fanout is the live-delivery surface the service publishes to. Satisfied by
// *ws.Hub; tests substitute a recorder.
type Fanout interface {
	Publish(userID uint64, ev ws.Event)
}

type Service struct {
	repo        *Repo
	fanout      Fanout
	dispatcher  *notify.Dispatcher
	frontendURL string
}

func NewService(repo *Repo, fanout Fanout, dispatcher *notify.Dispatcher, frontendURL string) *Service {
	return &Service{repo: repo, fanout: fanout, dispatcher: dispatcher, frontendURL: frontendURL}
}

// PairStatus values reported to callers. An accepted connection is surfaced
// as "connected".
const (
	PairNone      = "none"
	PairPending   = "pending"
	PairConnected = "connected"
	PairRejected  = "rejected"
)

type PendingRequest struct {
	Connection
	Requester models.Summary `json:"requester"`
}

func (s *Service) Request(ctx context.Context, requesterID, recipientID uint64) (*Connection, error) {
	if requesterID == recipientID {
		return nil, fmt.Errorf("%w: cannot connect with yourself", common.ErrInvalidArgument)
	}

	recipient, err := s.repo.GetUser(ctx, recipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: recipient", common.ErrNotFound)
		}
		return nil, err
	}

	conn := &Connection{
		RequesterID: requesterID,
		RecipientID: recipientID,
		PairKey:     PairKey(requesterID, recipientID),
		Status:      StatusPending,
	}

	created, _, err := s.repo.CreateIfAbsent(ctx, conn)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("%w: connection already exists", common.ErrConflict)
	}

	requester, err := s.repo.GetUser(ctx, requesterID)
	if err != nil {
		return conn, nil
	}

	s.fanout.Publish(recipientID, ws.Event{
		Type: ws.EventNewConnectionRequest,
		Data: map[string]any{
			"connection":     conn,
			"requester":      requester.Summary(),
			"requester_name": requester.FullName(),
		},
	})

	s.dispatcher.Dispatch(notify.KindConnectionRequest, recipient.Email, recipient.FullName(), map[string]string{
		"requester_name": requester.FullName(),
		"accept_url":     fmt.Sprintf("%s/connections/%d/accept", s.frontendURL, conn.ID),
		"reject_url":     fmt.Sprintf("%s/connections/%d/reject", s.frontendURL, conn.ID),
	})

	return conn, nil
}

// Resolve applies the recipient's decision. Only the recipient may resolve,
// and only once: a second resolution attempt fails with ErrConflict.
func (s *Service) Resolve(ctx context.Context, connectionID, actingUserID uint64, decision Status) (*Connection, error) {
	if decision != StatusAccepted && decision != StatusRejected {
		return nil, fmt.Errorf("%w: decision must be accepted or rejected", common.ErrInvalidArgument)
	}

	conn, err := s.repo.GetByID(ctx, connectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: connection", common.ErrNotFound)
		}
		return nil, err
	}

	if conn.RecipientID != actingUserID {
		return nil, fmt.Errorf("%w: only the recipient can resolve a connection", common.ErrForbidden)
	}

	won, err := s.repo.ResolveCAS(ctx, connectionID, decision)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: connection already resolved", common.ErrConflict)
	}

	conn.Status = decision

	s.fanout.Publish(conn.RequesterID, ws.Event{
		Type: ws.EventConnectionResolved,
		Data: conn,
	})

	return conn, nil
}

// Status reports the pairwise state between two users in either direction.
func (s *Service) Status(ctx context.Context, userID, otherUserID uint64) (string, error) {
	conn, err := s.repo.GetByPair(ctx, userID, otherUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PairNone, nil
		}
		return "", err
	}
	switch conn.Status {
	case StatusAccepted:
		return PairConnected, nil
	case StatusRejected:
		return PairRejected, nil
	default:
		return PairPending, nil
	}
}

// Connected reports whether an accepted connection exists for the pair. Used
// by messaging and session as the creation precondition.
func (s *Service) Connected(ctx context.Context, a, b uint64) (bool, error) {
	conn, err := s.repo.GetByPair(ctx, a, b)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return conn.Status == StatusAccepted, nil
}

// ListAccepted returns the de-duplicated counterpart users across all
// accepted connections involving userID.
func (s *Service) ListAccepted(ctx context.Context, userID uint64) ([]models.Summary, error) {
	conns, err := s.repo.ListAccepted(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint64]struct{}, len(conns))
	ids := make([]uint64, 0, len(conns))
	for _, c := range conns {
		other := c.OtherParticipant(userID)
		if other == 0 {
			continue
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}

	users, err := s.repo.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.Summary, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (s *Service) ListPending(ctx context.Context, userID uint64) ([]PendingRequest, error) {
	conns, err := s.repo.ListPendingForRecipient(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.RequesterID)
	}
	users, err := s.repo.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]PendingRequest, 0, len(conns))
	for _, c := range conns {
		pr := PendingRequest{Connection: c}
		if u, ok := users[c.RequesterID]; ok {
			pr.Requester = u.Summary()
		}
		out = append(out, pr)
	}
	return out, nil
}
