package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/herd-1807-capstone/api-routes/internal/auth"
	"github.com/herd-1807-capstone/api-routes/internal/guard"
	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"
	"github.com/herd-1807-capstone/api-routes/internal/shared/lock"
	"github.com/herd-1807-capstone/api-routes/internal/store"
	"github.com/herd-1807-capstone/api-routes/internal/tour"

	"github.com/google/uuid"
)

type Service struct {
	store store.Store
	locks lock.Locker
}

func NewService(st store.Store, locks lock.Locker) *Service {
	return &Service{store: st, locks: locks}
}

// PairKey returns the canonical order-independent key for two user ids,
// so both sides of a pair always resolve the same thread.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Resolve finds the shared conversation for the pair within the tour, or
// creates exactly one. The create path re-verifies absence under a
// per-(tour,pair) lock and writes the conversation record together with
// its indexes in a single atomic update, which closes the race where
// first-contact messages from both sides mint two threads.
func (s *Service) Resolve(ctx context.Context, tourID, userA, userB string) (string, bool, error) {
	if tourID == "" || userA == "" || userB == "" || userA == userB {
		return "", false, apperr.Invalid("two distinct participants and a tour required")
	}

	pairKey := PairKey(userA, userB)
	indexPath := store.Join("tours", tourID, "pairs", pairKey)

	var id string
	err := s.store.Get(ctx, indexPath, &id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, store.ErrAbsent) {
		return "", false, err
	}

	release, err := s.locks.Acquire(ctx, "pair:"+tourID+":"+pairKey)
	if err != nil {
		return "", false, err
	}
	defer release()

	// re-check under the lock: the other side may have created the thread
	// between our read and the acquire
	err = s.store.Get(ctx, indexPath, &id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, store.ErrAbsent) {
		return "", false, err
	}

	first, second := userA, userB
	if second < first {
		first, second = second, first
	}
	id = uuid.NewString()
	conv := Conversation{UserA: first, UserB: second, PairKey: pairKey}

	err = s.store.AtomicUpdate(ctx, map[string]any{
		store.Join("tours", tourID, "conversations", id):   conv,
		indexPath:                                          id,
		store.Join("users", userA, "conversations", id):    userB,
		store.Join("users", userB, "conversations", id):    userA,
	})
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// AppendMessage appends to a resolved conversation, snapshotting both
// participant display names at send time. The snapshot is deliberately
// not kept in sync with later renames.
func (s *Service) AppendMessage(ctx context.Context, tourID, convID, fromID, text string) (Message, error) {
	var conv Conversation
	convPath := store.Join("tours", tourID, "conversations", convID)
	if err := s.store.Get(ctx, convPath, &conv); err != nil {
		if errors.Is(err, store.ErrAbsent) {
			return Message{}, apperr.NotFound("conversation not found")
		}
		return Message{}, err
	}

	var toID string
	switch fromID {
	case conv.UserA:
		toID = conv.UserB
	case conv.UserB:
		toID = conv.UserA
	default:
		return Message{}, apperr.InvalidParticipant("sender is not part of this conversation")
	}

	msg := Message{
		FromID:    fromID,
		ToID:      toID,
		FromName:  s.displayName(ctx, fromID),
		ToName:    s.displayName(ctx, toID),
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}

	key, err := s.store.Append(ctx, convPath+"/messages", msg)
	if err != nil {
		return Message{}, err
	}
	msg.ID = key
	return msg, nil
}

// Send resolves the thread between actor and toID and appends the
// message, gated on the actor's tour membership.
func (s *Service) Send(ctx context.Context, actor auth.User, tourID, toID, text string) (string, Message, error) {
	if toID == "" || text == "" {
		return "", Message{}, apperr.Invalid("recipient and text required")
	}

	snap, err := tour.MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return "", Message{}, err
	}
	decision := guard.Authorize(actor, guard.ChatSend, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return "", Message{}, err
	}

	var raw json.RawMessage
	if err := s.store.Get(ctx, store.Join("users", toID), &raw); err != nil {
		if errors.Is(err, store.ErrAbsent) {
			return "", Message{}, apperr.NotFound("recipient not found")
		}
		return "", Message{}, err
	}

	convID, _, err := s.Resolve(ctx, tourID, actor.ID, toID)
	if err != nil {
		return "", Message{}, err
	}

	msg, err := s.AppendMessage(ctx, tourID, convID, actor.ID, text)
	if err != nil {
		return "", Message{}, err
	}
	return convID, msg, nil
}

// Messages returns the conversation history in append order.
func (s *Service) Messages(ctx context.Context, actor auth.User, tourID, convID string) ([]Message, error) {
	snap, err := tour.MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return nil, err
	}
	decision := guard.Authorize(actor, guard.ChatRead, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return nil, err
	}

	var conv Conversation
	convPath := store.Join("tours", tourID, "conversations", convID)
	if err := s.store.Get(ctx, convPath, &conv); err != nil {
		if errors.Is(err, store.ErrAbsent) {
			return nil, apperr.NotFound("conversation not found")
		}
		return nil, err
	}
	if actor.ID != conv.UserA && actor.ID != conv.UserB && !actor.IsAdmin() {
		return nil, apperr.InvalidParticipant("not part of this conversation")
	}

	entries, err := s.store.Children(ctx, convPath+"/messages")
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(entries))
	for _, e := range entries {
		var msg Message
		if err := e.Decode(&msg); err != nil {
			return nil, err
		}
		msg.ID = e.Key
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	var rec struct {
		Name string `json:"name"`
	}
	// best-effort snapshot; a missing record leaves the name empty
	_ = s.store.Get(ctx, store.Join("users", userID), &rec)
	return rec.Name
}
