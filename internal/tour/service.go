package tour

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/herd-1807-capstone/api-routes/internal/auth"
	"github.com/herd-1807-capstone/api-routes/internal/guard"
	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"
	"github.com/herd-1807-capstone/api-routes/internal/shared/lock"
	"github.com/herd-1807-capstone/api-routes/internal/store"

	"github.com/google/uuid"
)

type Service struct {
	store store.Store
	locks lock.Locker
}

func NewService(st store.Store, locks lock.Locker) *Service {
	return &Service{store: st, locks: locks}
}

// Snapshot is the membership state other packages feed into the guard.
type Snapshot struct {
	Exists  bool
	Members []string
}

// MemberSnapshot reads the tour's existence and member set in one place,
// normalizing whatever shape the member collection has into a plain set
// of ids.
func MemberSnapshot(ctx context.Context, st store.Store, tourID string) (Snapshot, error) {
	var raw json.RawMessage
	err := st.Get(ctx, store.Join("tours", tourID), &raw)
	if errors.Is(err, store.ErrAbsent) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, err
	}

	entries, err := st.Children(ctx, store.Join("tours", tourID, "members"))
	if err != nil {
		return Snapshot{}, err
	}
	members := make([]string, 0, len(entries))
	for _, e := range entries {
		members = append(members, e.Key)
	}
	return Snapshot{Exists: true, Members: members}, nil
}

func (s *Service) Create(ctx context.Context, actor auth.User, input Tour) (Tour, error) {
	if input.Name == "" {
		return Tour{}, apperr.Invalid("name required")
	}
	decision := guard.Authorize(actor, guard.TourCreate, guard.Target{})
	if err := decision.Err(); err != nil {
		return Tour{}, err
	}
	if actor.Tour != "" {
		return Tour{}, apperr.AlreadyMember("guide already belongs to a tour")
	}

	input.ID = ""
	input.GuideUID = actor.ID
	id := uuid.NewString()

	// the creating guide joins atomically, so guide membership holds from
	// the first observable state
	err := s.store.AtomicUpdate(ctx, map[string]any{
		store.Join("tours", id):                       input,
		store.Join("tours", id, "members", actor.ID):  actor.ID,
		store.Join("users", actor.ID):                 store.Patch{"tour": id},
	})
	if err != nil {
		return Tour{}, err
	}
	input.ID = id
	return input, nil
}

func (s *Service) Get(ctx context.Context, actor auth.User, tourID string) (Detail, error) {
	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return Detail{}, err
	}
	decision := guard.Authorize(actor, guard.TourRead, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return Detail{}, err
	}

	var detail Detail
	if err := s.store.Get(ctx, store.Join("tours", tourID), &detail.Tour); err != nil {
		return Detail{}, err
	}
	detail.Tour.ID = tourID
	detail.Members = snap.Members

	spots, err := s.store.Children(ctx, store.Join("tours", tourID, "spots"))
	if err != nil {
		return Detail{}, err
	}
	detail.Spots = make([]Spot, 0, len(spots))
	for _, e := range spots {
		var spot Spot
		if err := e.Decode(&spot); err != nil {
			return Detail{}, err
		}
		spot.ID = e.Key
		detail.Spots = append(detail.Spots, spot)
	}
	return detail, nil
}

func (s *Service) Update(ctx context.Context, actor auth.User, tourID string, upd Update) error {
	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return err
	}
	decision := guard.Authorize(actor, guard.TourUpdate, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return err
	}

	patch := upd.patch()
	if len(patch) == 0 {
		return nil
	}
	return s.store.AtomicUpdate(ctx, map[string]any{
		store.Join("tours", tourID): patch,
	})
}

func (s *Service) Delete(ctx context.Context, actor auth.User, tourID string) error {
	release, err := s.locks.Acquire(ctx, "tour:"+tourID)
	if err != nil {
		return err
	}
	defer release()

	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return err
	}
	decision := guard.Authorize(actor, guard.TourDelete, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return err
	}

	// spots, invitations, conversations and history live under the tour
	// subtree; dropping it cascades. Members get their tour field cleared
	// in the same update.
	writes := map[string]any{
		store.Join("tours", tourID): nil,
	}
	for _, member := range snap.Members {
		writes[store.Join("users", member)] = store.Patch{"tour": nil}
	}

	// the per-user conversation indexes live outside the subtree, so they
	// must be removed explicitly or they would point at deleted threads
	convs, err := s.store.Children(ctx, store.Join("tours", tourID, "conversations"))
	if err != nil {
		return err
	}
	for _, e := range convs {
		var conv struct {
			UserA string `json:"user_a"`
			UserB string `json:"user_b"`
		}
		if decodeErr := e.Decode(&conv); decodeErr != nil {
			continue
		}
		writes[store.Join("users", conv.UserA, "conversations", e.Key)] = nil
		writes[store.Join("users", conv.UserB, "conversations", e.Key)] = nil
	}
	return s.store.AtomicUpdate(ctx, writes)
}

func (s *Service) AddSpot(ctx context.Context, actor auth.User, tourID string, input Spot) (Spot, error) {
	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return Spot{}, err
	}
	decision := guard.Authorize(actor, guard.SpotCreate, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return Spot{}, err
	}

	input.ID = ""
	id := uuid.NewString()
	err = s.store.AtomicUpdate(ctx, map[string]any{
		store.Join("tours", tourID, "spots", id): input,
	})
	if err != nil {
		return Spot{}, err
	}
	input.ID = id
	return input, nil
}

func (s *Service) UpdateSpot(ctx context.Context, actor auth.User, tourID, spotID string, upd SpotUpdate) error {
	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return err
	}
	decision := guard.Authorize(actor, guard.SpotUpdate, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return err
	}

	spotPath := store.Join("tours", tourID, "spots", spotID)
	var raw json.RawMessage
	if err := s.store.Get(ctx, spotPath, &raw); err != nil {
		if errors.Is(err, store.ErrAbsent) {
			return apperr.NotFound("spot not found")
		}
		return err
	}

	patch := upd.patch()
	if len(patch) == 0 {
		return nil
	}
	return s.store.AtomicUpdate(ctx, map[string]any{spotPath: patch})
}

func (s *Service) DeleteSpot(ctx context.Context, actor auth.User, tourID, spotID string) error {
	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return err
	}
	decision := guard.Authorize(actor, guard.SpotDelete, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return err
	}

	return s.store.AtomicUpdate(ctx, map[string]any{
		store.Join("tours", tourID, "spots", spotID): nil,
	})
}

func (s *Service) Members(ctx context.Context, actor auth.User, tourID string) ([]string, error) {
	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return nil, err
	}
	decision := guard.Authorize(actor, guard.TourRead, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return nil, err
	}
	return snap.Members, nil
}

// AddMember appends the user to the member set and points the user's
// tour field at the tour in one atomic update. The read-check-write runs
// under the per-tour lock so concurrent membership changes cannot lose
// each other's writes.
func (s *Service) AddMember(ctx context.Context, actor auth.User, tourID, userID string) error {
	release, err := s.locks.Acquire(ctx, "tour:"+tourID)
	if err != nil {
		return err
	}
	defer release()

	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return err
	}
	decision := guard.Authorize(actor, guard.MemberAdd, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return err
	}

	return s.addMemberLocked(ctx, snap, tourID, userID)
}

func (s *Service) addMemberLocked(ctx context.Context, snap Snapshot, tourID, userID string, extra ...map[string]any) error {
	if contains(snap.Members, userID) {
		return apperr.AlreadyMember("user is already a member")
	}

	var rec struct {
		Tour string `json:"tour"`
	}
	if err := s.store.Get(ctx, store.Join("users", userID), &rec); err != nil {
		if errors.Is(err, store.ErrAbsent) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	if rec.Tour != "" {
		return apperr.AlreadyMember("user already belongs to a tour")
	}

	writes := map[string]any{
		store.Join("tours", tourID, "members", userID): userID,
		store.Join("users", userID):                    store.Patch{"tour": tourID},
	}
	for _, w := range extra {
		for path, value := range w {
			writes[path] = value
		}
	}
	return s.store.AtomicUpdate(ctx, writes)
}

func (s *Service) RemoveMember(ctx context.Context, actor auth.User, tourID, userID string) error {
	release, err := s.locks.Acquire(ctx, "tour:"+tourID)
	if err != nil {
		return err
	}
	defer release()

	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return err
	}
	decision := guard.Authorize(actor, guard.MemberRemove, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return err
	}

	if !contains(snap.Members, userID) {
		return apperr.NotFound("user is not a member")
	}

	var tour Tour
	if err := s.store.Get(ctx, store.Join("tours", tourID), &tour); err != nil {
		return err
	}
	if tour.GuideUID == userID {
		return apperr.Invalid("cannot remove the tour guide")
	}

	return s.store.AtomicUpdate(ctx, map[string]any{
		store.Join("tours", tourID, "members", userID): nil,
		store.Join("users", userID):                    store.Patch{"tour": nil},
	})
}

// CreateInvitation issues a single-use invitation bound to the invitee's
// email. An existing invitation for the same email is returned as-is.
// The duplicate scan is not atomic against a concurrent inviter; the
// worst case is a redundant invitation row, never a membership violation.
func (s *Service) CreateInvitation(ctx context.Context, actor auth.User, tourID, email string) (Invitation, error) {
	if email == "" {
		return Invitation{}, apperr.Invalid("email required")
	}

	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return Invitation{}, err
	}
	decision := guard.Authorize(actor, guard.InviteCreate, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return Invitation{}, err
	}

	existing, err := s.store.Query(ctx, store.Join("tours", tourID, "invitations"), "", email)
	if err != nil {
		return Invitation{}, err
	}
	if len(existing) > 0 {
		return Invitation{ID: existing[0].Key, Email: email}, nil
	}

	id := uuid.NewString()
	err = s.store.AtomicUpdate(ctx, map[string]any{
		store.Join("tours", tourID, "invitations", id): email,
	})
	if err != nil {
		return Invitation{}, err
	}
	return Invitation{ID: id, Email: email}, nil
}

func (s *Service) Invitations(ctx context.Context, actor auth.User, tourID string) ([]Invitation, error) {
	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return nil, err
	}
	decision := guard.Authorize(actor, guard.InviteCreate, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return nil, err
	}

	entries, err := s.store.Children(ctx, store.Join("tours", tourID, "invitations"))
	if err != nil {
		return nil, err
	}
	invitations := make([]Invitation, 0, len(entries))
	for _, e := range entries {
		invitations = append(invitations, Invitation{ID: e.Key, Email: e.Scalar()})
	}
	return invitations, nil
}

// RedeemInvitation consumes the invitation and adds the redeemer in one
// atomic update: member added and invitation gone, or neither.
func (s *Service) RedeemInvitation(ctx context.Context, actor auth.User, tourID, invitationID string) error {
	release, err := s.locks.Acquire(ctx, "tour:"+tourID)
	if err != nil {
		return err
	}
	defer release()

	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return err
	}
	decision := guard.Authorize(actor, guard.InviteRedeem, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
	})
	if err := decision.Err(); err != nil {
		return err
	}

	invitationPath := store.Join("tours", tourID, "invitations", invitationID)
	var email string
	if err := s.store.Get(ctx, invitationPath, &email); err != nil {
		if errors.Is(err, store.ErrAbsent) {
			return apperr.NotFound("invitation not found")
		}
		return err
	}
	if email != actor.Email {
		return apperr.EmailMismatch("invitation was issued to a different email")
	}

	return s.addMemberLocked(ctx, snap, tourID, actor.ID, map[string]any{
		invitationPath: nil,
	})
}

func (s *Service) RevokeInvitation(ctx context.Context, actor auth.User, tourID, invitationID string) error {
	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return err
	}
	decision := guard.Authorize(actor, guard.InviteRevoke, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return err
	}

	invitationPath := store.Join("tours", tourID, "invitations", invitationID)
	var email string
	if err := s.store.Get(ctx, invitationPath, &email); err != nil {
		if errors.Is(err, store.ErrAbsent) {
			return apperr.NotFound("invitation not found")
		}
		return err
	}
	return s.store.AtomicUpdate(ctx, map[string]any{invitationPath: nil})
}

// History returns the tour's append-only location history in store order.
func (s *Service) History(ctx context.Context, actor auth.User, tourID string) ([]HistorySample, error) {
	snap, err := MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return nil, err
	}
	decision := guard.Authorize(actor, guard.HistoryRead, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return nil, err
	}

	entries, err := s.store.Children(ctx, store.Join("tours", tourID, "history"))
	if err != nil {
		return nil, err
	}
	samples := make([]HistorySample, 0, len(entries))
	for _, e := range entries {
		var sample HistorySample
		if err := e.Decode(&sample); err != nil {
			return nil, err
		}
		sample.ID = e.Key
		samples = append(samples, sample)
	}
	return samples, nil
}

func (u Update) patch() store.Patch {
	patch := store.Patch{}
	if u.Name != nil {
		patch["name"] = *u.Name
	}
	if u.Description != nil {
		patch["description"] = *u.Description
	}
	if u.ImageURL != nil {
		patch["image_url"] = *u.ImageURL
	}
	if u.Announcement != nil {
		patch["announcement"] = *u.Announcement
	}
	if u.StartTime != nil {
		patch["start_time"] = *u.StartTime
	}
	if u.EndTime != nil {
		patch["end_time"] = *u.EndTime
	}
	return patch
}

func (u SpotUpdate) patch() store.Patch {
	patch := store.Patch{}
	if u.Name != nil {
		patch["name"] = *u.Name
	}
	if u.Description != nil {
		patch["description"] = *u.Description
	}
	if u.Lat != nil {
		patch["lat"] = *u.Lat
	}
	if u.Lng != nil {
		patch["lng"] = *u.Lng
	}
	if u.ImageURL != nil {
		patch["image_url"] = *u.ImageURL
	}
	return patch
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
