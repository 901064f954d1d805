package user

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/herd-1807-capstone/api-routes/internal/auth"
	"github.com/herd-1807-capstone/api-routes/internal/guard"
	"github.com/herd-1807-capstone/api-routes/internal/shared/apperr"
	"github.com/herd-1807-capstone/api-routes/internal/shared/geo"
	"github.com/herd-1807-capstone/api-routes/internal/store"
	"github.com/herd-1807-capstone/api-routes/internal/stream"
	"github.com/herd-1807-capstone/api-routes/internal/tour"

	"github.com/google/uuid"
)

type Service struct {
	store store.Store
	hub   *stream.Hub
}

func NewService(st store.Store, hub *stream.Hub) *Service {
	return &Service{store: st, hub: hub}
}

func (s *Service) Create(ctx context.Context, actor auth.User, req CreateRequest) (Record, error) {
	if req.Email == "" || req.Name == "" {
		return Record{}, apperr.Invalid("email and name required")
	}
	decision := guard.Authorize(actor, guard.UserCreate, guard.Target{})
	if err := decision.Err(); err != nil {
		return Record{}, err
	}

	rec := Record{
		Email:   req.Email,
		Name:    req.Name,
		Role:    req.Role,
		Lat:     req.Lat,
		Lng:     req.Lng,
		Visible: true,
	}
	if rec.Role == "" {
		rec.Role = auth.RoleMember
	}
	if req.Visible != nil {
		rec.Visible = *req.Visible
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return Record{}, err
		}
		rec.PasswordHash = hash
	}

	id := uuid.NewString()
	err := s.store.AtomicUpdate(ctx, map[string]any{
		store.Join("users", id): rec,
	})
	if err != nil {
		return Record{}, err
	}
	rec.ID = id
	return rec.clean(), nil
}

func (s *Service) Get(ctx context.Context, actor auth.User, userID string) (Record, error) {
	rec, found, err := s.load(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	decision := guard.Authorize(actor, guard.UserRead, guard.Target{
		User:       userID,
		UserExists: found,
	})
	if err := decision.Err(); err != nil {
		return Record{}, err
	}
	return rec.clean(), nil
}

// ListByTour returns all users assigned to the given tour.
func (s *Service) ListByTour(ctx context.Context, actor auth.User, tourID string) ([]Record, error) {
	decision := guard.Authorize(actor, guard.UserList, guard.Target{})
	if err := decision.Err(); err != nil {
		return nil, err
	}

	entries, err := s.store.Query(ctx, "/users", "tour", tourID)
	if err != nil {
		return nil, err
	}
	return decodeRecords(entries)
}

// ListFree returns users not yet assigned to any tour.
func (s *Service) ListFree(ctx context.Context, actor auth.User) ([]Record, error) {
	decision := guard.Authorize(actor, guard.UserList, guard.Target{})
	if err := decision.Err(); err != nil {
		return nil, err
	}

	entries, err := s.store.Children(ctx, "/users")
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(entries)
	if err != nil {
		return nil, err
	}

	free := records[:0]
	for _, rec := range records {
		if rec.Tour == "" {
			free = append(free, rec)
		}
	}
	return free, nil
}

func (s *Service) ByEmail(ctx context.Context, actor auth.User, email string) (Record, error) {
	decision := guard.Authorize(actor, guard.UserList, guard.Target{})
	if err := decision.Err(); err != nil {
		return Record{}, err
	}

	entries, err := s.store.Query(ctx, "/users", "email", email)
	if err != nil {
		return Record{}, err
	}
	if len(entries) == 0 {
		return Record{}, apperr.NotFound("user not found")
	}

	var rec Record
	if err := entries[0].Decode(&rec); err != nil {
		return Record{}, err
	}
	rec.ID = entries[0].Key
	return rec.clean(), nil
}

func (s *Service) Update(ctx context.Context, actor auth.User, userID string, upd Update) error {
	_, found, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	decision := guard.Authorize(actor, guard.UserUpdate, guard.Target{
		User:       userID,
		UserExists: found,
	})
	if err := decision.Err(); err != nil {
		return err
	}

	// role changes stay an admin concern even on one's own record
	if upd.Role != nil && !actor.IsAdmin() {
		return apperr.Forbidden("role change requires admin")
	}

	patch, err := upd.patch()
	if err != nil {
		return err
	}
	if len(patch) == 0 {
		return nil
	}
	return s.store.AtomicUpdate(ctx, map[string]any{
		store.Join("users", userID): patch,
	})
}

func (s *Service) Delete(ctx context.Context, actor auth.User, userID string) error {
	decision := guard.Authorize(actor, guard.UserDelete, guard.Target{})
	if err := decision.Err(); err != nil {
		return err
	}

	rec, found, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return apperr.NotFound("user not found")
	}

	writes := map[string]any{
		store.Join("users", userID): nil,
	}
	if rec.Tour != "" {
		writes[store.Join("tours", rec.Tour, "members", userID)] = nil
	}
	return s.store.AtomicUpdate(ctx, writes)
}

// UpdateLocation patches the member's coordinates, appends a sample to
// the tour history and broadcasts the update to stream watchers.
func (s *Service) UpdateLocation(ctx context.Context, actor auth.User, tourID, userID string, loc LocationUpdate) error {
	snap, err := tour.MemberSnapshot(ctx, s.store, tourID)
	if err != nil {
		return err
	}
	decision := guard.Authorize(actor, guard.LocationUpdate, guard.Target{
		Tour:       tourID,
		TourExists: snap.Exists,
		Members:    snap.Members,
	})
	if err := decision.Err(); err != nil {
		return err
	}

	rec, found, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return apperr.NotFound("user not found")
	}

	if loc.LastSeen == 0 {
		loc.LastSeen = time.Now().UnixMilli()
	}

	sample := tour.HistorySample{
		UserID: userID,
		Lat:    loc.Lat,
		Lng:    loc.Lng,
		At:     loc.LastSeen,
	}
	if rec.LastSeen != 0 {
		sample.DistanceKm = geo.HaversineKm(rec.Lat, rec.Lng, loc.Lat, loc.Lng)
	}

	err = s.store.AtomicUpdate(ctx, map[string]any{
		store.Join("users", userID): store.Patch{
			"lat":       loc.Lat,
			"lng":       loc.Lng,
			"last_seen": loc.LastSeen,
		},
	})
	if err != nil {
		return err
	}
	if _, err := s.store.Append(ctx, store.Join("tours", tourID, "history"), sample); err != nil {
		return err
	}

	if s.hub != nil {
		payload, _ := json.Marshal(sample)
		s.hub.Broadcast(tourID, payload)
	}
	return nil
}

func (s *Service) load(ctx context.Context, userID string) (Record, bool, error) {
	var rec Record
	err := s.store.Get(ctx, store.Join("users", userID), &rec)
	if errors.Is(err, store.ErrAbsent) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	rec.ID = userID
	return rec, true, nil
}

func decodeRecords(entries []store.Entry) ([]Record, error) {
	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		var rec Record
		if err := e.Decode(&rec); err != nil {
			return nil, err
		}
		rec.ID = e.Key
		records = append(records, rec.clean())
	}
	return records, nil
}

func (u Update) patch() (store.Patch, error) {
	patch := store.Patch{}
	if u.Email != nil {
		patch["email"] = *u.Email
	}
	if u.Name != nil {
		patch["name"] = *u.Name
	}
	if u.Role != nil {
		patch["role"] = *u.Role
	}
	if u.Lat != nil {
		patch["lat"] = *u.Lat
	}
	if u.Lng != nil {
		patch["lng"] = *u.Lng
	}
	if u.Visible != nil {
		patch["visible"] = *u.Visible
	}
	if u.Password != nil {
		hash, err := auth.HashPassword(*u.Password)
		if err != nil {
			return nil, err
		}
		patch["password_hash"] = hash
	}
	return patch, nil
}
