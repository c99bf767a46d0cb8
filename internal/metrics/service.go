package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the aggregate query surface the service reads from.
type Store interface {
	Window(ctx context.Context, customerID uuid.UUID, since time.Time) (Snapshot, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SetNow overrides the clock. Tests only.
func (s *Service) SetNow(now func() time.Time) { s.now = now }

// Report assembles the derived figures for one tenant over a window.
func (s *Service) Report(ctx context.Context, customerID uuid.UUID, window time.Duration) (Report, error) {
	end := s.now()
	start := end.Add(-window)
	snapshot, err := s.store.Window(ctx, customerID, start)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(snapshot, start, end), nil
}
