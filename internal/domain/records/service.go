package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Observer is notified of access decisions and dataset loads.
type Observer interface {
	ObserveDecision(d Decision)
	ObserveLoad(source string, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(Decision) {}

func (nopObserver) ObserveLoad(string, time.Duration, error) {}

type Service struct {
	repo DatasetRepository
	obs  Observer
}

// NewService wires the service to its dataset repository. obs may be nil.
func NewService(repo DatasetRepository, obs Observer) *Service {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Service{repo: repo, obs: obs}
}

// GetPatientRecord authorizes the requester and, only when allowed, loads
// the dataset and resolves patientID. Denials return ErrUnauthenticated,
// ErrInvalidRole or ErrNotOwner without touching the repository.
func (s *Service) GetPatientRecord(ctx context.Context, requesterID, requesterRole, patientID string) (json.RawMessage, error) {
	decision := Authorize(requesterID, requesterRole, patientID)
	s.obs.ObserveDecision(decision)
	if !decision.Allowed {
		return nil, decision.Err()
	}

	ds, err := s.LoadDataset(ctx)
	if err != nil {
		return nil, err
	}

	rec, ok := ds.Resolve(patientID)
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// LoadDataset reads the dataset afresh. Any failure is wrapped in
// ErrStoreUnavailable.
func (s *Service) LoadDataset(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	ds, err := s.repo.Load(ctx)
	s.obs.ObserveLoad(s.repo.Source(), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return ds, nil
}

// Source names the storage medium backing the service.
func (s *Service) Source() string {
	return s.repo.Source()
}

// Ping checks the storage medium when the repository supports it.
func (s *Service) Ping(ctx context.Context) error {
	p, ok := s.repo.(Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
