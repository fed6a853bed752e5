package usage

import (
	"context"
	"time"
)

// PlanResolver resolves an owner's plan name from the user store.
type PlanResolver interface {
	PlanFor(ctx context.Context, ownerID string) (string, error)
}

// AnalysisCounter counts analyses created by an owner since a given instant,
// without importing the analyses package.
type AnalysisCounter interface {
	CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error)
}

// Service computes monthly usage against plan allowances. It has no side
// effects: callers re-check at creation time, accepting the documented
// check-then-create race.
type Service struct {
	Plans    PlanResolver
	Analyses AnalysisCounter
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(plans PlanResolver, analyses AnalysisCounter) *Service {
	return &Service{Plans: plans, Analyses: analyses, now: time.Now}
}

// CheckAdmission reports whether the owner may start another analysis this
// calendar month.
func (s *Service) CheckAdmission(ctx context.Context, ownerID string) (Admission, error) {
	snapshot, err := s.Get(ctx, ownerID)
	if err != nil {
		return Admission{}, err
	}
	return Admission{
		Allowed:  snapshot.Unlimited || snapshot.Remaining > 0,
		Snapshot: snapshot,
	}, nil
}

// Get returns the owner's usage snapshot for the current calendar month.
func (s *Service) Get(ctx context.Context, ownerID string) (Snapshot, error) {
	planName := defaultPlan
	if s.Plans != nil {
		resolved, err := s.Plans.PlanFor(ctx, ownerID)
		if err == nil && resolved != "" {
			planName = resolved
		}
	}
	plan, limit := allowanceFor(planName)

	now := s.now().UTC()
	since := monthStart(now)

	used, err := s.Analyses.CountCreatedSince(ctx, ownerID, since)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Plan:     plan,
		Limit:    limit,
		Used:     used,
		ResetsAt: since.AddDate(0, 1, 0),
	}
	if limit == UnlimitedAllowance {
		snapshot.Unlimited = true
		return snapshot, nil
	}
	if remaining := limit - used; remaining > 0 {
		snapshot.Remaining = remaining
	}
	return snapshot, nil
}

// monthStart returns the first instant of t's calendar month.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
