package usage

import (
	"context"
	"testing"
	"time"
)

type stubPlans struct {
	plan string
}

func (s stubPlans) PlanFor(ctx context.Context, ownerID string) (string, error) {
	_ = ctx
	_ = ownerID
	return s.plan, nil
}

type stubCounter struct {
	used  int
	since time.Time
}

func (s *stubCounter) CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	_ = ctx
	_ = ownerID
	s.since = since
	return s.used, nil
}

func newTestService(plan string, used int) (*Service, *stubCounter) {
	counter := &stubCounter{used: used}
	svc := NewService(stubPlans{plan: plan}, counter)
	svc.now = func() time.Time {
		return time.Date(2025, time.March, 15, 13, 45, 0, 0, time.UTC)
	}
	return svc, counter
}

func TestCheckAdmissionWithinLimit(t *testing.T) {
	// starter allowance is 5
	svc, _ := newTestService("starter", 0)
	adm, err := svc.CheckAdmission(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("CheckAdmission: %v", err)
	}
	if !adm.Allowed {
		t.Fatalf("expected allowed")
	}
	if adm.Remaining != 5 {
		t.Fatalf("expected remaining 5, got %d", adm.Remaining)
	}
	if adm.Unlimited {
		t.Fatalf("expected finite plan")
	}
}

func TestCheckAdmissionExhausted(t *testing.T) {
	svc, _ := newTestService("starter", 5)
	adm, err := svc.CheckAdmission(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("CheckAdmission: %v", err)
	}
	if adm.Allowed {
		t.Fatalf("expected denied")
	}
	if adm.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", adm.Remaining)
	}
}

func TestCheckAdmissionUnlimitedPlan(t *testing.T) {
	svc, _ := newTestService("enterprise", 10000)
	adm, err := svc.CheckAdmission(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("CheckAdmission: %v", err)
	}
	if !adm.Allowed {
		t.Fatalf("expected unlimited plan to be allowed")
	}
	if !adm.Unlimited {
		t.Fatalf("expected unlimited flag")
	}
	if adm.Limit != UnlimitedAllowance {
		t.Fatalf("expected sentinel limit, got %d", adm.Limit)
	}
	if adm.Remaining != 0 {
		t.Fatalf("unlimited plans report no finite countdown, got %d", adm.Remaining)
	}
}

func TestGetCountsFromCalendarMonthStart(t *testing.T) {
	svc, counter := newTestService("pro", 3)
	if _, err := svc.Get(context.Background(), "owner-1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !counter.since.Equal(want) {
		t.Fatalf("expected count since %v, got %v", want, counter.since)
	}
}

func TestGetUnknownPlanFallsBackToStarter(t *testing.T) {
	svc, _ := newTestService("gold-legacy", 1)
	snapshot, err := svc.Get(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snapshot.Plan != "starter" || snapshot.Limit != 5 {
		t.Fatalf("expected starter fallback, got %+v", snapshot)
	}
}

func TestGetResetsAtNextMonth(t *testing.T) {
	svc, _ := newTestService("pro", 0)
	snapshot, err := svc.Get(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	if !snapshot.ResetsAt.Equal(want) {
		t.Fatalf("expected reset at %v, got %v", want, snapshot.ResetsAt)
	}
}
