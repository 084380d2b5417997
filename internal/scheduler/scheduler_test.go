package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopTrigger(name string) Trigger {
	return Trigger{
		Name:     name,
		Schedule: DailyAt{Hour: 2},
		Provider: func(ctx context.Context) ([]Job, error) { return nil, nil },
	}
}

func TestNewValidation(t *testing.T) {
	log := zerolog.Nop()

	if _, err := New(Config{}, log); err == nil {
		t.Error("New() with no triggers expected error")
	}

	invalid := []Trigger{
		{Name: "", Schedule: DailyAt{}, Provider: func(ctx context.Context) ([]Job, error) { return nil, nil }},
		{Name: "no-schedule", Provider: func(ctx context.Context) ([]Job, error) { return nil, nil }},
		{Name: "no-provider", Schedule: DailyAt{}},
	}
	for _, tr := range invalid {
		if _, err := New(Config{Triggers: []Trigger{tr}}, log); err == nil {
			t.Errorf("New() with incomplete trigger %q expected error", tr.Name)
		}
	}

	if _, err := New(Config{Triggers: []Trigger{noopTrigger("ok")}}, log); err != nil {
		t.Errorf("New() with valid trigger error = %v", err)
	}
}

func TestShouldRun_OncePerMatchingMinute(t *testing.T) {
	s, err := New(Config{Triggers: []Trigger{noopTrigger("scan")}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tr := s.triggers[0]

	fire := time.Date(2024, time.March, 15, 2, 0, 10, 0, time.UTC)
	if !s.shouldRun(tr, fire) {
		t.Fatal("first check in the matching minute should run")
	}
	// A second tick landing in the same minute must not re-fire.
	if s.shouldRun(tr, fire.Add(30*time.Second)) {
		t.Error("second check in the same minute must not run")
	}
	// The next day's matching minute fires again.
	if !s.shouldRun(tr, fire.AddDate(0, 0, 1)) {
		t.Error("matching minute on the next day should run")
	}

	if s.shouldRun(tr, fire.Add(time.Hour)) {
		t.Error("non-matching time must not run")
	}
}

func TestShouldRun_TriggersAreIndependent(t *testing.T) {
	s, err := New(Config{Triggers: []Trigger{noopTrigger("a"), noopTrigger("b")}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	fire := time.Date(2024, time.March, 15, 2, 0, 0, 0, time.UTC)
	if !s.shouldRun(s.triggers[0], fire) {
		t.Fatal("trigger a should run")
	}
	if !s.shouldRun(s.triggers[1], fire) {
		t.Error("trigger b must not be deduplicated by trigger a's firing")
	}
}

func TestTriggerNow_RunsBatch(t *testing.T) {
	var executed int32
	trigger := Trigger{
		Name:     "reports",
		Schedule: MonthlyOn{Day: 1, Hour: 8},
		Provider: func(ctx context.Context) ([]Job, error) {
			return []Job{
				&FuncJob{Name: "one", Fn: func(ctx context.Context) error {
					atomic.AddInt32(&executed, 1)
					return nil
				}},
				&FuncJob{Name: "two", Fn: func(ctx context.Context) error {
					atomic.AddInt32(&executed, 1)
					return nil
				}},
			}, nil
		},
	}

	s, err := New(Config{Triggers: []Trigger{trigger}, WorkerCount: 2, QueueSize: 8}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.workerPool.Start()
	defer s.Shutdown(time.Second)

	s.TriggerNow("reports")

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&executed) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&executed); got != 2 {
		t.Errorf("executed %d jobs, want 2", got)
	}
}
