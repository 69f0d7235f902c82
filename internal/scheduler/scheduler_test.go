package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vipul43/tmdb-sync-worker/internal/service"
)

type mockTrigger struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (m *mockTrigger) StartSync(ctx context.Context, jobName string) (*service.StartResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, jobName)
	if m.err != nil {
		return nil, m.err
	}
	return &service.StartResult{RunID: "run-1", StartPage: 1}, nil
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(context.Background(), "every day", "tmdb-popular", &mockTrigger{})
	if err == nil {
		t.Fatal("expected error for invalid schedule, got nil")
	}
}

func TestScheduler_Run(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "trigger succeeds", err: nil},
		{name: "trigger fails", err: errors.New("database unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &mockTrigger{err: tt.err}
			s, err := New(context.Background(), "0 2 * * *", "tmdb-popular", trigger)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			s.Run()

			if len(trigger.calls) != 1 || trigger.calls[0] != "tmdb-popular" {
				t.Errorf("expected one call for tmdb-popular, got %v", trigger.calls)
			}
		})
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(context.Background(), "@every 1h", "tmdb-popular", &mockTrigger{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	s.Start()
	entries := s.cron.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Next.IsZero() {
		t.Error("expected next run to be scheduled")
	}

	<-s.Stop().Done()
}
