package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

// --- Cron Tests ---

func TestNextDue(t *testing.T) {
	from := time.Date(2026, 3, 10, 10, 7, 30, 0, time.UTC)

	tests := []struct {
		name     string
		schedule Schedule
		want     time.Time
	}{
		{"interval", Schedule{Interval: 90 * time.Second}, from.Add(90 * time.Second)},
		{"every five minutes", Schedule{CronExpr: "*/5 * * * *"}, time.Date(2026, 3, 10, 10, 10, 0, 0, time.UTC)},
		{"hourly descriptor", Schedule{CronExpr: "@hourly"}, time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)},
		{"timezone", Schedule{CronExpr: "0 12 * * *", Timezone: "Europe/Berlin"}, time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)},
		{"invalid timezone falls back to UTC", Schedule{CronExpr: "0 12 * * *", Timezone: "Nowhere/City"}, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDue(tt.schedule, from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSchedule_Validate(t *testing.T) {
	tests := []struct {
		schedule Schedule
		want     error
	}{
		{Schedule{}, ErrNoSchedule},
		{Schedule{CronExpr: "* * * * *", Interval: time.Second}, ErrAmbiguousSchedule},
		{Schedule{Interval: -time.Second}, ErrInvalidInterval},
	}

	for _, tt := range tests {
		if err := tt.schedule.Validate(); !errors.Is(err, tt.want) {
			t.Errorf("%+v: expected %v, got %v", tt.schedule, tt.want, err)
		}
	}

	if err := (Schedule{CronExpr: "not a cron"}).Validate(); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

// --- Runner Tests ---

// fakeClock — время, которое сдвигается при каждом ожидании.
type fakeClock struct {
	now    time.Time
	waited []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waited = append(c.waited, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func newTestRunner(t *testing.T, schedule Schedule, maxRuns int, clock *fakeClock) *Runner {
	t.Helper()
	r, err := New(Config{
		Schedule: schedule,
		MaxRuns:  maxRuns,
		Logger:   slog.New(slog.DiscardHandler),
		Now:      clock.Now,
		After:    clock.After,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRunner_MaxRuns(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := newTestRunner(t, Schedule{Interval: time.Minute}, 3, clock)

	var iterations []int
	err := r.Run(context.Background(), func(ctx context.Context, iteration int, due time.Time) error {
		iterations = append(iterations, iteration)
		if iteration == 2 {
			return errors.New("script failed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(iterations) != 3 {
		t.Errorf("expected 3 runs despite a failure, got %v", iterations)
	}
	for _, d := range clock.waited {
		if d != time.Minute {
			t.Errorf("expected to wait one minute, got %v", d)
		}
	}
}

func TestRunner_Cancelled(t *testing.T) {
	r, err := New(Config{Schedule: Schedule{Interval: time.Hour}, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = r.Run(ctx, func(context.Context, int, time.Time) error {
		t.Error("job must not run")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoSchedule) {
		t.Errorf("expected ErrNoSchedule, got %v", err)
	}
}
