package batchsched

import (
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 22 * * *", false},
		{"0 12 * * 1-5", false},
		{"*/5 * * * *", false},
		{"invalid", true},
	}

	for _, tt := range tests {
		_, err := ParseCron(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestScheduleConfig_Validate(t *testing.T) {
	cfg := ScheduleConfig{Name: "nightly", Cron: "0 22 * * *", Plans: []string{"plans/smoke.md"}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config should not error: %v", err)
	}

	cfg.Plans = nil
	if err := cfg.Validate(); err == nil {
		t.Error("schedule with no plans should error")
	}
}

func TestScheduler_NextRun(t *testing.T) {
	cfg := ScheduleConfig{Name: "test", Cron: "0 22 * * *", Plans: []string{"p.md"}}
	sched, err := NewScheduler([]ScheduleConfig{cfg})
	if err != nil {
		t.Fatal(err)
	}

	next := sched.NextRun("test")
	if next.IsZero() || !next.After(time.Now()) {
		t.Error("NextRun should return a future time")
	}
}

func TestScheduler_ShouldRun(t *testing.T) {
	cfg := ScheduleConfig{Name: "test", Cron: "* * * * *", Plans: []string{"p.md"}}
	sched, err := NewScheduler([]ScheduleConfig{cfg})
	if err != nil {
		t.Fatal(err)
	}

	sched.lastRun["test"] = time.Now().Add(-2 * time.Minute)
	if !sched.ShouldRun("test") {
		t.Error("should run once the cron interval has elapsed")
	}

	sched.MarkRunning("test")
	if sched.ShouldRun("test") {
		t.Error("should not run again while already in flight")
	}
}
