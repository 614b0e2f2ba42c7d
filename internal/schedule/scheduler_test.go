package schedule

import (
	"testing"
	"time"
)

func TestBuildDailySpec(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"06:30", "0 30 6 * * *", false},
		{"00:00", "0 0 0 * * *", false},
		{"23:59", "0 59 23 * * *", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"noon", "", true},
		{"12", "", true},
	}

	for _, tt := range tests {
		spec, err := buildDailySpec(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("buildDailySpec(%q) expected error, got spec %q", tt.input, spec)
			}
			continue
		}
		if err != nil {
			t.Errorf("buildDailySpec(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if spec != tt.expected {
			t.Errorf("buildDailySpec(%q) = %q, expected %q", tt.input, spec, tt.expected)
		}
	}
}

func TestScheduleInterval_RejectsNonPositive(t *testing.T) {
	s := NewScheduler(time.UTC)

	if _, err := s.ScheduleInterval(0, func() {}); err == nil {
		t.Error("Expected error for zero interval")
	}
	if _, err := s.ScheduleInterval(-time.Second, func() {}); err == nil {
		t.Error("Expected error for negative interval")
	}
}

func TestScheduleInterval_RunsJob(t *testing.T) {
	s := NewScheduler(time.UTC)

	done := make(chan struct{})
	var once bool
	_, err := s.ScheduleInterval(time.Second, func() {
		if !once {
			once = true
			close(done)
		}
	})
	if err != nil {
		t.Fatalf("Failed to schedule job: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Error("Expected scheduled job to run")
	}
}
