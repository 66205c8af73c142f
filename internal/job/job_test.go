package job

import (
	"testing"
	"time"
)

func TestWallSecondsZeroBeforeStart(t *testing.T) {
	j := New(1, 7, "physics", "batch", 4, 1, 1024)
	if got := j.WallSeconds(time.Now()); got != 0 {
		t.Errorf("WallSeconds before start = %d, want 0", got)
	}
}

func TestWallSecondsUsesEndTime(t *testing.T) {
	j := New(1, 7, "physics", "batch", 4, 1, 1024)
	j.StartTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	j.EndTime = j.StartTime.Add(2 * time.Hour)
	if got := j.WallSeconds(time.Now()); got != 7200 {
		t.Errorf("WallSeconds = %d, want 7200", got)
	}
}

func TestRunningUsageOrder(t *testing.T) {
	j := New(1, 7, "physics", "batch", 4, 2, 1024)
	u := j.RunningUsage()
	if u[0] != 4 || u[1] != 1024 || u[2] != 2 {
		t.Errorf("RunningUsage = %v, want [4 1024 2]", u)
	}
}

func TestManagerStateCounters(t *testing.T) {
	m := NewManager()
	j := New(m.NextJobID(), 1, "acct", "batch", 1, 1, 256)
	m.Add(j)
	if m.StateCount(StatePending) != 1 {
		t.Fatalf("expected 1 pending job")
	}
	m.SetState(j.ID, StateRunning)
	if m.StateCount(StatePending) != 0 || m.StateCount(StateRunning) != 1 {
		t.Errorf("state counters not updated after transition")
	}
}
