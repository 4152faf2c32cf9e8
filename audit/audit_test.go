package audit

import (
	"sync"
	"testing"
	"time"
)

func TestAppendStampsSeqAndRunID(t *testing.T) {
	trail := New("run-42")
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for i, stage := range []string{"gate", "planner", "aggregate"} {
		trail.Append(Entry{
			Stage:      stage,
			Outcome:    OutcomeOK,
			StartedAt:  base,
			FinishedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	trail.Close()

	entries := trail.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Seq != uint64(i+1) {
			t.Errorf("entry %d Seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.RunID != "run-42" {
			t.Errorf("entry %d RunID = %q, want run-42", i, e.RunID)
		}
	}
	if entries[0].Stage != "gate" || entries[2].Stage != "aggregate" {
		t.Errorf("unexpected stage order: %s, %s, %s", entries[0].Stage, entries[1].Stage, entries[2].Stage)
	}
}

func TestTotalOrderByFinishedAt(t *testing.T) {
	trail := New("run-order")
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	// Arrival order deliberately disagrees with completion order.
	trail.Append(Entry{Stage: "specialist.cost", Outcome: OutcomeOK, FinishedAt: base.Add(3 * time.Second)})
	trail.Append(Entry{Stage: "specialist.risk", Outcome: OutcomeOK, FinishedAt: base.Add(1 * time.Second)})
	trail.Append(Entry{Stage: "specialist.scheduling", Outcome: OutcomeDegraded, FinishedAt: base.Add(2 * time.Second)})
	trail.Close()

	entries := trail.Entries()
	want := []string{"specialist.risk", "specialist.scheduling", "specialist.cost"}
	for i, stage := range want {
		if entries[i].Stage != stage {
			t.Errorf("position %d = %s, want %s", i, entries[i].Stage, stage)
		}
	}
}

func TestTiesBreakBySequence(t *testing.T) {
	trail := New("run-ties")
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	trail.Append(Entry{Stage: "first", Outcome: OutcomeOK, FinishedAt: at})
	trail.Append(Entry{Stage: "second", Outcome: OutcomeOK, FinishedAt: at})
	trail.Append(Entry{Stage: "third", Outcome: OutcomeOK, FinishedAt: at})
	trail.Close()

	entries := trail.Entries()
	for i, stage := range []string{"first", "second", "third"} {
		if entries[i].Stage != stage {
			t.Errorf("position %d = %s, want %s", i, entries[i].Stage, stage)
		}
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	trail := New("run-concurrent")
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	const goroutines = 8
	const perGoroutine = 25

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				trail.Append(Entry{Stage: "specialist.risk", Outcome: OutcomeOK, FinishedAt: at})
			}
		}()
	}
	wg.Wait()
	trail.Close()

	entries := trail.Entries()
	if len(entries) != goroutines*perGoroutine {
		t.Fatalf("got %d entries, want %d", len(entries), goroutines*perGoroutine)
	}
	seen := make(map[uint64]bool, len(entries))
	for i, e := range entries {
		if seen[e.Seq] {
			t.Fatalf("duplicate Seq %d", e.Seq)
		}
		seen[e.Seq] = true
		if e.Seq != uint64(i+1) {
			t.Errorf("position %d Seq = %d, want %d", i, e.Seq, i+1)
		}
	}
}

func TestAppendAfterCloseDiscarded(t *testing.T) {
	trail := New("run-late")
	trail.Append(Entry{Stage: "gate", Outcome: OutcomeOK, FinishedAt: time.Now()})
	trail.Close()

	trail.Append(Entry{Stage: "planner", Outcome: OutcomeOK, FinishedAt: time.Now()})

	if got := trail.Len(); got != 1 {
		t.Errorf("Len = %d after late append, want 1", got)
	}
}

func TestCloseIdempotent(t *testing.T) {
	trail := New("run-close")
	trail.Append(Entry{Stage: "gate", Outcome: OutcomeOK, FinishedAt: time.Now()})
	trail.Close()
	trail.Close()

	if got := trail.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}

func TestEntriesReturnsSnapshot(t *testing.T) {
	trail := New("run-snapshot")
	trail.Append(Entry{Stage: "gate", Outcome: OutcomeOK, FinishedAt: time.Now()})
	trail.Close()

	first := trail.Entries()
	first[0].Stage = "mutated"

	second := trail.Entries()
	if second[0].Stage != "gate" {
		t.Errorf("snapshot mutation leaked into the trail: %q", second[0].Stage)
	}
}

func TestFailedAndDegradedRetained(t *testing.T) {
	trail := New("run-retain")
	at := time.Now()
	trail.Append(Entry{Stage: "specialist.risk", Outcome: OutcomeFailed, FinishedAt: at})
	trail.Append(Entry{Stage: "specialist.cost", Outcome: OutcomeDegraded, FinishedAt: at.Add(time.Second)})
	trail.Append(Entry{Stage: "scenario", ScenarioID: "scn-1", Outcome: OutcomeSkipped, FinishedAt: at.Add(2 * time.Second)})
	trail.Close()

	entries := trail.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Outcome != OutcomeFailed || entries[1].Outcome != OutcomeDegraded || entries[2].Outcome != OutcomeSkipped {
		t.Errorf("outcomes not retained: %s, %s, %s", entries[0].Outcome, entries[1].Outcome, entries[2].Outcome)
	}
	if entries[2].ScenarioID != "scn-1" {
		t.Errorf("ScenarioID = %q, want scn-1", entries[2].ScenarioID)
	}
}
