package pipeline

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/talgya/fleet-roster/internal/fleet"
	"github.com/talgya/fleet-roster/internal/ledger"
)

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	led, err := ledger.Open(filepath.Join(t.TempDir(), "fleet.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { led.Close() })
	return led
}

func TestSubmitBuffersBelowBatchSize(t *testing.T) {
	led := openTestLedger(t)
	p := New(led, 10, time.Second)
	defer p.Close()

	for i := 0; i < 3; i++ {
		ok := p.Submit(ledger.EnsureRegistered{
			EntityID: fleet.EntityID(fmt.Sprintf("pilot-%d", i)),
			Role:     "striker",
		})
		if !ok {
			t.Fatalf("submit %d rejected", i)
		}
	}

	if got := p.Pending(); got != 3 {
		t.Errorf("pending = %d, want 3", got)
	}
}

func TestAutoFlushAtBatchSize(t *testing.T) {
	led := openTestLedger(t)
	p := New(led, 5, time.Second)
	defer p.Close()

	for i := 0; i < 5; i++ {
		p.Submit(ledger.EnsureRegistered{
			EntityID: fleet.EntityID(fmt.Sprintf("pilot-%d", i)),
			Role:     "striker",
		})
	}

	// The background flusher drains asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for p.Pending() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("pending = %d, auto flush never drained", p.Pending())
		}
		time.Sleep(10 * time.Millisecond)
	}

	entities, err := led.ActiveEntities()
	if err != nil {
		t.Fatalf("active entities: %v", err)
	}
	if len(entities) != 5 {
		t.Errorf("entities = %d, want 5", len(entities))
	}
}

func TestForceFlushCommits(t *testing.T) {
	led := openTestLedger(t)
	p := New(led, 100, time.Second)
	defer p.Close()

	if !p.ForceFlush() {
		t.Error("flush of empty queue should report success")
	}

	p.Submit(ledger.EnsureRegistered{EntityID: "pilot-1", Role: "striker"})
	p.Submit(ledger.PerformanceUpdate{
		EntityID:   "pilot-1",
		Engine:     fleet.EngineSpace,
		Score:      0.5,
		Timestamp:  time.Now(),
		SkirmishID: "sk-1",
		Role:       "striker",
	})

	if !p.ForceFlush() {
		t.Fatal("force flush failed")
	}
	if got := p.Pending(); got != 0 {
		t.Errorf("pending = %d after flush, want 0", got)
	}

	entity, err := led.Get("pilot-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entity.CumulativeScore != 0.5 {
		t.Errorf("cumulative score = %v, want 0.5", entity.CumulativeScore)
	}
}

func TestPoisonedBatchDropped(t *testing.T) {
	led := openTestLedger(t)
	p := New(led, 100, time.Second)
	defer p.Close()

	p.Submit(ledger.PerformanceUpdate{
		EntityID:   "pilot-1",
		Engine:     fleet.EngineSpace,
		Score:      -1, // invalid
		Timestamp:  time.Now(),
		SkirmishID: "sk-1",
	})

	if p.ForceFlush() {
		t.Error("flush of poisoned batch should report failure")
	}
	if got := p.Pending(); got != 0 {
		t.Errorf("pending = %d, want 0: poisoned batch must be dropped, not retried forever", got)
	}
}

func TestConcurrentSubmit(t *testing.T) {
	led := openTestLedger(t)
	if err := led.Register("pilot-1", "striker", 0); err != nil {
		t.Fatalf("register: %v", err)
	}

	p := New(led, 10, time.Second)

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				p.Submit(ledger.PerformanceUpdate{
					EntityID:   "pilot-1",
					Engine:     fleet.EngineSpace,
					Score:      0.1,
					Timestamp:  time.Now(),
					SkirmishID: fmt.Sprintf("sk-%d-%d", w, i),
					Role:       "striker",
				})
			}
		}(w)
	}
	wg.Wait()
	p.Close()

	history, err := led.History("pilot-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != workers*perWorker {
		t.Errorf("history rows = %d, want %d", len(history), workers*perWorker)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	led := openTestLedger(t)
	p := New(led, 10, time.Second)
	p.Close()

	if p.Submit(ledger.EnsureRegistered{EntityID: "pilot-1", Role: "striker"}) {
		t.Error("submit after close should be rejected")
	}
}
