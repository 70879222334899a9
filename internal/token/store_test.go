package token

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/teleload/internal/clock"
)

func TestPutTakeReturnsPayloadOnce(t *testing.T) {
	store := NewStore(DefaultTTL, clock.NewFakeClock(time.Now()))

	id, err := store.Put(Payload{SourceURL: "https://cdn.example/v.mp4", Title: "dance"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Take(id)
	if err != nil {
		t.Fatalf("first take: %v", err)
	}
	if got.SourceURL != "https://cdn.example/v.mp4" || got.Title != "dance" {
		t.Fatalf("unexpected payload %+v", got)
	}

	if _, err := store.Take(id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second take, got %v", err)
	}
}

func TestIDIsTwelveHexChars(t *testing.T) {
	store := NewStore(DefaultTTL, nil)
	id, err := store.Put(Payload{SourceURL: "x"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{12}$`).MatchString(id) {
		t.Fatalf("unexpected id %q", id)
	}
}

func TestSweepRemovesExpiredEvenIfNeverTaken(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewStore(15*time.Minute, fake)

	oldID, _ := store.Put(Payload{SourceURL: "old"})
	fake.Advance(10 * time.Minute)
	freshID, _ := store.Put(Payload{SourceURL: "fresh"})
	fake.Advance(6 * time.Minute)

	if removed := store.Sweep(fake.Now()); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", store.Len())
	}
	if _, err := store.Take(oldID); err != ErrNotFound {
		t.Fatalf("expected swept token missing, got %v", err)
	}
	if _, err := store.Take(freshID); err != nil {
		t.Fatalf("expected fresh token, got %v", err)
	}
}

func TestTakeAfterTTLIsMissingWithoutSweep(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewStore(15*time.Minute, fake)

	id, _ := store.Put(Payload{SourceURL: "v"})
	fake.Advance(16 * time.Minute)

	if _, err := store.Take(id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired entry to be consumed, got %d", store.Len())
	}
}

func TestConcurrentTakeDeliversOnce(t *testing.T) {
	store := NewStore(DefaultTTL, nil)
	id, _ := store.Put(Payload{SourceURL: "v"})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		hits int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(id); err == nil {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if hits != 1 {
		t.Fatalf("expected exactly one successful take, got %d", hits)
	}
}
