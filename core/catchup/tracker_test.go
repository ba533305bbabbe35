package catchup

import "testing"

func TestMemoryTracker_DefaultLookback(t *testing.T) {
	now := int64(100_000_000_000)
	tr := NewMemoryTracker(func() int64 { return now })

	if got := tr.Get(); got != now-DefaultLookback {
		t.Errorf("Get() = %d, want %d (now - 24h)", got, now-DefaultLookback)
	}
}

func TestMemoryTracker_SetGet(t *testing.T) {
	tr := NewMemoryTracker(func() int64 { return 0 })

	if err := tr.Set(42); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := tr.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}
}

func TestMemoryTracker_SetIsUnconditional(t *testing.T) {
	tr := NewMemoryTracker(func() int64 { return 0 })

	tr.Set(100)
	tr.Set(50) // monotonicity is a caller contract, not enforced here
	if got := tr.Get(); got != 50 {
		t.Errorf("Get() = %d, want 50", got)
	}
}
