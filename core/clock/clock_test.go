package clock

import "testing"

func TestNow_UsesOverride(t *testing.T) {
	c := New()
	c.SetNow(func() int64 { return 1234 })

	if got := c.Now(); got != 1234 {
		t.Errorf("Now() = %d, want 1234", got)
	}
}

func TestNowUnique_StrictlyIncreasing(t *testing.T) {
	c := New()
	c.SetNow(func() int64 { return 5000 })

	prev := c.NowUnique()
	for i := 0; i < 10; i++ {
		next := c.NowUnique()
		if next <= prev {
			t.Fatalf("NowUnique() = %d, want > %d", next, prev)
		}
		prev = next
	}
}

func TestNowUnique_FollowsAdvancingClock(t *testing.T) {
	c := New()
	now := int64(5000)
	c.SetNow(func() int64 { return now })

	first := c.NowUnique()
	if first != 5000 {
		t.Fatalf("NowUnique() = %d, want 5000", first)
	}

	now = 9000
	if got := c.NowUnique(); got != 9000 {
		t.Errorf("NowUnique() = %d, want 9000 after clock advance", got)
	}
}

func TestSetNow_NilRestoresSystemClock(t *testing.T) {
	c := New()
	c.SetNow(func() int64 { return 1 })
	c.SetNow(nil)

	if got := c.Now(); got <= 1 {
		t.Errorf("Now() = %d, want a real system timestamp", got)
	}
}
