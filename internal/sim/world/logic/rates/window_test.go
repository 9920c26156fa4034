package rates

import "testing"

func TestWindowAllow(t *testing.T) {
	var w Window
	for i := uint64(10); i < 13; i++ {
		if ok, _ := w.Allow(i, 10, 3); !ok {
			t.Fatalf("frame %d refused", i)
		}
	}
	ok, cd := w.Allow(15, 10, 3)
	if ok || cd != 5 {
		t.Fatalf("4th in window: ok=%v cooldown=%d", ok, cd)
	}
	if n := w.TakeSuppressed(); n != 1 {
		t.Fatalf("suppressed=%d", n)
	}
	if ok, _ := w.Allow(20, 10, 3); !ok {
		t.Fatalf("window did not restart")
	}
	if w.Start != 20 || w.Count != 1 {
		t.Fatalf("window=%+v", w)
	}
}

func TestWindowDisabled(t *testing.T) {
	var w Window
	for i := 0; i < 100; i++ {
		if ok, _ := w.Allow(1, 0, 1); !ok {
			t.Fatalf("zero window refused")
		}
		if ok, _ := w.Allow(1, 10, 0); !ok {
			t.Fatalf("zero max refused")
		}
	}
}
