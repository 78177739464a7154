package transport

import (
	"strings"
	"testing"
)

func TestPendingCalls_RegisterAndResolve(t *testing.T) {
	p := newPendingCalls()
	ch := p.register("cb_1")

	if !p.resolve("cb_1", map[string]any{"success": true}) {
		t.Fatal("resolve should deliver to a registered name")
	}

	payload := <-ch
	if payload["success"] != true {
		t.Errorf("payload = %v", payload)
	}
	if p.size() != 0 {
		t.Errorf("size = %d, want 0 after resolve", p.size())
	}
}

func TestPendingCalls_ResolveAfterDeregisterIsNoop(t *testing.T) {
	p := newPendingCalls()
	ch := p.register("cb_1")
	p.deregister("cb_1")

	// 解除後の配信（タイムアウト後に届いた遅延応答に相当）は何もしない
	if p.resolve("cb_1", map[string]any{"late": true}) {
		t.Error("resolve after deregister should be a no-op")
	}

	select {
	case payload := <-ch:
		t.Errorf("no payload should be delivered, got %v", payload)
	default:
	}
}

func TestPendingCalls_ResolveIsOneShot(t *testing.T) {
	p := newPendingCalls()
	p.register("cb_1")

	if !p.resolve("cb_1", map[string]any{}) {
		t.Fatal("first resolve should succeed")
	}
	if p.resolve("cb_1", map[string]any{}) {
		t.Error("second resolve should be a no-op")
	}
}

func TestPendingCalls_IndependentNames(t *testing.T) {
	p := newPendingCalls()
	ch1 := p.register("cb_1")
	ch2 := p.register("cb_2")

	p.resolve("cb_2", map[string]any{"n": "2"})

	select {
	case <-ch1:
		t.Error("cb_1 should not receive cb_2's payload")
	default:
	}
	payload := <-ch2
	if payload["n"] != "2" {
		t.Errorf("payload = %v", payload)
	}
}

func TestNewCallbackName_UniqueAndPrefixed(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		name := newCallbackName()
		if !strings.HasPrefix(name, "cb_") {
			t.Fatalf("name %q should have cb_ prefix", name)
		}
		if seen[name] {
			t.Fatalf("name %q generated twice", name)
		}
		seen[name] = true
	}
}
