package chat

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegistry_AdmitQuota(t *testing.T) {
	r := NewRegistry(2, 8)

	if _, _, err := r.Admit("a", "10.0.0.1", "alice"); err != nil {
		t.Fatalf("Admit a: %v", err)
	}
	if _, _, err := r.Admit("b", "10.0.0.2", "bob"); err != nil {
		t.Fatalf("Admit b: %v", err)
	}

	if _, _, err := r.Admit("c", "10.0.0.3", "carol"); !errors.Is(err, ErrRoomFull) {
		t.Errorf("Expected ErrRoomFull for third origin, got %v", err)
	}

	// Another identity from an already-counted origin still fits.
	if _, _, err := r.Admit("d", "10.0.0.1", "dave"); err != nil {
		t.Errorf("Expected same-origin identity to be admitted, got %v", err)
	}
}

func TestRegistry_AdmitReconnectBypassesQuota(t *testing.T) {
	r := NewRegistry(1, 8)

	first, _, err := r.Admit("a", "10.0.0.1", "alice")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}

	// A reconnect is always admitted, even from a new origin at quota.
	second, resumed, err := r.Admit("a", "10.0.0.9", "")
	if err != nil {
		t.Fatalf("Reconnect rejected: %v", err)
	}
	if !resumed {
		t.Error("Expected reconnect to report a prior session")
	}
	if second.Name != "alice" {
		t.Errorf("Expected preserved name alice, got %q", second.Name)
	}
	if second.Origin != "10.0.0.9" {
		t.Errorf("Expected origin replaced, got %q", second.Origin)
	}

	select {
	case <-first.Done():
	default:
		t.Error("Expected superseded session to be signalled done")
	}
}

func TestRegistry_AdmitGeneratesPlaceholderName(t *testing.T) {
	r := NewRegistry(8, 8)

	sess, _, err := r.Admit("a", "10.0.0.1", "<script>x</script>")
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if !strings.HasPrefix(sess.Name, "anon") {
		t.Errorf("Expected generated placeholder, got %q", sess.Name)
	}
}

func TestRegistry_Rename(t *testing.T) {
	r := NewRegistry(8, 8)
	r.Admit("a", "10.0.0.1", "alice")

	old, next, changed := r.Rename("a", "alicia")
	if !changed || old != "alice" || next != "alicia" {
		t.Errorf("Expected alice->alicia, got %q->%q (changed=%v)", old, next, changed)
	}

	if _, _, changed := r.Rename("a", "alicia"); changed {
		t.Error("Expected no-op rename to report no change")
	}

	old, next, changed = r.Rename("a", "   ")
	if !changed || old != "alicia" || !strings.HasPrefix(next, "anon") {
		t.Errorf("Expected placeholder substitution, got %q->%q (changed=%v)", old, next, changed)
	}

	long := strings.Repeat("n", 60)
	_, next, _ = r.Rename("a", long)
	if len(next) != maxNameLen {
		t.Errorf("Expected name clamped to %d, got %d", maxNameLen, len(next))
	}

	if _, _, changed := r.Rename("missing", "x"); changed {
		t.Error("Expected rename of unknown identity to be a no-op")
	}
}

func TestRegistry_RemoveSignalsSession(t *testing.T) {
	r := NewRegistry(8, 8)
	sess, _, _ := r.Admit("a", "10.0.0.1", "alice")

	removed := r.Remove("a")
	if removed != sess {
		t.Fatal("Expected Remove to return the registered session")
	}
	select {
	case <-sess.Done():
	default:
		t.Error("Expected removed session to be signalled done")
	}
	if r.CurrentIs(sess) {
		t.Error("Expected CurrentIs false after removal")
	}
	if r.Remove("a") != nil {
		t.Error("Expected second Remove to return nil")
	}
}

func TestRegistry_ScheduleEvictionStale(t *testing.T) {
	r := NewRegistry(8, 8)
	old, _, _ := r.Admit("a", "10.0.0.1", "alice")
	r.Admit("a", "10.0.0.1", "")

	t1 := time.NewTimer(time.Hour)
	if r.ScheduleEviction(old, t1) {
		t.Error("Expected scheduling on a superseded session to be refused")
	}
}

func TestRegistry_IdleAndNames(t *testing.T) {
	r := NewRegistry(8, 8)
	a, _, _ := r.Admit("a", "10.0.0.1", "zoe")
	r.Admit("b", "10.0.0.2", "adam")

	names := r.Names()
	if len(names) != 2 || names[0] != "adam" || names[1] != "zoe" {
		t.Errorf("Expected sorted roster [adam zoe], got %v", names)
	}

	a.LastActive = time.Now().Add(-time.Hour)
	idle := r.Idle(10 * time.Minute)
	if len(idle) != 1 || idle[0].ID != "a" {
		t.Errorf("Expected only a idle, got %d sessions", len(idle))
	}
}
