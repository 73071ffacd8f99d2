package dialogue

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTable_OneActiveSessionPerUser(t *testing.T) {
	tbl := NewTable(0)
	a := NewSession("a", "u1", "x", "", Trigger{}, DefaultLimits(), nil)
	b := NewSession("b", "u1", "x", "", Trigger{}, DefaultLimits(), nil)
	c := NewSession("c", "u2", "x", "", Trigger{}, DefaultLimits(), nil)

	if err := tbl.Put(a); err != nil {
		t.Fatalf("Put(a): %v", err)
	}
	err := tbl.Put(b)
	var active *ErrSessionActive
	if !errors.As(err, &active) {
		t.Fatalf("Put(b) error = %v, want ErrSessionActive", err)
	}
	if active.SessionID != "a" {
		t.Errorf("active session = %q, want a", active.SessionID)
	}
	if err := tbl.Put(c); err != nil {
		t.Errorf("other user Put(c): %v", err)
	}
	if err := tbl.Put(a); err != nil {
		t.Errorf("re-Put of the same session: %v", err)
	}

	tbl.Delete("a")
	if _, ok := tbl.Active("u1"); ok {
		t.Error("u1 still has an active session after Delete")
	}
	if err := tbl.Put(b); err != nil {
		t.Errorf("Put(b) after delete: %v", err)
	}
	if got := tbl.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
}

func TestTable_GetUnknown(t *testing.T) {
	tbl := NewTable(0)
	_, err := tbl.Get("missing")
	if !IsNotFound(err) {
		t.Fatalf("Get error = %v, want ErrSessionNotFound", err)
	}
	var nf *ErrSessionNotFound
	errors.As(err, &nf)
	if want := "I seem to have lost track of our conversation. Could you ask again?"; nf.Apology() != want {
		t.Errorf("Apology = %q", nf.Apology())
	}
}

func TestTable_IdleEviction(t *testing.T) {
	tbl := NewTable(20 * time.Millisecond)
	if err := tbl.Put(NewSession("a", "u1", "x", "", Trigger{}, DefaultLimits(), nil)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)

	if _, err := tbl.Get("a"); !IsNotFound(err) {
		t.Errorf("Get after ttl: err = %v, want not found", err)
	}
	if _, ok := tbl.Active("u1"); ok {
		t.Error("evicted session still active")
	}
	if err := tbl.Put(NewSession("b", "u1", "x", "", Trigger{}, DefaultLimits(), nil)); err != nil {
		t.Errorf("Put after eviction: %v", err)
	}
}

func TestTable_OnExpireReportsIdleEvictionsOnly(t *testing.T) {
	tbl := NewTable(10 * time.Millisecond)
	var (
		mu      sync.Mutex
		expired []string
	)
	tbl.OnExpire(func(s *Session) {
		mu.Lock()
		defer mu.Unlock()
		expired = append(expired, s.ID())
	})

	if err := tbl.Put(NewSession("a", "u1", "x", "", Trigger{}, DefaultLimits(), nil)); err != nil {
		t.Fatal(err)
	}
	tbl.Delete("a")
	if err := tbl.Put(NewSession("b", "u2", "x", "", Trigger{}, DefaultLimits(), nil)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	tbl.Sweep()

	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != "b" {
		t.Errorf("expired = %v, want [b]", expired)
	}
	if _, ok := tbl.Active("u2"); ok {
		t.Error("expired session still active")
	}
}
