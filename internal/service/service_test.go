package service_test

import (
	"context"
	"testing"
	"time"

	"pagebuilder/internal/service"
)

// ─────────────────────────────────────────────────────────────
// inflightGuard tests
// ─────────────────────────────────────────────────────────────

func TestInflightGuard_TryLock(t *testing.T) {
	var g service.ExportedInflightGuard

	if !g.TryLock("sess-1") {
		t.Fatal("expected first TryLock to succeed")
	}
	if g.TryLock("sess-1") {
		t.Fatal("expected second TryLock for same key to fail")
	}
	if !g.Busy("sess-1") {
		t.Fatal("expected key to be busy")
	}
	if !g.TryLock("sess-2") {
		t.Fatal("expected TryLock for different key to succeed")
	}
	g.Unlock("sess-1")
	g.Unlock("sess-2")

	if !g.TryLock("sess-1") {
		t.Fatal("expected TryLock to succeed after unlock")
	}
	g.Unlock("sess-1")
}

func TestInflightGuard_WaitAll(t *testing.T) {
	var g service.ExportedInflightGuard

	if !g.TryLock("save") {
		t.Fatal("expected lock to succeed")
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("save")
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

// ─────────────────────────────────────────────────────────────
// Emitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)

	if len(m.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != "test:event" {
		t.Errorf("expected 'test:event', got %q", m.Events[0].Event)
	}
	if got := m.Named("test:event2"); len(got) != 1 {
		t.Errorf("Named returned %d events", len(got))
	}
}

func TestMultiEmitter_FansOut(t *testing.T) {
	a, b := &service.MockEmitter{}, &service.MockEmitter{}
	multi := service.MultiEmitter{a, nil, b}
	multi.Emit(context.Background(), "x", 1)
	if len(a.Events) != 1 || len(b.Events) != 1 {
		t.Errorf("a=%d b=%d", len(a.Events), len(b.Events))
	}
}
