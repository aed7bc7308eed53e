package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "note.created", Data: map[string]string{"path": "a.md"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: note.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.md"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishNoteEvent_Renamed(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("renamed", "new.md", "old.md")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: note.renamed") || !strings.Contains(s, `"old_path":"old.md"`) {
			t.Errorf("unexpected message %q", s)
		}
		if !strings.HasPrefix(s, "id: ") {
			t.Errorf("missing id line in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func drain(ch chan []byte, wait time.Duration) []string {
	var out []string
	deadline := time.After(wait)
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		case <-deadline:
			return out
		}
	}
}

func countType(msgs []string, typ string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestPublishCommit_ActivityThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First commit should trigger activity.updated.
	b.PublishCommit(CommitData{Path: "a.md", Action: "Created", Projects: []string{"/"}})
	// Second commit immediately should NOT trigger another activity.updated yet.
	b.PublishCommit(CommitData{Path: "b.md", Action: "Tagged", Projects: []string{"/"}})

	msgs := drain(ch, 50*time.Millisecond)
	if n := countType(msgs, TypeCommitRecorded); n != 2 {
		t.Errorf("commit events = %d, want 2", n)
	}
	if n := countType(msgs, TypeActivityUpdated); n != 1 {
		t.Errorf("activity events = %d, want 1 (throttled)", n)
	}
}

func TestPublishCommit_ThrottledProjectsFlushedLater(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishCommit(CommitData{Path: "a.md", Projects: []string{"/"}})
	b.PublishCommit(CommitData{Path: "P/b.md", Projects: []string{"/", "P"}})
	b.PublishCommit(CommitData{Path: "Q/c.md", Projects: []string{"/", "Q"}})

	var activity []string
	for _, m := range drain(ch, 400*time.Millisecond) {
		if strings.Contains(m, "event: "+TypeActivityUpdated) {
			activity = append(activity, m)
		}
	}
	if len(activity) != 2 {
		t.Fatalf("activity events = %d, want 2: %v", len(activity), activity)
	}
	if !strings.Contains(activity[1], `"projects":["/","P","Q"]`) {
		t.Errorf("coalesced event = %q", activity[1])
	}
}

func TestPublishNoteEvent_UnknownKindIgnored(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("moved", "a.md", "")
	b.PublishNoteEvent("updated", "a.md", "ignored.md")

	msgs := drain(ch, 50*time.Millisecond)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", msgs)
	}
	if !strings.Contains(msgs[0], "event: note.updated") || strings.Contains(msgs[0], "old_path") {
		t.Errorf("unexpected message %q", msgs[0])
	}
}

func TestMessageIDsUnique(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "note.updated", Data: map[string]string{"path": "a.md"}})
	b.Publish(Event{Type: "note.updated", Data: map[string]string{"path": "a.md"}})

	var ids []string
	for len(ids) < 2 {
		select {
		case msg := <-ch:
			line, _, _ := strings.Cut(string(msg), "\n")
			ids = append(ids, line)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
	if ids[0] == ids[1] {
		t.Errorf("ids should differ: %v", ids)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "note.updated", Data: map[string]string{"path": "x.md"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.HasPrefix(body, "retry: 3000") {
		t.Errorf("handler output missing retry hint: %q", body)
	}
	if !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "note.updated", Data: map[string]string{"path": "x.md"}})
	b.PublishNoteEvent("updated", "x.md", "")
	b.PublishCommit(CommitData{Path: "x.md"})
}
