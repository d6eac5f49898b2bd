package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/tatami/internal/reconcile"
	"github.com/starford/tatami/internal/store"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
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
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "clean.completed", Data: map[string]string{"family": "techniques"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: clean.completed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"family":"techniques"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishRecordEvent_FamilyThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishRecordEvent(store.Event{Family: "techniques", ID: "a", Op: store.OpCreate})
	b.PublishRecordEvent(store.Event{Family: "techniques", ID: "b", Op: store.OpSave})
	b.PublishRecordEvent(store.Event{Family: "articles", ID: "c", Op: store.OpDelete})

	time.Sleep(50 * time.Millisecond)
	changed := 0
	records := 0
	var all []string
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			all = append(all, s)
			if strings.Contains(s, "family.changed") {
				changed++
			} else {
				records++
			}
		default:
			break loop
		}
	}

	if records != 3 {
		t.Errorf("record events = %d, want 3", records)
	}
	if changed != 2 {
		t.Errorf("family.changed events = %d, want 2 (one per family)", changed)
	}
	if len(all) == 0 || !strings.Contains(all[0], "event: record.create") || !strings.Contains(all[0], `"id":"a"`) {
		t.Errorf("first message = %v", all)
	}
}

func TestSubscribeFamilyFilter(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("articles")
	defer b.Unsubscribe(ch)

	b.PublishRecordEvent(store.Event{Family: "techniques", ID: "a", Op: store.OpSave})
	b.PublishRecordEvent(store.Event{Family: "articles", ID: "b", Op: store.OpSave})
	b.Publish(Event{Type: "server.notice", Data: "hi"})

	time.Sleep(50 * time.Millisecond)
	var got []string
loop:
	for {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		default:
			break loop
		}
	}

	// record.save and family.changed for articles plus the unscoped notice.
	if len(got) != 3 {
		t.Fatalf("messages = %d, want 3: %v", len(got), got)
	}
	notice := false
	for _, m := range got {
		if strings.Contains(m, "techniques") || strings.Contains(m, `"id":"a"`) {
			t.Errorf("techniques event leaked to articles subscriber: %q", m)
		}
		notice = notice || strings.Contains(m, "event: server.notice")
	}
	if !notice {
		t.Errorf("unscoped event missing: %v", got)
	}
}

func TestEventIDsIncrease(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "one", Data: 1})
	b.Publish(Event{Type: "two", Data: 2})

	for _, want := range []string{"id: 1\n", "id: 2\n"} {
		select {
		case msg := <-ch:
			if !strings.HasPrefix(string(msg), want) {
				t.Errorf("message %q does not start with %q", msg, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestPublishCleanReport(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	tech := b.Subscribe("techniques")
	defer b.Unsubscribe(tech)
	arts := b.Subscribe("articles")
	defer b.Unsubscribe(arts)

	b.PublishCleanReport(reconcile.Report{Family: "techniques", Visited: 3, Repairs: []reconcile.Repair{}})

	select {
	case msg := <-tech:
		s := string(msg)
		if !strings.Contains(s, "event: clean.completed") || !strings.Contains(s, `"visited":3`) {
			t.Errorf("message = %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for clean.completed")
	}

	time.Sleep(50 * time.Millisecond)
	select {
	case msg := <-arts:
		t.Errorf("articles subscriber got %q", msg)
	default:
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

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

	b.PublishRecordEvent(store.Event{Family: "techniques", ID: "x", Op: store.OpUpdate})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: record.update") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Buffer holds 64 messages; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
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
	b.Publish(Event{Type: "record.update", Data: map[string]string{"id": "x"}})
	b.PublishRecordEvent(store.Event{Family: "techniques", ID: "x", Op: store.OpUpdate})
}
