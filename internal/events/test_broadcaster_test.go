package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe("p1")
	ch2 := b.Subscribe("")
	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}
	b.Unsubscribe(ch1)
	b.Unsubscribe(ch1) // second call is a no-op
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.Count())
	}
	b.Unsubscribe(ch2)
	if _, ok := <-ch2; ok {
		t.Fatal("expected closed channel")
	}
}

func TestBroadcasterFiltersByProject(t *testing.T) {
	b := NewBroadcaster()
	mine := b.Subscribe("p1")
	all := b.Subscribe("")
	defer b.Unsubscribe(mine)
	defer b.Unsubscribe(all)

	b.Publish(Event{Project: "p2", Type: EventUploaded})
	b.Publish(Event{Project: "p1", Type: EventFileDone, Path: "main.go"})

	select {
	case e := <-mine:
		if e.Project != "p1" || e.Path != "main.go" {
			t.Fatalf("unexpected event %+v", e)
		}
		if e.Timestamp == 0 {
			t.Error("expected non-zero timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	select {
	case e := <-mine:
		t.Fatalf("unexpected second event %+v", e)
	default:
	}
	if len(all) != 2 {
		t.Fatalf("wildcard subscriber got %d events, want 2", len(all))
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("p")
	defer b.Unsubscribe(ch)
	for i := 0; i < 200; i++ {
		b.Publish(Event{Project: "p", Type: EventFileDone})
	}
	if len(ch) != 64 {
		t.Fatalf("expected buffered 64 events, got %d", len(ch))
	}
}

func TestMarshalEvent(t *testing.T) {
	raw, err := MarshalEvent(Event{Project: "p", Type: EventStageStarted, Stage: "files", Timestamp: 1})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m["stage"] != "files" || m["type"] != "stage_started" {
		t.Fatalf("unexpected json %s", raw)
	}
	if _, ok := m["path"]; ok {
		t.Fatalf("empty path should be omitted: %s", raw)
	}
}
