// Package events fans out per-project progress to live subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"summeriq/internal/metrics"
)

const (
	EventUploaded      = "uploaded"
	EventStageStarted  = "stage_started"
	EventStageFinished = "stage_finished"
	EventFileDone      = "file_done"
	EventDocumentReady = "document_ready"
	EventFailed        = "failed"
)

type Event struct {
	Project   string `json:"project"`
	Type      string `json:"type"`
	Stage     string `json:"stage,omitempty"`
	Path      string `json:"path,omitempty"`
	Done      int    `json:"done,omitempty"`
	Total     int    `json:"total,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type subscriber struct {
	project string // empty receives every project
	ch      chan Event
}

// Broadcaster delivers events to subscribers without blocking the
// publisher; a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Event]subscriber
	buffer int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]subscriber), buffer: 64}
}

// Subscribe returns a channel for events of project, or of every project
// when project is empty. The caller must Unsubscribe.
func (b *Broadcaster) Subscribe(project string) chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = subscriber{project: project, ch: ch}
	n := len(b.subs)
	b.mu.Unlock()
	metrics.SetEventSubscribers(n)
	return ch
}

func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	n := len(b.subs)
	b.mu.Unlock()
	metrics.SetEventSubscribers(n)
}

func (b *Broadcaster) Publish(e Event) {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.project != "" && s.project != e.Project {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
	metrics.RecordEvent(e.Type)
}

func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
