// Package memory implements an in-process event sink that records run
// completion events instead of sending them anywhere. It stands in for the
// Pub/Sub publisher in tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ulritter/freelance-crawler/internal/publisher"
)

// Sink captures every published event for later inspection.
type Sink struct {
	mu      sync.Mutex
	seq     int
	records []Record
}

// Record is one captured publish call. Data holds the payload serialized the
// same way the Pub/Sub publisher serializes it on the wire.
type Record struct {
	Topic string
	Data  []byte
}

var _ publisher.Publisher = (*Sink)(nil)

// NewSink returns an empty Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Publish serializes the payload to JSON and records it under the topic.
func (s *Sink) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.records = append(s.records, Record{Topic: topic, Data: data})
	return fmt.Sprintf("sink-%d", s.seq), nil
}

// Records returns a copy of everything published so far.
func (s *Sink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// LastRunEvent decodes the newest record as a run event. The second return
// is false when nothing has been published or the payload is not a run event.
func (s *Sink) LastRunEvent() (publisher.RunEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return publisher.RunEvent{}, false
	}
	var ev publisher.RunEvent
	if err := json.Unmarshal(s.records[len(s.records)-1].Data, &ev); err != nil {
		return publisher.RunEvent{}, false
	}
	return ev, true
}
