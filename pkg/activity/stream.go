// Package activity implements the activity/event stream: ordered,
// filterable event fan-out with bounded in-memory retention and
// optional durable persistence.
package activity

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orchestr8/engine/pkg/schema"
)

// Persistence is the pluggable durable-storage interface an
// implementation (e.g. JSONL files, a NATS publisher) can satisfy.
type Persistence interface {
	Persist(event schema.ActivityEvent) error
	Query(opts QueryOptions) ([]schema.ActivityEvent, error)
}

// QueryOptions filters a Persistence query.
type QueryOptions struct {
	SessionID string
	From      time.Time
	To        time.Time
	Types     []schema.EventType
}

// Filter is a conjunction of optional sets a subscription matches
// against.
type Filter struct {
	Types      map[schema.EventType]bool
	Categories map[schema.EventCategory]bool
	Severities map[schema.Severity]bool
	AgentIDs   map[string]bool
	WorkflowID string
}

// Matches reports whether e satisfies every non-empty set in f.
func (f Filter) Matches(e schema.ActivityEvent) bool {
	if len(f.Types) > 0 && !f.Types[e.Type] {
		return false
	}
	if len(f.Categories) > 0 && !f.Categories[e.Category] {
		return false
	}
	if len(f.Severities) > 0 && !f.Severities[e.Severity] {
		return false
	}
	if len(f.AgentIDs) > 0 && !f.AgentIDs[e.AgentID] {
		return false
	}
	if f.WorkflowID != "" && f.WorkflowID != e.WorkflowID {
		return false
	}
	return true
}

// Handler receives matching events. While a Handler blocks, events that
// arrive after its queue reaches the watermark are dropped and counted;
// the subscription itself stays registered.
type Handler func(schema.ActivityEvent)

type subscription struct {
	id      string
	filter  Filter
	queue   chan schema.ActivityEvent
	dropped *uint64
	done    chan struct{}
}

// Stats reports stream health: events emitted and buffered, active
// subscriber count, and per-subscriber drop counts.
type Stats struct {
	EventsEmitted     uint64
	EventsInMemory    int
	Subscribers       int
	DroppedBySubscriber map[string]uint64
}

const (
	defaultMaxInMemory  = 1000
	defaultQueueWatermark = 256
)

var droppedEventsMetric = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "activity_stream_dropped_events_total",
	Help: "Events dropped for a slow activity stream subscriber.",
}, []string{"subscriber"})

func init() {
	prometheus.MustRegister(droppedEventsMetric)
}

// Stream is the ordered, filterable, bounded-memory event fan-out bus,
// backed by a ring buffer and an optional durable Persistence.
type Stream struct {
	mu          sync.Mutex
	sequences   map[string]uint64 // per-session monotonic sequence
	ring        []schema.ActivityEvent
	maxInMemory int
	subs        map[string]*subscription
	persistence Persistence
	watermark   int
}

// New creates a Stream with the given in-memory cap (0 = default 1000)
// and an optional Persistence implementation.
func New(maxInMemory int, persistence Persistence) *Stream {
	if maxInMemory <= 0 {
		maxInMemory = defaultMaxInMemory
	}
	return &Stream{
		sequences:   make(map[string]uint64),
		maxInMemory: maxInMemory,
		subs:        make(map[string]*subscription),
		persistence: persistence,
		watermark:   defaultQueueWatermark,
	}
}

// Emit assigns the next per-session sequence number and timestamp,
// inserts into the ring buffer, persists (if configured), and releases
// delivery to subscribers outside the stream lock: one lock for
// sequence assignment and buffer insertion, with subscriber handler
// invocation released outside that lock.
func (s *Stream) Emit(e schema.ActivityEvent) schema.ActivityEvent {
	s.mu.Lock()
	s.sequences[e.SessionID]++
	e.Sequence = s.sequences[e.SessionID]
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Timestamp = time.Now().UTC()

	s.ring = append(s.ring, e)
	if len(s.ring) > s.maxInMemory {
		s.ring = s.ring[len(s.ring)-s.maxInMemory:]
	}

	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.filter.Matches(e) {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	if s.persistence != nil {
		_ = s.persistence.Persist(e) // persistence errors are discarded here
	}

	for _, sub := range subs {
		select {
		case sub.queue <- e:
		default:
			*sub.dropped++
			droppedEventsMetric.WithLabelValues(sub.id).Inc()
		}
	}

	return e
}

// Subscribe registers handler to run (in its own goroutine) for every
// event matching filter. The returned function cancels the
// subscription.
func (s *Stream) Subscribe(filter Filter, handler Handler) func() {
	id := uuid.NewString()
	dropped := new(uint64)
	sub := &subscription{
		id:      id,
		filter:  filter,
		queue:   make(chan schema.ActivityEvent, s.watermark),
		dropped: dropped,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.subs[id] = sub
	s.mu.Unlock()

	go func() {
		for {
			select {
			case e := <-sub.queue:
				handler(e)
			case <-sub.done:
				return
			}
		}
	}()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		close(sub.done)
	}
}

// Recent returns up to n most recent in-memory events, oldest first.
func (s *Stream) Recent(n int) []schema.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.ring) {
		n = len(s.ring)
	}
	out := make([]schema.ActivityEvent, n)
	copy(out, s.ring[len(s.ring)-n:])
	return out
}

// GetStats reports current stream health.
func (s *Stream) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := make(map[string]uint64, len(s.subs))
	var total uint64
	for id, sub := range s.subs {
		dropped[id] = *sub.dropped
	}
	for _, seq := range s.sequences {
		total += seq
	}
	return Stats{
		EventsEmitted:       total,
		EventsInMemory:      len(s.ring),
		Subscribers:         len(s.subs),
		DroppedBySubscriber: dropped,
	}
}

// Query delegates to the configured Persistence, sorted ascending by
// sequence.
func (s *Stream) Query(opts QueryOptions) ([]schema.ActivityEvent, error) {
	if s.persistence == nil {
		return nil, nil
	}
	out, err := s.persistence.Query(opts)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}
