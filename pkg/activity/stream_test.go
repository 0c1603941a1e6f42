package activity

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orchestr8/engine/pkg/schema"
)

func TestEmitAssignsMonotonicSequence(t *testing.T) {
	s := New(0, nil)
	e1 := s.Emit(schema.ActivityEvent{SessionID: "sess-1", Type: schema.EventAgentStart})
	e2 := s.Emit(schema.ActivityEvent{SessionID: "sess-1", Type: schema.EventAgentComplete})
	e3 := s.Emit(schema.ActivityEvent{SessionID: "sess-2", Type: schema.EventAgentStart})

	require.Equal(t, uint64(1), e1.Sequence)
	require.Equal(t, uint64(2), e2.Sequence)
	require.Equal(t, uint64(1), e3.Sequence) // independent per-session sequence
}

func TestSubscribeFiltersDelivery(t *testing.T) {
	s := New(0, nil)

	var mu sync.Mutex
	var received []schema.ActivityEvent
	unsub := s.Subscribe(Filter{Types: map[schema.EventType]bool{schema.EventAgentComplete: true}}, func(e schema.ActivityEvent) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})
	defer unsub()

	s.Emit(schema.ActivityEvent{SessionID: "sess-1", Type: schema.EventAgentStart})
	s.Emit(schema.ActivityEvent{SessionID: "sess-1", Type: schema.EventAgentComplete})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, schema.EventAgentComplete, received[0].Type)
}

func TestRingBufferBounded(t *testing.T) {
	s := New(3, nil)
	for i := 0; i < 10; i++ {
		s.Emit(schema.ActivityEvent{SessionID: "sess-1", Type: schema.EventProgress})
	}
	recent := s.Recent(100)
	require.Len(t, recent, 3)
	require.Equal(t, uint64(10), recent[2].Sequence)
}

func TestSlowSubscriberDropsWithCounter(t *testing.T) {
	s := New(0, nil)
	block := make(chan struct{})
	unsub := s.Subscribe(Filter{}, func(e schema.ActivityEvent) {
		<-block // never returns until test closes it, forcing the queue to fill
	})
	defer func() {
		close(block)
		unsub()
	}()

	for i := 0; i < defaultQueueWatermark+10; i++ {
		s.Emit(schema.ActivityEvent{SessionID: "sess-1", Type: schema.EventProgress})
	}

	stats := s.GetStats()
	require.Equal(t, 1, stats.Subscribers)
	var totalDropped uint64
	for _, d := range stats.DroppedBySubscriber {
		totalDropped += d
	}
	require.Greater(t, totalDropped, uint64(0))
}

func TestFilePersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fp, err := NewFilePersistence(FilePersistenceConfig{BaseDir: dir, MaxEventsPerFile: 2})
	require.NoError(t, err)
	defer fp.Close()

	s := New(0, fp)
	for i := 0; i < 5; i++ {
		s.Emit(schema.ActivityEvent{SessionID: "sess-1", Type: schema.EventAgentStart})
	}

	results, err := fp.Query(QueryOptions{SessionID: "sess-1"})
	require.NoError(t, err)
	require.Len(t, results, 5)
	require.Equal(t, uint64(1), results[0].Sequence)
	require.Equal(t, uint64(5), results[4].Sequence)
}

func TestFilePersistenceRejectsTraversal(t *testing.T) {
	_, err := NewFilePersistence(FilePersistenceConfig{BaseDir: "../escape"})
	require.Error(t, err)
}
