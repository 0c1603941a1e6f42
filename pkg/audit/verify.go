package audit

import (
	"fmt"
	"time"

	"github.com/orchestr8/engine/pkg/schema"
)

func defaultNow() time.Time { return time.Now().UTC() }

// VerificationResult reports the outcome of a chain walk.
type VerificationResult struct {
	Valid        bool
	EventsChecked int
	BrokenAt      *uint64 // sequence number of the first broken link, if any
	Reason        string
}

// VerifyIntegrity walks the entire chain from genesis, recomputing each
// event's hash and confirming it matches both the stored hash and the
// next event's previous_hash. A mismatch anywhere proves the chain was
// edited, reordered, or had an event removed.
func (l *Log) VerifyIntegrity() (VerificationResult, error) {
	events, err := l.all()
	if err != nil {
		return VerificationResult{}, err
	}
	expectedPrev := schema.GenesisHash
	for i, e := range events {
		if e.PreviousHash != expectedPrev {
			seq := e.Sequence
			return VerificationResult{
				Valid:         false,
				EventsChecked: i,
				BrokenAt:      &seq,
				Reason:        fmt.Sprintf("event %d previous_hash does not match predecessor's hash", e.Sequence),
			}, nil
		}
		recomputed := computeHash(e)
		if recomputed != e.Hash {
			seq := e.Sequence
			return VerificationResult{
				Valid:         false,
				EventsChecked: i,
				BrokenAt:      &seq,
				Reason:        fmt.Sprintf("event %d hash does not match its recomputed content hash", e.Sequence),
			}, nil
		}
		expectedPrev = e.Hash
	}
	return VerificationResult{Valid: true, EventsChecked: len(events)}, nil
}
