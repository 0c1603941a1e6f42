package activity

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/orchestr8/engine/pkg/schema"
)

// NATSPersistence publishes events to a NATS subject instead of (or
// alongside) writing them to disk, for deployments that already run a
// message bus and want activity events fanned out to other services
// rather than tailed from a local file.
//
// NATSPersistence does not support Query: a message bus is a transport,
// not a queryable store, so Query always returns nil. Pair it with
// FilePersistence (or another queryable Persistence) when both live
// fan-out and historical query are required.
type NATSPersistence struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPersistence wraps an already-connected *nats.Conn.
func NewNATSPersistence(conn *nats.Conn, subject string) *NATSPersistence {
	return &NATSPersistence{conn: conn, subject: subject}
}

// Persist publishes e as JSON to the configured subject.
func (np *NATSPersistence) Persist(e schema.ActivityEvent) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("activity: marshal event for nats publish: %w", err)
	}
	if err := np.conn.Publish(np.subject, raw); err != nil {
		return fmt.Errorf("activity: publish to %s: %w", np.subject, err)
	}
	return nil
}

// Query is unsupported for a pure pub/sub transport.
func (np *NATSPersistence) Query(QueryOptions) ([]schema.ActivityEvent, error) {
	return nil, nil
}
