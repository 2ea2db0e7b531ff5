// Package device manages the persisted identity of the current writer.
//
// Every process that mutates records stamps them with a device id so the
// replication engine can tell which writer last touched a record. The id is
// generated once on first run, persisted in sync_metadata, and read-only for
// the rest of the process lifetime. It is only ever a conflict tie-break,
// never an ownership lock.
package device

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MetaKey is the sync_metadata key the device id is stored under.
const MetaKey = "device_id"

// MetaStore is the slice of the local store the device identity needs.
type MetaStore interface {
	SetMetaIfAbsent(ctx context.Context, key, value string) (string, error)
}

// EnsureID returns this device's persisted identifier, generating and
// persisting a new random one on first run. Idempotent under concurrent
// calls: whichever caller lands first wins and everyone observes the same
// stored value.
//
// A storage failure here is fatal to engine start; without a device id the
// engine cannot stamp its writes.
func EnsureID(ctx context.Context, meta MetaStore) (string, error) {
	candidate := uuid.NewString()

	id, err := meta.SetMetaIfAbsent(ctx, MetaKey, candidate)
	if err != nil {
		return "", fmt.Errorf("failed to ensure device id: %w", err)
	}

	return id, nil
}
