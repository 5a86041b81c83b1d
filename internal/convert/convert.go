package convert

import (
	"fmt"
	"time"

	"github.com/go-tangra/go-tangra-cpucaps/internal/codec"
	"github.com/go-tangra/go-tangra-cpucaps/internal/snapshot"
	"github.com/go-tangra/go-tangra-cpucaps/internal/store"
)

// Summary is the listing view of a stored snapshot.
type Summary struct {
	ID             int64     `json:"id" cbor:"id"`
	UUID           string    `json:"uuid" cbor:"uuid"`
	Hostname       string    `json:"hostname" cbor:"hostname"`
	Vendor         string    `json:"vendor" cbor:"vendor"`
	Brand          string    `json:"brand" cbor:"brand"`
	Capabilities   uint64    `json:"capabilities" cbor:"capabilities"`
	BackendVersion string    `json:"backend_version" cbor:"backend_version"`
	Complete       bool      `json:"complete" cbor:"complete"`
	CollectedAt    time.Time `json:"collected_at" cbor:"collected_at"`
	StoredAt       time.Time `json:"stored_at" cbor:"stored_at"`
}

// SnapshotToRecord converts a snapshot to a store record.
func SnapshotToRecord(snap *snapshot.Snapshot) (*store.SnapshotRecord, error) {
	payload, err := codec.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot to CBOR: %w", err)
	}

	collectedAt := snap.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}

	return &store.SnapshotRecord{
		UUID:           snap.ID,
		Hostname:       snap.Hostname,
		Vendor:         snap.Vendor,
		Brand:          snap.Brand,
		Capabilities:   snap.Capabilities,
		BackendVersion: snap.BackendVersion,
		Complete:       snap.Complete(),
		CollectedAt:    collectedAt,
		Payload:        payload,
	}, nil
}

// RecordToSnapshot converts a store record back to a snapshot.
func RecordToSnapshot(rec *store.SnapshotRecord) (*snapshot.Snapshot, error) {
	if len(rec.Payload) == 0 {
		return nil, fmt.Errorf("snapshot %d has no payload", rec.ID)
	}
	var snap snapshot.Snapshot
	if err := codec.Unmarshal(rec.Payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot CBOR: %w", err)
	}
	return &snap, nil
}

// RecordToSummary converts a store record to a Summary.
func RecordToSummary(rec *store.SnapshotRecord) *Summary {
	return &Summary{
		ID:             rec.ID,
		UUID:           rec.UUID,
		Hostname:       rec.Hostname,
		Vendor:         rec.Vendor,
		Brand:          rec.Brand,
		Capabilities:   rec.Capabilities,
		BackendVersion: rec.BackendVersion,
		Complete:       rec.Complete,
		CollectedAt:    rec.CollectedAt,
		StoredAt:       rec.StoredAt,
	}
}
