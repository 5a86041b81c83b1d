// Package daemon takes cpu snapshots and hands them to a Sink, once or on
// a fixed interval.
package daemon

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/go-tangra/go-tangra-cpucaps/internal/convert"
	"github.com/go-tangra/go-tangra-cpucaps/internal/snapshot"
	"github.com/go-tangra/go-tangra-cpucaps/internal/store"
)

// Sink receives collected snapshots.
type Sink interface {
	Save(ctx context.Context, snap *snapshot.Snapshot) (id int64, storedAt time.Time, err error)
}

// StoreSink saves snapshots into the local database.
type StoreSink struct {
	Store *store.Store
}

// Save implements Sink.
func (s StoreSink) Save(ctx context.Context, snap *snapshot.Snapshot) (int64, time.Time, error) {
	rec, err := convert.SnapshotToRecord(snap)
	if err != nil {
		return 0, time.Time{}, err
	}
	id, storedAt, err := s.Store.Insert(ctx, rec)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("store snapshot: %w", err)
	}
	return id, storedAt, nil
}

// Result describes one recorded snapshot.
type Result struct {
	ID       int64
	StoredAt time.Time
	Snapshot *snapshot.Snapshot
	// CollectErr holds the attribute failures of a partial snapshot.
	CollectErr error
}

// Recorder collects snapshots from Source and saves them to Sink.
type Recorder struct {
	Source  snapshot.Source
	Options snapshot.Options
	Sink    Sink
}

const (
	baseBackoff = 1 * time.Second
	maxBackoff  = 2 * time.Minute
)

// Record takes one snapshot and saves it. Partial snapshots are saved too;
// an error is returned only when saving fails.
func (r *Recorder) Record(ctx context.Context) (*Result, error) {
	snap, collectErr := snapshot.Collect(r.Source, r.Options)
	if collectErr != nil {
		log.Printf("warning: %v", collectErr)
	}

	id, storedAt, err := r.Sink.Save(ctx, snap)
	if err != nil {
		return nil, err
	}

	return &Result{ID: id, StoredAt: storedAt, Snapshot: snap, CollectErr: collectErr}, nil
}

// Run records a snapshot immediately and then every interval until ctx is
// cancelled. Failed saves are retried with exponential backoff.
func Run(ctx context.Context, r *Recorder, interval time.Duration) {
	attempt := 0
	for {
		wait := interval
		res, err := r.Record(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			wait = calcBackoff(attempt)
			if wait > interval {
				wait = interval
			}
			log.Printf("Record failed (attempt %d): %v; retrying in %s", attempt, err, wait)
		} else {
			attempt = 0
			log.Printf("Recorded snapshot %d (%s)", res.ID, res.Snapshot.ID)
		}

		select {
		case <-ctx.Done():
			log.Println("Recorder shutting down")
			return
		case <-time.After(wait):
		}
	}
}

func calcBackoff(attempt int) time.Duration {
	d := baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
