package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-tangra/go-tangra-cpucaps/internal/convert"
	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps/cpucapstest"
	"github.com/go-tangra/go-tangra-cpucaps/internal/snapshot"
	"github.com/go-tangra/go-tangra-cpucaps/internal/store"
)

type countingSink struct {
	mu    sync.Mutex
	saved []*snapshot.Snapshot
	err   error
	done  chan struct{}
	want  int
}

func (s *countingSink) Save(_ context.Context, snap *snapshot.Snapshot) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, time.Time{}, s.err
	}
	s.saved = append(s.saved, snap)
	if len(s.saved) == s.want && s.done != nil {
		close(s.done)
	}
	return int64(len(s.saved)), time.Now(), nil
}

func TestRecordToStore(t *testing.T) {
	db, err := store.New(filepath.Join(t.TempDir(), "cpucaps.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	r := &Recorder{Source: cpucapstest.Intel().CPU(t), Sink: StoreSink{Store: db}}
	res, err := r.Record(context.Background())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if res.CollectErr != nil {
		t.Errorf("CollectErr = %v", res.CollectErr)
	}

	rec, err := db.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.UUID != res.Snapshot.ID || rec.Vendor != "GenuineIntel" || !rec.Complete {
		t.Errorf("stored record = %+v", rec)
	}
	snap, err := convert.RecordToSnapshot(rec)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Brand != "Intel(R) Core(TM) i7-8700K CPU @ 3.70GHz" {
		t.Errorf("stored Brand = %q", snap.Brand)
	}
}

func TestRecordPartial(t *testing.T) {
	b := cpucapstest.Intel()
	b.Fail = map[string]bool{cpucaps.AttrVendor: true}
	sink := &countingSink{}

	r := &Recorder{Source: b.CPU(t), Sink: sink}
	res, err := r.Record(context.Background())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !errors.Is(res.CollectErr, cpucaps.ErrBackendQueryFailed) {
		t.Errorf("CollectErr = %v, want query failure", res.CollectErr)
	}
	if len(sink.saved) != 1 || sink.saved[0].Complete() {
		t.Errorf("saved = %+v, want one partial snapshot", sink.saved)
	}
}

func TestRecordSinkError(t *testing.T) {
	boom := errors.New("disk full")
	r := &Recorder{Source: cpucapstest.Intel().CPU(t), Sink: &countingSink{err: boom}}
	if _, err := r.Record(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Record error = %v, want %v", err, boom)
	}
}

func TestRunRecordsUntilCancelled(t *testing.T) {
	sink := &countingSink{done: make(chan struct{}), want: 3}
	r := &Recorder{Source: cpucapstest.Intel().CPU(t), Sink: sink}

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		Run(ctx, r, 10*time.Millisecond)
		close(finished)
	}()

	select {
	case <-sink.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not record three snapshots")
	}
	cancel()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCalcBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{20, maxBackoff},
	}
	for _, tt := range tests {
		if got := calcBackoff(tt.attempt); got != tt.want {
			t.Errorf("calcBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
