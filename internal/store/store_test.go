package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "cpucaps.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(host string, collectedAt time.Time, caps uint64) *SnapshotRecord {
	return &SnapshotRecord{
		UUID:           fmt.Sprintf("%s-%d", host, collectedAt.UnixNano()),
		Hostname:       host,
		Vendor:         "GenuineIntel",
		Brand:          "Intel(R) Core(TM) i7-8700K CPU @ 3.70GHz",
		Capabilities:   caps,
		BackendVersion: "2.1",
		Complete:       true,
		CollectedAt:    collectedAt,
		Payload:        []byte{0xA0},
	}
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	collected := time.Date(2026, 5, 1, 12, 0, 0, 500, time.UTC)
	rec := testRecord("build-01", collected, 1<<40|1)
	rec.Complete = false

	id, storedAt, err := s.Insert(ctx, rec)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id <= 0 || storedAt.IsZero() {
		t.Fatalf("Insert = %d, %v", id, storedAt)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UUID != rec.UUID || got.Hostname != "build-01" || got.Vendor != "GenuineIntel" {
		t.Errorf("Get = %+v", got)
	}
	if got.Capabilities != 1<<40|1 {
		t.Errorf("Capabilities = 0x%x", got.Capabilities)
	}
	if got.Complete {
		t.Error("Complete = true, want false")
	}
	if !got.CollectedAt.Equal(collected) {
		t.Errorf("CollectedAt = %v, want %v", got.CollectedAt, collected)
	}
	if string(got.Payload) != string(rec.Payload) {
		t.Errorf("Payload = %x", got.Payload)
	}

	byUUID, err := s.GetByUUID(ctx, rec.UUID)
	if err != nil || byUUID.ID != id {
		t.Errorf("GetByUUID = %+v, %v", byUUID, err)
	}

	if _, err := s.Get(ctx, id+100); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("Get(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestInsertDuplicateUUID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := testRecord("h", time.Now(), 0)
	if _, _, err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_, _, err := s.Insert(ctx, rec)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Insert error = %v, want ErrDuplicate", err)
	}

	other := testRecord("h", time.Now().Add(time.Second), 0)
	if _, _, err := s.Insert(ctx, other); err != nil {
		t.Errorf("Insert with a fresh UUID: %v", err)
	}
	if _, total, err := s.List(ctx, ListFilter{}); err != nil || total != 2 {
		t.Errorf("List() total = %d, err = %v, want 2 rows", total, err)
	}
}

func TestListFiltersAndPaging(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, _, err := s.Insert(ctx, testRecord("alpha", base.Add(time.Duration(i)*time.Hour), 0b011)); err != nil {
			t.Fatal(err)
		}
	}
	other := testRecord("beta", base.Add(30*time.Minute), 0b100)
	other.Vendor = "AuthenticAMD"
	if _, _, err := s.Insert(ctx, other); err != nil {
		t.Fatal(err)
	}

	all, total, err := s.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 6 || len(all) != 6 {
		t.Errorf("List() = %d records, total %d; want 6", len(all), total)
	}
	if len(all[0].Payload) != 0 {
		t.Error("List returned payloads")
	}
	if !all[0].CollectedAt.After(all[len(all)-1].CollectedAt) {
		t.Error("List not ordered newest first")
	}

	page, total, err := s.List(ctx, ListFilter{Hostname: "alpha", PageSize: 2, Page: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("page 2 = %d records, total %d", len(page), total)
	}
	if want := base.Add(2 * time.Hour); !page[0].CollectedAt.Equal(want) {
		t.Errorf("page 2 first = %v, want %v", page[0].CollectedAt, want)
	}

	amd, _, err := s.List(ctx, ListFilter{Vendor: "AuthenticAMD"})
	if err != nil || len(amd) != 1 || amd[0].Hostname != "beta" {
		t.Errorf("vendor filter = %+v, %v", amd, err)
	}

	withBit, total, err := s.List(ctx, ListFilter{RequireCapabilities: 0b100})
	if err != nil || total != 1 || withBit[0].Hostname != "beta" {
		t.Errorf("capability filter = %+v (total %d), %v", withBit, total, err)
	}

	after := base.Add(150 * time.Minute)
	recent, total, err := s.List(ctx, ListFilter{CollectedAfter: &after})
	if err != nil || total != 2 {
		t.Errorf("CollectedAfter filter = %d records, total %d, %v", len(recent), total, err)
	}
}

func TestGetLatestByHostname(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{time.Hour, 3 * time.Hour, 2 * time.Hour} {
		if _, _, err := s.Insert(ctx, testRecord("alpha", base.Add(offset), 0)); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := s.GetLatestByHostname(ctx, "alpha")
	if err != nil {
		t.Fatalf("GetLatestByHostname: %v", err)
	}
	if !latest.CollectedAt.Equal(base.Add(3 * time.Hour)) {
		t.Errorf("latest CollectedAt = %v", latest.CollectedAt)
	}
	if _, err := s.GetLatestByHostname(ctx, "nobody"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetLatestByHostname(nobody) error = %v", err)
	}
}

func TestDeleteAndPurge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old, _, err := s.Insert(ctx, testRecord("h", time.Now().Add(-48*time.Hour), 0))
	if err != nil {
		t.Fatal(err)
	}
	fresh, _, err := s.Insert(ctx, testRecord("h", time.Now(), 0))
	if err != nil {
		t.Fatal(err)
	}
	gone, _, err := s.Insert(ctx, testRecord("g", time.Now(), 0))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(ctx, gone); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, gone); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second Delete error = %v, want sql.ErrNoRows", err)
	}

	n, err := s.Purge(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Errorf("Purge removed %d records, want 1", n)
	}
	if _, err := s.Get(ctx, old); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("old record still present: %v", err)
	}
	if _, err := s.Get(ctx, fresh); err != nil {
		t.Errorf("fresh record purged: %v", err)
	}
}
