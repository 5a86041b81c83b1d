package sender

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/errors"

	"github.com/go-tangra/go-tangra-cpucaps/internal/codec"
	"github.com/go-tangra/go-tangra-cpucaps/internal/snapshot"
)

func TestSave(t *testing.T) {
	storedAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	var got snapshot.Snapshot

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != SubmitPath {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/cbor" {
			t.Errorf("Content-Type = %q, want application/cbor", ct)
		}
		if key := r.Header.Get("X-API-Key"); key != "s3cret" {
			t.Errorf("X-API-Key = %q", key)
		}
		body, _ := io.ReadAll(r.Body)
		if err := codec.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SubmitReply{ID: 42, UUID: got.ID, StoredAt: storedAt})
	}))
	defer srv.Close()

	c, err := New(context.Background(), srv.URL, "s3cret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	snap := &snapshot.Snapshot{ID: "abc", Hostname: "build-01", Vendor: "GenuineIntel", Capabilities: 0xF}
	id, at, err := c.Save(context.Background(), snap)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != 42 || !at.Equal(storedAt) {
		t.Errorf("Save = %d, %v", id, at)
	}
	if got.ID != "abc" || got.Hostname != "build-01" || got.Capabilities != 0xF {
		t.Errorf("server received %+v", got)
	}
}

func TestSaveRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":401,"reason":"UNAUTHORIZED","message":"missing X-API-Key header"}`)
	}))
	defer srv.Close()

	c, err := New(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	_, _, err = c.Save(context.Background(), &snapshot.Snapshot{ID: "x"})
	if err == nil {
		t.Fatal("Save succeeded, want error")
	}
	if code := errors.Code(err); code != http.StatusUnauthorized {
		t.Errorf("errors.Code = %d, want 401", code)
	}
}
