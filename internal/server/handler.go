package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"

	"github.com/go-tangra/go-tangra-cpucaps/internal/convert"
	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
	"github.com/go-tangra/go-tangra-cpucaps/internal/daemon"
	"github.com/go-tangra/go-tangra-cpucaps/internal/sender"
	"github.com/go-tangra/go-tangra-cpucaps/internal/snapshot"
	"github.com/go-tangra/go-tangra-cpucaps/internal/store"
)

const (
	OperationGetCPU              = "/cpucaps.v1.CPUService/GetCPU"
	OperationGetCapabilities     = "/cpucaps.v1.CPUService/GetCapabilities"
	OperationListSnapshots       = "/cpucaps.v1.SnapshotService/ListSnapshots"
	OperationGetSnapshot         = "/cpucaps.v1.SnapshotService/GetSnapshot"
	OperationGetLatestByHostname = "/cpucaps.v1.SnapshotService/GetLatestByHostname"
	OperationRecordSnapshot      = "/cpucaps.v1.SnapshotService/RecordSnapshot"
	OperationSubmitSnapshot      = "/cpucaps.v1.SnapshotService/SubmitSnapshot"
	OperationDeleteSnapshot      = "/cpucaps.v1.SnapshotService/DeleteSnapshot"
)

type GetCPURequest struct {
	// Platform adds SMBIOS processor sockets to the reply.
	Platform bool `json:"platform"`
}

type CapabilitiesReply struct {
	Mask           uint64   `json:"mask" cbor:"mask"`
	Names          []string `json:"names" cbor:"names"`
	BackendVersion string   `json:"backend_version" cbor:"backend_version"`
}

type ListSnapshotsRequest struct {
	Hostname        string `json:"hostname"`
	Vendor          string `json:"vendor"`
	Capabilities    string `json:"capabilities"`
	CollectedAfter  string `json:"collected_after"`
	CollectedBefore string `json:"collected_before"`
	PageSize        int    `json:"page_size"`
	Page            int    `json:"page"`
}

type ListSnapshotsReply struct {
	Snapshots  []*convert.Summary `json:"snapshots" cbor:"snapshots"`
	TotalCount int                `json:"total_count" cbor:"total_count"`
}

type SnapshotRequest struct {
	ID int64 `json:"id"`
}

type HostnameRequest struct {
	Hostname string `json:"hostname"`
}

type SnapshotReply struct {
	ID       int64              `json:"id" cbor:"id"`
	StoredAt time.Time          `json:"stored_at" cbor:"stored_at"`
	Snapshot *snapshot.Snapshot `json:"snapshot" cbor:"snapshot"`
}

type RecordSnapshotReply struct {
	ID       int64             `json:"id" cbor:"id"`
	UUID     string            `json:"uuid" cbor:"uuid"`
	StoredAt time.Time         `json:"stored_at" cbor:"stored_at"`
	Complete bool              `json:"complete" cbor:"complete"`
	Errors   map[string]string `json:"errors,omitempty" cbor:"errors,omitempty"`
}

type DeleteSnapshotReply struct{}

// Handler serves the live facade and the snapshot history.
type Handler struct {
	cpu      snapshot.Source
	store    *store.Store
	options  snapshot.Options
	recorder *daemon.Recorder
}

// NewHandler creates a handler reading from cpu and persisting into s.
func NewHandler(cpu snapshot.Source, s *store.Store, opts snapshot.Options) *Handler {
	return &Handler{
		cpu:      cpu,
		store:    s,
		options:  opts,
		recorder: &daemon.Recorder{Source: cpu, Options: opts, Sink: daemon.StoreSink{Store: s}},
	}
}

// Recorder returns the recorder used for locally taken snapshots.
func (h *Handler) Recorder() *daemon.Recorder {
	return h.recorder
}

func (h *Handler) GetCPU(_ context.Context, req *GetCPURequest) (*snapshot.Snapshot, error) {
	opts := snapshot.Options{}
	if req.Platform {
		opts = h.options
	}
	snap, err := snapshot.Collect(h.cpu, opts)
	if err != nil && errors.Is(err, cpucaps.ErrBackendVersionMismatch) {
		return nil, kerrors.ServiceUnavailable("BACKEND_VERSION_MISMATCH", err.Error())
	}
	return snap, nil
}

func (h *Handler) GetCapabilities(_ context.Context, _ *struct{}) (*CapabilitiesReply, error) {
	caps, err := h.cpu.Capabilities()
	if err != nil {
		return nil, facadeError(err)
	}
	version, err := h.cpu.BackendVersion()
	if err != nil {
		return nil, facadeError(err)
	}
	return &CapabilitiesReply{
		Mask:           uint64(caps),
		Names:          caps.Names(),
		BackendVersion: version.String(),
	}, nil
}

func (h *Handler) ListSnapshots(ctx context.Context, req *ListSnapshotsRequest) (*ListSnapshotsReply, error) {
	filter := store.ListFilter{
		Hostname: req.Hostname,
		Vendor:   req.Vendor,
		PageSize: req.PageSize,
		Page:     req.Page,
	}
	if req.Capabilities != "" {
		for _, name := range strings.Split(req.Capabilities, ",") {
			c, err := cpucaps.ParseCapability(name)
			if err != nil {
				return nil, kerrors.BadRequest("INVALID_CAPABILITY", err.Error())
			}
			filter.RequireCapabilities |= uint64(c)
		}
	}
	var err error
	if filter.CollectedAfter, err = parseTime(req.CollectedAfter); err != nil {
		return nil, kerrors.BadRequest("INVALID_TIME", fmt.Sprintf("collected_after: %v", err))
	}
	if filter.CollectedBefore, err = parseTime(req.CollectedBefore); err != nil {
		return nil, kerrors.BadRequest("INVALID_TIME", fmt.Sprintf("collected_before: %v", err))
	}

	records, total, err := h.store.List(ctx, filter)
	if err != nil {
		return nil, kerrors.InternalServer("STORE", fmt.Sprintf("list snapshots: %v", err))
	}

	summaries := make([]*convert.Summary, len(records))
	for i := range records {
		summaries[i] = convert.RecordToSummary(&records[i])
	}

	return &ListSnapshotsReply{Snapshots: summaries, TotalCount: total}, nil
}

func (h *Handler) GetSnapshot(ctx context.Context, req *SnapshotRequest) (*SnapshotReply, error) {
	rec, err := h.store.Get(ctx, req.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kerrors.NotFound("SNAPSHOT_NOT_FOUND", fmt.Sprintf("snapshot %d not found", req.ID))
		}
		return nil, kerrors.InternalServer("STORE", fmt.Sprintf("get snapshot: %v", err))
	}
	return snapshotReply(rec)
}

func (h *Handler) GetLatestByHostname(ctx context.Context, req *HostnameRequest) (*SnapshotReply, error) {
	if req.Hostname == "" {
		return nil, kerrors.BadRequest("INVALID_ARGUMENT", "hostname is required")
	}

	rec, err := h.store.GetLatestByHostname(ctx, req.Hostname)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kerrors.NotFound("SNAPSHOT_NOT_FOUND", fmt.Sprintf("no snapshot found for hostname %q", req.Hostname))
		}
		return nil, kerrors.InternalServer("STORE", fmt.Sprintf("get latest snapshot: %v", err))
	}
	return snapshotReply(rec)
}

func (h *Handler) RecordSnapshot(ctx context.Context, _ *struct{}) (*RecordSnapshotReply, error) {
	res, err := h.recorder.Record(ctx)
	if err != nil {
		return nil, kerrors.InternalServer("STORE", err.Error())
	}
	return &RecordSnapshotReply{
		ID:       res.ID,
		UUID:     res.Snapshot.ID,
		StoredAt: res.StoredAt,
		Complete: res.Snapshot.Complete(),
		Errors:   res.Snapshot.Errors,
	}, nil
}

func (h *Handler) SubmitSnapshot(ctx context.Context, snap *snapshot.Snapshot) (*sender.SubmitReply, error) {
	if snap.Hostname == "" {
		return nil, kerrors.BadRequest("INVALID_ARGUMENT", "hostname is required")
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	id, storedAt, err := daemon.StoreSink{Store: h.store}.Save(ctx, snap)
	if err != nil {
		return nil, storeError(snap.ID, err)
	}
	log.Printf("Stored snapshot %d submitted by %q", id, snap.Hostname)

	return &sender.SubmitReply{ID: id, UUID: snap.ID, StoredAt: storedAt}, nil
}

// storeError maps a failed insert to a kratos error. A duplicate UUID is
// detected by the unique index on uuid.
func storeError(id string, err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return kerrors.Conflict("SNAPSHOT_EXISTS", fmt.Sprintf("snapshot %s already stored", id))
	}
	return kerrors.InternalServer("STORE", err.Error())
}

func (h *Handler) DeleteSnapshot(ctx context.Context, req *SnapshotRequest) (*DeleteSnapshotReply, error) {
	if err := h.store.Delete(ctx, req.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kerrors.NotFound("SNAPSHOT_NOT_FOUND", fmt.Sprintf("snapshot %d not found", req.ID))
		}
		return nil, kerrors.InternalServer("STORE", fmt.Sprintf("delete snapshot: %v", err))
	}
	return &DeleteSnapshotReply{}, nil
}

// RegisterHTTPServer binds the handler's routes to s.
func RegisterHTTPServer(s *kratoshttp.Server, h *Handler) {
	r := s.Route("/")
	r.GET("/v1/cpu", h.getCPU)
	r.GET("/v1/cpu/capabilities", h.getCapabilities)
	r.GET("/v1/snapshots", h.listSnapshots)
	r.POST("/v1/snapshots", h.recordSnapshot)
	r.POST(sender.SubmitPath, h.submitSnapshot)
	r.GET("/v1/snapshots/{id:[0-9]+}", h.getSnapshot)
	r.DELETE("/v1/snapshots/{id:[0-9]+}", h.deleteSnapshot)
	r.GET("/v1/hosts/{hostname}/latest", h.getLatestByHostname)
}

func (h *Handler) getCPU(ctx kratoshttp.Context) error {
	var in GetCPURequest
	if err := ctx.BindQuery(&in); err != nil {
		return err
	}
	kratoshttp.SetOperation(ctx, OperationGetCPU)
	return invoke(ctx, &in, func(ctx context.Context, req any) (any, error) {
		return h.GetCPU(ctx, req.(*GetCPURequest))
	})
}

func (h *Handler) getCapabilities(ctx kratoshttp.Context) error {
	kratoshttp.SetOperation(ctx, OperationGetCapabilities)
	return invoke(ctx, &struct{}{}, func(ctx context.Context, req any) (any, error) {
		return h.GetCapabilities(ctx, req.(*struct{}))
	})
}

func (h *Handler) listSnapshots(ctx kratoshttp.Context) error {
	var in ListSnapshotsRequest
	if err := ctx.BindQuery(&in); err != nil {
		return err
	}
	kratoshttp.SetOperation(ctx, OperationListSnapshots)
	return invoke(ctx, &in, func(ctx context.Context, req any) (any, error) {
		return h.ListSnapshots(ctx, req.(*ListSnapshotsRequest))
	})
}

func (h *Handler) getSnapshot(ctx kratoshttp.Context) error {
	var in SnapshotRequest
	if err := ctx.BindVars(&in); err != nil {
		return err
	}
	kratoshttp.SetOperation(ctx, OperationGetSnapshot)
	return invoke(ctx, &in, func(ctx context.Context, req any) (any, error) {
		return h.GetSnapshot(ctx, req.(*SnapshotRequest))
	})
}

func (h *Handler) getLatestByHostname(ctx kratoshttp.Context) error {
	var in HostnameRequest
	if err := ctx.BindVars(&in); err != nil {
		return err
	}
	kratoshttp.SetOperation(ctx, OperationGetLatestByHostname)
	return invoke(ctx, &in, func(ctx context.Context, req any) (any, error) {
		return h.GetLatestByHostname(ctx, req.(*HostnameRequest))
	})
}

func (h *Handler) recordSnapshot(ctx kratoshttp.Context) error {
	kratoshttp.SetOperation(ctx, OperationRecordSnapshot)
	return invoke(ctx, &struct{}{}, func(ctx context.Context, req any) (any, error) {
		return h.RecordSnapshot(ctx, req.(*struct{}))
	})
}

func (h *Handler) submitSnapshot(ctx kratoshttp.Context) error {
	var in snapshot.Snapshot
	if err := ctx.Bind(&in); err != nil {
		return err
	}
	kratoshttp.SetOperation(ctx, OperationSubmitSnapshot)
	return invoke(ctx, &in, func(ctx context.Context, req any) (any, error) {
		return h.SubmitSnapshot(ctx, req.(*snapshot.Snapshot))
	})
}

func (h *Handler) deleteSnapshot(ctx kratoshttp.Context) error {
	var in SnapshotRequest
	if err := ctx.BindVars(&in); err != nil {
		return err
	}
	kratoshttp.SetOperation(ctx, OperationDeleteSnapshot)
	return invoke(ctx, &in, func(ctx context.Context, req any) (any, error) {
		return h.DeleteSnapshot(ctx, req.(*SnapshotRequest))
	})
}

// invoke runs fn through the server middleware chain and writes its reply.
func invoke(ctx kratoshttp.Context, in any, fn middleware.Handler) error {
	out, err := ctx.Middleware(fn)(ctx, in)
	if err != nil {
		return err
	}
	return ctx.Result(http.StatusOK, out)
}

func snapshotReply(rec *store.SnapshotRecord) (*SnapshotReply, error) {
	snap, err := convert.RecordToSnapshot(rec)
	if err != nil {
		return nil, kerrors.InternalServer("DECODE", fmt.Sprintf("decode snapshot: %v", err))
	}
	return &SnapshotReply{ID: rec.ID, StoredAt: rec.StoredAt, Snapshot: snap}, nil
}

func facadeError(err error) error {
	if errors.Is(err, cpucaps.ErrBackendVersionMismatch) {
		return kerrors.ServiceUnavailable("BACKEND_VERSION_MISMATCH", err.Error())
	}
	return kerrors.InternalServer("BACKEND_QUERY_FAILED", err.Error())
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
