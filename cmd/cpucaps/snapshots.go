package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/go-tangra/go-tangra-cpucaps/internal/codec"
	"github.com/go-tangra/go-tangra-cpucaps/internal/config"
	"github.com/go-tangra/go-tangra-cpucaps/internal/convert"
	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
	"github.com/go-tangra/go-tangra-cpucaps/internal/daemon"
	"github.com/go-tangra/go-tangra-cpucaps/internal/sender"
	"github.com/go-tangra/go-tangra-cpucaps/internal/snapshot"
	"github.com/go-tangra/go-tangra-cpucaps/internal/store"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Take a snapshot and store it locally or on a remote server",
	RunE:  runRecord,
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Record a snapshot now and then on a fixed interval",
	RunE:  runAgent,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored snapshots, newest first",
	RunE:  runHistory,
}

var exportCmd = &cobra.Command{
	Use:   "export ID|UUID",
	Short: "Write a stored snapshot as CBOR or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Purge snapshots older than the specified number of days",
	RunE:  runPurge,
}

var (
	serverAddr    string
	agentInterval time.Duration
	historyHost   string
	historyLimit  int
	exportFormat  string
	exportOutput  string
	purgeDays     int
)

func init() {
	for _, c := range []*cobra.Command{recordCmd, agentCmd} {
		c.Flags().StringVar(&serverAddr, "server", "", "submit to this cpucaps server instead of the local database")
		c.Flags().String("api-secret", "", "X-API-Key for the remote server")
		c.Flags().Bool("platform", true, "include SMBIOS processor sockets")
	}
	agentCmd.Flags().DurationVar(&agentInterval, "interval", time.Hour, "time between snapshots")

	historyCmd.Flags().StringVar(&historyHost, "host", "", "only snapshots of this hostname")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of snapshots to list")

	exportCmd.Flags().StringVar(&exportFormat, "format", "cbor", "output format: cbor or json")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")

	purgeCmd.Flags().IntVar(&purgeDays, "days", 90, "purge snapshots older than this many days")
}

// newRecorder builds a recorder whose sink is either the remote server
// named by --server or the configured database. The returned func
// releases the sink.
func newRecorder(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*daemon.Recorder, func(), error) {
	cpu, err := newCPU(cfg)
	if err != nil {
		return nil, nil, err
	}

	r := &daemon.Recorder{Source: cpu}
	if withPlatform, _ := cmd.Flags().GetBool("platform"); withPlatform {
		r.Options = snapshot.WithPlatform()
	}

	if serverAddr != "" {
		client, err := sender.New(ctx, serverAddr, cfg.ApiSecret)
		if err != nil {
			return nil, nil, err
		}
		r.Sink = client
		return r, func() { client.Close() }, nil
	}

	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	r.Sink = daemon.StoreSink{Store: db}
	return r, func() { db.Close() }, nil
}

func runRecord(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	r, closeSink, err := newRecorder(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	res, err := r.Record(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Recorded snapshot %d (%s) at %s\n", res.ID, res.Snapshot.ID, res.StoredAt.Format(time.RFC3339))
	if res.CollectErr != nil {
		fmt.Fprintf(os.Stderr, "warning: snapshot is partial: %v\n", res.CollectErr)
	}
	return nil
}

func runAgent(cmd *cobra.Command, _ []string) error {
	if agentInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, closeSink, err := newRecorder(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	log.Printf("Recording a snapshot every %s", agentInterval)
	daemon.Run(ctx, r, agentInterval)
	return nil
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	records, total, err := db.List(context.Background(), store.ListFilter{
		Hostname: historyHost,
		PageSize: historyLimit,
	})
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHOST\tCOLLECTED\tVENDOR\tEXTENSIONS\tCOMPLETE")
	for i := range records {
		s := convert.RecordToSummary(&records[i])
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%t\n",
			s.ID, s.Hostname, humanize.Time(s.CollectedAt), s.Vendor,
			cpucaps.Capabilities(s.Capabilities).Count(), s.Complete)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if total > len(records) {
		fmt.Printf("(%d of %d snapshots shown)\n", len(records), total)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	// Numeric arguments are row IDs; anything else is a snapshot UUID.
	var rec *store.SnapshotRecord
	if id, perr := strconv.ParseInt(args[0], 10, 64); perr == nil {
		rec, err = db.Get(context.Background(), id)
	} else {
		rec, err = db.GetByUUID(context.Background(), args[0])
	}
	if err != nil {
		return fmt.Errorf("get snapshot %s: %w", args[0], err)
	}
	id := rec.ID
	snap, err := convert.RecordToSnapshot(rec)
	if err != nil {
		return err
	}

	var data []byte
	switch exportFormat {
	case "cbor":
		data, err = codec.Marshal(snap)
	case "json":
		data, err = json.MarshalIndent(snap, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown format %q (want cbor or json)", exportFormat)
	}
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if exportOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOutput, err)
	}
	fmt.Fprintf(os.Stderr, "snapshot %d written to %s (%s)\n", id, exportOutput, humanize.Bytes(uint64(len(data))))
	return nil
}

func runPurge(cmd *cobra.Command, _ []string) error {
	db, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Purge(context.Background(), time.Duration(purgeDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	fmt.Printf("Purged %d snapshots older than %d days\n", n, purgeDays)
	return nil
}
