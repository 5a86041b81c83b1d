package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
	"github.com/go-tangra/go-tangra-cpucaps/internal/snapshot"
)

var (
	showJSON     bool
	showPlatform bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the host CPU capabilities",
	Long: `Print every CPU attribute. An attribute that cannot be determined is
reported as an error on stderr; the others are still printed and the exit
status is 1.`,
	RunE: runShow,
}

var hasCmd = &cobra.Command{
	Use:   "has FEATURE...",
	Short: "Exit 0 only if the CPU supports every named extension",
	Example: `  cpucaps has avx2 fma3
  cpucaps has AVX512_F AVX512_BW`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHas,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, showCmd} {
		c.Flags().BoolVar(&showJSON, "json", false, "print the snapshot as JSON")
		c.Flags().BoolVar(&showPlatform, "platform", false, "include SMBIOS processor sockets (may need root)")
	}
}

func runShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cpu, err := newCPU(cfg)
	if err != nil {
		return err
	}

	opts := snapshot.Options{}
	if showPlatform {
		opts = snapshot.WithPlatform()
	}
	snap, collectErr := snapshot.Collect(cpu, opts)

	if showJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
	} else {
		p := newPrinter(os.Stdout, os.Stderr, term.IsTerminal(int(os.Stdout.Fd())))
		p.snapshot(snap)
	}

	if collectErr != nil {
		return fmt.Errorf("%d attribute(s) could not be determined", len(snap.Errors))
	}
	return nil
}

func runHas(cmd *cobra.Command, args []string) error {
	var want cpucaps.Capabilities
	for _, name := range args {
		c, err := cpucaps.ParseCapability(name)
		if err != nil {
			return err
		}
		want |= c
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cpu, err := newCPU(cfg)
	if err != nil {
		return err
	}
	caps, err := cpu.Capabilities()
	if err != nil {
		return err
	}

	if missing := want &^ caps; missing != 0 {
		return fmt.Errorf("missing capabilities: %s", strings.Join(missing.Names(), ", "))
	}
	return nil
}

// printer writes the human-readable report. Failed attributes go to errW.
type printer struct {
	w, errW io.Writer
	header  lipgloss.Style
	styled  bool
}

func newPrinter(w, errW io.Writer, styled bool) *printer {
	return &printer{
		w:      w,
		errW:   errW,
		header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		styled: styled,
	}
}

func (p *printer) section(name string) {
	title := "[" + name + "]"
	if p.styled {
		title = p.header.Render(title)
	}
	fmt.Fprintln(p.w, title)
}

// line prints label: value unless attr failed, in which case the error is
// reported instead.
func (p *printer) line(snap *snapshot.Snapshot, attr, label string, value func() string) {
	if msg, failed := snap.Errors[attr]; failed {
		fmt.Fprintf(p.errW, "Error: %s: %s\n", label, msg)
		return
	}
	fmt.Fprintf(p.w, "%s: %s\n", label, value())
}

func (p *printer) snapshot(snap *snapshot.Snapshot) {
	p.section("CPUCapabilities")
	p.line(snap, cpucaps.AttrArchitecture, "Architecture", func() string { return snap.Architecture })
	p.line(snap, cpucaps.AttrCoreCount, "Count", func() string { return fmt.Sprint(snap.CoreCount) })
	p.line(snap, cpucaps.AttrVendor, "VendorString", func() string { return quoteOrNA(snap.Vendor) })
	p.line(snap, cpucaps.AttrBrand, "BrandString", func() string { return quoteOrNA(snap.Brand) })
	p.line(snap, cpucaps.AttrIdentification, "FamilyAndModel", func() string {
		id := snap.Identification
		if id == nil {
			return "N/A"
		}
		return fmt.Sprintf("Family=%d, Model=%d, Stepping=%d", id.Family, id.Model, id.Stepping)
	})
	p.line(snap, cpucaps.AttrCapabilities, "Capabilities", func() string {
		return cpucaps.Capabilities(snap.Capabilities).String()
	})
	fmt.Fprintln(p.w)

	p.section("Debug")
	fmt.Fprintf(p.w, "IsX64Process: %t\n", snap.WideProcess)
	p.line(snap, cpucaps.AttrVersion, "BackendVersion", func() string { return snap.BackendVersion })
	fmt.Fprintln(p.w)

	if len(snap.Processors) == 0 && snap.Errors["processors"] == "" {
		return
	}
	p.section("Platform")
	p.line(snap, "processors", "Sockets", func() string { return fmt.Sprint(len(snap.Processors)) })
	for _, proc := range snap.Processors {
		if !proc.Populated {
			fmt.Fprintf(p.w, "%s: empty\n", proc.Socket)
			continue
		}
		fmt.Fprintf(p.w, "%s: %s (%d cores, %d threads, %d MHz max)\n",
			proc.Socket, strings.TrimSpace(proc.Version), proc.CoreCount, proc.ThreadCount, proc.MaxSpeedMHz)
	}
	fmt.Fprintln(p.w)
}

func quoteOrNA(s string) string {
	if s == "" {
		return `"N/A"`
	}
	return `"` + s + `"`
}
