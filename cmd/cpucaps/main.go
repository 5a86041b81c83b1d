package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-tangra/go-tangra-cpucaps/internal/config"
	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
	_ "github.com/go-tangra/go-tangra-cpucaps/internal/probe"
)

var (
	version    = "dev"
	commitHash = "unknown"
	buildDate  = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cpucaps",
	Short: "cpucaps - host CPU identity and instruction-set capabilities",
	Long: `cpucaps reports the architecture, core count, vendor and brand strings,
family/model/stepping and supported instruction-set extensions of the host
CPU. Snapshots can be recorded into a local SQLite database, pushed to a
remote cpucaps server, or served over HTTP.

Run without a subcommand to print the capabilities (equivalent to 'show').`,
	SilenceUsage: true,
	RunE:         runShow,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cpucaps %s (commit: %s, built: %s, backend ABI: %s)\n",
			version, commitHash, buildDate, cpucaps.RequiredVersion())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/cpucaps.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default cpucaps.db)")
	rootCmd.PersistentFlags().String("required-version", "", "backend ABI version this build requires (default 2.0)")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(hasCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newCPU(cfg *config.Config) (*cpucaps.CPU, error) {
	cpu, err := cpucaps.New(cpucaps.WithRequiredVersion(cfg.Required()))
	if err != nil {
		return nil, fmt.Errorf("select cpu backend: %w", err)
	}
	return cpu, nil
}
