package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/go-tangra/go-tangra-cpucaps/cmd/cpucaps/assets"
	"github.com/go-tangra/go-tangra-cpucaps/internal/server"
	"github.com/go-tangra/go-tangra-cpucaps/internal/winsvc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the CPU capabilities and snapshot history over HTTP",
	RunE:  runServe,
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage Windows service installation",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install as a Windows service",
	RunE:  runServiceInstall,
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the Windows service",
	RunE:  runServiceUninstall,
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the Windows service state",
	RunE:  runServiceStatus,
}

func init() {
	serveCmd.Flags().String("listen", "", "HTTP listen address (default :9560)")
	serveCmd.Flags().String("api-secret", "", "secret for REST API clients (empty = no auth)")
	serveCmd.Flags().Bool("swagger", true, "serve Swagger UI at /docs/")
	serveCmd.Flags().Duration("interval", 0, "record a local snapshot this often (0 = never)")
	serveCmd.Flags().Int("retention-days", 0, "purge snapshots older than this many days (0 = keep)")

	serviceCmd.AddCommand(serviceInstallCmd)
	serviceCmd.AddCommand(serviceUninstallCmd)
	serviceCmd.AddCommand(serviceStatusCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cpu, err := newCPU(cfg)
	if err != nil {
		return err
	}

	// Windows service mode.
	if winsvc.IsWindowsService() {
		winsvc.CPUCaps.SetupEventLog()
		return winsvc.CPUCaps.Run(func(ctx context.Context) error {
			return server.Run(ctx, cfg, cpu, assets.OpenApiData)
		})
	}

	// Interactive mode: shut down on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, cfg, cpu, assets.OpenApiData)
}

func runServiceInstall(_ *cobra.Command, _ []string) error {
	service := winsvc.CPUCaps
	if cfgFile != "" {
		service.Args = append(append([]string(nil), service.Args...), "--config", cfgFile)
	}

	if err := service.Install(); err != nil {
		return err
	}

	log.Printf("Service %s installed successfully", service.Name)
	return nil
}

func runServiceUninstall(_ *cobra.Command, _ []string) error {
	if err := winsvc.CPUCaps.Uninstall(); err != nil {
		return err
	}
	log.Printf("Service %s uninstalled successfully", winsvc.CPUCaps.Name)
	return nil
}

func runServiceStatus(_ *cobra.Command, _ []string) error {
	state, err := winsvc.CPUCaps.Status()
	if err != nil {
		return err
	}
	log.Printf("Service %s is %s", winsvc.CPUCaps.Name, state)
	return nil
}
