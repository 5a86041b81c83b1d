//go:build windows

package winsvc

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"
)

// eventLogWriter sends standard logger output to the Windows Event Log,
// choosing the event type from the line prefix.
type eventLogWriter struct {
	elog *eventlog.Log
}

func (w *eventLogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	var err error
	switch levelOf(msg) {
	case levelError:
		err = w.elog.Error(3, msg)
	case levelWarning:
		err = w.elog.Warning(2, msg)
	default:
		err = w.elog.Info(1, msg)
	}
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetupEventLog redirects the standard logger to the service's event log
// source. Event log entries carry their own timestamps, so log flags are
// cleared. On failure logging stays on stderr.
func (s Service) SetupEventLog() {
	elog, err := eventlog.Open(s.Name)
	if err != nil {
		return
	}
	log.SetOutput(&eventLogWriter{elog: elog})
	log.SetFlags(0)
}

// IsWindowsService reports whether the process was started by the
// service control manager.
func IsWindowsService() bool {
	ok, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return ok
}

type serviceHandler struct {
	name string
	run  func(ctx context.Context) error
}

func (h *serviceHandler) Execute(_ []string, req <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	const accepted = svc.AcceptStop | svc.AcceptShutdown
	status <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.run(ctx)
	}()

	status <- svc.Status{State: svc.Running, Accepts: accepted}

	for {
		select {
		case err := <-errCh:
			status <- svc.Status{State: svc.StopPending}
			if err != nil {
				log.Printf("Error: service %s stopped: %v", h.name, err)
				return false, 1
			}
			return false, 0

		case cr := <-req:
			switch cr.Cmd {
			case svc.Interrogate:
				status <- cr.CurrentStatus
			case svc.Stop, svc.Shutdown:
				status <- svc.Status{State: svc.StopPending}
				cancel()
				select {
				case <-errCh:
				case <-time.After(30 * time.Second):
					log.Printf("Warning: service %s timed out waiting for graceful shutdown", h.name)
				}
				return false, 0
			}
		}
	}
}

// Run hands the process to the service control manager and blocks until
// the service stops. run's context is cancelled on a stop request.
func (s Service) Run(run func(ctx context.Context) error) error {
	return svc.Run(s.Name, &serviceHandler{name: s.Name, run: run})
}

// Install registers the running executable as an auto-start service and
// creates its event log source.
func (s Service) Install() error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("determine executable path: %w", err)
	}

	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to SCM: %w", err)
	}
	defer m.Disconnect()

	existing, err := m.OpenService(s.Name)
	if err == nil {
		existing.Close()
		return fmt.Errorf("service %s already exists", s.Name)
	}

	cfg := mgr.Config{
		DisplayName: s.DisplayName,
		Description: s.Description,
		StartType:   mgr.StartAutomatic,
	}

	service, err := m.CreateService(s.Name, exePath, cfg, s.Args...)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	defer service.Close()

	// Restart on the first two failures, reset after one day.
	_ = service.SetRecoveryActions([]mgr.RecoveryAction{
		{Type: mgr.ServiceRestart, Delay: 10 * time.Second},
		{Type: mgr.ServiceRestart, Delay: 30 * time.Second},
		{Type: mgr.NoAction},
	}, 86400)

	if err := eventlog.InstallAsEventCreate(s.Name, eventlog.Error|eventlog.Warning|eventlog.Info); err != nil {
		log.Printf("Warning: could not install event log source: %v", err)
	}

	return nil
}

// Uninstall stops the service if it is running, then removes it and its
// event log source.
func (s Service) Uninstall() error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to SCM: %w", err)
	}
	defer m.Disconnect()

	service, err := m.OpenService(s.Name)
	if err != nil {
		return fmt.Errorf("open service %s: %w", s.Name, err)
	}
	defer service.Close()

	status, err := service.Query()
	if err == nil && status.State != svc.Stopped {
		_, _ = service.Control(svc.Stop)
		for range 10 {
			time.Sleep(500 * time.Millisecond)
			status, err = service.Query()
			if err != nil || status.State == svc.Stopped {
				break
			}
		}
	}

	if err := service.Delete(); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}

	_ = eventlog.Remove(s.Name)

	return nil
}

// Status returns the service's current state as reported by the SCM.
func (s Service) Status() (string, error) {
	m, err := mgr.Connect()
	if err != nil {
		return "", fmt.Errorf("connect to SCM: %w", err)
	}
	defer m.Disconnect()

	service, err := m.OpenService(s.Name)
	if err != nil {
		return "", fmt.Errorf("open service %s: %w", s.Name, err)
	}
	defer service.Close()

	status, err := service.Query()
	if err != nil {
		return "", fmt.Errorf("query service: %w", err)
	}
	return stateName(status.State), nil
}

func stateName(state svc.State) string {
	switch state {
	case svc.Stopped:
		return "stopped"
	case svc.StartPending:
		return "start pending"
	case svc.StopPending:
		return "stop pending"
	case svc.Running:
		return "running"
	case svc.ContinuePending:
		return "continue pending"
	case svc.PausePending:
		return "pause pending"
	case svc.Paused:
		return "paused"
	default:
		return fmt.Sprintf("state %d", state)
	}
}
