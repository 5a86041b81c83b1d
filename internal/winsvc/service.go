// Package winsvc runs the cpucaps API as a Windows service. On other
// platforms every operation except IsWindowsService reports an error.
package winsvc

import (
	"strings"
)

// Service describes one installable service.
type Service struct {
	Name        string
	DisplayName string
	Description string
	// Args are passed to the executable when the service manager starts it.
	Args []string
}

// CPUCaps is the service definition used by the cpucaps command.
var CPUCaps = Service{
	Name:        "cpucaps",
	DisplayName: "CPU Capabilities API",
	Description: "Serves host CPU identity and instruction-set capabilities over HTTP.",
	Args:        []string{"serve"},
}

type level int

const (
	levelInfo level = iota
	levelWarning
	levelError
)

// levelOf classifies a log line by its conventional prefix.
func levelOf(line string) level {
	l := strings.ToLower(strings.TrimSpace(line))
	switch {
	case strings.HasPrefix(l, "error"), strings.Contains(l, " error:"):
		return levelError
	case strings.HasPrefix(l, "warning"):
		return levelWarning
	default:
		return levelInfo
	}
}
