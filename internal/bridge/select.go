package bridge

import (
	"os"
	"strings"

	"github.com/bnema/popkeys/internal/config"
	"github.com/charmbracelet/log"
)

// DesktopEnv is the variable naming the running desktop, e.g. "ubuntu:GNOME"
const DesktopEnv = "XDG_CURRENT_DESKTOP"

// Kind identifies which backend a bridge drives
type Kind int

const (
	KindUninitialized Kind = iota
	KindGnomeLike
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindGnomeLike:
		return "gnome"
	case KindGeneric:
		return "generic"
	default:
		return "uninitialized"
	}
}

// SelectKind picks a backend from the desktop indicator. Any desktop whose
// name contains "gnome" gets the settings daemon backend, everything else
// grabs keys on X directly.
func SelectKind(indicator string, logger *log.Logger) Kind {
	if indicator == "" {
		logger.Warn("Desktop environment unknown, using generic backend", "env", DesktopEnv)
		return KindGeneric
	}

	if strings.Contains(strings.ToLower(indicator), "gnome") {
		logger.Debug("Detected GNOME-like desktop", "desktop", indicator)
		return KindGnomeLike
	}

	logger.Debug("Detected non-GNOME desktop", "desktop", indicator)
	return KindGeneric
}

// ResolveKind applies the keys.backend setting, falling back to detection for auto
func ResolveKind(setting, indicator string, logger *log.Logger) Kind {
	switch strings.ToLower(setting) {
	case config.BackendGnome:
		return KindGnomeLike
	case config.BackendGeneric:
		return KindGeneric
	default:
		return SelectKind(indicator, logger)
	}
}

// DetectKind reads the desktop indicator from the environment
func DetectKind(setting string, logger *log.Logger) Kind {
	return ResolveKind(setting, os.Getenv(DesktopEnv), logger)
}
