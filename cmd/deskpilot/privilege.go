package main

import (
	"os"
	"runtime"

	"github.com/deskpilot/deskpilot/runtime/logger"
)

// warnIfUnprivileged logs a warning when the agent is not running as root.
// Some tools (power, brightness, closing other users' processes) need it.
// Elevation is left to the operator.
func warnIfUnprivileged() {
	if runtime.GOOS == "windows" {
		// os.Geteuid is not meaningful on Windows.
		logger.Debug("Privilege check skipped on windows")
		return
	}
	if os.Geteuid() != 0 {
		logger.Warn("Not running as root; some system tools may fail")
	}
}
