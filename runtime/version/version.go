// Package version reports the deskpilot build. The variables can be set at
// build time with ldflags:
//
//	go build -ldflags "-X github.com/deskpilot/deskpilot/runtime/version.version=1.0.0"
package version

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/deskpilot/deskpilot/runtime/logger"
)

const (
	devVersion     = "dev"
	shortCommitLen = 7
	vcsRevisionKey = "vcs.revision"
	vcsModifiedKey = "vcs.modified"
)

// Build-time variables.
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the release version, falling back to the module version
// recorded in the build info.
func GetVersion() string {
	if version != devVersion {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return devVersion
}

// commit returns the ldflags commit or the short VCS revision.
func commit() string {
	if gitCommit != "" {
		return gitCommit
	}
	return buildSetting(vcsRevisionKey, func(v string) string {
		return v[:min(shortCommitLen, len(v))]
	})
}

func dirty() bool {
	return gitCommit == "" && buildSetting(vcsModifiedKey, nil) == "true"
}

func buildSetting(key string, shape func(string) string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key && s.Value != "" {
			if shape != nil {
				return shape(s.Value)
			}
			return s.Value
		}
	}
	return ""
}

// GetVersionInfo returns the multi-line text printed by `deskpilot version`.
func GetVersionInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "deskpilot version %s", GetVersion())
	if c := commit(); c != "" {
		fmt.Fprintf(&b, "\ncommit: %s", c)
		if dirty() {
			b.WriteString(" (dirty)")
		}
	}
	if buildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", buildDate)
	}
	fmt.Fprintf(&b, "\nplatform: %s/%s %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
	return b.String()
}

// GetBuildInfo returns the version details as slog key/value pairs.
func GetBuildInfo() []any {
	attrs := []any{"version", GetVersion()}
	if c := commit(); c != "" {
		attrs = append(attrs, "commit", c)
	}
	if dirty() {
		attrs = append(attrs, "dirty", true)
	}
	if buildDate != "" {
		attrs = append(attrs, "built", buildDate)
	}
	return attrs
}

// LogStartup logs the build at debug level.
func LogStartup(ctx context.Context) {
	logger.DebugContext(ctx, "deskpilot starting", GetBuildInfo()...)
}
