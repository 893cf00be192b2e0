package version

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/deskpilot/deskpilot/runtime/logger"
)

func withVersionVars(t *testing.T, v, c, date string) {
	t.Helper()
	origVersion, origCommit, origDate := version, gitCommit, buildDate
	t.Cleanup(func() {
		version, gitCommit, buildDate = origVersion, origCommit, origDate
	})
	version, gitCommit, buildDate = v, c, date
}

func TestGetVersion(t *testing.T) {
	withVersionVars(t, devVersion, "", "")
	if got := GetVersion(); got == "" {
		t.Error("GetVersion() returned empty string")
	}
}

func TestGetVersion_Ldflags(t *testing.T) {
	withVersionVars(t, "v1.2.3", "", "")
	if got := GetVersion(); got != "v1.2.3" {
		t.Errorf("GetVersion() = %q, want v1.2.3", got)
	}
}

func TestGetVersionInfo_Ldflags(t *testing.T) {
	withVersionVars(t, "v1.2.3", "abc1234", "2026-01-02")
	info := GetVersionInfo()
	for _, want := range []string{"deskpilot version v1.2.3", "commit: abc1234", "built: 2026-01-02", "platform: "} {
		if !strings.Contains(info, want) {
			t.Errorf("GetVersionInfo() = %q, missing %q", info, want)
		}
	}
	if strings.Contains(info, "dirty") {
		t.Errorf("ldflags commit must not be marked dirty: %q", info)
	}
}

func TestGetBuildInfo_Ldflags(t *testing.T) {
	withVersionVars(t, "v1.2.3", "abc1234", "2026-01-02")
	attrs := GetBuildInfo()
	want := []any{"version", "v1.2.3", "commit", "abc1234", "built", "2026-01-02"}
	if len(attrs) != len(want) {
		t.Fatalf("GetBuildInfo() = %v, want %v", attrs, want)
	}
	for i := range want {
		if attrs[i] != want[i] {
			t.Errorf("attrs[%d] = %v, want %v", i, attrs[i], want[i])
		}
	}
}

func TestLogStartup(t *testing.T) {
	withVersionVars(t, "v1.2.3", "abc1234", "")
	var buf bytes.Buffer
	logger.SetOutput(&buf, slog.LevelDebug)
	t.Cleanup(func() { logger.SetOutput(os.Stderr, slog.LevelInfo) })

	LogStartup(context.Background())

	out := buf.String()
	if !strings.Contains(out, "deskpilot starting") || !strings.Contains(out, "v1.2.3") {
		t.Errorf("unexpected startup log: %q", out)
	}
}
