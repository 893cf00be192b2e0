package desktop

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// maxListedProcesses caps list_active_processes output.
const maxListedProcesses = 50

// ProcessInfo is one running process.
type ProcessInfo struct {
	PID  int32
	Name string
}

// ProcessTable lists and terminates local processes.
type ProcessTable interface {
	List(ctx context.Context) ([]ProcessInfo, error)
	Terminate(ctx context.Context, pid int32) error
}

// gopsutilTable implements ProcessTable with gopsutil.
type gopsutilTable struct{}

// NewProcessTable returns the gopsutil-backed process table.
func NewProcessTable() ProcessTable { return gopsutilTable{} }

func (gopsutilTable) List(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// exited or access denied
			continue
		}
		out = append(out, ProcessInfo{PID: p.Pid, Name: name})
	}
	return out, nil
}

func (gopsutilTable) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.TerminateWithContext(ctx)
}

func (t *Toolset) openApplication(ctx context.Context, args Args) (any, error) {
	name := args.String("app_name", "")
	cmd, cmdArgs := openCommand(runtime.GOOS, name)
	if err := t.runner.Start(ctx, cmd, cmdArgs...); err != nil {
		return nil, fmt.Errorf("error opening application: %w", err)
	}
	return "Opened application: " + name, nil
}

// openCommand returns the launcher invocation for an application name.
func openCommand(goos, name string) (string, []string) {
	switch goos {
	case "windows":
		return "cmd", []string{"/c", "start", "", name}
	case "darwin":
		return "open", []string{"-a", name}
	default:
		return name, nil
	}
}

// closeApplication terminates by PID when the argument is numeric, otherwise
// every process whose name contains it (case-insensitive).
func (t *Toolset) closeApplication(ctx context.Context, args Args) (any, error) {
	target := strings.TrimSpace(args.String("app_name_or_pid", ""))

	if pid, err := strconv.ParseInt(target, 10, 32); err == nil {
		if err := t.procs.Terminate(ctx, int32(pid)); err != nil {
			return nil, fmt.Errorf("error closing application: %w", err)
		}
		return fmt.Sprintf("Terminated process with PID %d", pid), nil
	}

	procs, err := t.procs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error closing application: %w", err)
	}
	needle := strings.ToLower(target)
	killed := 0
	for _, p := range procs {
		if !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		if err := t.procs.Terminate(ctx, p.PID); err != nil {
			continue
		}
		killed++
	}
	if killed == 0 {
		return fmt.Sprintf("No process found matching '%s'", target), nil
	}
	return fmt.Sprintf("Terminated %d processes matching '%s'", killed, target), nil
}

func (t *Toolset) listActiveProcesses(ctx context.Context, _ Args) (any, error) {
	procs, err := t.procs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing processes: %w", err)
	}
	if len(procs) > maxListedProcesses {
		procs = procs[:maxListedProcesses]
	}
	lines := make([]string, len(procs))
	for i, p := range procs {
		lines[i] = fmt.Sprintf("%d: %s", p.PID, p.Name)
	}
	return strings.Join(lines, "\n"), nil
}
