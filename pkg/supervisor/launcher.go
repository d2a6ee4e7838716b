package supervisor

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// LaunchSpec describes the worker process to spawn
type LaunchSpec struct {
	Binary      string   // worker binary path
	Queues      []string // queues the process will consume
	Concurrency int      // task slots inside the process
}

// Launcher abstracts OS-level process spawn/terminate/liveness. The
// implementation is picked once at startup based on the platform; no
// string-compared OS branching inside the lifecycle code.
type Launcher interface {
	Spawn(spec LaunchSpec) (pid int, command string, err error)
	Terminate(pid int) error // graceful
	Kill(pid int) error      // forceful
	IsAlive(pid int) bool
	DefaultConcurrency() int
	PoolMode() string // "prefork" or "solo"
}

// NewLauncher returns the launcher for the current platform
func NewLauncher() Launcher {
	if runtime.GOOS == "windows" {
		return &windowsLauncher{}
	}
	return &posixLauncher{}
}

// posixLauncher manages prefork-pool workers on Linux/macOS
type posixLauncher struct{}

func (l *posixLauncher) Spawn(spec LaunchSpec) (int, string, error) {
	args := buildWorkerArgs(spec, l.PoolMode(), l.DefaultConcurrency())
	cmd := exec.Command(spec.Binary, args...)
	if err := cmd.Start(); err != nil {
		return 0, "", fmt.Errorf("spawn worker: %w", err)
	}
	// Reap the child when it exits so it does not linger as a zombie
	go func() { _ = cmd.Wait() }()
	return cmd.Process.Pid, spec.Binary + " " + strings.Join(args, " "), nil
}

func (l *posixLauncher) Terminate(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return fmt.Errorf("terminate pid %d: %w", pid, err)
	}
	if err := p.SendSignal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("terminate pid %d: %w", pid, err)
	}
	return nil
}

func (l *posixLauncher) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}

func (l *posixLauncher) IsAlive(pid int) bool {
	return pidRunning(pid)
}

func (l *posixLauncher) DefaultConcurrency() int {
	return runtime.NumCPU()
}

func (l *posixLauncher) PoolMode() string {
	return "prefork"
}

// windowsLauncher manages solo-mode workers. Windows cannot safely run a
// forking process pool for this workload, so each process is single-slot
// unless the caller overrides concurrency with a threaded mode.
type windowsLauncher struct{}

func (l *windowsLauncher) Spawn(spec LaunchSpec) (int, string, error) {
	args := buildWorkerArgs(spec, l.PoolMode(), l.DefaultConcurrency())
	cmd := exec.Command(spec.Binary, args...)
	if err := cmd.Start(); err != nil {
		return 0, "", fmt.Errorf("spawn worker: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return cmd.Process.Pid, spec.Binary + " " + strings.Join(args, " "), nil
}

// Terminate kills the whole process tree; Windows has no SIGTERM equivalent
// that console workers reliably honor
func (l *windowsLauncher) Terminate(pid int) error {
	out, err := exec.Command("taskkill", "/T", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("taskkill pid %d: %v (%s)", pid, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (l *windowsLauncher) Kill(pid int) error {
	out, err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("taskkill /F pid %d: %v (%s)", pid, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (l *windowsLauncher) IsAlive(pid int) bool {
	return pidRunning(pid)
}

func (l *windowsLauncher) DefaultConcurrency() int {
	return 1
}

func (l *windowsLauncher) PoolMode() string {
	return "solo"
}

// buildWorkerArgs renders the worker command line shared by both launchers
func buildWorkerArgs(spec LaunchSpec, pool string, defaultConcurrency int) []string {
	concurrency := spec.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return []string{
		"consume",
		"--queues", strings.Join(spec.Queues, ","),
		"--concurrency", strconv.Itoa(concurrency),
		"--pool", pool,
	}
}

// pidRunning checks process liveness via gopsutil
func pidRunning(pid int) bool {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	return err == nil && running
}
