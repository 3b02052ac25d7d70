package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"framewatch/internal/config"
	"framewatch/internal/ipc"
)

// ErrDaemonNotRunning is returned when nothing answers on the control socket.
var ErrDaemonNotRunning = errors.New("framewatch is not running")

const pollInterval = 200 * time.Millisecond

// Probe reports whether a process answers on socketPath and its pid.
// A missing or refusing socket is not an error.
func Probe(socketPath string) (alive bool, pid int, err error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if unreachable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	return true, status.PID, nil
}

// StopResult describes how a stop request ended.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
	Message          string
}

// StopAndTerminate asks the active run to drain. If the process still
// answers after grace it is killed and its pid, lock, and socket files
// are removed.
func StopAndTerminate(cfg *config.Config, grace time.Duration) (StopResult, error) {
	socketPath := cfg.SocketPath()
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if unreachable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	var result StopResult
	if status, err := client.Status(); err == nil {
		result.PID = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return result, err
	}
	result.StopAcknowledged = resp.Stopped
	result.Message = resp.Message

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if waitGone(ctx, socketPath) {
		return result, nil
	}

	_, livePID, _ := Probe(socketPath)
	if livePID == 0 {
		livePID = result.PID
	}
	killed, err := Kill(cfg.PIDPath(), cfg.LockPath(), livePID)
	if err != nil {
		return result, fmt.Errorf("force stop: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killed
	return result, nil
}

// waitGone polls until the socket stops answering or ctx ends.
func waitGone(ctx context.Context, socketPath string) bool {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if alive, _, err := Probe(socketPath); err == nil && !alive {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Kill sends SIGKILL to the pid recorded in pidPath, or fallbackPID when the
// file is missing, then removes the pid and lock files.
func Kill(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid, err := readPID(pidPath)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	switch {
	case pid <= 0:
		return 0, fmt.Errorf("no pid recorded in %s", pidPath)
	case pid == os.Getpid():
		return 0, fmt.Errorf("pid %d is this process", pid)
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return 0, fmt.Errorf("kill %d: %w", pid, err)
	}
	for _, path := range []string{pidPath, lockPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return pid, fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return pid, nil
}

// readPID returns 0 when the file is absent or holds no usable pid.
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid < 0 {
		return 0, nil
	}
	return pid, nil
}

func unreachable(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED)
}
