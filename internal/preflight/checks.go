package preflight

import (
	"context"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"framewatch/internal/realtime"
	"framewatch/internal/vision"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// DevicePath returns the V4L2 node for a camera index.
func DevicePath(index int) string {
	return fmt.Sprintf("/dev/video%d", index)
}

// CheckVideoDevice verifies the camera node exists, is a character device,
// and is readable and writable by this process.
func CheckVideoDevice(index int) Result {
	const name = "Camera device"
	path := DevicePath(index)
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a character device)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v; add the user to the video group)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckReplayDir verifies a directory source has at least one file.
func CheckReplayDir(path string) Result {
	const name = "Replay directory"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "camera.replay_dir not set"}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	files := 0
	for _, e := range entries {
		if !e.IsDir() {
			files++
		}
	}
	if files == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no files)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d files)", path, files)}
}

// CheckBackend verifies the processing backend was compiled in.
func CheckBackend(name string) Result {
	const check = "Vision backend"
	available := vision.Backends()
	if slices.Contains(available, name) {
		return Result{Name: check, Passed: true, Detail: name}
	}
	detail := fmt.Sprintf("%s not compiled in (available: %s)", name, strings.Join(available, ", "))
	if name == "opencv" {
		detail += "; rebuild with -tags opencv"
	}
	return Result{Name: check, Detail: detail}
}

// CheckRealtime reports whether SCHED_FIFO at priority is permitted. It is
// optional: stages fall back to the default scheduler.
func CheckRealtime(priority int) Result {
	const name = "Realtime scheduling"
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_RTPRIO, &lim); err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("error: %v", err)}
	}
	if os.Geteuid() == 0 || lim.Cur >= uint64(priority) {
		detail := fmt.Sprintf("priority %d allowed", priority)
		if info, err := realtime.Current(); err == nil {
			detail += fmt.Sprintf(" (now %s on %d cpus)", info.Policy, info.CPUCount)
		}
		return Result{Name: name, Optional: true, Passed: true, Detail: detail}
	}
	return Result{
		Name:     name,
		Optional: true,
		Detail:   fmt.Sprintf("RLIMIT_RTPRIO is %d, below priority %d; grant CAP_SYS_NICE or raise rtprio", lim.Cur, priority),
	}
}

// CheckBind verifies the metrics address can be listened on.
func CheckBind(ctx context.Context, addr string) Result {
	const name = "Metrics endpoint"
	lc := net.ListenConfig{}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ln, err := lc.Listen(checkCtx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	_ = ln.Close()
	return Result{Name: name, Optional: true, Passed: true, Detail: addr}
}
