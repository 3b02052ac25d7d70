package daemon

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pilebones/go-udev/netlink"

	"framewatch/internal/logging"
)

const (
	actionAdd    = "add"
	actionRemove = "remove"
)

// netlinkMonitor listens for udev netlink events on the video4linux
// subsystem and reports attach and detach of the configured camera.
type netlinkMonitor struct {
	logger  *slog.Logger
	handler func(action, device string)
	device  string
	present atomic.Bool

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newNetlinkMonitor(device string, logger *slog.Logger, handler func(action, device string)) *netlinkMonitor {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &netlinkMonitor{
		logger:  logging.NewComponentLogger(logger, "netlink-monitor"),
		handler: handler,
		device:  device,
	}
	_, err := os.Stat(device)
	m.present.Store(err == nil)
	return m
}

// Start begins listening for udev netlink events. A missing netlink socket
// is logged and otherwise ignored.
func (m *netlinkMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; camera hotplug will not be tracked",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the process has permission to open netlink sockets"),
			logging.String(logging.FieldImpact, "camera detach is only visible as failed reads"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("netlink monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
		logging.String("device", m.device),
	)
	return nil
}

// Stop shuts down the netlink monitor.
func (m *netlinkMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("netlink monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the netlink monitor is active.
func (m *netlinkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Present reports whether the camera node was present at the last event.
func (m *netlinkMonitor) Present() bool {
	return m != nil && m.present.Load()
}

func (m *netlinkMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=video4linux with ACTION=add|remove.
func (m *netlinkMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *netlinkMonitor) handleEvent(uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" || devname != m.device {
		m.logger.Debug("ignoring video4linux event",
			logging.String("device", devname),
			logging.String("action", string(uevent.Action)),
		)
		return
	}

	action := strings.ToLower(string(uevent.Action))
	switch action {
	case actionAdd:
		m.present.Store(true)
	case actionRemove:
		m.present.Store(false)
	default:
		return
	}
	if m.handler != nil {
		m.handler(action, devname)
	}
}

// extractDeviceName gets the device path from a uevent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/dev/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
