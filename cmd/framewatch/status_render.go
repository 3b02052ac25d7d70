package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"framewatch/internal/pipeline"
	"framewatch/internal/preflight"
	"framewatch/internal/store"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// pipelineLines summarizes a live or just-finished run.
func pipelineLines(st *pipeline.Status, colorize bool) []string {
	lines := []string{renderStatusLine("Run", statusInfo, st.RunID, colorize)}

	stateKind := statusOK
	if st.State != "running" {
		stateKind = statusInfo
	}
	state := st.State
	if st.StopReason != "" {
		state += " (" + st.StopReason + ")"
	}
	lines = append(lines, renderStatusLine("State", stateKind, state, colorize))
	if !st.StartedAt.IsZero() {
		lines = append(lines, renderStatusLine("Uptime", statusInfo,
			fmt.Sprintf("%s (since %s)", formatDuration(st.Uptime), formatTimestamp(st.StartedAt)), colorize))
	}

	target := "unbounded"
	if st.MaxFrames > 0 {
		target = strconv.Itoa(st.MaxFrames)
	}
	lines = append(lines,
		renderStatusLine("Frames written", statusInfo, fmt.Sprintf("%d of %s", st.Completed, target), colorize),
		renderStatusLine("Ticks", statusInfo, fmt.Sprintf("%d (late %d, max jitter %s)", st.Ticks, st.Jitter.Late, st.Jitter.Max), colorize),
		renderStatusLine("Ring", statusInfo, fmt.Sprintf("%d/%d, %d evicted", st.Ring.Size, st.Ring.Capacity, st.Ring.Evictions), colorize),
	)

	ledgerKind := statusOK
	if st.Ledger.DoubleReleases > 0 {
		ledgerKind = statusError
	} else if st.State == "stopped" && st.Ledger.Outstanding != 0 {
		ledgerKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Buffers", ledgerKind,
		fmt.Sprintf("%d allocated, %d outstanding, %d double releases", st.Ledger.Allocated, st.Ledger.Outstanding, st.Ledger.DoubleReleases), colorize))
	if st.VideoPath != "" {
		lines = append(lines, renderStatusLine("Video", statusInfo, st.VideoPath, colorize))
	}
	if st.Archive != "" {
		lines = append(lines, renderStatusLine("Archive", statusOK, st.Archive, colorize))
	}
	return lines
}

func stageTable(st *pipeline.Status) string {
	phase := make(map[string]string, len(st.Health))
	for _, h := range st.Health {
		phase[h.Name] = string(h.Phase)
	}
	rate := make(map[string]string, len(st.Divisors))
	for name, div := range st.Divisors {
		rate[name] = "/" + strconv.FormatUint(div, 10)
	}
	rows := make([][]string, 0, len(st.Stages))
	for _, s := range st.Stages {
		rows = append(rows, []string{
			s.Name,
			rate[s.Name],
			strconv.FormatUint(s.Runs, 10),
			strconv.FormatUint(s.Units, 10),
			strconv.FormatUint(s.Timeouts, 10),
			strconv.FormatUint(s.DeadlineMisses, 10),
			formatDuration(s.AverageRun),
			phase[s.Name],
		})
	}
	return renderTable([]column{
		left("Stage"), right("Rate"), right("Runs"), right("Units"),
		right("Timeouts"), right("Misses"), right("Avg"), left("Phase"),
	}, rows)
}

func channelTable(st *pipeline.Status) string {
	rows := make([][]string, 0, len(st.Channels))
	for _, c := range st.Channels {
		rows = append(rows, []string{
			c.Name,
			fmt.Sprintf("%d/%d", c.Len, c.Capacity),
			strconv.FormatUint(c.Sent, 10),
			strconv.FormatUint(c.Received, 10),
			strconv.FormatUint(c.Rejected, 10),
		})
	}
	return renderTable([]column{
		left("Channel"), right("Depth"), right("Sent"), right("Received"), right("Rejected"),
	}, rows)
}

func lastRunLines(run *store.Run, colorize bool) []string {
	kind := statusInfo
	switch run.Status {
	case store.RunCompleted, store.RunStopped:
		kind = statusOK
	case store.RunFailed:
		kind = statusError
	}
	lines := []string{
		renderStatusLine("Run", statusInfo, run.ID, colorize),
		renderStatusLine("Status", kind, string(run.Status), colorize),
		renderStatusLine("Started", statusInfo, formatTimestamp(run.StartedAt), colorize),
		renderStatusLine("Duration", statusInfo, formatDuration(run.Duration()), colorize),
		renderStatusLine("Frames written", statusInfo, strconv.FormatUint(run.Completed, 10), colorize),
	}
	if run.ErrorMessage != "" {
		lines = append(lines, renderStatusLine("Error", statusError, run.ErrorMessage, colorize))
	}
	return lines
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
			if r.Optional {
				kind = statusWarn
			}
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}
