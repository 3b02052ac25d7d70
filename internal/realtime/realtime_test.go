package realtime

import (
	"runtime"
	"testing"

	"framewatch/internal/config"
)

func TestFromConfigDisabled(t *testing.T) {
	cfg := config.Default()
	if p := FromConfig(&cfg, config.StageAcquire); p.Enabled {
		t.Fatalf("expected disabled policy, got %+v", p)
	}
	if p := FromConfig(nil, config.StageAcquire); p.Enabled {
		t.Fatal("nil config should disable policy")
	}
}

func TestFromConfigRateMonotonicPriorities(t *testing.T) {
	cfg := config.Default()
	cfg.Realtime.Enabled = true
	cfg.Realtime.Priority = 80
	cfg.Realtime.CPUs = []int{1}

	want := map[string]int{
		config.StageAcquire:    80,
		config.StageDifference: 79,
		config.StageProcess:    78,
		config.StageWrite:      77,
	}
	for stage, prio := range want {
		p := FromConfig(&cfg, stage)
		if !p.Enabled || p.Priority != prio || len(p.CPUs) != 1 {
			t.Fatalf("%s: unexpected policy %+v", stage, p)
		}
	}

	cfg.Realtime.Priority = 1
	if p := FromConfig(&cfg, config.StageWrite); p.Priority != 1 {
		t.Fatalf("priority should clamp at 1, got %d", p.Priority)
	}
}

func TestApplyDisabledIsNoop(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := Apply(Policy{}); err != nil {
		t.Fatalf("Apply disabled: %v", err)
	}
}

func TestCurrentReportsPolicy(t *testing.T) {
	if runtime.GOOS != "linux" {
		if _, err := Current(); err == nil {
			t.Fatal("expected Current to be unsupported off linux")
		}
		return
	}
	info, err := Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if info.Policy == "" || info.CPUCount < 1 {
		t.Fatalf("unexpected info %+v", info)
	}
}
