package pipeline

import (
	"time"

	"framewatch/internal/config"
	"framewatch/internal/logging"
	"framewatch/internal/stage"
)

// StopEvent records when a stage was told to stop and when its loop exited.
type StopEvent struct {
	Stage     string    `json:"stage"`
	Signalled time.Time `json:"signalled"`
	Exited    time.Time `json:"exited,omitempty"`
	TimedOut  bool      `json:"timed_out,omitempty"`
}

// stopWaitSlack is added to a stage's release timeout when waiting for its
// loop to exit.
const stopWaitSlack = 5 * time.Second

// shutdown drains the pipeline consumer-first. Write and Process stop
// before the grace delay; Difference and Acquire stop after it. Each stage
// finishes the drain it is in before its loop observes the stop.
func (p *Pipeline) shutdown() {
	p.seq.BeginDrain()

	p.stopStage(config.StageWrite)
	p.stopStage(config.StageProcess)
	if grace := p.cfg.StopGrace(); grace > 0 {
		p.logger.Debug("stop grace delay", logging.Duration("grace", grace))
		time.Sleep(grace)
	}
	p.stopStage(config.StageDifference)
	p.stopStage(config.StageAcquire)

	p.seq.Disarm()
}

func (p *Pipeline) stopStage(name string) {
	r := p.runner(name)
	if r == nil {
		return
	}
	ev := StopEvent{Stage: name, Signalled: time.Now()}
	r.Stop()

	bound := p.cfg.StageTimeout(name) + stopWaitSlack
	timer := time.NewTimer(bound)
	defer timer.Stop()
	select {
	case <-r.Done():
		ev.Exited = time.Now()
	case <-timer.C:
		ev.TimedOut = true
		logging.WarnWithContext(p.logger, "stage did not exit within its stop bound", "stage_stop_slow",
			logging.String(logging.FieldStage, name),
			logging.Duration("bound", bound),
			logging.String(logging.FieldImpact, "shutdown continues; the stage is awaited once the rest have stopped"),
		)
	}
	p.mu.Lock()
	p.stopEvents = append(p.stopEvents, ev)
	p.mu.Unlock()
	p.logger.Debug("stage stopped", logging.String(logging.FieldStage, name), logging.Bool("timed_out", ev.TimedOut))
}

func (p *Pipeline) runner(name string) *stage.Runner {
	for _, r := range p.runners {
		if r.Name() == name {
			return r
		}
	}
	return nil
}
