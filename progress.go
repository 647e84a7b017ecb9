package rankmaniac

import (
	log "github.com/sirupsen/logrus"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// ProgressSink receives the progress of a Runner phase.
type ProgressSink interface {
	Start(phase string, total int)
	Increment()
	Finish()
}

// BarProgress renders phases as terminal progress bars.
type BarProgress struct {
	bar *pb.ProgressBar
}

// Start finishes any open bar and starts one for phase.
func (p *BarProgress) Start(phase string, total int) {
	p.Finish()
	p.bar = pb.New(total).Prefix(phase).Start()
}

// Increment advances the open bar.
func (p *BarProgress) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

// Finish completes the open bar, if any.
func (p *BarProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

// LogProgress writes one log line per increment.
type LogProgress struct {
	phase   string
	total   int
	current int
}

// Start logs the beginning of phase.
func (p *LogProgress) Start(phase string, total int) {
	p.phase, p.total, p.current = phase, total, 0
	log.Infof("%s: started", phase)
}

// Increment logs the new position within the phase.
func (p *LogProgress) Increment() {
	p.current++
	log.Infof("%s: %d/%d", p.phase, p.current, p.total)
}

// Finish logs the end of the phase.
func (p *LogProgress) Finish() {
	log.Infof("%s: finished", p.phase)
}

// NopProgress discards all progress.
type NopProgress struct{}

// Start does nothing.
func (NopProgress) Start(string, int) {}

// Increment does nothing.
func (NopProgress) Increment() {}

// Finish does nothing.
func (NopProgress) Finish() {}
