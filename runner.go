package rankmaniac

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/anatomi/rankmaniac/internal/pkg/rmmetrics"
)

// Outcome is the result of a Runner.
type Outcome int

// Runner outcomes
const (
	Failed Outcome = iota
	Converged
	Died
	Interrupted
)

func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case Died:
		return "died"
	case Interrupted:
		return "interrupted"
	}
	return "failed"
}

// RunConfig configures a Runner. Zero durations fall back to the defaults
// of 10s, 20s and 60s.
type RunConfig struct {
	Iteration  Iteration
	Iterations int

	Progress ProgressSink
	Metrics  *rmmetrics.Metrics

	SubmitBackoff   time.Duration // wait before retrying a throttled submission
	PollInterval    time.Duration // wait between completion polls
	ThrottleBackoff time.Duration // wait after a throttled poll
}

// Runner submits a fixed number of iterations and polls the job flow until
// it converges or dies.
type Runner struct {
	o     *Orchestrator
	cfg   RunConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a Runner driving o.
func NewRunner(o *Orchestrator, cfg RunConfig) *Runner {
	if cfg.Progress == nil {
		cfg.Progress = NopProgress{}
	}
	if cfg.SubmitBackoff <= 0 {
		cfg.SubmitBackoff = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 20 * time.Second
	}
	if cfg.ThrottleBackoff <= 0 {
		cfg.ThrottleBackoff = 60 * time.Second
	}
	return &Runner{o: o, cfg: cfg, sleep: sleepContext}
}

// Run submits all iterations and waits for the outcome. A cancelled ctx
// yields Interrupted and leaves the job flow running.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	outcome, err := r.run(ctx)
	if err != nil && ctx.Err() != nil {
		outcome, err = Interrupted, nil
	}
	r.cfg.Metrics.Finished(outcome.String())
	log.Infof("Run %s", outcome)
	return outcome, err
}

func (r *Runner) run(ctx context.Context) (Outcome, error) {
	if err := r.submit(ctx); err != nil {
		return Failed, err
	}
	return r.poll(ctx)
}

func (r *Runner) submit(ctx context.Context) error {
	progress := r.cfg.Progress
	progress.Start("Submit", r.cfg.Iterations)
	defer progress.Finish()

	for i := 0; i < r.cfg.Iterations; i++ {
		for {
			err := r.o.SubmitIteration(ctx, r.cfg.Iteration)
			if err == nil {
				break
			}
			if !IsTransient(err) {
				return err
			}
			r.cfg.Metrics.TransientError("submit")
			log.Warnf("Submission of iteration %d throttled, retrying in %s", i, r.cfg.SubmitBackoff)
			if err := r.sleep(ctx, r.cfg.SubmitBackoff); err != nil {
				return err
			}
		}
		r.cfg.Metrics.IterationSubmitted()
		progress.Increment()
	}
	return nil
}

func (r *Runner) poll(ctx context.Context) (Outcome, error) {
	progress := r.cfg.Progress
	progress.Start("Converge", r.cfg.Iterations)
	defer progress.Finish()

	confirmed := r.o.Snapshot().Confirmed
	for {
		wait := r.cfg.PollInterval
		outcome, err := r.check(ctx)

		current := r.o.Snapshot().Confirmed
		for ; confirmed < current; confirmed++ {
			progress.Increment()
		}
		r.cfg.Metrics.Polled(current)

		switch {
		case err != nil && IsTransient(err):
			r.cfg.Metrics.TransientError("poll")
			log.Warnf("Polling throttled, retrying in %s", r.cfg.ThrottleBackoff)
			wait = r.cfg.ThrottleBackoff
		case err != nil:
			return Failed, err
		case outcome != Failed:
			return outcome, nil
		}

		if err := r.sleep(ctx, wait); err != nil {
			return Interrupted, nil
		}
	}
}

// check runs one polling cycle. It returns Failed while the job flow is
// still making progress.
func (r *Runner) check(ctx context.Context) (Outcome, error) {
	done, err := r.o.IsDone(ctx)
	if err != nil || done {
		return Converged, err
	}
	alive, err := r.o.IsAlive(ctx)
	if err != nil || alive {
		return Failed, err
	}

	// the final verify output may have landed after the first check
	done, err = r.o.IsDone(ctx)
	if err != nil {
		return Failed, err
	}
	if done {
		return Converged, nil
	}
	return Died, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
