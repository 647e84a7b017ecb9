package rankmaniac

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/anatomi/rankmaniac/internal/pkg/rmstore"
)

// closeTimeout bounds the terminate call issued by Close.
const closeTimeout = 30 * time.Second

// logLocation receives the job flow logs, relative to the tenant namespace.
const logLocation = "job_logs"

// Orchestrator drives one remote job flow through compute/verify iterations.
// An Orchestrator is not safe for concurrent use; callers serialize access.
type Orchestrator struct {
	config   *config
	store    rmstore.ObjectStore
	executor executor
	poller   *outputPoller
	builder  *stepBuilder
	job      *job
	runID    string
	log      *log.Entry
	closed   bool
}

// New creates an Orchestrator for tenant. The returned Orchestrator holds
// remote clients and must be released with Close.
func New(tenant string, options ...Option) (*Orchestrator, error) {
	c, err := newConfig()
	if err != nil {
		return nil, err
	}
	if tenant != "" {
		c.Tenant = tenant
	}
	for _, f := range options {
		f(c)
	}

	if c.Tenant == "" {
		return nil, errors.New("no team configured")
	}
	if c.Bucket == "" {
		return nil, errors.New("no bucket configured")
	}
	if c.ClusterSize < 1 {
		c.ClusterSize = 1
	}
	if c.MaxConcurrency < 1 {
		c.MaxConcurrency = 1
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.now == nil {
		c.now = time.Now
	}

	if c.store == nil {
		storeType, err := rmstore.ParseStoreType(c.Backend)
		if err != nil {
			return nil, err
		}
		c.store, err = rmstore.NewObjectStore(storeType, rmstore.StoreConfig{
			Bucket:    c.Bucket,
			Region:    c.Region,
			ChunkSize: c.ChunkSize,
		})
		if err != nil {
			return nil, err
		}
	}
	if c.executor == nil {
		c.executor, err = newEMRExecutor(c.emrSettings())
		if err != nil {
			c.store.Close()
			return nil, err
		}
	}

	o := &Orchestrator{
		config:   c,
		store:    c.store,
		executor: c.executor,
		job:      newJob(),
		runID:    randomName(),
	}
	o.poller = &outputPoller{store: o.store, tenant: c.Tenant}
	o.builder = &stepBuilder{tenant: c.Tenant, poller: o.poller, now: c.now}
	o.log = log.WithFields(log.Fields{
		"tenant": c.Tenant,
		"run":    o.runID,
	})
	log.Debugf("Loaded config: %#v", c)
	return o, nil
}

// SetInputSource sets the tenant relative location read by iteration 0.
func (o *Orchestrator) SetInputSource(location string) error {
	if o.job.running() {
		return preconditionf("setInputSource", "job %s is already running", o.job.id)
	}
	o.job.input = location
	return nil
}

// SubmitIteration schedules the compute and verify steps of the next
// iteration. The first call starts a new job flow; later calls append to it.
// A failed call leaves the iteration counter and plan unchanged, so a
// Transient failure can be retried with the same arguments.
func (o *Orchestrator) SubmitIteration(ctx context.Context, it Iteration) error {
	const op = "submitIteration"
	if err := it.validate(); err != nil {
		return &Error{Kind: Precondition, Op: op, Err: err}
	}

	i := o.job.iteration
	input := o.job.nextInput()
	if input == "" {
		return preconditionf(op, "no input source configured")
	}

	computeOut := OutputLocation(i, ComputeStage.String())
	verifyOut := OutputLocation(i, VerifyStage.String())

	compute, err := o.builder.buildStep(ctx, ComputeStage, i,
		it.ComputeMapper, it.ComputeReducer, input, computeOut,
		it.Parallelism.Mappers, it.Parallelism.Reducers)
	if err != nil {
		return classify(op, err)
	}
	verify, err := o.builder.buildStep(ctx, VerifyStage, i,
		it.VerifyMapper, it.VerifyReducer, computeOut, verifyOut, 1, 1)
	if err != nil {
		return classify(op, err)
	}
	steps := []*Step{compute, verify}

	if !o.job.running() {
		plan := make([]*Step, 0, len(o.job.plan)+len(steps))
		plan = append(plan, o.job.plan...)
		plan = append(plan, steps...)

		name := jobName(o.config.Tenant, o.config.now())
		id, err := o.executor.SubmitJob(ctx, name, plan, o.config.ClusterSize, o.poller.uri(logLocation))
		if err != nil {
			return classify(op, err)
		}
		o.job.id = id
		o.job.plan = plan
		o.log.Infof("Started job flow %s", id)
	} else {
		if err := o.executor.AppendSteps(ctx, o.job.id, steps); err != nil {
			return classify(op, err)
		}
		o.job.plan = append(o.job.plan, steps...)
	}

	o.job.lastOutput = verifyOut
	o.job.iteration++
	o.log.Debugf("Submitted iteration %d reading %s", i, input)
	return nil
}

// IsDone reports whether the verify output of a completed iteration starts
// with the terminal marker. Once true, it stays true without remote calls.
func (o *Orchestrator) IsDone(ctx context.Context) (bool, error) {
	const op = "isDone"
	if o.job.done {
		return true, nil
	}
	if !o.job.running() || len(o.job.plan) == 0 {
		return false, nil
	}

	flow, err := o.executor.DescribeJob(ctx, o.job.id)
	if err != nil {
		return false, classify(op, err)
	}

	through := o.job.confirmedThrough(flow.Steps)
	for i := o.job.confirmed + 1; i <= through; i++ {
		chunk, err := o.poller.firstChunk(ctx, OutputLocation(i, VerifyStage.String())+outputPart)
		if err != nil {
			return false, classify(op, err)
		}
		o.job.confirmed = i
		if isTerminal(chunk) {
			o.job.done = true
			o.log.Infof("Iteration %d reached %s", i, terminalMarker)
			return true, nil
		}
	}
	return false, nil
}

// IsAlive reports whether the job flow can still make progress. Call it
// after IsDone in the same polling cycle: a job flow completes at the same
// time its final verify output is written.
func (o *Orchestrator) IsAlive(ctx context.Context) (bool, error) {
	const op = "isAlive"
	if !o.job.running() {
		return false, preconditionf(op, "no job is running")
	}
	flow, err := o.executor.DescribeJob(ctx, o.job.id)
	if err != nil {
		return false, classify(op, err)
	}
	return !flow.State.Finished(), nil
}

// Describe returns the remote view of the running job flow.
func (o *Orchestrator) Describe(ctx context.Context) (*JobFlow, error) {
	const op = "describe"
	if !o.job.running() {
		return nil, preconditionf(op, "no job is running")
	}
	flow, err := o.executor.DescribeJob(ctx, o.job.id)
	return flow, classify(op, err)
}

// Terminate cancels the running job flow and resets all bookkeeping.
func (o *Orchestrator) Terminate(ctx context.Context) error {
	const op = "terminate"
	if !o.job.running() {
		return preconditionf(op, "no job is running")
	}
	if err := o.executor.TerminateJob(ctx, o.job.id); err != nil {
		return classify(op, err)
	}
	o.log.Infof("Terminated job flow %s", o.job.id)
	o.job.reset()
	return nil
}

// Snapshot returns a copy of the current bookkeeping.
func (o *Orchestrator) Snapshot() JobSnapshot {
	return o.job.snapshot()
}

// Close terminates a running job flow and releases the store. Close is the
// only teardown path and may be called more than once.
func (o *Orchestrator) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true

	var terminateErr error
	if o.job.running() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		terminateErr = o.Terminate(ctx)
		cancel()
		if terminateErr != nil {
			o.log.Errorf("failed to terminate job flow: %+v", terminateErr)
		}
	}

	if err := o.store.Close(); err != nil {
		return err
	}
	return terminateErr
}
