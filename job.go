package rankmaniac

// job is the bookkeeping of at most one remote job flow. All fields return
// to their zero values when the job flow handle is cleared.
type job struct {
	id         string // remote job flow handle, empty while not started
	iteration  int    // next iteration to submit
	input      string // input of iteration 0
	lastOutput string // verify output of the last submitted iteration
	done       bool
	// confirmed is the last iteration whose verify output was examined.
	confirmed int
	plan      []*Step
}

func newJob() *job {
	return &job{confirmed: -1}
}

func (j *job) running() bool {
	return j.id != ""
}

// reset returns j to its pristine state, including the input source.
func (j *job) reset() {
	*j = job{confirmed: -1}
}

// nextInput returns the input location of the next iteration.
func (j *job) nextInput() string {
	if j.iteration == 0 {
		return j.input
	}
	return j.lastOutput
}

// confirmedThrough walks the verify positions of the plan that follow the
// last confirmed iteration and returns the highest iteration whose verify
// step, and every verify step before it, is reported COMPLETED. steps are
// the remote step statuses in submission order.
func (j *job) confirmedThrough(steps []StepStatus) int {
	n := len(steps)
	if len(j.plan) < n {
		n = len(j.plan)
	}

	i := 2*(j.confirmed+1) + 1
	for i < n && steps[i].State == StepCompleted {
		i += 2
	}
	return i/2 - 1
}

// JobSnapshot is a read-only copy of the orchestrator bookkeeping.
type JobSnapshot struct {
	ID        string
	Iteration int
	Confirmed int
	Done      bool
	Input     string
	Outputs   []string
}

func (j *job) snapshot() JobSnapshot {
	outputs := make([]string, 0, len(j.plan))
	for _, step := range j.plan {
		outputs = append(outputs, step.Output)
	}
	return JobSnapshot{
		ID:        j.id,
		Iteration: j.iteration,
		Confirmed: j.confirmed,
		Done:      j.done,
		Input:     j.input,
		Outputs:   outputs,
	}
}
