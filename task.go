package rankmaniac

import (
	"fmt"
	"time"
)

// Stage is a descriptor of the stage (i.e. compute or verify) of an iteration
type Stage int

// Descriptors of the iteration stages
const (
	ComputeStage Stage = iota
	VerifyStage
)

// String returns the stage name used in output locations.
func (s Stage) String() string {
	switch s {
	case ComputeStage:
		return "pagerank"
	case VerifyStage:
		return "process"
	}
	return fmt.Sprintf("stage%d", int(s))
}

// terminalMarker starts the verify output of the converged iteration.
const terminalMarker = "FinalRank"

// outputPart is the first reducer output file of a stage.
const outputPart = "part-00000"

// OutputLocation returns the tenant relative output location of stage in
// iteration. Submission and polling both derive locations from it.
func OutputLocation(iteration int, stage string) string {
	return fmt.Sprintf("%d/%s/", iteration, stage)
}

// Parallelism holds the task counts requested for a step.
type Parallelism struct {
	Mappers  int
	Reducers int
}

// Iteration names the executables of one compute/verify pair. Executables
// are locations relative to the tenant namespace, e.g. "pagerank_map.py".
type Iteration struct {
	ComputeMapper  string
	ComputeReducer string
	VerifyMapper   string
	VerifyReducer  string
	// Parallelism of the compute stage; the verify stage always runs 1/1.
	Parallelism Parallelism
}

func (it Iteration) validate() error {
	if it.ComputeMapper == "" || it.ComputeReducer == "" || it.VerifyMapper == "" || it.VerifyReducer == "" {
		return fmt.Errorf("mapper and reducer of both stages are required")
	}
	if it.Parallelism.Mappers < 1 || it.Parallelism.Reducers < 1 {
		return fmt.Errorf("invalid parallelism %d/%d", it.Parallelism.Mappers, it.Parallelism.Reducers)
	}
	return nil
}

// Step defines a single unit of remote execution. Steps are immutable
// once submitted.
type Step struct {
	Name      string
	Stage     Stage
	Iteration int

	// Input and Output are tenant relative locations.
	Input  string
	Output string

	MapperURI  string
	ReducerURI string
	InputURI   string
	OutputURI  string

	// JobConf carries the parallelism hints, e.g. mapred.map.tasks.
	JobConf map[string]string
}

// StepState is the state the cluster reports for a step.
type StepState string

// Step states as reported by EMR
const (
	StepPending     StepState = "PENDING"
	StepRunning     StepState = "RUNNING"
	StepCompleted   StepState = "COMPLETED"
	StepCancelled   StepState = "CANCELLED"
	StepFailed      StepState = "FAILED"
	StepInterrupted StepState = "INTERRUPTED"
)

// StepStatus is the remote view of one submitted step.
type StepStatus struct {
	Name  string
	State StepState
	Start time.Time
	End   time.Time
}

// JobState is the state the cluster reports for a job flow.
type JobState string

// Job flow states as reported by EMR
const (
	JobStarting      JobState = "STARTING"
	JobBootstrapping JobState = "BOOTSTRAPPING"
	JobRunning       JobState = "RUNNING"
	JobWaiting       JobState = "WAITING"
	JobShuttingDown  JobState = "SHUTTING_DOWN"
	JobCompleted     JobState = "COMPLETED"
	JobFailed        JobState = "FAILED"
	JobTerminated    JobState = "TERMINATED"
)

// Finished reports whether the job flow can make no further progress.
func (s JobState) Finished() bool {
	switch s {
	case JobCompleted, JobFailed, JobTerminated:
		return true
	}
	return false
}

// JobFlow is a snapshot of a remote job and its steps in submission order.
type JobFlow struct {
	ID    string
	State JobState
	Steps []StepStatus
}
