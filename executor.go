package rankmaniac

import "context"

// executor is the remote cluster API a Job is run on.
type executor interface {
	// SubmitJob starts a new remote job running steps and returns its handle.
	SubmitJob(ctx context.Context, name string, steps []*Step, clusterSize int, logURI string) (string, error)
	// AppendSteps adds steps to the end of a running job.
	AppendSteps(ctx context.Context, jobID string, steps []*Step) error
	DescribeJob(ctx context.Context, jobID string) (*JobFlow, error)
	TerminateJob(ctx context.Context, jobID string) error
}
