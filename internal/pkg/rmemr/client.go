package rmemr

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/emr"
	"github.com/aws/aws-sdk-go/service/emr/emriface"
	log "github.com/sirupsen/logrus"

	"github.com/anatomi/rankmaniac/internal/pkg/rmaws"
)

// ErrJobFlowNotFound is returned when EMR does not know the requested job flow.
var ErrJobFlowNotFound = errors.New("job flow not found")

// EMRClient wraps the AWS EMR API and provides functions for
// starting, extending, inspecting and stopping job flows
type EMRClient struct {
	Client emriface.EMRAPI
}

// JobFlowConfig holds the configuration of a single job flow
type JobFlowConfig struct {
	Name          string
	LogURI        string
	ReleaseLabel  string
	InstanceCount int64
	MasterType    string
	SlaveType     string
	ServiceRole   string
	JobFlowRole   string
	// KeepAlive keeps the cluster waiting after the last step. Liveness
	// detection relies on the cluster completing, so it is off by default.
	KeepAlive bool
	Steps     []*emr.StepConfig
}

// NewEMRClient initializes a new EMRClient in region, or the configured
// region if empty.
func NewEMRClient(region string) (*EMRClient, error) {
	sess, err := rmaws.NewSession(rmaws.ConfigFromViper(false).WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to create emr session: %w", err)
	}
	return &EMRClient{
		Client: emr.New(sess),
	}, nil
}

// RunJobFlow starts a new job flow running the configured steps and returns its id.
func (c *EMRClient) RunJobFlow(ctx context.Context, config *JobFlowConfig) (string, error) {
	input := &emr.RunJobFlowInput{
		Name:   aws.String(config.Name),
		Steps:  config.Steps,
		LogUri: aws.String(config.LogURI),
		Instances: &emr.JobFlowInstancesConfig{
			InstanceCount:               aws.Int64(config.InstanceCount),
			MasterInstanceType:          aws.String(config.MasterType),
			SlaveInstanceType:           aws.String(config.SlaveType),
			KeepJobFlowAliveWhenNoSteps: aws.Bool(config.KeepAlive),
		},
		ServiceRole:       aws.String(config.ServiceRole),
		JobFlowRole:       aws.String(config.JobFlowRole),
		VisibleToAllUsers: aws.Bool(true),
	}
	if config.ReleaseLabel != "" {
		input.ReleaseLabel = aws.String(config.ReleaseLabel)
	}

	log.Debugf("Starting job flow '%s' with %d steps", config.Name, len(config.Steps))
	out, err := c.Client.RunJobFlowWithContext(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.JobFlowId), nil
}

// AddSteps appends steps to a running job flow
func (c *EMRClient) AddSteps(ctx context.Context, jobFlowID string, steps []*emr.StepConfig) error {
	log.Debugf("Adding %d steps to job flow '%s'", len(steps), jobFlowID)
	_, err := c.Client.AddJobFlowStepsWithContext(ctx, &emr.AddJobFlowStepsInput{
		JobFlowId: aws.String(jobFlowID),
		Steps:     steps,
	})
	return err
}

// DescribeJobFlow returns the job flow details including every step in
// submission order.
func (c *EMRClient) DescribeJobFlow(ctx context.Context, jobFlowID string) (*emr.JobFlowDetail, error) {
	out, err := c.Client.DescribeJobFlowsWithContext(ctx, &emr.DescribeJobFlowsInput{
		JobFlowIds: []*string{aws.String(jobFlowID)},
	})
	if err != nil {
		return nil, err
	}
	for _, flow := range out.JobFlows {
		if aws.StringValue(flow.JobFlowId) == jobFlowID {
			return flow, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrJobFlowNotFound, jobFlowID)
}

// TerminateJobFlow requests shutdown of the given job flow
func (c *EMRClient) TerminateJobFlow(ctx context.Context, jobFlowID string) error {
	log.Debugf("Terminating job flow '%s'", jobFlowID)
	_, err := c.Client.TerminateJobFlowsWithContext(ctx, &emr.TerminateJobFlowsInput{
		JobFlowIds: []*string{aws.String(jobFlowID)},
	})
	return err
}
