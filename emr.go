package rankmaniac

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/emr"
	log "github.com/sirupsen/logrus"

	"github.com/anatomi/rankmaniac/internal/pkg/rmemr"
	"github.com/anatomi/rankmaniac/internal/pkg/rmiam"
)

// emrSettings configures job flows started by an emrExecutor
type emrSettings struct {
	ReleaseLabel string
	InstanceType string
	ServiceRole  string
	JobFlowRole  string
	StreamingJar string
	KeepAlive    bool
	ManageRoles  bool
	Bucket       string
	Region       string
}

func (c *config) emrSettings() emrSettings {
	return emrSettings{
		ReleaseLabel: c.ReleaseLabel,
		InstanceType: c.InstanceType,
		ServiceRole:  c.ServiceRole,
		JobFlowRole:  c.JobFlowRole,
		StreamingJar: c.StreamingJar,
		KeepAlive:    c.KeepAlive,
		ManageRoles:  c.ManageRoles,
		Bucket:       c.Bucket,
		Region:       c.Region,
	}
}

type emrExecutor struct {
	*rmemr.EMRClient
	*rmiam.IAMClient
	settings emrSettings
}

func newEMRExecutor(settings emrSettings) (*emrExecutor, error) {
	client, err := rmemr.NewEMRClient(settings.Region)
	if err != nil {
		return nil, err
	}
	e := &emrExecutor{
		EMRClient: client,
		settings:  settings,
	}
	if settings.ManageRoles {
		e.IAMClient, err = rmiam.NewIAMClient(settings.Region)
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *emrExecutor) stepConfigs(steps []*Step) []*emr.StepConfig {
	configs := make([]*emr.StepConfig, 0, len(steps))
	for _, step := range steps {
		streaming := &rmemr.StreamingStep{
			Name:    step.Name,
			Mapper:  step.MapperURI,
			Reducer: step.ReducerURI,
			Input:   step.InputURI,
			Output:  step.OutputURI,
			JobConf: step.JobConf,
			Jar:     e.settings.StreamingJar,
		}
		configs = append(configs, streaming.StepConfig())
	}
	return configs
}

func (e *emrExecutor) SubmitJob(ctx context.Context, name string, steps []*Step, clusterSize int, logURI string) (string, error) {
	return e.RunJobFlow(ctx, &rmemr.JobFlowConfig{
		Name:          name,
		LogURI:        logURI,
		ReleaseLabel:  e.settings.ReleaseLabel,
		InstanceCount: int64(clusterSize),
		MasterType:    e.settings.InstanceType,
		SlaveType:     e.settings.InstanceType,
		ServiceRole:   e.settings.ServiceRole,
		JobFlowRole:   e.settings.JobFlowRole,
		KeepAlive:     e.settings.KeepAlive,
		Steps:         e.stepConfigs(steps),
	})
}

func (e *emrExecutor) AppendSteps(ctx context.Context, jobID string, steps []*Step) error {
	return e.AddSteps(ctx, jobID, e.stepConfigs(steps))
}

func (e *emrExecutor) DescribeJob(ctx context.Context, jobID string) (*JobFlow, error) {
	detail, err := e.DescribeJobFlow(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return jobFlowFromDetail(detail), nil
}

func jobFlowFromDetail(detail *emr.JobFlowDetail) *JobFlow {
	flow := &JobFlow{
		ID:    aws.StringValue(detail.JobFlowId),
		Steps: make([]StepStatus, 0, len(detail.Steps)),
	}
	if detail.ExecutionStatusDetail != nil {
		flow.State = JobState(aws.StringValue(detail.ExecutionStatusDetail.State))
	}

	for _, step := range detail.Steps {
		status := StepStatus{}
		if step.StepConfig != nil {
			status.Name = aws.StringValue(step.StepConfig.Name)
		}
		if s := step.ExecutionStatusDetail; s != nil {
			status.State = StepState(aws.StringValue(s.State))
			status.Start = aws.TimeValue(s.StartDateTime)
			status.End = aws.TimeValue(s.EndDateTime)
		}
		flow.Steps = append(flow.Steps, status)
	}
	return flow
}

func (e *emrExecutor) TerminateJob(ctx context.Context, jobID string) error {
	return e.TerminateJobFlow(ctx, jobID)
}

// Deploy provisions the EMR service and instance roles when roles are managed.
func (e *emrExecutor) Deploy() error {
	if e.IAMClient == nil {
		log.Debug("using existing EMR roles")
		return nil
	}
	log.Infof("Deploying IAM roles %s and %s", e.settings.ServiceRole, e.settings.JobFlowRole)
	return e.DeployPermissions(e.settings.ServiceRole, e.settings.JobFlowRole, e.settings.Bucket)
}

// Undeploy removes the managed roles.
func (e *emrExecutor) Undeploy() error {
	if e.IAMClient == nil {
		return fmt.Errorf("roles are not managed, set emrManageRoles to undeploy them")
	}
	log.Info("Undeploying IAM roles")
	return e.DeletePermissions(e.settings.ServiceRole, e.settings.JobFlowRole)
}
