package rmemr

import (
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/emr"
)

// CommandRunnerJar runs hadoop-streaming on EMR release 4.x and later.
const CommandRunnerJar = "command-runner.jar"

// StreamingStep describes one hadoop streaming invocation.
type StreamingStep struct {
	Name    string
	Mapper  string // URI of the mapper executable
	Reducer string // URI of the reducer executable
	Input   string
	Output  string
	JobConf map[string]string
	// Jar defaults to CommandRunnerJar; any other jar is invoked directly
	// with streaming arguments, as on pre 4.x AMIs.
	Jar string
}

// Args renders the streaming arguments. Generic options come first, as
// hadoop-streaming requires.
func (s *StreamingStep) Args() []string {
	args := make([]string, 0, 16)
	jar := s.Jar
	if jar == "" || jar == CommandRunnerJar {
		args = append(args, "hadoop-streaming")
	}

	keys := make([]string, 0, len(s.JobConf))
	for k := range s.JobConf {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-D", k+"="+s.JobConf[k])
	}

	files := []string{s.Mapper}
	if s.Reducer != s.Mapper {
		files = append(files, s.Reducer)
	}
	args = append(args,
		"-files", strings.Join(files, ","),
		"-mapper", path.Base(s.Mapper),
		"-reducer", path.Base(s.Reducer),
		"-input", s.Input,
		"-output", s.Output,
	)
	return args
}

// StepConfig converts s into an EMR step that cancels the remaining steps
// of the job flow on failure.
func (s *StreamingStep) StepConfig() *emr.StepConfig {
	jar := s.Jar
	if jar == "" {
		jar = CommandRunnerJar
	}
	return &emr.StepConfig{
		Name:            aws.String(s.Name),
		ActionOnFailure: aws.String(emr.ActionOnFailureTerminateJobFlow),
		HadoopJarStep: &emr.HadoopJarStepConfig{
			Jar:  aws.String(jar),
			Args: aws.StringSlice(s.Args()),
		},
	}
}
