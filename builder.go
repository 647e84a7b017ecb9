package rankmaniac

import (
	"context"
	"strconv"
	"time"
)

// stepBuilder creates step descriptors for one tenant.
type stepBuilder struct {
	tenant string
	poller *outputPoller
	now    func() time.Time
}

// buildStep clears output and returns a step running mapper and reducer
// from input to output. The delete is destructive, so buildStep must only
// be called right before the step is scheduled.
func (b *stepBuilder) buildStep(ctx context.Context, stage Stage, iteration int,
	mapper, reducer, input, output string, numMappers, numReducers int) (*Step, error) {

	if err := b.poller.deleteByPrefix(ctx, output); err != nil {
		return nil, err
	}

	return &Step{
		Name:       stepName(b.tenant, b.now(), iteration, stage),
		Stage:      stage,
		Iteration:  iteration,
		Input:      input,
		Output:     output,
		MapperURI:  b.poller.uri(mapper),
		ReducerURI: b.poller.uri(reducer),
		InputURI:   b.poller.uri(input),
		OutputURI:  b.poller.uri(output),
		JobConf: map[string]string{
			"mapred.map.tasks":    strconv.Itoa(numMappers),
			"mapred.reduce.tasks": strconv.Itoa(numReducers),
		},
	}, nil
}
