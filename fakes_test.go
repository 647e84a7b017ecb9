package rankmaniac

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/anatomi/rankmaniac/internal/pkg/rmstore"
)

// fakeStore is an in-memory rmstore.ObjectStore keyed by full bucket keys.
type fakeStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	chunkSize  int
	chunkReads []string
	closed     int
	listErr    error
	deleteErrs []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte), chunkSize: rmstore.DefaultChunkSize}
}

func (s *fakeStore) ListByPrefix(_ context.Context, prefix string) ([]rmstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	objects := make([]rmstore.ObjectInfo, 0)
	for key, body := range s.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, rmstore.ObjectInfo{Key: key, Size: int64(len(body))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *fakeStore) DeleteAll(_ context.Context, objects []rmstore.ObjectInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := pop(&s.deleteErrs); err != nil {
		return err
	}
	for _, object := range objects {
		delete(s.objects, object.Key)
	}
	return nil
}

func (s *fakeStore) FirstChunk(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkReads = append(s.chunkReads, key)
	body, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, rmstore.ErrObjectNotFound)
	}
	if len(body) > s.chunkSize {
		body = body[:s.chunkSize]
	}
	return body, nil
}

func (s *fakeStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := ioutil.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) Download(_ context.Context, key string, w io.WriterAt) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[key]
	if !ok {
		return 0, rmstore.ErrObjectNotFound
	}
	n, err := w.WriteAt(body, 0)
	return int64(n), err
}

func (s *fakeStore) URI(key string) string {
	return "s3://bucket/" + key
}

func (s *fakeStore) Close() error {
	s.closed++
	return nil
}

func (s *fakeStore) put(key, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = []byte(body)
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type submission struct {
	name        string
	steps       []*Step
	clusterSize int
	logURI      string
}

// fakeExecutor is an in-memory cluster. Step states default to PENDING.
type fakeExecutor struct {
	submissions []submission
	appended    [][]*Step
	terminated  []string
	describes   int

	state  JobState
	states []StepState

	// queued errors are returned, one per call, before the call succeeds
	submitErrs    []error
	appendErrs    []error
	describeErrs  []error
	terminateErrs []error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{state: JobRunning}
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (e *fakeExecutor) SubmitJob(_ context.Context, name string, steps []*Step, clusterSize int, logURI string) (string, error) {
	if err := pop(&e.submitErrs); err != nil {
		return "", err
	}
	e.submissions = append(e.submissions, submission{name, steps, clusterSize, logURI})
	return fmt.Sprintf("j-%d", len(e.submissions)), nil
}

func (e *fakeExecutor) AppendSteps(_ context.Context, _ string, steps []*Step) error {
	if err := pop(&e.appendErrs); err != nil {
		return err
	}
	e.appended = append(e.appended, steps)
	return nil
}

func (e *fakeExecutor) DescribeJob(_ context.Context, jobID string) (*JobFlow, error) {
	e.describes++
	if err := pop(&e.describeErrs); err != nil {
		return nil, err
	}
	flow := &JobFlow{ID: jobID, State: e.state}
	for i := 0; i < e.stepCount(); i++ {
		state := StepPending
		if i < len(e.states) {
			state = e.states[i]
		}
		flow.Steps = append(flow.Steps, StepStatus{State: state})
	}
	return flow, nil
}

func (e *fakeExecutor) TerminateJob(_ context.Context, jobID string) error {
	if err := pop(&e.terminateErrs); err != nil {
		return err
	}
	e.terminated = append(e.terminated, jobID)
	return nil
}

func (e *fakeExecutor) stepCount() int {
	n := 0
	for _, s := range e.submissions {
		n += len(s.steps)
	}
	for _, steps := range e.appended {
		n += len(steps)
	}
	return n
}

// complete marks the first n steps COMPLETED.
func (e *fakeExecutor) complete(n int) {
	e.states = make([]StepState, n)
	for i := range e.states {
		e.states[i] = StepCompleted
	}
}

var testClock = time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)

var testIteration = Iteration{
	ComputeMapper:  "pagerank_map.py",
	ComputeReducer: "pagerank_reduce.py",
	VerifyMapper:   "process_map.py",
	VerifyReducer:  "process_reduce.py",
	Parallelism:    Parallelism{Mappers: 3, Reducers: 2},
}

func newTestOrchestrator(t *testing.T, options ...Option) (*Orchestrator, *fakeStore, *fakeExecutor) {
	t.Helper()
	store := newFakeStore()
	exec := newFakeExecutor()
	options = append([]Option{
		WithBucket("bucket"),
		WithObjectStore(store),
		WithFs(afero.NewMemMapFs()),
		withExecutor(exec),
		withClock(func() time.Time { return testClock }),
	}, options...)

	o, err := New("team", options...)
	require.NoError(t, err)
	return o, store, exec
}

// submitN starts a job reading input.txt and submits n iterations.
func submitN(t *testing.T, o *Orchestrator, n int) {
	t.Helper()
	require.NoError(t, o.SetInputSource("input.txt"))
	for i := 0; i < n; i++ {
		require.NoError(t, o.SubmitIteration(context.Background(), testIteration))
	}
}
