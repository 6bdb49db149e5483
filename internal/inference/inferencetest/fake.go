// Package inferencetest provides a scriptable inference.Client.
package inferencetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/handscan/handscan/internal/inference"
)

// Submission records one Submit call.
type Submission struct {
	ImageURL     string
	ModelVersion string
}

// Fake is an in-memory inference.Client. Results are served per call id in
// the order they were queued; once a queue is empty Poll reports pending.
type Fake struct {
	mu          sync.Mutex
	nextID      int
	submitErr   error
	pollErr     error
	results     map[string][]*inference.Result
	submissions []Submission
	polls       map[string]int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		results: make(map[string][]*inference.Result),
		polls:   make(map[string]int),
	}
}

// FailSubmit makes every Submit return err until cleared with nil.
func (f *Fake) FailSubmit(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

// FailPoll makes every Poll return err until cleared with nil.
func (f *Fake) FailPoll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollErr = err
}

// QueueResult appends a result served by Poll(callID).
func (f *Fake) QueueResult(callID string, result *inference.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[callID] = append(f.results[callID], result)
}

// Submissions returns every Submit call so far.
func (f *Fake) Submissions() []Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Submission(nil), f.submissions...)
}

// PollCount returns how often callID was polled.
func (f *Fake) PollCount(callID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[callID]
}

// Submit returns call ids fc-1, fc-2, ...
func (f *Fake) Submit(ctx context.Context, imageURL, modelVersion string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextID++
	f.submissions = append(f.submissions, Submission{ImageURL: imageURL, ModelVersion: modelVersion})
	return fmt.Sprintf("fc-%d", f.nextID), nil
}

func (f *Fake) Poll(ctx context.Context, callID string) (*inference.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.polls[callID]++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	queue := f.results[callID]
	if len(queue) == 0 {
		return inference.PendingResult, nil
	}
	f.results[callID] = queue[1:]
	return queue[0], nil
}

var _ inference.Client = (*Fake)(nil)
