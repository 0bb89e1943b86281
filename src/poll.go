package storybook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobState is the lifecycle of a remote generation job.
type JobState string

const (
	JobPending  JobState = "pending"
	JobRunning  JobState = "running"
	JobComplete JobState = "complete"
	JobFailed   JobState = "failed"
)

// ParseJobState maps a Leonardo status string onto a JobState. Unknown
// statuses count as running so that polling continues until the deadline.
func ParseJobState(status string) JobState {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PENDING", "QUEUED", "":
		return JobPending
	case "COMPLETE", "COMPLETED":
		return JobComplete
	case "FAILED", "CANCELLED", "CANCELED", "DELETED":
		return JobFailed
	default:
		return JobRunning
	}
}

// Terminal reports whether no further polls are needed.
func (s JobState) Terminal() bool {
	return s == JobComplete || s == JobFailed
}

// Poll defaults, used when a Poller leaves Interval or Timeout unset.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 150 * time.Second
)

// JobPoller is the single-shot status call the Poller drives.
type JobPoller interface {
	PollGeneration(ctx context.Context, id string) (*Generation, error)
}

// Poller waits for one job by polling at a fixed interval until the job is
// terminal or the timeout passes. Now and Sleep can be replaced in tests.
type Poller struct {
	Jobs     JobPoller
	Interval time.Duration
	Timeout  time.Duration
	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
}

// NewPoller returns a Poller using the real clock.
func NewPoller(jobs JobPoller, interval, timeout time.Duration) *Poller {
	return &Poller{Jobs: jobs, Interval: interval, Timeout: timeout}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait blocks until the job completes. Each round sleeps for the interval,
// then checks the deadline, then polls once; no poll happens once the
// deadline has passed. Transient remote errors (5xx, 429) are tolerated,
// anything else aborts.
func (p *Poller) Wait(ctx context.Context, id string, progress Progressor) (*Generation, error) {
	pr := orNull(progress)
	now := p.Now
	if now == nil {
		now = time.Now
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	deadline := now().Add(timeout)
	state := JobPending
	for attempt := 1; ; attempt++ {
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
		if now().After(deadline) {
			return nil, fmt.Errorf("%w: generation %s still %s after %s (%d polls)", ErrTimeout, id, state, timeout, attempt-1)
		}

		gen, err := p.Jobs.PollGeneration(ctx, id)
		if err != nil {
			var re *RemoteError
			if errors.As(err, &re) && re.Transient() {
				pr.UpdateOutput(fmt.Sprintf("Poll %d: error %d, retrying", attempt, re.StatusCode))
				continue
			}
			return nil, fmt.Errorf("polling generation %s: %w", id, err)
		}

		state = gen.State
		pr.UpdateOutput(fmt.Sprintf("Poll %d status: %s", attempt, gen.Status))
		switch state {
		case JobComplete:
			if len(gen.ImageURLs) == 0 {
				return nil, &RemoteError{StatusCode: 200, Body: gen.Status, Hint: "generation completed without any images"}
			}
			return gen, nil
		case JobFailed:
			return nil, fmt.Errorf("%w: generation %s ended with status %s", ErrRemote, id, gen.Status)
		}
	}
}
