package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
)

// PollConfig bounds the run status loop.
type PollConfig struct {
	Interval    time.Duration // first wait between status checks
	MaxInterval time.Duration // cap for the growing wait
	Timeout     time.Duration // total wall-clock budget for one run
}

// DefaultPollConfig checks once per second for up to two minutes.
func DefaultPollConfig() PollConfig {
	return PollConfig{Interval: time.Second, MaxInterval: time.Second, Timeout: 2 * time.Minute}
}

// ThreadRunner executes one turn against a SessionProvider:
// upload → post → run → poll → fetch.
type ThreadRunner struct {
	provider SessionProvider
	poll     PollConfig
	log      logrus.FieldLogger
}

// NewThreadRunner wires a runner. Zero poll values fall back to DefaultPollConfig.
func NewThreadRunner(provider SessionProvider, poll PollConfig, log logrus.FieldLogger) *ThreadRunner {
	def := DefaultPollConfig()
	if poll.Interval <= 0 {
		poll.Interval = def.Interval
	}
	if poll.MaxInterval < poll.Interval {
		poll.MaxInterval = poll.Interval
	}
	if poll.Timeout <= 0 {
		poll.Timeout = def.Timeout
	}
	return &ThreadRunner{provider: provider, poll: poll, log: log}
}

// Run posts msg to the thread, waits for the assistant and returns its reply.
// ids must carry both an assistant and a thread id.
func (r *ThreadRunner) Run(ctx context.Context, ids SessionIDs, msg ThreadMessage) (string, error) {
	if ids.AssistantID == "" || ids.ThreadID == "" {
		return "", errors.New("thread runner: assistant and thread ids are required")
	}
	info := r.provider.ModelInfo()
	log := r.log.WithFields(logrus.Fields{"provider": info.Provider, "thread_id": ids.ThreadID})

	fileIDs := r.upload(ctx, log, msg.Uploads)

	if err := r.provider.PostMessage(ctx, ids.ThreadID, msg.Text, fileIDs); err != nil {
		return "", err
	}
	run, err := r.provider.StartRun(ctx, ids.ThreadID, ids.AssistantID)
	if err != nil {
		return "", err
	}
	log = log.WithField("run_id", run.ID)

	run, err = r.wait(ctx, ids.ThreadID, run)
	if err != nil {
		return "", err
	}
	if run.Status != RunCompleted {
		log.WithField("status", run.Status).Warn("assistant run ended unsuccessfully")
		return "", &ProviderError{
			Provider: info.Provider,
			Op:       "run",
			Kind:     ErrRunFailed,
			Err:      fmt.Errorf("status %s %s", run.Status, run.LastError),
		}
	}
	return r.provider.LatestReply(ctx, ids.ThreadID)
}

// upload stores each attachment and returns the ids of the successful ones.
// Attachments without data or failing to upload are skipped.
func (r *ThreadRunner) upload(ctx context.Context, log logrus.FieldLogger, uploads []FileUpload) []string {
	var ids []string
	for _, f := range uploads {
		if len(f.Data) == 0 {
			log.WithField("attachment", f.Name).Warn("skipping attachment without payload")
			continue
		}
		id, err := r.provider.UploadFile(ctx, f)
		if err != nil {
			log.WithError(err).WithField("attachment", f.Name).Warn("attachment upload failed")
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// wait polls the run until it reaches a terminal status, the poll budget is
// spent, or ctx is done.
func (r *ThreadRunner) wait(ctx context.Context, threadID string, run Run) (Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.poll.Timeout)
	defer cancel()

	b := &backoff.Backoff{Min: r.poll.Interval, Max: r.poll.MaxInterval, Factor: 1.5}
	timer := time.NewTimer(b.Duration())
	defer timer.Stop()

	for !run.Status.Terminal() {
		select {
		case <-ctx.Done():
			kind := ErrTimeout
			if errors.Is(ctx.Err(), context.Canceled) {
				kind = ErrTransport
			}
			return run, &ProviderError{
				Provider: r.provider.ModelInfo().Provider,
				Op:       "poll run",
				Kind:     kind,
				Err:      fmt.Errorf("run %s last seen %s: %w", run.ID, run.Status, ctx.Err()),
			}
		case <-timer.C:
		}

		next, err := r.provider.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return run, err
		}
		run = next
		timer.Reset(b.Duration())
	}
	return run, nil
}
