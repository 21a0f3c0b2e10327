package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/deckardhq/deckard/internal/usecase"
)

const defaultPollInterval = 5 * time.Second

// jobBudget bounds one import job run, which includes model calls.
const jobBudget = 3 * time.Minute

// ImportWorker drains the pending import-job queue on a fixed interval.
// Claiming is atomic at the database level, so several workers can poll
// the same queue.
type ImportWorker struct {
	imports   usecase.ImportUsecase
	scheduler *gocron.Scheduler
	interval  time.Duration
	logger    *logrus.Logger
}

// NewImportWorker creates a worker polling at the given interval.
func NewImportWorker(imports usecase.ImportUsecase, interval time.Duration, logger *logrus.Logger) *ImportWorker {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &ImportWorker{
		imports:   imports,
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		logger:    logger,
	}
}

// Start begins polling in the background.
func (w *ImportWorker) Start() {
	_, err := w.scheduler.Every(w.interval).Do(w.drain)
	if err != nil {
		w.logger.WithError(err).Error("schedule import worker")
		return
	}
	w.scheduler.StartAsync()
	w.logger.WithField("interval", w.interval.String()).Info("import worker started")
}

// Stop terminates the polling loop. In-flight jobs run to completion.
func (w *ImportWorker) Stop() {
	w.scheduler.Stop()
}

// drain processes queued jobs until the queue is empty. One job failing
// marks that job failed and does not stop the drain.
func (w *ImportWorker) drain() {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), jobBudget)
		processed, err := w.imports.ProcessPending(ctx)
		cancel()
		if err != nil {
			w.logger.WithError(err).Warn("process import job")
		}
		if !processed {
			return
		}
	}
}
