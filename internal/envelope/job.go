package envelope

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/bookstore_lambda/internal/app/metrics"
	apperrors "github.com/R3E-Network/bookstore_lambda/internal/errors"
	"github.com/R3E-Network/bookstore_lambda/internal/invocation"
)

// Job is a scheduled unit of work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string { return j.JobName }

func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// RunJob executes job inside the envelope. It never returns a failure and
// never panics: errors are classified and logged with the job name and trace
// id. The connection is released when the job ends, whatever the outcome,
// unless another invocation of this envelope is still running.
// The returned bookkeeping is nil only when the job could not be scoped.
func (e *Envelope) RunJob(ctx context.Context, job Job) *Invocation {
	name := job.Name()
	rec := invocation.NewJobRecord(traceID(ctx), name)

	var inv *Invocation
	_, err := invocation.Run(ctx, rec, func(ctx context.Context) (struct{}, error) {
		ctx, inv = e.begin(ctx, rec)
		log := e.log.WithContext(ctx)

		log.Infof("-> Starting %s cron job", name)
		e.acquire(ctx)
		defer func() {
			if err := e.release(ctx, true); err != nil {
				log.WithError(err).Warn("release connection after job")
			}
		}()

		if err := runRecovered(ctx, job); err != nil {
			inv.fail(err)
		}

		d := inv.finish(e.now())
		metrics.RecordJobRun(name, d, inv.Err() == nil)

		if resp, status, err := inv.failure(); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"code":        resp.Code,
				"name":        resp.Name,
				"status":      status,
				"duration_ms": d.Milliseconds(),
			}).Errorf("Error in cron job %s (%dms)", name, d.Milliseconds())
			return struct{}{}, nil
		}

		log.WithField("duration_ms", d.Milliseconds()).Infof("<- Finishing %s cron job (%dms)", name, d.Milliseconds())
		return struct{}{}, nil
	})
	if err != nil {
		// The record was rejected before the scope was entered.
		e.log.WithContext(ctx).WithError(err).Errorf("Error in cron job %q", name)
		metrics.RecordJobRun(name, 0, false)
	}
	return inv
}

func runRecovered(ctx context.Context, job Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = apperrors.FromPanic(p)
		}
	}()
	return job.Run(ctx)
}
