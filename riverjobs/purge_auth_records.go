// Package riverjobs holds the background jobs the service schedules on River.
package riverjobs

import (
	"context"
	"errors"
	"time"

	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"

	"github.com/fOmar24/Medical-Research-Data-Sharing/core"
)

type PurgeAuthRecordsArgs struct {
	RetentionDays int `json:"retention_days,omitempty"`
}

func (PurgeAuthRecordsArgs) Kind() string { return "medshare_purge_auth_records" }

func (args PurgeAuthRecordsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue: river.QueueDefault,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: 24 * time.Hour,
			ByQueue:  true,
		},
	}
}

// PurgeAuthRecordsWorker deletes expired nonces and dead sessions (expired or
// invalidated) older than the retention window. Client-visible behavior is
// unaffected: expired rows already fail validation; this only bounds table
// growth.
type PurgeAuthRecordsWorker struct {
	river.WorkerDefaults[PurgeAuthRecordsArgs]
	svc *core.Service
	log logrus.FieldLogger
}

func NewPurgeAuthRecordsWorker(svc *core.Service, log logrus.FieldLogger) *PurgeAuthRecordsWorker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PurgeAuthRecordsWorker{svc: svc, log: log}
}

func (w *PurgeAuthRecordsWorker) Timeout(*river.Job[PurgeAuthRecordsArgs]) time.Duration {
	return 10 * time.Minute
}

func (w *PurgeAuthRecordsWorker) Work(ctx context.Context, job *river.Job[PurgeAuthRecordsArgs]) error {
	if w == nil || w.svc == nil {
		return errors.New("purge: service not configured")
	}
	retention := job.Args.RetentionDays
	if retention <= 0 {
		retention = 30
	}

	nonces, sessions, err := w.svc.PurgeExpiredAuthRecords(ctx, time.Duration(retention)*24*time.Hour)
	if err != nil {
		return err
	}
	w.log.WithField("nonces", nonces).WithField("sessions", sessions).Info("purged expired auth records")
	return nil
}
