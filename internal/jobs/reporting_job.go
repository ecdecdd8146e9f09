package jobs

import (
	"context"
	"time"
)

// ReportingJobName is the name of the scheduled reporting mirror sync
const ReportingJobName = "reporting-sync"

// DefaultReportingTimeout bounds one mirror sync
const DefaultReportingTimeout = 5 * time.Minute

// ReportingSyncer rebuilds the reporting mirror from the live store
type ReportingSyncer interface {
	Sync(ctx context.Context) error
}

// RegisterReportingJob registers a periodic reporting mirror sync
func RegisterReportingJob(scheduler *Scheduler, syncer ReportingSyncer, cronExpr string) error {
	return scheduler.AddJob(ReportingJobName, cronExpr, DefaultReportingTimeout, syncer.Sync)
}
