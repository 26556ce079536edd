package jobs

import (
	"context"

	"github.com/oactree/jobmon/internal/model"
)

// LogSink mirrors job log records to persistent storage.
type LogSink interface {
	AppendLog(ctx context.Context, job *model.JobItem, rec model.LogRecord) error
}

// StatusSink is optionally implemented by a LogSink that also tracks job status.
type StatusSink interface {
	RecordStatus(ctx context.Context, job *model.JobItem) error
}
