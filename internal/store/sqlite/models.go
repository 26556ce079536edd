package sqlite

import (
	"time"

	"github.com/oactree/jobmon/internal/event"
	"github.com/oactree/jobmon/internal/model"
)

// JobSummary is one row of the job history.
type JobSummary struct {
	ID            string
	Name          string
	ProcedurePath string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LogCount      int
}

// logRecordModel is the database row for log_records. Times are Unix nanoseconds.
type logRecordModel struct {
	ID       string
	JobID    string
	Time     int64
	Severity int
	Source   string
	Message  string
}

func toLogRecordModel(jobID string, rec model.LogRecord) logRecordModel {
	return logRecordModel{
		ID:       rec.ID,
		JobID:    jobID,
		Time:     rec.Time.UnixNano(),
		Severity: int(rec.Severity),
		Source:   rec.Source,
		Message:  rec.Message,
	}
}

func (m logRecordModel) toDomain() model.LogRecord {
	return model.LogRecord{
		ID:       m.ID,
		Time:     time.Unix(0, m.Time),
		Severity: event.Severity(m.Severity),
		Source:   m.Source,
		Message:  m.Message,
	}
}
