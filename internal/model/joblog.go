package model

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/oactree/jobmon/internal/event"
)

// LogRecord is one immutable entry of the job log.
type LogRecord struct {
	ID       string
	Time     time.Time
	Severity event.Severity
	Source   string
	Message  string
}

// JobLog is an append-only, index-addressable log.
// It is cleared only by an explicit job restart.
type JobLog struct {
	records []LogRecord
	entropy io.Reader
}

// NewJobLog creates an empty log.
func NewJobLog() *JobLog {
	return &JobLog{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Append stores rec, assigning a sortable ID if it has none, and returns the stored record.
func (l *JobLog) Append(rec LogRecord) LogRecord {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	if rec.ID == "" {
		rec.ID = ulid.MustNew(ulid.Timestamp(rec.Time), l.entropy).String()
	}
	l.records = append(l.records, rec)
	return rec
}

// Size returns the number of records.
func (l *JobLog) Size() int {
	return len(l.records)
}

// At returns record i. It panics if i is out of range, like a slice index.
func (l *JobLog) At(i int) LogRecord {
	return l.records[i]
}

// Records returns a copy of all records.
func (l *JobLog) Records() []LogRecord {
	out := make([]LogRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Since returns a copy of the records from index i onwards.
func (l *JobLog) Since(i int) []LogRecord {
	if i < 0 {
		i = 0
	}
	if i >= len(l.records) {
		return nil
	}
	out := make([]LogRecord, len(l.records)-i)
	copy(out, l.records[i:])
	return out
}

// Clear drops all records.
func (l *JobLog) Clear() {
	l.records = nil
}
