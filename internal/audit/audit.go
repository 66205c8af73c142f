// Package audit writes the accounting policy engine's decisions to
// dated log files: every admission, hold, and timeout the engine
// hands back, so an operator can reconstruct why a job waited or was
// rejected after the fact.
//
// Records are written to YYYYMMDD-named files in the configured
// directory. Each line follows the format:
//
//	MM/DD/YYYY HH:MM:SS;TYPE;JOB_ID;key=value key=value ...
//
// Record types:
//   - V  Validate (admission) decision
//   - R  Runnability (pre-/post-select) decision
//   - T  Timeout decision
//   - M  Usage mutation (submit/begin/fini/alter)
package audit

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/opentorque/acctpolicy/internal/engine"
	"github.com/opentorque/acctpolicy/pkg/pbslog"
)

// Record types.
const (
	RecordValidate = "V"
	RecordRunnable = "R"
	RecordTimeout  = "T"
	RecordMutation = "M"
)

// Logger writes decision audit records to dated files.
type Logger struct {
	dl *pbslog.DatedLog
}

// NewLogger creates an audit logger that writes to dir/YYYYMMDD files.
func NewLogger(dir string) (*Logger, error) {
	dl, err := pbslog.New(dir)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	return &Logger{dl: dl}, nil
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	if l.dl == nil {
		return nil
	}
	return l.dl.Close()
}

// Record writes a single audit record.
func (l *Logger) Record(recType string, jobID uint64, message string) {
	ts := time.Now().Format("01/02/2006 15:04:05")
	line := fmt.Sprintf("%s;%s;%d;%s\n", ts, recType, jobID, message)
	if _, err := l.dl.Write([]byte(line)); err != nil {
		log.WithError(err).Error("audit: failed to write decision record")
	}
}

// formatDecision renders an engine.Decision as key=value pairs.
func formatDecision(d engine.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "allow=%t reason=%s", d.Allow, d.Reason)
	if !d.Allow {
		fmt.Fprintf(&b, " terminal=%t", d.Terminal)
	}
	if d.Desc != "" {
		fmt.Fprintf(&b, " desc=%q", d.Desc)
	}
	return b.String()
}

// RecordValidateDecision logs the outcome of Engine.Validate.
func (l *Logger) RecordValidateDecision(jobID uint64, d engine.Decision) {
	l.Record(RecordValidate, jobID, formatDecision(d))
}

// RecordRunnableDecision logs the outcome of JobRunnablePreSelect or
// JobRunnablePostSelect; stage distinguishes which one.
func (l *Logger) RecordRunnableDecision(jobID uint64, stage string, d engine.Decision) {
	l.Record(RecordRunnable, jobID, fmt.Sprintf("stage=%s %s", stage, formatDecision(d)))
}

// RecordTimeoutDecision logs the outcome of Engine.JobTimeOut.
func (l *Logger) RecordTimeoutDecision(jobID uint64, d engine.Decision) {
	l.Record(RecordTimeout, jobID, formatDecision(d))
}

// RecordMutation logs a usage mutation (submit, begin, fini, alter)
// with a free-form detail string built by the caller.
func (l *Logger) RecordMutation(jobID uint64, op, detail string) {
	l.Record(RecordMutation, jobID, fmt.Sprintf("op=%s %s", op, detail))
}
