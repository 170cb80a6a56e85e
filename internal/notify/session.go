package notify

import (
	"fmt"
	"strconv"

	"github.com/pipelinehardening/paratest/internal/domain"
)

// FromSessionReport builds the terminal notification for a finished
// session: its title and message summarize pass/fail counts, its type
// reflects the session's overall outcome, and its Fields carry the
// counters and duration for notifiers that render structured detail
// rather than a flat message.
func FromSessionReport(report domain.SessionReport) Notification {
	typ := NotifyInfo
	switch report.Status {
	case domain.SessionComplete:
		typ = NotifySuccess
	case domain.SessionPartialSuccess:
		typ = NotifyWarning
	case domain.SessionFailed:
		typ = NotifyError
	}

	return Notification{
		Title:     "paratest session " + string(report.Status),
		Message:   summarize(report),
		Type:      typ,
		SessionID: report.SessionID,
		Fields:    fieldsFor(report),
	}
}

func summarize(report domain.SessionReport) string {
	s := report.Summary
	msg := formatCounts(s.Passed, s.Failed, s.Total)
	if len(report.Warnings) > 0 {
		msg += " (" + pluralWarnings(len(report.Warnings)) + ")"
	}
	return msg
}

func fieldsFor(report domain.SessionReport) []NotificationField {
	s := report.Summary
	fields := []NotificationField{
		{Label: "Passed", Value: strconv.Itoa(s.Passed)},
		{Label: "Failed", Value: strconv.Itoa(s.Failed)},
		{Label: "Total", Value: strconv.Itoa(s.Total)},
		{Label: "Duration", Value: fmt.Sprintf("%.1fs", report.DurationSeconds)},
	}
	if len(report.Warnings) > 0 {
		fields = append(fields, NotificationField{
			Label: "Warnings", Value: strconv.Itoa(len(report.Warnings)),
		})
	}
	return fields
}

func formatCounts(passed, failed, total int) string {
	return strconv.Itoa(passed) + " passed, " + strconv.Itoa(failed) + " failed, " + strconv.Itoa(total) + " total"
}

func pluralWarnings(n int) string {
	if n == 1 {
		return "1 warning"
	}
	return strconv.Itoa(n) + " warnings"
}
