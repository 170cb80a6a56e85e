package notify

import (
	"testing"

	"github.com/pipelinehardening/paratest/internal/domain"
)

func TestFromSessionReport_TypeMatchesStatus(t *testing.T) {
	tests := []struct {
		status domain.SessionStatus
		want   NotificationType
	}{
		{domain.SessionComplete, NotifySuccess},
		{domain.SessionPartialSuccess, NotifyWarning},
		{domain.SessionFailed, NotifyError},
		{domain.SessionRunning, NotifyInfo},
	}

	for _, tt := range tests {
		n := FromSessionReport(domain.SessionReport{SessionID: "s1", Status: tt.status})
		if n.Type != tt.want {
			t.Errorf("status %v: got type %v, want %v", tt.status, n.Type, tt.want)
		}
		if n.SessionID != "s1" {
			t.Errorf("got SessionID %q, want s1", n.SessionID)
		}
	}
}

func TestFromSessionReport_FieldsCarryCounts(t *testing.T) {
	report := domain.SessionReport{
		SessionID:       "s1",
		Status:          domain.SessionPartialSuccess,
		DurationSeconds: 12.5,
		Summary:         domain.Summary{Passed: 3, Failed: 1, Total: 4},
		Warnings:        []string{"lease wt-2 dropped"},
	}

	n := FromSessionReport(report)

	want := map[string]string{
		"Passed":   "3",
		"Failed":   "1",
		"Total":    "4",
		"Duration": "12.5s",
		"Warnings": "1",
	}
	if len(n.Fields) != len(want) {
		t.Fatalf("got %d fields, want %d: %+v", len(n.Fields), len(want), n.Fields)
	}
	for _, f := range n.Fields {
		if want[f.Label] != f.Value {
			t.Errorf("field %s = %q, want %q", f.Label, f.Value, want[f.Label])
		}
	}
}
