package notify

import "testing"

func TestIconForType(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifySuccess, "dialog-positive"},
		{NotifyWarning, "dialog-warning"},
		{NotifyError, "dialog-error"},
		{NotifyInfo, "dialog-information"},
	}
	for _, tt := range tests {
		if got := IconForType(tt.typ); got != tt.want {
			t.Errorf("IconForType(%v) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestUrgencyForType(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifyError, "critical"},
		{NotifyWarning, "normal"},
		{NotifySuccess, "low"},
		{NotifyInfo, "low"},
	}
	for _, tt := range tests {
		if got := urgencyForType(tt.typ); got != tt.want {
			t.Errorf("urgencyForType(%v) = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestShortSessionID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"a1b2c3d4-e5f6-7890-abcd-ef1234567890", "a1b2c3d4"},
		{"no-dashes-except-here", "no"},
		{"plainid", "plainid"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := shortSessionID(tt.id); got != tt.want {
			t.Errorf("shortSessionID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
