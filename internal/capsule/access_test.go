package capsule

import (
	"testing"
	"time"

	"capsule-go/internal/model"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newCapsule(privacy model.Privacy, status model.Status, unlockAt time.Time) *model.Capsule {
	return &model.Capsule{
		ID:       "cap-1",
		OwnerID:  "owner",
		Title:    "title",
		Message:  "message",
		UnlockAt: unlockAt,
		Privacy:  privacy,
		Status:   status,
	}
}

func TestIsUnlocked(t *testing.T) {
	unlockAt := baseTime

	tests := []struct {
		name   string
		status model.Status
		now    time.Time
		want   bool
	}{
		{"scheduled before unlock", model.StatusScheduled, unlockAt.Add(-time.Second), false},
		{"scheduled at unlock instant", model.StatusScheduled, unlockAt, true},
		{"scheduled after unlock", model.StatusScheduled, unlockAt.Add(time.Hour), true},
		{"revealed before unlock", model.StatusRevealed, unlockAt.Add(-time.Hour), true},
		{"revealed after unlock", model.StatusRevealed, unlockAt.Add(time.Hour), true},
		{"cancelled before unlock", model.StatusCancelled, unlockAt.Add(-time.Hour), false},
		{"cancelled after unlock", model.StatusCancelled, unlockAt.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCapsule(model.PrivacyPublic, tt.status, unlockAt)
			if got := IsUnlocked(c, tt.now); got != tt.want {
				t.Errorf("IsUnlocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUnlockedMonotonic(t *testing.T) {
	// Once a scheduled capsule unlocks, later instants never re-lock it.
	c := newCapsule(model.PrivacyPublic, model.StatusScheduled, baseTime)

	unlocked := false
	for _, offset := range []time.Duration{-time.Hour, -time.Second, 0, time.Second, time.Hour, 24 * time.Hour} {
		got := IsUnlocked(c, baseTime.Add(offset))
		if unlocked && !got {
			t.Fatalf("capsule re-locked at offset %v", offset)
		}
		unlocked = got
	}
}

func TestCanView(t *testing.T) {
	tests := []struct {
		name        string
		privacy     model.Privacy
		viewerID    string
		viewerEmail string
		want        bool
	}{
		{"private owner", model.PrivacyPrivate, "owner", "", true},
		{"private stranger", model.PrivacyPrivate, "someone-else", "", false},
		{"private anonymous", model.PrivacyPrivate, "", "", false},
		{"recipients stranger sees metadata", model.PrivacyRecipients, "someone-else", "", true},
		{"recipients listed email sees metadata", model.PrivacyRecipients, "friend", "friend@example.com", true},
		{"public stranger", model.PrivacyPublic, "someone-else", "", true},
		{"public anonymous", model.PrivacyPublic, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCapsule(tt.privacy, model.StatusScheduled, baseTime)
			c.Recipients = []string{"friend@example.com"}
			if got := CanView(c, tt.viewerID, tt.viewerEmail); got != tt.want {
				t.Errorf("CanView() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanViewContent(t *testing.T) {
	unlockAt := baseTime
	before := unlockAt.Add(-time.Hour)
	after := unlockAt.Add(time.Hour)

	tests := []struct {
		name        string
		privacy     model.Privacy
		status      model.Status
		recipients  []string
		viewerID    string
		viewerEmail string
		now         time.Time
		want        bool
	}{
		{
			name:    "owner sees content while locked",
			privacy: model.PrivacyPrivate, status: model.StatusScheduled,
			viewerID: "owner", now: before, want: true,
		},
		{
			name:    "owner denied content when cancelled",
			privacy: model.PrivacyPrivate, status: model.StatusCancelled,
			viewerID: "owner", now: after, want: false,
		},
		{
			name:    "public stranger locked before unlock",
			privacy: model.PrivacyPublic, status: model.StatusScheduled,
			viewerID: "stranger", now: before, want: false,
		},
		{
			name:    "public stranger admitted after unlock",
			privacy: model.PrivacyPublic, status: model.StatusScheduled,
			viewerID: "stranger", now: after, want: true,
		},
		{
			name:    "public stranger admitted when revealed early",
			privacy: model.PrivacyPublic, status: model.StatusRevealed,
			viewerID: "stranger", now: before, want: true,
		},
		{
			name:    "public cancelled withheld from everyone",
			privacy: model.PrivacyPublic, status: model.StatusCancelled,
			viewerID: "stranger", now: after, want: false,
		},
		{
			name:    "recipient admitted after unlock",
			privacy: model.PrivacyRecipients, status: model.StatusScheduled,
			recipients: []string{"friend@example.com"},
			viewerID:   "friend", viewerEmail: "friend@example.com", now: after, want: true,
		},
		{
			name:    "recipient email match is case-insensitive",
			privacy: model.PrivacyRecipients, status: model.StatusScheduled,
			recipients: []string{"Friend@Example.com"},
			viewerID:   "friend", viewerEmail: "friend@example.com", now: after, want: true,
		},
		{
			name:    "recipient locked before unlock",
			privacy: model.PrivacyRecipients, status: model.StatusScheduled,
			recipients: []string{"friend@example.com"},
			viewerID:   "friend", viewerEmail: "friend@example.com", now: before, want: false,
		},
		{
			name:    "non-recipient denied content after unlock",
			privacy: model.PrivacyRecipients, status: model.StatusScheduled,
			recipients: []string{"friend@example.com"},
			viewerID:   "stranger", viewerEmail: "stranger@example.com", now: after, want: false,
		},
		{
			name:    "empty viewer email never matches recipients",
			privacy: model.PrivacyRecipients, status: model.StatusScheduled,
			recipients: []string{""},
			viewerID:   "stranger", viewerEmail: "", now: after, want: false,
		},
		{
			name:    "private stranger denied regardless of time",
			privacy: model.PrivacyPrivate, status: model.StatusRevealed,
			viewerID: "stranger", now: after, want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCapsule(tt.privacy, tt.status, unlockAt)
			c.Recipients = tt.recipients
			if got := CanViewContent(c, tt.viewerID, tt.viewerEmail, tt.now); got != tt.want {
				t.Errorf("CanViewContent() = %v, want %v", got, tt.want)
			}
		})
	}
}
