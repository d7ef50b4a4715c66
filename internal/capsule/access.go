package capsule

import (
	"strings"
	"time"

	"capsule-go/internal/model"
)

// IsUnlocked reports whether the capsule's content is open by time alone.
// A revealed capsule is unlocked; a scheduled capsule unlocks the instant
// now reaches UnlockAt; a cancelled capsule is locked forever.
//
// The predicate is pure: it never reads the wall clock and never mutates
// the capsule. Persisting the scheduled->revealed transition is an
// optimization handled elsewhere — the answer here is the same either way.
func IsUnlocked(c *model.Capsule, now time.Time) bool {
	switch c.Status {
	case model.StatusRevealed:
		return true
	case model.StatusScheduled:
		return !now.Before(c.UnlockAt)
	default: // cancelled
		return false
	}
}

// CanView reports whether the viewer may see that the capsule exists at
// all (metadata: title, status, unlock time). It is independent of unlock
// state.
//
// Only the private tier hides existence: there, non-owners get a
// not-found answer rather than a locked one. Recipients and public
// capsules are visible as metadata to everyone; the recipient list gates
// content, not existence.
func CanView(c *model.Capsule, viewerID, viewerEmail string) bool {
	if viewerID == c.OwnerID {
		return true
	}
	return c.Privacy != model.PrivacyPrivate
}

// CanViewContent reports whether the viewer sees the real message and
// attachments, combining both predicates:
//
//   - the owner bypasses the time lock, except for cancelled capsules,
//     whose content is permanently withheld from everyone;
//   - other viewers need the capsule unlocked and the tier to admit them
//     (public admits anyone, recipients admits listed emails).
func CanViewContent(c *model.Capsule, viewerID, viewerEmail string, now time.Time) bool {
	if !CanView(c, viewerID, viewerEmail) {
		return false
	}
	if viewerID == c.OwnerID {
		return c.Status != model.StatusCancelled
	}
	if !IsUnlocked(c, now) {
		return false
	}
	switch c.Privacy {
	case model.PrivacyPublic:
		return true
	case model.PrivacyRecipients:
		return isRecipient(c, viewerEmail)
	default:
		return false
	}
}

// isRecipient reports whether the email is on the capsule's recipient
// list. Emails compare case-insensitively.
func isRecipient(c *model.Capsule, viewerEmail string) bool {
	if viewerEmail == "" {
		return false
	}
	for _, r := range c.Recipients {
		if strings.EqualFold(r, viewerEmail) {
			return true
		}
	}
	return false
}
