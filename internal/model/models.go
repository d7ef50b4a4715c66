package model

import "time"

// Privacy controls which viewers may see a capsule's existence and content.
type Privacy string

const (
	// PrivacyPrivate capsules are visible to the owner only. Other viewers
	// cannot even learn that the capsule exists.
	PrivacyPrivate Privacy = "private"
	// PrivacyRecipients capsules are visible to everyone as metadata; content
	// opens to the owner and the listed recipient emails after unlock.
	PrivacyRecipients Privacy = "recipients"
	// PrivacyPublic capsules are visible to everyone; content opens to
	// everyone after unlock.
	PrivacyPublic Privacy = "public"
)

// Valid reports whether p is one of the known privacy tiers.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPrivate, PrivacyRecipients, PrivacyPublic:
		return true
	}
	return false
}

// Status is the lifecycle state of a capsule.
// Scheduled is the initial state; revealed and cancelled are terminal.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRevealed  Status = "revealed"
	StatusCancelled Status = "cancelled"
)

// Capsule is a scheduled message gated by time and privacy tier.
type Capsule struct {
	ID         string
	OwnerID    string
	Title      string
	Message    string
	UnlockAt   time.Time
	Privacy    Privacy
	Recipients []string // meaningful only when Privacy == PrivacyRecipients
	Status     Status
	CreatedAt  time.Time
	RevealedAt *time.Time // set exactly once, iff Status == StatusRevealed
}

// Attachment is a file bound to a capsule. The bytes live in the object
// store under StoragePath; this record is the metadata.
type Attachment struct {
	ID          string
	CapsuleID   string
	Filename    string
	ContentType string
	StoragePath string // opaque locator into the object store
	Checksum    string // hex SHA-256 of the stored bytes, empty if not computed
	Size        int64
}

// Audit actions recorded for lifecycle-affecting operations.
const (
	AuditCreated   = "created"
	AuditRevealed  = "revealed"
	AuditCancelled = "cancelled"
	AuditDeleted   = "deleted"
)

// AuditEntry is an append-only record of a lifecycle-affecting action.
type AuditEntry struct {
	ID          int64
	CapsuleID   string
	Action      string
	PerformedBy string
	Timestamp   time.Time
}
