package capsule

import (
	"context"
	"time"

	"capsule-go/internal/model"
)

// CapsuleStore provides persistence for capsule records. Lookups return
// (nil, nil) when no record exists; errors are reserved for I/O failures.
type CapsuleStore interface {
	// CreateCapsule persists a new capsule record.
	CreateCapsule(ctx context.Context, c *model.Capsule) error

	// GetCapsule returns the capsule with the given id.
	GetCapsule(ctx context.Context, id string) (*model.Capsule, error)

	// ListCapsulesByOwner returns all capsules owned by ownerID, newest
	// CreatedAt first.
	ListCapsulesByOwner(ctx context.Context, ownerID string) ([]*model.Capsule, error)

	// DeleteCapsule removes the capsule record. Attachment records cascade.
	DeleteCapsule(ctx context.Context, id string) error

	// MarkRevealed applies scheduled->revealed as a single conditional
	// update: status and revealedAt change only if the capsule is still
	// scheduled. Returns whether the update applied; a no-op is not an
	// error, so two concurrent reveals settle on one revealedAt value.
	MarkRevealed(ctx context.Context, id string, revealedAt time.Time) (bool, error)

	// MarkCancelled applies scheduled->cancelled under the same
	// conditional-update contract as MarkRevealed.
	MarkCancelled(ctx context.Context, id string) (bool, error)
}

// AttachmentStore provides persistence for attachment records, scoped by
// capsule. Lookups return (nil, nil) when no record exists.
type AttachmentStore interface {
	CreateAttachment(ctx context.Context, a *model.Attachment) error
	GetAttachment(ctx context.Context, id string) (*model.Attachment, error)
	ListAttachmentsByCapsule(ctx context.Context, capsuleID string) ([]*model.Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error
}

// AuditLog is an append-only sink for lifecycle records. The service only
// ever writes; reading the trail is an outer-layer concern.
type AuditLog interface {
	Append(ctx context.Context, e *model.AuditEntry) error
}
