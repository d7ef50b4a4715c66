package capsule

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"capsule-go/internal/model"
)

// Service is the orchestration layer that coordinates the stores, the
// object store, and the access evaluator to implement the capsule
// operations consumed by the CLI and the HTTP API.
type Service struct {
	capsules    CapsuleStore
	attachments AttachmentStore
	objects     ObjectStore
	audit       AuditLog
	logger      Logger
	clock       Clock
	idgen       IDGenerator
}

// NewService creates a Service with the provided dependencies.
func NewService(capsules CapsuleStore, attachments AttachmentStore, objects ObjectStore, audit AuditLog, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		capsules:    capsules,
		attachments: attachments,
		objects:     objects,
		audit:       audit,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
	}
}

// AttachmentUpload carries one file into Create. Size is the number of
// bytes that will be read from Data.
type AttachmentUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// CreateParams are the inputs to Create.
type CreateParams struct {
	OwnerID     string
	Title       string
	Message     string
	UnlockAt    time.Time
	Privacy     model.Privacy
	Recipients  []string
	Attachments []AttachmentUpload
}

// Create validates the inputs, persists the capsule and its attachments,
// and records the creation in the audit log.
//
// The unlock time must be strictly in the future. An empty recipient list
// on a recipients-tier capsule is accepted: such a capsule is viewable by
// no one but the owner, which is the owner's to fix, not ours to guess.
//
// Attachment bytes and records are written one by one; if any step fails,
// everything already written — objects, attachment records, the capsule
// record — is cleaned up best-effort before the storage error surfaces.
// Create never reports success with partial attachments.
func (s *Service) Create(ctx context.Context, p CreateParams) (*model.Capsule, error) {
	now := s.clock.Now()

	if p.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !p.Privacy.Valid() {
		return nil, fmt.Errorf("%w: unknown privacy tier %q", ErrValidation, p.Privacy)
	}
	if !p.UnlockAt.After(now) {
		return nil, fmt.Errorf("%w: unlock time must be in the future", ErrValidation)
	}

	recipients := p.Recipients
	if p.Privacy != model.PrivacyRecipients {
		// Meaningful only on the recipients tier; don't persist stray lists.
		recipients = nil
	}

	c := &model.Capsule{
		ID:         s.idgen.New(),
		OwnerID:    p.OwnerID,
		Title:      p.Title,
		Message:    p.Message,
		UnlockAt:   p.UnlockAt,
		Privacy:    p.Privacy,
		Recipients: recipients,
		Status:     model.StatusScheduled,
		CreatedAt:  now,
	}

	if err := s.capsules.CreateCapsule(ctx, c); err != nil {
		return nil, fmt.Errorf("%w: creating capsule: %v", ErrStorage, err)
	}

	var stored []*model.Attachment
	for _, u := range p.Attachments {
		a, err := s.storeAttachment(ctx, c, u)
		if err != nil {
			s.rollbackCreate(ctx, c, stored)
			return nil, fmt.Errorf("%w: storing attachment %q: %v", ErrStorage, u.Filename, err)
		}
		stored = append(stored, a)
	}

	entry := &model.AuditEntry{
		CapsuleID:   c.ID,
		Action:      model.AuditCreated,
		PerformedBy: p.OwnerID,
		Timestamp:   now,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.rollbackCreate(ctx, c, stored)
		return nil, fmt.Errorf("%w: recording creation: %v", ErrStorage, err)
	}

	s.logger.Info("capsule created", "capsule", c.ID, "owner", c.OwnerID, "attachments", len(stored))
	return c, nil
}

// storeAttachment uploads one attachment's bytes and persists its record.
// The checksum is computed while the bytes stream into the object store.
func (s *Service) storeAttachment(ctx context.Context, c *model.Capsule, u AttachmentUpload) (*model.Attachment, error) {
	id := s.idgen.New()
	path := c.ID + "/" + id

	h := sha256.New()
	if err := s.objects.Put(ctx, path, io.TeeReader(u.Data, h), u.Size); err != nil {
		return nil, fmt.Errorf("uploading bytes: %w", err)
	}

	a := &model.Attachment{
		ID:          id,
		CapsuleID:   c.ID,
		Filename:    u.Filename,
		ContentType: u.ContentType,
		StoragePath: path,
		Checksum:    hex.EncodeToString(h.Sum(nil)),
		Size:        u.Size,
	}
	if err := s.attachments.CreateAttachment(ctx, a); err != nil {
		// The record failed; don't leave the bytes behind.
		if derr := s.objects.Delete(ctx, path); derr != nil {
			s.logger.Warn("orphaned object after failed attachment record", "path", path, "error", derr)
		}
		return nil, fmt.Errorf("recording attachment: %w", err)
	}
	return a, nil
}

// rollbackCreate undoes a partially completed Create: stored objects,
// attachment records, and the capsule record, best-effort.
func (s *Service) rollbackCreate(ctx context.Context, c *model.Capsule, stored []*model.Attachment) {
	for _, a := range stored {
		if err := s.objects.Delete(ctx, a.StoragePath); err != nil {
			s.logger.Warn("rollback: deleting object", "path", a.StoragePath, "error", err)
		}
		if err := s.attachments.DeleteAttachment(ctx, a.ID); err != nil {
			s.logger.Warn("rollback: deleting attachment record", "attachment", a.ID, "error", err)
		}
	}
	if err := s.capsules.DeleteCapsule(ctx, c.ID); err != nil {
		s.logger.Warn("rollback: deleting capsule record", "capsule", c.ID, "error", err)
	}
}

// Get returns the capsule as seen by the viewer.
//
// Private capsules viewed by non-owners return ErrNotFound, deliberately
// indistinguishable from nonexistence. Everyone else gets a view: full
// content when the access decision admits them, the locked placeholder
// otherwise.
func (s *Service) Get(ctx context.Context, capsuleID, viewerID, viewerEmail string) (*CapsuleView, error) {
	c, err := s.loadCapsule(ctx, capsuleID)
	if err != nil {
		return nil, err
	}
	if !CanView(c, viewerID, viewerEmail) {
		return nil, fmt.Errorf("capsule %s: %w", capsuleID, ErrNotFound)
	}

	now := s.clock.Now()
	s.maybePersistReveal(ctx, c, viewerID, now)

	attachments, err := s.attachments.ListAttachmentsByCapsule(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing attachments: %v", ErrStorage, err)
	}

	return newCapsuleView(c, attachments, viewerID, viewerEmail, now), nil
}

// maybePersistReveal records the scheduled->revealed transition once the
// unlock instant has passed. Persistence is an optimization: the access
// evaluator answers identically whether or not it has happened, so any
// failure here is logged and swallowed. The conditional update keeps
// concurrent first-reads from double-appending the audit entry.
func (s *Service) maybePersistReveal(ctx context.Context, c *model.Capsule, performedBy string, now time.Time) {
	if c.Status != model.StatusScheduled || now.Before(c.UnlockAt) {
		return
	}

	applied, err := s.capsules.MarkRevealed(ctx, c.ID, now)
	if err != nil {
		s.logger.Warn("persisting reveal", "capsule", c.ID, "error", err)
		return
	}
	if !applied {
		// Someone else got there first; the persisted state is authoritative.
		return
	}

	c.Status = model.StatusRevealed
	c.RevealedAt = &now
	entry := &model.AuditEntry{
		CapsuleID:   c.ID,
		Action:      model.AuditRevealed,
		PerformedBy: performedBy,
		Timestamp:   now,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("recording reveal", "capsule", c.ID, "error", err)
	}
	s.logger.Info("capsule revealed", "capsule", c.ID)
}

// List returns the caller's own capsules, newest first, each shaped from
// the owner's perspective (the owner always sees content, lock or no
// lock, cancelled excepted).
func (s *Service) List(ctx context.Context, ownerID string) ([]*CapsuleView, error) {
	capsules, err := s.capsules.ListCapsulesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing capsules: %v", ErrStorage, err)
	}

	now := s.clock.Now()
	views := make([]*CapsuleView, 0, len(capsules))
	for _, c := range capsules {
		attachments, err := s.attachments.ListAttachmentsByCapsule(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: listing attachments: %v", ErrStorage, err)
		}
		views = append(views, newCapsuleView(c, attachments, ownerID, "", now))
	}
	return views, nil
}

// Reveal persists scheduled->revealed on the owner's explicit request,
// ahead of the unlock time if the owner so chooses. Revealing an
// already-revealed capsule is a no-op; a cancelled capsule cannot be
// revealed.
func (s *Service) Reveal(ctx context.Context, capsuleID, requesterID string) error {
	c, err := s.loadCapsule(ctx, capsuleID)
	if err != nil {
		return err
	}
	if c.OwnerID != requesterID {
		return fmt.Errorf("capsule %s: %w", capsuleID, ErrPermissionDenied)
	}
	switch c.Status {
	case model.StatusRevealed:
		return nil
	case model.StatusCancelled:
		return fmt.Errorf("%w: capsule is cancelled", ErrValidation)
	}

	now := s.clock.Now()
	applied, err := s.capsules.MarkRevealed(ctx, c.ID, now)
	if err != nil {
		return fmt.Errorf("%w: revealing capsule: %v", ErrStorage, err)
	}
	if !applied {
		// Lost a race to another transition; treat as settled.
		return nil
	}

	entry := &model.AuditEntry{
		CapsuleID:   c.ID,
		Action:      model.AuditRevealed,
		PerformedBy: requesterID,
		Timestamp:   now,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("recording reveal", "capsule", c.ID, "error", err)
	}
	s.logger.Info("capsule revealed", "capsule", c.ID, "by", requesterID)
	return nil
}

// Cancel persists scheduled->cancelled. A cancelled capsule never becomes
// readable regardless of time; its content is permanently withheld, from
// the owner included. Cancelling twice is a no-op; a revealed capsule
// cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, capsuleID, requesterID string) error {
	c, err := s.loadCapsule(ctx, capsuleID)
	if err != nil {
		return err
	}
	if c.OwnerID != requesterID {
		return fmt.Errorf("capsule %s: %w", capsuleID, ErrPermissionDenied)
	}
	switch c.Status {
	case model.StatusCancelled:
		return nil
	case model.StatusRevealed:
		return fmt.Errorf("%w: capsule is already revealed", ErrValidation)
	}

	now := s.clock.Now()
	applied, err := s.capsules.MarkCancelled(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("%w: cancelling capsule: %v", ErrStorage, err)
	}
	if !applied {
		return nil
	}

	entry := &model.AuditEntry{
		CapsuleID:   c.ID,
		Action:      model.AuditCancelled,
		PerformedBy: requesterID,
		Timestamp:   now,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("recording cancel", "capsule", c.ID, "error", err)
	}
	s.logger.Info("capsule cancelled", "capsule", c.ID, "by", requesterID)
	return nil
}

// Delete removes a capsule, its attachment records, and their stored
// bytes. Owner only; irreversible.
func (s *Service) Delete(ctx context.Context, capsuleID, requesterID string) error {
	c, err := s.loadCapsule(ctx, capsuleID)
	if err != nil {
		return err
	}
	if c.OwnerID != requesterID {
		return fmt.Errorf("capsule %s: %w", capsuleID, ErrPermissionDenied)
	}

	attachments, err := s.attachments.ListAttachmentsByCapsule(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("%w: listing attachments: %v", ErrStorage, err)
	}

	// Records first: once the rows are gone nothing references the bytes,
	// and an orphaned object is harmless where a dangling record is not.
	if err := s.capsules.DeleteCapsule(ctx, c.ID); err != nil {
		return fmt.Errorf("%w: deleting capsule: %v", ErrStorage, err)
	}
	for _, a := range attachments {
		if err := s.objects.Delete(ctx, a.StoragePath); err != nil {
			s.logger.Warn("deleting object", "path", a.StoragePath, "error", err)
		}
	}

	now := s.clock.Now()
	entry := &model.AuditEntry{
		CapsuleID:   c.ID,
		Action:      model.AuditDeleted,
		PerformedBy: requesterID,
		Timestamp:   now,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("recording delete", "capsule", c.ID, "error", err)
	}
	s.logger.Info("capsule deleted", "capsule", c.ID, "by", requesterID)
	return nil
}

// DownloadAttachment writes the attachment's bytes to w after re-deriving
// the parent capsule's access decision — there is no path to the bytes
// that bypasses it. Returns the attachment record for response metadata.
//
// Viewers the tier hides the capsule from get ErrNotFound; viewers who
// may see the capsule but not its content get ErrLocked.
func (s *Service) DownloadAttachment(ctx context.Context, attachmentID, viewerID, viewerEmail string, w io.Writer) (*model.Attachment, error) {
	a, err := s.attachments.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading attachment: %v", ErrStorage, err)
	}
	if a == nil {
		return nil, fmt.Errorf("attachment %s: %w", attachmentID, ErrNotFound)
	}

	c, err := s.loadCapsule(ctx, a.CapsuleID)
	if err != nil {
		return nil, err
	}
	if !CanView(c, viewerID, viewerEmail) {
		return nil, fmt.Errorf("attachment %s: %w", attachmentID, ErrNotFound)
	}

	now := s.clock.Now()
	if !CanViewContent(c, viewerID, viewerEmail, now) {
		return nil, fmt.Errorf("attachment %s: %w", attachmentID, ErrLocked)
	}

	if err := s.objects.Get(ctx, a.StoragePath, w); err != nil {
		return nil, fmt.Errorf("%w: reading object: %v", ErrStorage, err)
	}
	return a, nil
}

// loadCapsule fetches a capsule, mapping a missing record to ErrNotFound
// and an I/O failure to ErrStorage.
func (s *Service) loadCapsule(ctx context.Context, id string) (*model.Capsule, error) {
	c, err := s.capsules.GetCapsule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: loading capsule: %v", ErrStorage, err)
	}
	if c == nil {
		return nil, fmt.Errorf("capsule %s: %w", id, ErrNotFound)
	}
	return c, nil
}
