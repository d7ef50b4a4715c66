package capsule

import (
	"time"

	"capsule-go/internal/model"
)

// CapsuleView is a capsule as seen by one viewer at one instant. Metadata
// fields are always populated; Message, Recipients, and Attachments are
// filled only when the access decision admits the viewer to content —
// otherwise the view is the locked placeholder.
type CapsuleView struct {
	ID          string           `json:"id"`
	OwnerID     string           `json:"ownerId"`
	Title       string           `json:"title"`
	Status      model.Status     `json:"status"`
	Privacy     model.Privacy    `json:"privacy"`
	UnlockAt    time.Time        `json:"unlockAt"`
	CreatedAt   time.Time        `json:"createdAt"`
	RevealedAt  *time.Time       `json:"revealedAt,omitempty"`
	Unlocked    bool             `json:"unlocked"`
	Content     bool             `json:"contentVisible"`
	Message     string           `json:"message,omitempty"`
	Recipients  []string         `json:"recipients,omitempty"`
	Attachments []AttachmentView `json:"attachments,omitempty"`
}

// AttachmentView is the attachment metadata exposed to a viewer admitted
// to the parent capsule's content.
type AttachmentView struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Checksum    string `json:"checksum,omitempty"`
	Size        int64  `json:"size"`
}

// newCapsuleView shapes a capsule plus its attachments for the given
// viewer. Attachment visibility inherits the capsule's decision: the list
// appears if and only if the message does.
func newCapsuleView(c *model.Capsule, attachments []*model.Attachment, viewerID, viewerEmail string, now time.Time) *CapsuleView {
	v := &CapsuleView{
		ID:         c.ID,
		OwnerID:    c.OwnerID,
		Title:      c.Title,
		Status:     c.Status,
		Privacy:    c.Privacy,
		UnlockAt:   c.UnlockAt,
		CreatedAt:  c.CreatedAt,
		RevealedAt: c.RevealedAt,
		Unlocked:   IsUnlocked(c, now),
	}

	if !CanViewContent(c, viewerID, viewerEmail, now) {
		return v
	}

	v.Content = true
	v.Message = c.Message
	if viewerID == c.OwnerID {
		v.Recipients = c.Recipients
	}
	for _, a := range attachments {
		v.Attachments = append(v.Attachments, AttachmentView{
			ID:          a.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Checksum:    a.Checksum,
			Size:        a.Size,
		})
	}
	return v
}
