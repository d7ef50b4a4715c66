package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"capsule-go/internal/capsule"
	"capsule-go/internal/model"
)

// maxUploadMemory bounds how much of a multipart create request is held
// in memory; larger file parts spill to temp files.
const maxUploadMemory = 32 << 20

// createRequest is the JSON shape of a capsule create, either as the
// whole request body or as the "capsule" field of a multipart form.
type createRequest struct {
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	UnlockAt   time.Time `json:"unlockAt"`
	Privacy    string    `json:"privacy"`
	Recipients []string  `json:"recipients,omitempty"`
}

// handleCreate accepts either a plain JSON body (no attachments) or a
// multipart form with a "capsule" JSON field and any number of
// "attachments" file fields.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req createRequest
	var uploads []capsule.AttachmentUpload

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "multipart/") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("parsing form: %v", err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		if err := json.Unmarshal([]byte(r.FormValue("capsule")), &req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("decoding capsule field: %v", err))
			return
		}

		for _, fh := range r.MultipartForm.File["attachments"] {
			f, err := fh.Open()
			if err != nil {
				writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("opening attachment %s: %v", fh.Filename, err))
				return
			}
			defer f.Close()

			uploads = append(uploads, capsule.AttachmentUpload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Data:        f,
			})
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
			return
		}
	}

	c, err := s.service.Create(r.Context(), capsule.CreateParams{
		OwnerID:     identity.UserID,
		Title:       req.Title,
		Message:     req.Message,
		UnlockAt:    req.UnlockAt,
		Privacy:     model.Privacy(req.Privacy),
		Recipients:  req.Recipients,
		Attachments: uploads,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Shape the response through the same view the read path uses.
	view, err := s.service.Get(r.Context(), c.ID, identity.UserID, identity.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	views, err := s.service.List(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	capsuleID := chi.URLParam(r, "capsuleID")

	view, err := s.service.Get(r.Context(), capsuleID, identity.UserID, identity.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	capsuleID := chi.URLParam(r, "capsuleID")

	if err := s.service.Delete(r.Context(), capsuleID, identity.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	capsuleID := chi.URLParam(r, "capsuleID")

	if err := s.service.Reveal(r.Context(), capsuleID, identity.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.service.Get(r.Context(), capsuleID, identity.UserID, identity.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	capsuleID := chi.URLParam(r, "capsuleID")

	if err := s.service.Cancel(r.Context(), capsuleID, identity.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.service.Get(r.Context(), capsuleID, identity.UserID, identity.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleDownload spools the attachment to a temp file so access errors
// can still turn into proper statuses without holding the object in
// memory.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	attachmentID := chi.URLParam(r, "attachmentID")

	tmp, err := os.CreateTemp("", "capsule-download-*")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("creating spool file: %w", err))
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	a, err := s.service.DownloadAttachment(r.Context(), attachmentID, identity.UserID, identity.Email, tmp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		s.writeError(w, r, fmt.Errorf("rewinding spool file: %w", err))
		return
	}

	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, tmp)
}
