package app

import (
	"errors"
	"fmt"

	"widgetrag/internal/domain"
	"widgetrag/internal/model"
)

var (
	ErrInvalidInput      = fmt.Errorf("invalid input: %w", domain.ErrInvalidArgument)
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
	ErrUserNotFound      = errors.New("user not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrForbidden         = errors.New("not allowed to access this document")
	ErrNotAdmin          = errors.New("admin role required")
	ErrEmptyDocument     = errors.New("document has no text content")
	ErrUnsupportedFile   = errors.New("unsupported file type")
	// ErrDocumentBusy means another processor holds the document; the job
	// should be retried later.
	ErrDocumentBusy = errors.New("document is being processed")
	ErrJobEnqueue   = errors.New("enqueue document job failed")
)

// Actor is the authenticated caller of a use case.
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) isAdmin() bool { return a.Role == model.RoleAdmin }
