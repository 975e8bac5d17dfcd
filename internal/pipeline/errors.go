package pipeline

import (
	"errors"
	"fmt"

	"github.com/econbrief/econbrief/internal/analysis"
	"github.com/econbrief/econbrief/internal/models"
)

var (
	// ErrNotFound means the referenced article or script does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPrecondition means an upstream artifact the step depends on is
	// missing, e.g. a script requested before any analysis.
	ErrPrecondition = errors.New("precondition failed")

	// ErrInvalidJSON means the model returned text that is not JSON.
	ErrInvalidJSON = analysis.ErrInvalidJSON
)

// Precondition failures. Each matches ErrPrecondition.
var (
	ErrNoAnalysis  = fmt.Errorf("%w: article has no analysis yet", ErrPrecondition)
	ErrNoRecipient = fmt.Errorf("%w: MAIL_TO is not configured", ErrPrecondition)
	ErrNoAnalyses  = fmt.Errorf("%w: no analyzed articles", ErrPrecondition)
)

// UpstreamError is an external call that failed after retries.
type UpstreamError struct {
	Service models.Service
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Error carries the identifiers known when an operation failed so that
// callers can point operators at the matching audit rows.
type Error struct {
	Op        string
	ArticleID string
	SourceID  string
	ScriptID  string
	LogID     string
	Err       error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
