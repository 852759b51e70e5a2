package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ProblemStatus string

const (
	ProblemProcessing ProblemStatus = "processing"
	ProblemCompleted  ProblemStatus = "completed"
	ProblemFailed     ProblemStatus = "failed"
)

func (s ProblemStatus) Terminal() bool {
	return s == ProblemCompleted || s == ProblemFailed
}

// Problem is one extracted unit (page) of a submitted document.
type Problem struct {
	ID              uuid.UUID     `json:"id"`
	OwnerID         string        `json:"-"`
	DocumentID      uuid.UUID     `json:"document_id"`
	PageNumber      int           `json:"page_number"`
	Status          ProblemStatus `json:"status"`
	ExtractedText   *string       `json:"extracted_text"`
	MathExpressions []string      `json:"math_expressions"`
	Error           string        `json:"error,omitempty"`
	// SolutionCount counts Solutions referencing this Problem; deletion is
	// refused while it is non-zero.
	SolutionCount int       `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewProblem(owner string, documentID uuid.UUID, pageNumber int, now time.Time) Problem {
	return Problem{
		ID:         uuid.New(),
		OwnerID:    owner,
		DocumentID: documentID,
		PageNumber: pageNumber,
		Status:     ProblemProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Complete populates text and expressions together. An extraction with no
// expressions still yields an empty, non-nil list.
func (p *Problem) Complete(text string, expressions []string, now time.Time) {
	t := text
	exprs := make([]string, len(expressions))
	copy(exprs, expressions)
	p.Status = ProblemCompleted
	p.ExtractedText = &t
	p.MathExpressions = exprs
	p.Error = ""
	p.UpdatedAt = now
}

func (p *Problem) Fail(reason string, now time.Time) {
	p.Status = ProblemFailed
	p.ExtractedText = nil
	p.MathExpressions = nil
	p.Error = reason
	p.UpdatedAt = now
}

func (p Problem) Clone() Problem {
	out := p
	if p.ExtractedText != nil {
		t := *p.ExtractedText
		out.ExtractedText = &t
	}
	if p.MathExpressions != nil {
		out.MathExpressions = append([]string(nil), p.MathExpressions...)
		if out.MathExpressions == nil {
			out.MathExpressions = []string{}
		}
	}
	return out
}

// Validate checks that the extracted fields are populated all-or-nothing
// according to status.
func (p Problem) Validate() error {
	hasText := p.ExtractedText != nil
	hasExprs := p.MathExpressions != nil
	switch p.Status {
	case ProblemProcessing, ProblemFailed:
		if hasText || hasExprs {
			return fmt.Errorf("problem %s: %s with extracted fields: %w", p.ID, p.Status, ErrInvalidArgument)
		}
	case ProblemCompleted:
		if !hasText || !hasExprs {
			return fmt.Errorf("problem %s: completed without extracted fields: %w", p.ID, ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("problem %s: unknown status %q: %w", p.ID, p.Status, ErrInvalidArgument)
	}
	return nil
}
