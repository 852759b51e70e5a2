package problems

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/pythagon-backend/internal/domain"
)

type problemRow struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	OwnerID         string         `gorm:"column:owner_id;not null;index"`
	DocumentID      uuid.UUID      `gorm:"type:uuid;column:document_id;not null;index"`
	PageNumber      int            `gorm:"column:page_number;not null"`
	Status          string         `gorm:"column:status;not null;index"`
	ExtractedText   *string        `gorm:"column:extracted_text;type:text"`
	MathExpressions datatypes.JSON `gorm:"column:math_expressions"`
	Error           string         `gorm:"column:error;type:text"`
	SolutionCount   int            `gorm:"column:solution_count;not null;default:0"`
	CreatedAt       time.Time      `gorm:"not null;index"`
	UpdatedAt       time.Time      `gorm:"not null"`
}

func (problemRow) TableName() string { return "problem" }

type solutionRow struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ProblemID      uuid.UUID      `gorm:"type:uuid;column:problem_id;not null;index"`
	OwnerID        string         `gorm:"column:owner_id;not null;index"`
	Status         string         `gorm:"column:status;not null;index"`
	MathExpression *string        `gorm:"column:math_expression;type:text"`
	SolutionSteps  datatypes.JSON `gorm:"column:solution_steps"`
	FinalAnswer    *string        `gorm:"column:final_answer;type:text"`
	Error          string         `gorm:"column:error;type:text"`
	CreatedAt      time.Time      `gorm:"not null;index"`
	UpdatedAt      time.Time      `gorm:"not null"`
}

func (solutionRow) TableName() string { return "solution" }

// Migrate creates or updates the problem and solution tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&problemRow{}, &solutionRow{})
}

func problemToRow(p *domain.Problem) (*problemRow, error) {
	row := &problemRow{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		DocumentID:    p.DocumentID,
		PageNumber:    p.PageNumber,
		Status:        string(p.Status),
		ExtractedText: p.ExtractedText,
		Error:         p.Error,
		SolutionCount: p.SolutionCount,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.MathExpressions != nil {
		raw, err := json.Marshal(p.MathExpressions)
		if err != nil {
			return nil, err
		}
		row.MathExpressions = datatypes.JSON(raw)
	}
	return row, nil
}

func (row *problemRow) toDomain() (*domain.Problem, error) {
	p := &domain.Problem{
		ID:            row.ID,
		OwnerID:       row.OwnerID,
		DocumentID:    row.DocumentID,
		PageNumber:    row.PageNumber,
		Status:        domain.ProblemStatus(row.Status),
		ExtractedText: row.ExtractedText,
		Error:         row.Error,
		SolutionCount: row.SolutionCount,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if len(row.MathExpressions) > 0 {
		exprs := []string{}
		if err := json.Unmarshal(row.MathExpressions, &exprs); err != nil {
			return nil, err
		}
		p.MathExpressions = exprs
	}
	return p, nil
}

func solutionToRow(s *domain.Solution) (*solutionRow, error) {
	row := &solutionRow{
		ID:             s.ID,
		ProblemID:      s.ProblemID,
		OwnerID:        s.OwnerID,
		Status:         string(s.Status),
		MathExpression: s.MathExpression,
		FinalAnswer:    s.FinalAnswer,
		Error:          s.Error,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.SolutionSteps != nil {
		raw, err := json.Marshal([]domain.SolutionStep(s.SolutionSteps))
		if err != nil {
			return nil, err
		}
		row.SolutionSteps = datatypes.JSON(raw)
	}
	return row, nil
}

func (row *solutionRow) toDomain() (*domain.Solution, error) {
	s := &domain.Solution{
		ID:             row.ID,
		ProblemID:      row.ProblemID,
		OwnerID:        row.OwnerID,
		Status:         domain.SolutionStatus(row.Status),
		MathExpression: row.MathExpression,
		FinalAnswer:    row.FinalAnswer,
		Error:          row.Error,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if len(row.SolutionSteps) > 0 {
		steps := []domain.SolutionStep{}
		if err := json.Unmarshal(row.SolutionSteps, &steps); err != nil {
			return nil, err
		}
		s.SolutionSteps = domain.SolutionSteps(steps)
	}
	return s, nil
}
