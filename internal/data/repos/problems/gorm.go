package problems

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

type gormProblemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormProblemRepo(db *gorm.DB, baseLog *logger.Logger) ProblemRepo {
	return &gormProblemRepo{db: db, log: baseLog.With("repo", "ProblemRepo")}
}

// lockForUpdate adds SELECT ... FOR UPDATE on dialects that support it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (r *gormProblemRepo) Insert(ctx context.Context, problems []*domain.Problem) error {
	rows := make([]*problemRow, 0, len(problems))
	for _, p := range problems {
		if p == nil {
			continue
		}
		if err := p.Validate(); err != nil {
			return err
		}
		row, err := problemToRow(p)
		if err != nil {
			return fmt.Errorf("encode problem %s: %w", p.ID, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *gormProblemRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	var row problemRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (r *gormProblemRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Problem, error) {
	var rows []*problemRow
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("page_number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Problem, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *gormProblemRepo) CompareAndTransition(ctx context.Context, id uuid.UUID, expected domain.ProblemStatus, mutate func(*domain.Problem) error) (*domain.Problem, error) {
	var out *domain.Problem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row problemRow
		err := lockForUpdate(tx).Where("id = ?", id).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}
		cur, err := row.toDomain()
		if err != nil {
			return err
		}
		if cur.Status != expected {
			r.log.Debug("transition refused", "problem_id", id, "status", cur.Status, "expected", expected)
			return fmt.Errorf("problem %s is %s, expected %s: %w", id, cur.Status, expected, domain.ErrStatusConflict)
		}
		if err := mutate(cur); err != nil {
			return err
		}
		if err := cur.Validate(); err != nil {
			return err
		}
		next, err := problemToRow(cur)
		if err != nil {
			return err
		}
		res := tx.Model(&problemRow{}).
			Where("id = ? AND status = ?", id, string(expected)).
			Updates(map[string]interface{}{
				"status":           next.Status,
				"extracted_text":   next.ExtractedText,
				"math_expressions": next.MathExpressions,
				"error":            next.Error,
				"solution_count":   next.SolutionCount,
				"updated_at":       next.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			r.log.Warn("transition lost a concurrent update", "problem_id", id, "expected", expected)
			return fmt.Errorf("problem %s: %w", id, domain.ErrStatusConflict)
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormProblemRepo) Delete(ctx context.Context, id uuid.UUID, guard func(*domain.Problem) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row problemRow
		err := lockForUpdate(tx).Where("id = ?", id).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if guard != nil {
			cur, err := row.toDomain()
			if err != nil {
				return err
			}
			if err := guard(cur); err != nil {
				return err
			}
		}
		return tx.Where("id = ?", id).Delete(&problemRow{}).Error
	})
}

func (r *gormProblemRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&problemRow{}).Count(&n).Error
	return n, err
}

type gormSolutionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormSolutionRepo(db *gorm.DB, baseLog *logger.Logger) SolutionRepo {
	return &gormSolutionRepo{db: db, log: baseLog.With("repo", "SolutionRepo")}
}

func (r *gormSolutionRepo) Insert(ctx context.Context, s *domain.Solution) error {
	if s == nil {
		return fmt.Errorf("nil solution: %w", domain.ErrInvalidArgument)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	row, err := solutionToRow(s)
	if err != nil {
		return fmt.Errorf("encode solution %s: %w", s.ID, err)
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *gormSolutionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Solution, error) {
	var row solutionRow
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("solution %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (r *gormSolutionRepo) CompareAndTransition(ctx context.Context, id uuid.UUID, expected domain.SolutionStatus, mutate func(*domain.Solution) error) (*domain.Solution, error) {
	var out *domain.Solution
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row solutionRow
		err := lockForUpdate(tx).Where("id = ?", id).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("solution %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return err
		}
		cur, err := row.toDomain()
		if err != nil {
			return err
		}
		if cur.Status != expected {
			r.log.Debug("transition refused", "solution_id", id, "status", cur.Status, "expected", expected)
			return fmt.Errorf("solution %s is %s, expected %s: %w", id, cur.Status, expected, domain.ErrStatusConflict)
		}
		if err := mutate(cur); err != nil {
			return err
		}
		if err := cur.Validate(); err != nil {
			return err
		}
		next, err := solutionToRow(cur)
		if err != nil {
			return err
		}
		res := tx.Model(&solutionRow{}).
			Where("id = ? AND status = ?", id, string(expected)).
			Updates(map[string]interface{}{
				"status":          next.Status,
				"math_expression": next.MathExpression,
				"solution_steps":  next.SolutionSteps,
				"final_answer":    next.FinalAnswer,
				"error":           next.Error,
				"updated_at":      next.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			r.log.Warn("transition lost a concurrent update", "solution_id", id, "expected", expected)
			return fmt.Errorf("solution %s: %w", id, domain.ErrStatusConflict)
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
