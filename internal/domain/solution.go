package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SolutionStatus string

const (
	SolutionSolving   SolutionStatus = "solving"
	SolutionCompleted SolutionStatus = "completed"
	SolutionFailed    SolutionStatus = "failed"
)

func (s SolutionStatus) Terminal() bool {
	return s == SolutionCompleted || s == SolutionFailed
}

type SolutionStep struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// SolutionSteps keeps derivation order. On the wire it is an object whose
// keys appear in step order ({"step1": "...", "step2": "..."}).
type SolutionSteps []SolutionStep

func (s SolutionSteps) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, step := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(step.Expression)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *SolutionSteps) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("solution_steps: expected object")
	}
	out := SolutionSteps{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var expr string
		if err := dec.Decode(&expr); err != nil {
			return fmt.Errorf("solution_steps %q: %w", key, err)
		}
		out = append(out, SolutionStep{Name: key, Expression: expr})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// Solution is one solving attempt against a completed Problem.
type Solution struct {
	ID             uuid.UUID      `json:"id"`
	ProblemID      uuid.UUID      `json:"problem_id"`
	OwnerID        string         `json:"-"`
	Status         SolutionStatus `json:"status"`
	MathExpression *string        `json:"math_expression"`
	SolutionSteps  SolutionSteps  `json:"solution_steps"`
	FinalAnswer    *string        `json:"final_answer"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func NewSolution(owner string, problemID uuid.UUID, now time.Time) Solution {
	return Solution{
		ID:        uuid.New(),
		ProblemID: problemID,
		OwnerID:   owner,
		Status:    SolutionSolving,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Solution) Complete(res SolveResult, now time.Time) {
	expr := res.Expression
	answer := res.Answer
	steps := make(SolutionSteps, len(res.Steps))
	copy(steps, res.Steps)
	s.Status = SolutionCompleted
	s.MathExpression = &expr
	s.SolutionSteps = steps
	s.FinalAnswer = &answer
	s.Error = ""
	s.UpdatedAt = now
}

func (s *Solution) Fail(reason string, now time.Time) {
	s.Status = SolutionFailed
	s.MathExpression = nil
	s.SolutionSteps = nil
	s.FinalAnswer = nil
	s.Error = reason
	s.UpdatedAt = now
}

func (s Solution) Clone() Solution {
	out := s
	if s.MathExpression != nil {
		v := *s.MathExpression
		out.MathExpression = &v
	}
	if s.FinalAnswer != nil {
		v := *s.FinalAnswer
		out.FinalAnswer = &v
	}
	if s.SolutionSteps != nil {
		out.SolutionSteps = make(SolutionSteps, len(s.SolutionSteps))
		copy(out.SolutionSteps, s.SolutionSteps)
	}
	return out
}

func (s Solution) Validate() error {
	present := 0
	if s.MathExpression != nil {
		present++
	}
	if s.SolutionSteps != nil {
		present++
	}
	if s.FinalAnswer != nil {
		present++
	}
	switch s.Status {
	case SolutionSolving, SolutionFailed:
		if present != 0 {
			return fmt.Errorf("solution %s: %s with derived fields: %w", s.ID, s.Status, ErrInvalidArgument)
		}
	case SolutionCompleted:
		if present != 3 {
			return fmt.Errorf("solution %s: completed with %d/3 derived fields: %w", s.ID, present, ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("solution %s: unknown status %q: %w", s.ID, s.Status, ErrInvalidArgument)
	}
	return nil
}
