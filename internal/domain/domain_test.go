package domain

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestProblemLifecycleKeepsFieldsTogether(t *testing.T) {
	t.Parallel()
	now := time.Now()

	p := NewProblem("caller", uuid.New(), 1, now)
	if err := p.Validate(); err != nil {
		t.Fatalf("new problem invalid: %v", err)
	}
	if p.ExtractedText != nil || p.MathExpressions != nil {
		t.Fatalf("processing problem carries extraction: %+v", p)
	}

	p.Complete("Solve 2x + 5 = 15", nil, now)
	if err := p.Validate(); err != nil {
		t.Fatalf("completed problem invalid: %v", err)
	}
	if p.MathExpressions == nil || len(p.MathExpressions) != 0 {
		t.Fatalf("expressions: want empty non-nil, got %#v", p.MathExpressions)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"math_expressions":[]`) {
		t.Fatalf("expected an empty expressions array: %s", raw)
	}
	if strings.Contains(string(raw), "OwnerID") {
		t.Fatalf("owner leaked on the wire: %s", raw)
	}
}

func TestProblemValidateRejectsMixedState(t *testing.T) {
	t.Parallel()
	text := "x"
	p := NewProblem("caller", uuid.New(), 1, time.Now())
	p.ExtractedText = &text
	if err := p.Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("processing with text: want ErrInvalidArgument, got %v", err)
	}

	p.Status = ProblemCompleted
	if err := p.Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("completed without expressions: want ErrInvalidArgument, got %v", err)
	}
}

func TestProblemCloneIsDeep(t *testing.T) {
	t.Parallel()
	p := NewProblem("caller", uuid.New(), 2, time.Now())
	p.Complete("text", []string{"2x + 5 = 15"}, time.Now())

	c := p.Clone()
	*c.ExtractedText = "changed"
	c.MathExpressions[0] = "changed"
	if *p.ExtractedText != "text" || p.MathExpressions[0] != "2x + 5 = 15" {
		t.Fatalf("clone shares storage: text=%q expressions=%q", *p.ExtractedText, p.MathExpressions)
	}
}

func TestSolutionStepsJSONKeepsOrder(t *testing.T) {
	t.Parallel()
	steps := SolutionSteps{}
	for i := 1; i <= 11; i++ {
		steps = append(steps, SolutionStep{Expression: "e"})
	}
	steps[0].Name = "step1"

	raw, err := json.Marshal(steps)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	order := regexp.MustCompile(`^\{"step1":"e","step2":"e",.*"step10":"e","step11":"e"\}$`)
	if !order.Match(raw) {
		t.Fatalf("steps out of order: %s", raw)
	}

	var back SolutionSteps
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 11 || back[9].Name != "step10" {
		t.Fatalf("decoded steps: %+v", back)
	}
}

func TestSolutionNilStepsEncodeAsNull(t *testing.T) {
	t.Parallel()
	s := NewSolution("caller", uuid.New(), time.Now())
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, want := range []string{`"solution_steps":null`, `"math_expression":null`, `"status":"solving"`} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("missing %s in %s", want, raw)
		}
	}
}

func TestSolutionCompleteAndFail(t *testing.T) {
	t.Parallel()
	now := time.Now()
	s := NewSolution("caller", uuid.New(), now)
	s.Complete(SolveResult{
		Expression: "2x + 5 = 15",
		Steps:      []SolutionStep{{Name: "step1", Expression: "2x = 10"}},
		Answer:     "x = 5",
	}, now)
	if err := s.Validate(); err != nil {
		t.Fatalf("completed solution invalid: %v", err)
	}
	if s.Status != SolutionCompleted {
		t.Fatalf("status: want=%q got=%q", SolutionCompleted, s.Status)
	}

	f := NewSolution("caller", uuid.New(), now)
	f.Fail("timeout", now)
	if err := f.Validate(); err != nil {
		t.Fatalf("failed solution invalid: %v", err)
	}
	if !f.Status.Terminal() {
		t.Fatalf("failed is not terminal")
	}

	f.FinalAnswer = s.FinalAnswer
	if err := f.Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("failed with answer: want ErrInvalidArgument, got %v", err)
	}
}
