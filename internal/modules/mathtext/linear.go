package mathtext

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode"

	"github.com/yungbote/pythagon-backend/internal/domain"
)

var (
	ErrNoEquation = errors.New("no solvable linear equation")
	ErrNoUnique   = errors.New("equation has no unique solution")
)

// linear is a*v + b.
type linear struct {
	a, b *big.Rat
}

type equation struct {
	raw      string
	variable rune
	lhs, rhs linear
}

// LinearSolver solves single-variable linear equations and records each
// rearrangement as a step.
type LinearSolver struct{}

func NewLinearSolver() *LinearSolver { return &LinearSolver{} }

func (s *LinearSolver) Solve(ctx context.Context, problem domain.Problem) (domain.SolveResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.SolveResult{}, err
	}
	candidates := append([]string(nil), problem.MathExpressions...)
	if problem.ExtractedText != nil {
		candidates = append(candidates, ExtractExpressions(*problem.ExtractedText)...)
	}
	var lastErr error = ErrNoEquation
	for _, c := range candidates {
		eq, err := parseEquation(c)
		if err != nil {
			continue
		}
		res, err := eq.solve()
		if err != nil {
			lastErr = err
			continue
		}
		return res, nil
	}
	return domain.SolveResult{}, lastErr
}

func (eq equation) solve() (domain.SolveResult, error) {
	v := string(eq.variable)
	a := new(big.Rat).Sub(eq.lhs.a, eq.rhs.a)
	c := new(big.Rat).Sub(eq.rhs.b, eq.lhs.b)
	if a.Sign() == 0 {
		return domain.SolveResult{}, ErrNoUnique
	}

	lines := []string{eq.raw}
	if eq.lhs.b.Sign() != 0 || eq.rhs.a.Sign() != 0 {
		lines = append(lines, collectVariable(eq.lhs.a, eq.rhs.a, v)+" = "+collectConstant(eq.rhs.b, eq.lhs.b))
		lines = append(lines, term(a, v)+" = "+ratString(c))
	}
	x := new(big.Rat).Quo(c, a)
	if a.Cmp(big.NewRat(1, 1)) != 0 {
		lines = append(lines, v+" = "+ratString(c)+"/"+wrapNeg(ratString(a)))
	}
	answer := v + " = " + ratString(x)
	lines = append(lines, answer)
	lines = dedupe(lines)

	steps := make([]domain.SolutionStep, len(lines))
	for i, l := range lines {
		steps[i] = domain.SolutionStep{Name: fmt.Sprintf("step%d", i+1), Expression: l}
	}
	return domain.SolveResult{Expression: eq.raw, Steps: steps, Answer: answer}, nil
}

func parseEquation(raw string) (equation, error) {
	raw = spaceRE.ReplaceAllString(strings.TrimSpace(Normalize(raw)), " ")
	sides := strings.Split(raw, "=")
	if len(sides) != 2 {
		return equation{}, ErrNoEquation
	}
	var variable rune
	lhs, err := parseSide(sides[0], &variable)
	if err != nil {
		return equation{}, err
	}
	rhs, err := parseSide(sides[1], &variable)
	if err != nil {
		return equation{}, err
	}
	if variable == 0 {
		return equation{}, ErrNoEquation
	}
	return equation{raw: raw, variable: variable, lhs: lhs, rhs: rhs}, nil
}

// parseSide reads a sum of terms like "2x", "-x", "0.5", "3*y". variable is
// shared across both sides so mixed variables are rejected.
func parseSide(s string, variable *rune) (linear, error) {
	s = strings.ReplaceAll(s, " ", "")
	out := linear{a: new(big.Rat), b: new(big.Rat)}
	if s == "" {
		return out, ErrNoEquation
	}
	i := 0
	for i < len(s) {
		sign := int64(1)
		signs := 0
		for i < len(s) && (s[i] == '+' || s[i] == '-') {
			if s[i] == '-' {
				sign = -sign
			}
			i++
			signs++
		}
		if i > 0 && signs == 0 {
			return out, ErrNoEquation
		}
		start := i
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}
		coef := big.NewRat(1, 1)
		hasNum := i > start
		if hasNum {
			if _, ok := coef.SetString(s[start:i]); !ok {
				return out, ErrNoEquation
			}
		}
		if i < len(s) && s[i] == '*' {
			if !hasNum {
				return out, ErrNoEquation
			}
			i++
		}
		hasVar := false
		if i < len(s) && unicode.IsLetter(rune(s[i])) {
			r := rune(s[i])
			if *variable != 0 && *variable != r {
				return out, ErrNoEquation
			}
			*variable = r
			hasVar = true
			i++
		}
		if !hasNum && !hasVar {
			return out, ErrNoEquation
		}
		coef.Mul(coef, big.NewRat(sign, 1))
		if hasVar {
			out.a.Add(out.a, coef)
		} else {
			out.b.Add(out.b, coef)
		}
	}
	return out, nil
}

// collectVariable renders left - right for the variable terms.
func collectVariable(left, right *big.Rat, v string) string {
	out := ""
	if left.Sign() != 0 {
		out = term(left, v)
	}
	switch right.Sign() {
	case 1:
		if out == "" {
			return "-" + term(right, v)
		}
		out += " - " + term(right, v)
	case -1:
		neg := new(big.Rat).Neg(right)
		if out == "" {
			return term(neg, v)
		}
		out += " + " + term(neg, v)
	}
	return out
}

// collectConstant renders right - left for the constant terms.
func collectConstant(right, left *big.Rat) string {
	out := ratString(right)
	switch left.Sign() {
	case 1:
		out += " - " + ratString(left)
	case -1:
		out += " + " + ratString(new(big.Rat).Neg(left))
	}
	return out
}

func dedupe(lines []string) []string {
	out := lines[:0]
	for i, l := range lines {
		if i > 0 && l == lines[i-1] {
			continue
		}
		out = append(out, l)
	}
	return out
}

func term(a *big.Rat, v string) string {
	switch {
	case a.Cmp(big.NewRat(1, 1)) == 0:
		return v
	case a.Cmp(big.NewRat(-1, 1)) == 0:
		return "-" + v
	default:
		return ratString(a) + v
	}
}

// ratString prints integers plainly, short terminating decimals as
// decimals and everything else as a fraction.
func ratString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	scale := big.NewInt(1)
	ten := big.NewInt(10)
	for digits := 1; digits <= 6; digits++ {
		scale.Mul(scale, ten)
		if new(big.Rat).Mul(r, new(big.Rat).SetInt(scale)).IsInt() {
			return r.FloatString(digits)
		}
	}
	return r.RatString()
}

func wrapNeg(s string) string {
	if strings.HasPrefix(s, "-") {
		return "(" + s + ")"
	}
	return s
}
