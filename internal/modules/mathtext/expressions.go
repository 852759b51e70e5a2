package mathtext

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/yungbote/pythagon-backend/internal/domain"
)

var (
	// An equation: operand (op operand)* = operand (op operand)*.
	equationRE = regexp.MustCompile(`[-+]?\s*[A-Za-z0-9.()]+(?:\s*[-+*/^]\s*[A-Za-z0-9.()]+)*\s*=\s*[-+]?\s*[A-Za-z0-9.()]+(?:\s*[-+*/^]\s*[A-Za-z0-9.()]+)*`)
	wordRE     = regexp.MustCompile(`[A-Za-z]+`)
	spaceRE    = regexp.MustCompile(`\s+`)
)

var ErrNoText = errors.New("no text found on page")

// ExtractExpressions returns the equations found in text, in order of
// appearance and without duplicates. Prose is rejected: any alphabetic run
// longer than three letters disqualifies a candidate.
func ExtractExpressions(text string) []string {
	text = Normalize(text)
	out := []string{}
	seen := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		for _, m := range equationRE.FindAllString(line, -1) {
			m = spaceRE.ReplaceAllString(strings.TrimSpace(m), " ")
			if m == "" || seen[m] || hasProse(m) {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// Normalize maps typographic operators to ASCII.
func Normalize(s string) string {
	return strings.NewReplacer(
		"−", "-", // minus sign
		"–", "-",
		"×", "*",
		"·", "*",
		"÷", "/",
		"\r\n", "\n",
	).Replace(s)
}

func hasProse(s string) bool {
	for _, w := range wordRE.FindAllString(s, -1) {
		if len(w) > 3 {
			return true
		}
	}
	return false
}

// Extractor uses the unit text produced by the partitioner.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) Extract(ctx context.Context, unit domain.Unit) (domain.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Extraction{}, err
	}
	text := strings.TrimSpace(unit.Text)
	if text == "" {
		return domain.Extraction{}, ErrNoText
	}
	return domain.Extraction{Text: text, Expressions: ExtractExpressions(text)}, nil
}
