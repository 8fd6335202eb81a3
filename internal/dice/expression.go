// Package dice parses and rolls dice expressions and identifies individual
// dice across reroll rounds.
//
// An expression is a sum of terms. A term is either a dice term such as
// "3d6", "d20" or "4dF" (fudge dice, faces -1, 0 and +1) or an integer
// constant. Terms are joined with "+" or "-":
//
//	3d6 + 2
//	2d20 - 1d4
//	4dF
//
// Parsing is case-insensitive and ignores whitespace. Term positions are
// byte offsets into the normalized text returned by Normalize, so the same
// expression always yields the same die ids regardless of formatting.
package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrSyntax indicates the expression text could not be parsed.
var ErrSyntax = errors.New("invalid dice expression")

// ErrTooManyDice indicates the expression exceeds the configured dice bound.
var ErrTooManyDice = errors.New("too many dice in expression")

// MaxSides caps the number of sides of a single die.
const MaxSides = 10_000

// MaxConstant caps an integer term so that sums of terms cannot overflow.
const MaxConstant = 1_000_000

const fudgeKind = "df"

// NumberSource draws die faces.
type NumberSource interface {
	// Roll returns a value in [1, sides].
	Roll(sides int) int
}

// Expression is a parsed dice expression ready to be rolled repeatedly.
type Expression struct {
	text  string
	terms []term
	dice  int
}

type term struct {
	position int
	sign     int
	count    int
	sides    int
	fudge    bool
	constant int
	isDice   bool
}

func (t term) kind() string {
	if t.fudge {
		return fudgeKind
	}
	return "d" + strconv.Itoa(t.sides)
}

// Normalize lower-cases the text and strips all whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Parse compiles text into an Expression.
//
// maxDice bounds the total number of dice across all terms; zero or a
// negative value disables the bound.
func Parse(text string, maxDice int) (*Expression, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return nil, fmt.Errorf("%w: expression is empty", ErrSyntax)
	}

	p := parser{input: normalized}
	expr := &Expression{text: normalized}
	for !p.done() {
		sign := 1
		switch p.peek() {
		case '+':
			p.pos++
		case '-':
			sign = -1
			p.pos++
		default:
			if len(expr.terms) > 0 {
				return nil, p.errorf("expected '+' or '-'")
			}
		}
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		t.sign = sign
		if t.isDice {
			expr.dice += t.count
			if maxDice > 0 && expr.dice > maxDice {
				return nil, fmt.Errorf("%w: more than %d dice", ErrTooManyDice, maxDice)
			}
		}
		expr.terms = append(expr.terms, t)
	}
	return expr, nil
}

// Text returns the normalized expression text.
func (e *Expression) Text() string {
	return e.text
}

// DiceCount returns the total number of dice rolled per evaluation.
func (e *Expression) DiceCount() int {
	return e.dice
}

// Roll evaluates the expression with fresh draws from source.
func (e *Expression) Roll(source NumberSource, reEvaluate int) Result {
	result := Result{
		Expression: e.text,
		Terms:      make([]TermResult, 0, len(e.terms)),
	}
	for _, t := range e.terms {
		tr := TermResult{
			Position: t.position,
			Sign:     t.sign,
		}
		if !t.isDice {
			tr.Constant = t.constant
			result.Terms = append(result.Terms, tr)
			continue
		}
		tr.Kind = t.kind()
		tr.Sides = t.sides
		tr.Fudge = t.fudge
		tr.Dice = make([]Die, t.count)
		for i := range t.count {
			tr.Dice[i] = Die{
				ID: DieID{
					Position:   t.position,
					Kind:       tr.Kind,
					ReEvaluate: reEvaluate,
					Index:      i,
				},
				Value: rollFace(source, t.sides, t.fudge),
			}
		}
		result.Terms = append(result.Terms, tr)
	}
	result.Total = result.sum()
	return result
}

func rollFace(source NumberSource, sides int, fudge bool) int {
	if fudge {
		return source.Roll(3) - 2
	}
	return source.Roll(sides)
}

type parser struct {
	input string
	pos   int
}

func (p *parser) done() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at position %d", ErrSyntax, fmt.Sprintf(format, args...), p.pos)
}

func (p *parser) number() (int, bool, error) {
	start := p.pos
	for !p.done() && p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, false, nil
	}
	n, err := strconv.Atoi(p.input[start:p.pos])
	if err != nil {
		p.pos = start
		return 0, false, p.errorf("number out of range")
	}
	return n, true, nil
}

func (p *parser) term() (term, error) {
	t := term{position: p.pos}
	count, hasCount, err := p.number()
	if err != nil {
		return term{}, err
	}
	if p.peek() != 'd' {
		if !hasCount {
			return term{}, p.errorf("expected number or die")
		}
		if count > MaxConstant {
			p.pos = t.position
			return term{}, p.errorf("constant must be at most %d", MaxConstant)
		}
		t.constant = count
		return t, nil
	}
	p.pos++

	t.isDice = true
	t.count = 1
	if hasCount {
		t.count = count
	}
	if t.count < 1 {
		return term{}, p.errorf("dice count must be positive")
	}

	if p.peek() == 'f' {
		p.pos++
		t.fudge = true
		t.sides = 3
		return t, nil
	}
	sides, hasSides, err := p.number()
	if err != nil {
		return term{}, err
	}
	if !hasSides {
		return term{}, p.errorf("expected die sides")
	}
	if sides < 1 || sides > MaxSides {
		return term{}, p.errorf("die sides must be between 1 and %d", MaxSides)
	}
	t.sides = sides
	return t, nil
}
