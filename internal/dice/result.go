package dice

import (
	"strconv"
	"strings"
)

// Result captures one evaluation of an expression.
type Result struct {
	Expression string       `yaml:"expression"`
	Terms      []TermResult `yaml:"terms"`
	Total      int          `yaml:"total"`
}

// TermResult captures one term of an evaluated expression.
type TermResult struct {
	Position int    `yaml:"position"`
	Sign     int    `yaml:"sign"`
	Kind     string `yaml:"kind,omitempty"`
	Sides    int    `yaml:"sides,omitempty"`
	Fudge    bool   `yaml:"fudge,omitempty"`
	Constant int    `yaml:"constant,omitempty"`
	Dice     []Die  `yaml:"dice,omitempty"`
}

// IsDice reports whether the term rolled dice.
func (t TermResult) IsDice() bool {
	return t.Kind != ""
}

// Sum returns the unsigned value of the term.
func (t TermResult) Sum() int {
	if !t.IsDice() {
		return t.Constant
	}
	total := 0
	for _, d := range t.Dice {
		total += d.Value
	}
	return total
}

// Dice returns every die of the result in expression order.
func (r Result) Dice() []Die {
	var out []Die
	for _, t := range r.Terms {
		out = append(out, t.Dice...)
	}
	return out
}

// Find returns the die with the given id.
func (r Result) Find(id DieID) (Die, bool) {
	for _, t := range r.Terms {
		for _, d := range t.Dice {
			if d.ID == id {
				return d, true
			}
		}
	}
	return Die{}, false
}

// Sides returns the number of sides of the term that rolled id.
func (r Result) Sides(id DieID) (int, bool) {
	for _, t := range r.Terms {
		if t.Position == id.Position && t.Kind == id.Kind {
			return t.Sides, true
		}
	}
	return 0, false
}

// Reroll returns a copy of the result where every die accepted by marked
// has a fresh value and an incremented reroll count. Other dice keep their
// id and value.
func (r Result) Reroll(source NumberSource, marked func(DieID) bool) Result {
	out := Result{
		Expression: r.Expression,
		Terms:      make([]TermResult, len(r.Terms)),
	}
	for i, t := range r.Terms {
		copied := t
		if t.Dice != nil {
			copied.Dice = make([]Die, len(t.Dice))
			for j, d := range t.Dice {
				if marked != nil && marked(d.ID) {
					d.ID.Reroll++
					d.Value = rollFace(source, t.Sides, t.Fudge)
				}
				copied.Dice[j] = d
			}
		}
		out.Terms[i] = copied
	}
	out.Total = out.sum()
	return out
}

// Body lists the dice values per dice term, for example "[4, 5, 6]".
func (r Result) Body() string {
	parts := make([]string, 0, len(r.Terms))
	for _, t := range r.Terms {
		if !t.IsDice() {
			continue
		}
		values := make([]string, len(t.Dice))
		for i, d := range t.Dice {
			values[i] = strconv.Itoa(d.Value)
		}
		parts = append(parts, "["+strings.Join(values, ", ")+"]")
	}
	return strings.Join(parts, ", ")
}

func (r Result) sum() int {
	total := 0
	for _, t := range r.Terms {
		total += t.Sign * t.Sum()
	}
	return total
}

// Format returns the answer title and body. A non-empty label prefixes the
// title, for example "Attack: 1d20 = 17".
func (r Result) Format(label string) (title, body string) {
	title = r.Expression + " = " + strconv.Itoa(r.Total)
	if label != "" {
		title = label + ": " + title
	}
	return title, r.Body()
}
