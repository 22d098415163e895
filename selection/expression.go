// Package selection implements the named cut and weight expressions an
// analysis is configured with, and the name-unique collections that combine
// them into the selection and weight strings handed to the histogram backend.
package selection

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

var (
	ErrDuplicateName        = errors.New("duplicate name")
	ErrNotFound             = errors.New("not found")
	ErrUnparsableExpression = errors.New("expression is not a single binary comparison")
)

// Expression is a named selection or weight string.
type Expression interface {
	Name() string
	// Text is the bare expression, e.g. "pt_1>22".
	Text() string
	// Extract is the parenthesised text, ready to be multiplied.
	Extract() string
}

func embrace(s string) string {
	return "(" + s + ")"
}

// alnumName derives a name from an expression by dropping every character
// that is not a letter or a digit.
func alnumName(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, text)
}

var inverted = map[string]string{
	"<":  ">",
	">":  "<",
	"&&": "||",
	"||": "&&",
	"==": "!=",
	"!=": "==",
}

// tokens lists every operator the scanner recognises, longest first. The
// inclusive comparisons are recognised only so that their presence can mark
// a cut as opaque: they have no entry in the inversion table.
var tokens = []string{"&&", "||", "==", "!=", "<=", ">=", "<", ">"}

// operators returns the distinct operator tokens found in text.
func operators(text string) map[string]bool {
	found := make(map[string]bool)
	for i := 0; i < len(text); {
		matched := false
		for _, tok := range tokens {
			if strings.HasPrefix(text[i:], tok) {
				found[tok] = true
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return found
}

// Cut is a boolean selection. A cut whose text is a single binary
// comparison "left op right" with op one of < > && || == != is decomposed
// and can be inverted or have its operands replaced; any other text is kept
// as an opaque string.
//
// Cuts are values: Invert, WithValue, WithVariable and Renamed all return a
// new Cut.
type Cut struct {
	name   string
	text   string
	left   string
	op     string
	right  string
	parsed bool
}

// NewCut creates a cut. An empty name is derived from the alphanumeric
// characters of the text.
func NewCut(text, name string) *Cut {
	if name == "" {
		name = alnumName(text)
	}
	c := &Cut{name: name, text: text}

	found := operators(text)
	if len(found) != 1 {
		return c
	}
	var op string
	for tok := range found {
		op = tok
	}
	if _, ok := inverted[op]; !ok {
		return c
	}
	parts := strings.Split(text, op)
	if len(parts) != 2 {
		return c
	}
	left, right := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if left == "" || right == "" {
		return c
	}
	c.left, c.op, c.right, c.parsed = left, op, right, true
	return c
}

func (c *Cut) Name() string     { return c.name }
func (c *Cut) Text() string     { return c.text }
func (c *Cut) Extract() string  { return embrace(c.text) }
func (c *Cut) Parsed() bool     { return c.parsed }
func (c *Cut) Operator() string { return c.op }
func (c *Cut) Variable() string { return c.left }

// Value parses the right operand as a number.
func (c *Cut) Value() (float64, error) {
	if !c.parsed {
		return 0, errors.Wrapf(ErrUnparsableExpression, "cut %q (%s)", c.name, c.text)
	}
	return strconv.ParseFloat(c.right, 64)
}

func (c *Cut) rebuild(left, op, right string) *Cut {
	return &Cut{
		name:   c.name,
		text:   left + op + right,
		left:   left,
		op:     op,
		right:  right,
		parsed: true,
	}
}

// Invert negates the comparison operator.
func (c *Cut) Invert() (*Cut, error) {
	if !c.parsed {
		return nil, errors.Wrapf(ErrUnparsableExpression, "cannot invert cut %q (%s)", c.name, c.text)
	}
	return c.rebuild(c.left, inverted[c.op], c.right), nil
}

// WithValue replaces the right operand by v.
func (c *Cut) WithValue(v float64) (*Cut, error) {
	if !c.parsed {
		return nil, errors.Wrapf(ErrUnparsableExpression, "cannot set value of cut %q (%s)", c.name, c.text)
	}
	return c.rebuild(c.left, c.op, strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// WithVariable replaces the left operand.
func (c *Cut) WithVariable(variable string) (*Cut, error) {
	if !c.parsed {
		return nil, errors.Wrapf(ErrUnparsableExpression, "cannot set variable of cut %q (%s)", c.name, c.text)
	}
	return c.rebuild(variable, c.op, c.right), nil
}

func (c *Cut) Renamed(name string) *Cut {
	n := *c
	n.name = name
	return &n
}

func (c *Cut) String() string {
	return c.name + ": " + c.text
}

// Weight is a multiplicative event weight expression.
type Weight struct {
	name string
	text string
}

// NewWeight creates a weight. An empty name is derived from the text like
// for cuts.
func NewWeight(text, name string) *Weight {
	if name == "" {
		name = alnumName(text)
	}
	return &Weight{name: name, text: text}
}

func (w *Weight) Name() string    { return w.name }
func (w *Weight) Text() string    { return w.text }
func (w *Weight) Extract() string { return embrace(w.text) }

func (w *Weight) String() string {
	return w.name + ": " + w.text
}

// Constant is a weight given by a number, e.g. "0.9", or by a single
// per-event quantity, e.g. "generatorWeight".
type Constant struct {
	name string
	text string
}

func NewConstant(text, name string) *Constant {
	if name == "" {
		name = text
	}
	return &Constant{name: name, text: text}
}

func (c *Constant) Name() string    { return c.name }
func (c *Constant) Text() string    { return c.text }
func (c *Constant) Extract() string { return embrace(c.text) }

// Invert returns the reciprocal: numerically for numbers, otherwise by
// toggling a "1.0/" prefix.
func (c *Constant) Invert() *Constant {
	if f, err := strconv.ParseFloat(c.text, 64); err == nil {
		return &Constant{name: c.name, text: strconv.FormatFloat(1.0/f, 'g', -1, 64)}
	}
	if strings.HasPrefix(c.text, "1.0/") {
		return &Constant{name: c.name, text: strings.TrimPrefix(c.text, "1.0/")}
	}
	return &Constant{name: c.name, text: "1.0/" + c.text}
}

func (c *Constant) String() string {
	return c.name + ": " + c.text
}
