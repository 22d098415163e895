package selection

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// neutral is what an empty collection expands to, so that multiplying it
// into a selection or weight is a no-op.
const neutral = "(1.0)"

// set is an ordered collection of expressions with unique names.
type set[E Expression] struct {
	items []E
}

func (s *set[E]) index(name string) int {
	for i, e := range s.items {
		if e.Name() == name {
			return i
		}
	}
	return -1
}

// Add appends e. A name that is already present is rejected and the
// collection is left unchanged.
func (s *set[E]) Add(e E) error {
	if s.index(e.Name()) >= 0 {
		return errors.Wrapf(ErrDuplicateName, "%q", e.Name())
	}
	s.items = append(s.items, e)
	return nil
}

func (s *set[E]) Get(name string) (E, error) {
	i := s.index(name)
	if i < 0 {
		var zero E
		return zero, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return s.items[i], nil
}

func (s *set[E]) Has(name string) bool {
	return s.index(name) >= 0
}

func (s *set[E]) Remove(name string) error {
	i := s.index(name)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	return nil
}

// Replace puts e at the position of the expression called name. e may carry
// a different name as long as it does not clash with another member.
func (s *set[E]) Replace(name string, e E) error {
	i := s.index(name)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	if j := s.index(e.Name()); j >= 0 && j != i {
		return errors.Wrapf(ErrDuplicateName, "%q", e.Name())
	}
	s.items[i] = e
	return nil
}

func (s *set[E]) Names() []string {
	names := make([]string, len(s.items))
	for i, e := range s.items {
		names[i] = e.Name()
	}
	return names
}

func (s *set[E]) Len() int {
	return len(s.items)
}

// All returns the members in insertion order.
func (s *set[E]) All() []E {
	return append([]E(nil), s.items...)
}

func (s *set[E]) join() string {
	if len(s.items) == 0 {
		return neutral
	}
	parts := make([]string, len(s.items))
	for i, e := range s.items {
		parts[i] = e.Extract()
	}
	return strings.Join(parts, "*")
}

// Cuts is the ordered selection applied to a query.
type Cuts struct {
	set[*Cut]
}

func NewCuts(cuts ...*Cut) (*Cuts, error) {
	c := &Cuts{}
	for _, cut := range cuts {
		if err := c.Add(cut); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustCuts is NewCuts for static tables; it panics on duplicate names.
func MustCuts(cuts ...*Cut) *Cuts {
	c, err := NewCuts(cuts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Expand multiplies all cuts into one selection string.
func (c *Cuts) Expand() string {
	return c.join()
}

// Extract returns the individual cut texts, e.g. for chained filters.
func (c *Cuts) Extract() []string {
	texts := make([]string, len(c.items))
	for i, cut := range c.items {
		texts[i] = cut.Text()
	}
	return texts
}

// Copy returns an independent collection. Cuts themselves are values and
// are shared.
func (c *Cuts) Copy() *Cuts {
	return &Cuts{set[*Cut]{items: c.All()}}
}

// Concat returns c followed by o.
func (c *Cuts) Concat(o *Cuts) (*Cuts, error) {
	n := c.Copy()
	for _, cut := range o.items {
		if err := n.Add(cut); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (c *Cuts) String() string {
	return c.Expand()
}

// Weights is the ordered product of event weights applied to a query.
type Weights struct {
	set[Expression]
}

func NewWeights(weights ...Expression) (*Weights, error) {
	w := &Weights{}
	for _, weight := range weights {
		if err := w.Add(weight); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// MustWeights is NewWeights for static tables; it panics on duplicate names.
func MustWeights(weights ...Expression) *Weights {
	w, err := NewWeights(weights...)
	if err != nil {
		panic(err)
	}
	return w
}

// Extract multiplies all weights into one weight string.
func (w *Weights) Extract() string {
	return w.join()
}

// Expand is an alias of Extract mirroring Cuts.
func (w *Weights) Expand() string {
	return w.join()
}

func (w *Weights) Copy() *Weights {
	return &Weights{set[Expression]{items: w.All()}}
}

func (w *Weights) Concat(o *Weights) (*Weights, error) {
	n := w.Copy()
	for _, weight := range o.items {
		if err := n.Add(weight); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Square applies the weight called name twice.
func (w *Weights) Square(name string) error {
	weight, err := w.Get(name)
	if err != nil {
		return err
	}
	squared := NewWeight(weight.Extract()+"*"+weight.Extract(), name)
	return w.Replace(name, squared)
}

func (w *Weights) String() string {
	return w.Extract()
}
