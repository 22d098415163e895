// Package query holds the declarative description of one backend query.
// Fields may be deferred: they are evaluated in a single resolution pass
// right before the result handles are built, after systematic variations
// had the chance to rewrite them.
package query

import (
	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/selection"
	"github.com/decibelcooper/shapes/variable"
)

// Field is either a literal value or a deferred computation of one.
type Field[T any] struct {
	value T
	thunk func() (T, error)
}

func Literal[T any](v T) Field[T] {
	return Field[T]{value: v}
}

func Deferred[T any](f func() (T, error)) Field[T] {
	return Field[T]{thunk: f}
}

func (f Field[T]) IsDeferred() bool {
	return f.thunk != nil
}

func (f Field[T]) Resolve() (T, error) {
	if f.thunk == nil {
		return f.value, nil
	}
	return f.thunk()
}

// Map defers g applied to the resolved value of f.
func Map[T any](f Field[T], g func(T) (T, error)) Field[T] {
	return Deferred(func() (T, error) {
		v, err := f.Resolve()
		if err != nil {
			return v, err
		}
		return g(v)
	})
}

// Spec describes one query before resolution.
type Spec struct {
	Name       Field[string]
	InputFiles Field[[]string]
	// Channel and Pipeline make up the folder holding the n-tuple tree.
	Channel  string
	Pipeline Field[string]
	Cuts     Field[*selection.Cuts]
	Weights  Field[*selection.Weights]
	// Variable is nil for counts.
	Variable *variable.Variable
}

// Resolved is a fully evaluated Spec.
type Resolved struct {
	Name       string
	InputFiles []string
	Folder     string
	Cuts       *selection.Cuts
	Weights    *selection.Weights
	Variable   *variable.Variable
}

// Folder is the tree path of an n-tuple written by pipeline for channel.
func Folder(channel, pipeline string) string {
	return channel + "_" + pipeline + "/ntuple"
}

// Resolve evaluates every field of s.
func (s Spec) Resolve() (Resolved, error) {
	var (
		r   Resolved
		err error
	)
	if r.Name, err = s.Name.Resolve(); err != nil {
		return r, errors.Wrap(err, "resolving name")
	}
	if r.InputFiles, err = s.InputFiles.Resolve(); err != nil {
		return r, errors.Wrapf(err, "resolving input files of %s", r.Name)
	}
	pipeline, err := s.Pipeline.Resolve()
	if err != nil {
		return r, errors.Wrapf(err, "resolving pipeline of %s", r.Name)
	}
	r.Folder = Folder(s.Channel, pipeline)
	if r.Cuts, err = s.Cuts.Resolve(); err != nil {
		return r, errors.Wrapf(err, "resolving cuts of %s", r.Name)
	}
	if r.Weights, err = s.Weights.Resolve(); err != nil {
		return r, errors.Wrapf(err, "resolving weights of %s", r.Name)
	}
	if r.Cuts == nil {
		r.Cuts = &selection.Cuts{}
	}
	if r.Weights == nil {
		r.Weights = &selection.Weights{}
	}
	if s.Variable != nil {
		v := *s.Variable
		r.Variable = &v
	}
	return r, nil
}
