package backend

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotRun is returned by Booking.Result before its frame ran.
	ErrNotRun = errors.New("frame has not run")
	// ErrFrameDone is returned when booking into or re-running a frame that
	// already ran.
	ErrFrameDone = errors.New("frame already ran")
)

// Source streams the events of one tree in one file. fn receives the
// values of vars, in order, for every event; the slice is reused between
// calls.
type Source interface {
	Scan(ctx context.Context, file, tree string, vars []string, fn func(event []float64) error) error
}

// checkEvery is the number of events between context checks.
const checkEvery = 4096

// Engine evaluates requests against the events of a Source.
type Engine struct {
	Source Source
}

func NewEngine(src Source) *Engine {
	return &Engine{Source: src}
}

// Execute runs req in a frame of its own. Both production paths share the
// same event loop.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	f := e.NewFrame(req.Files, req.Tree)
	b, err := f.Book(req)
	if err != nil {
		return nil, err
	}
	if err := f.Run(ctx); err != nil {
		return nil, err
	}
	return b.Result()
}

func (e *Engine) NewFrame(files []string, tree string) Frame {
	return &frame{
		src:   e.Source,
		files: append([]string(nil), files...),
		tree:  tree,
		prog:  NewProgram(),
	}
}

// Booking is a request registered in a frame.
type Booking struct {
	req    Request
	sel    Expr
	weight Expr
	value  Expr
	result *Result
	done   bool
}

func (b *Booking) Request() Request {
	return b.req
}

func (b *Booking) Result() (*Result, error) {
	if !b.done {
		return nil, ErrNotRun
	}
	return b.result, nil
}

func (b *Booking) fill(event []float64) {
	if b.sel(event) == 0 {
		return
	}
	w := b.weight(event)
	if b.value == nil {
		b.result.fill(0.5, w)
		return
	}
	b.result.fill(b.value(event), w)
}

type frame struct {
	src      Source
	files    []string
	tree     string
	prog     *Program
	bookings []*Booking
	ran      bool
}

func (f *frame) Book(req Request) (*Booking, error) {
	if f.ran {
		return nil, ErrFrameDone
	}
	b := &Booking{req: req, result: NewResult(req.Binning)}
	var err error
	if b.sel, err = f.prog.Compile(req.Selection); err != nil {
		return nil, errors.Wrap(err, "selection")
	}
	if b.weight, err = f.prog.Compile(req.Weight); err != nil {
		return nil, errors.Wrap(err, "weight")
	}
	if !req.IsCount() {
		if req.Variable == "" {
			return nil, errors.New("histogram request without variable")
		}
		if b.value, err = f.prog.Compile(req.Variable); err != nil {
			return nil, errors.Wrap(err, "variable")
		}
	}
	f.bookings = append(f.bookings, b)
	return b, nil
}

func (f *frame) Run(ctx context.Context) error {
	if f.ran {
		return ErrFrameDone
	}
	f.ran = true

	vars := f.prog.Vars()
	slog.Debug("running frame", "tree", f.tree, "files", len(f.files), "bookings", len(f.bookings), "branches", vars)
	n := 0
	for _, file := range f.files {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := f.src.Scan(ctx, file, f.tree, vars, func(event []float64) error {
			n++
			if n%checkEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			for _, b := range f.bookings {
				b.fill(event)
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "scanning %s:%s", file, f.tree)
		}
	}
	for _, b := range f.bookings {
		b.done = true
	}
	return nil
}
