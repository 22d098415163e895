package systematics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"

	"github.com/decibelcooper/shapes/backend"
	"github.com/decibelcooper/shapes/histo"
	"github.com/decibelcooper/shapes/variation"
)

// Options configures production.
type Options struct {
	// Output is the container the shapes are written to. Empty skips
	// writing.
	Output string
	// Workers bounds the number of concurrent queries. 0 and 1 run them
	// one after the other.
	Workers int
	// Frames shares one event loop among all queries over the same files
	// and tree. The backend must implement backend.FrameBackend.
	Frames bool
}

// Systematics is the registry of all systematics of an analysis.
type Systematics struct {
	backend     backend.Backend
	opts        Options
	systematics []*Systematic
	holder      *histo.Holder
}

func New(b backend.Backend, opts Options) *Systematics {
	return &Systematics{backend: b, opts: opts}
}

func (r *Systematics) Add(s ...*Systematic) {
	r.systematics = append(r.systematics, s...)
}

// Systematics returns the registered systematics in registration order.
func (r *Systematics) Systematics() []*Systematic {
	return append([]*Systematic(nil), r.systematics...)
}

// Holder is the result holder of the last Produce call.
func (r *Systematics) Holder() *histo.Holder {
	return r.holder
}

// AddSystVar registers a copy of every matching systematic for each of the
// variations. A systematic matches when, for every filter, its attribute of
// that name is one of the listed values. It returns how many systematics
// were added.
func (r *Systematics) AddSystVar(variations []variation.Variation, filters map[string][]string) (int, error) {
	for attr := range filters {
		if !knownAttribute(attr) {
			return 0, errors.Newf("unknown systematic attribute %q", attr)
		}
	}
	var added []*Systematic
	for _, s := range r.systematics {
		if !s.matches(filters) {
			continue
		}
		for _, v := range variations {
			added = append(added, s.WithVariation(v))
		}
	}
	r.systematics = append(r.systematics, added...)
	slog.Debug("added systematic variations", "variations", len(variations), "added", len(added))
	return len(added), nil
}

func knownAttribute(name string) bool {
	for _, a := range Attributes {
		if a == name {
			return true
		}
	}
	return false
}

func (s *Systematic) matches(filters map[string][]string) bool {
	for attr, values := range filters {
		got, _ := s.Attribute(attr)
		found := false
		for _, v := range values {
			if v == got {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Produce collects the queries of every systematic, runs each distinct one
// once, estimates all shapes and writes them out. Any failure aborts and
// removes the partial output.
func (r *Systematics) Produce(ctx context.Context) (err error) {
	var out *histo.Container
	if r.opts.Output != "" {
		if out, err = histo.Create(r.opts.Output); err != nil {
			return err
		}
		defer func() {
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				if rerr := os.Remove(r.opts.Output); rerr != nil {
					slog.Warn("could not remove incomplete output", "output", r.opts.Output, "err", rerr)
				}
			}
		}()
	}

	holder := histo.NewHolder()
	r.holder = holder
	for _, s := range r.systematics {
		handles, err := s.RootObjects()
		if err != nil {
			return err
		}
		if err := holder.Add(handles...); err != nil {
			return errors.Wrapf(err, "registering queries of %s", s.Name())
		}
	}
	removed, err := holder.RemoveDuplicates()
	if err != nil {
		return err
	}
	slog.Info("collected queries", "systematics", len(r.systematics), "queries", holder.Len(), "duplicates", removed)

	if r.opts.Frames {
		fb, ok := r.backend.(backend.FrameBackend)
		if !ok {
			return errors.Newf("backend %T cannot run frames", r.backend)
		}
		err = holder.ProduceFrames(ctx, fb)
	} else {
		err = holder.ProduceClassic(ctx, r.backend, r.opts.Workers)
	}
	if err != nil {
		return err
	}

	for _, s := range r.systematics {
		if err := s.Estimate(holder); err != nil {
			return err
		}
	}

	if out != nil {
		if err := holder.Save(out); err != nil {
			return err
		}
		slog.Info("wrote shapes", "output", r.opts.Output, "objects", out.Len())
	}
	return nil
}

// Summary renders one row per systematic. It fails if any systematic has
// no shape.
func (r *Systematics) Summary(w io.Writer) error {
	rows := make([][]string, 0, len(r.systematics))
	for _, s := range r.systematics {
		row, err := s.Summary()
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"name", "category", "process", "era", "channel", "systematic", "result"})
	table.AppendBulk(rows)
	table.Render()
	fmt.Fprintf(w, "(%d systematics)\n", len(rows))
	return nil
}
