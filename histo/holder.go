package histo

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/decibelcooper/shapes/backend"
)

var (
	// ErrDuplicateName is returned when a name is registered twice for
	// different queries.
	ErrDuplicateName = errors.New("name already registered for a different query")
	// ErrAlreadyProduced is returned when changing a holder after
	// production started.
	ErrAlreadyProduced = errors.New("results already produced")
)

// Holder collects the handles of all systematics, removes duplicate queries
// and produces the survivors.
type Holder struct {
	handles  []*Handle
	byName   map[string]*Handle
	byKey    map[string]*Handle
	derived  []*Handle
	produced bool
}

func NewHolder() *Holder {
	return &Holder{
		byName: make(map[string]*Handle),
		byKey:  make(map[string]*Handle),
	}
}

// Add registers handles. Registering a name again is allowed only for the
// same query; the copies are folded by RemoveDuplicates.
func (h *Holder) Add(handles ...*Handle) error {
	if h.produced {
		return ErrAlreadyProduced
	}
	batch := make(map[string]string, len(handles))
	for _, handle := range handles {
		key, ok := batch[handle.Name()]
		if prev, seen := h.byName[handle.Name()]; seen {
			key, ok = prev.Key(), true
		}
		if ok && key != handle.Key() {
			return errors.Wrapf(ErrDuplicateName, "%q", handle.Name())
		}
		batch[handle.Name()] = handle.Key()
	}
	for _, handle := range handles {
		if _, ok := h.byName[handle.Name()]; !ok {
			h.byName[handle.Name()] = handle
		}
		if _, ok := h.byKey[handle.Key()]; !ok {
			h.byKey[handle.Key()] = handle
		}
		h.handles = append(h.handles, handle)
	}
	return nil
}

// RemoveDuplicates keeps the first handle of every cache key and reports
// how many were dropped.
func (h *Holder) RemoveDuplicates() (int, error) {
	if h.produced {
		return 0, ErrAlreadyProduced
	}
	seen := make(map[string]bool, len(h.handles))
	kept := h.handles[:0]
	for _, handle := range h.handles {
		if seen[handle.Key()] {
			continue
		}
		seen[handle.Key()] = true
		kept = append(kept, handle)
	}
	removed := len(h.handles) - len(kept)
	for i := len(kept); i < len(h.handles); i++ {
		h.handles[i] = nil
	}
	h.handles = kept
	slog.Debug("removed duplicate queries", "removed", removed, "remaining", len(kept))
	return removed, nil
}

// Handles returns the registered handles in insertion order.
func (h *Holder) Handles() []*Handle {
	return append([]*Handle(nil), h.handles...)
}

func (h *Holder) Len() int {
	return len(h.handles)
}

// Lookup returns the handle registered first under key.
func (h *Holder) Lookup(key string) (*Handle, bool) {
	handle, ok := h.byKey[key]
	return handle, ok
}

func (h *Holder) pending() []*Handle {
	var todo []*Handle
	for _, handle := range h.handles {
		if !handle.Ready() {
			todo = append(todo, handle)
		}
	}
	return todo
}

func (h *Holder) start() error {
	if h.produced {
		return ErrAlreadyProduced
	}
	h.produced = true
	return nil
}

// ProduceClassic executes every handle as a query of its own, with at most
// workers queries in flight. The first failure cancels the rest.
func (h *Holder) ProduceClassic(ctx context.Context, b backend.Backend, workers int) error {
	if err := h.start(); err != nil {
		return err
	}
	todo := h.pending()
	slog.Info("producing results", "queries", len(todo), "workers", workers)

	if workers <= 1 {
		for _, handle := range todo {
			if err := handle.Create(ctx, b); err != nil {
				return err
			}
		}
		return nil
	}

	results := make([]*backend.Result, len(todo))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, handle := range todo {
		i, handle := i, handle
		g.Go(func() error {
			r, err := b.Execute(gctx, handle.Request())
			if err != nil {
				handle.logFailure(err)
				return errors.Wrapf(err, "creating %s", handle.Name())
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, handle := range todo {
		handle.Bind(results[i])
	}
	return nil
}

type frameGroup struct {
	files  []string
	folder string
	items  []*Handle
}

// ProduceFrames books the handles reading the same files and tree into one
// frame each and runs the frames in the order their groups first appear.
func (h *Holder) ProduceFrames(ctx context.Context, fb backend.FrameBackend) error {
	if err := h.start(); err != nil {
		return err
	}
	var (
		groups []*frameGroup
		index  = make(map[string]*frameGroup)
	)
	for _, handle := range h.pending() {
		id := strings.Join(handle.files, "\x00") + "\x01" + handle.folder
		g, ok := index[id]
		if !ok {
			g = &frameGroup{files: handle.Files(), folder: handle.folder}
			index[id] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, handle)
	}
	slog.Info("producing results", "frames", len(groups))

	for _, g := range groups {
		frame := fb.NewFrame(g.files, g.folder)
		bookings := make([]*backend.Booking, len(g.items))
		for i, handle := range g.items {
			b, err := frame.Book(handle.Request())
			if err != nil {
				handle.logFailure(err)
				return errors.Wrapf(err, "booking %s", handle.Name())
			}
			bookings[i] = b
		}
		if err := frame.Run(ctx); err != nil {
			return errors.Wrapf(err, "running frame over %s", g.folder)
		}
		for i, handle := range g.items {
			r, err := bookings[i].Result()
			if err != nil {
				return err
			}
			handle.Bind(r)
		}
	}
	return nil
}

// Record adds shapes derived from produced results. They are written after
// the handles, in the order they were recorded.
func (h *Holder) Record(derived ...*Handle) {
	h.derived = append(h.derived, derived...)
}

// Save writes every handle, then every derived shape, to c.
func (h *Holder) Save(c *Container) error {
	for _, handle := range append(h.Handles(), h.derived...) {
		r, err := handle.Result()
		if err != nil {
			return err
		}
		if err := c.Write(handle.Name(), r); err != nil {
			return err
		}
	}
	return nil
}
