// Package histo turns resolved queries into result handles, deduplicates
// identical queries, dispatches them to a backend and writes the realized
// shapes to an output container.
package histo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/backend"
	"github.com/decibelcooper/shapes/query"
	"github.com/decibelcooper/shapes/selection"
	"github.com/decibelcooper/shapes/variable"
)

// ErrNotReady is returned when reading the result of a handle that has not
// been produced yet.
var ErrNotReady = errors.New("result not produced yet")

const (
	domainQuery   = "shapes/query/v1"
	domainDerived = "shapes/derived/v1"
)

// hashWithDomain hashes the length-prefixed parts under domain. The null
// byte separates domain and content.
func hashWithDomain(domain string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	for _, p := range parts {
		h.Write([]byte(strconv.Itoa(len(p))))
		h.Write([]byte{':'})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Handle is a histogram (when a variable is set) or a count (when it is
// not) awaiting its numeric result.
type Handle struct {
	name     string
	files    []string
	folder   string
	cuts     *selection.Cuts
	weights  *selection.Weights
	variable *variable.Variable
	key      string
	derived  bool

	result *backend.Result
}

// New builds the handle for r. Its cache key covers every input that
// influences the numeric result and is fixed from here on.
func New(r query.Resolved) *Handle {
	h := &Handle{
		name:     r.Name,
		files:    append([]string(nil), r.InputFiles...),
		folder:   r.Folder,
		cuts:     r.Cuts.Copy(),
		weights:  r.Weights.Copy(),
		variable: r.Variable,
	}
	parts := []string{h.name, strconv.Itoa(len(h.files))}
	parts = append(parts, h.files...)
	parts = append(parts, h.cuts.Expand(), h.weights.Extract(), h.folder)
	if h.variable != nil {
		parts = append(parts, h.variable.Name, h.variable.Binning.String())
	}
	h.key = hashWithDomain(domainQuery, parts...)

	slog.Debug("booked query", "name", h.name, "files", h.files, "folder", h.folder,
		"selection", h.cuts.Expand(), "weight", h.weights.Extract(), "variable", h.variableName())
	return h
}

// Derive wraps a shape computed from other results, such as a data-driven
// estimate. It is ready from the start and never dispatched to a backend.
func Derive(name string, r *backend.Result) *Handle {
	return &Handle{
		name:    name,
		key:     hashWithDomain(domainDerived, name),
		cuts:    &selection.Cuts{},
		weights: &selection.Weights{},
		derived: true,
		result:  r,
	}
}

func (h *Handle) Name() string    { return h.name }
func (h *Handle) Key() string     { return h.key }
func (h *Handle) Folder() string  { return h.folder }
func (h *Handle) IsCount() bool   { return h.variable == nil }
func (h *Handle) IsDerived() bool { return h.derived }
func (h *Handle) Ready() bool     { return h.result != nil }
func (h *Handle) Files() []string { return append([]string(nil), h.files...) }
func (h *Handle) Cuts() string    { return h.cuts.Expand() }
func (h *Handle) Weights() string { return h.weights.Extract() }

func (h *Handle) variableName() string {
	if h.variable == nil {
		return ""
	}
	return h.variable.Name
}

// VariableName is empty for counts.
func (h *Handle) VariableName() string { return h.variableName() }

// Request translates the handle into a backend request.
func (h *Handle) Request() backend.Request {
	req := backend.Request{
		Files:     h.Files(),
		Tree:      h.folder,
		Selection: h.cuts.Expand(),
		Weight:    h.weights.Extract(),
	}
	if h.variable != nil {
		req.Variable = h.variable.Name
		req.Binning = h.variable.Binning
	}
	return req
}

// Create executes the handle's query on b and stores the result.
func (h *Handle) Create(ctx context.Context, b backend.Backend) error {
	r, err := b.Execute(ctx, h.Request())
	if err != nil {
		h.logFailure(err)
		return errors.Wrapf(err, "creating %s", h.name)
	}
	h.Bind(r)
	return nil
}

func (h *Handle) logFailure(err error) {
	slog.Error("creating result failed", "name", h.name, "files", h.files, "folder", h.folder,
		"selection", h.cuts.Expand(), "weight", h.weights.Extract(), "variable", h.variableName(), "err", err)
}

// Bind attaches a result computed elsewhere, e.g. by a frame or by the
// handle with the same key that survived deduplication.
func (h *Handle) Bind(r *backend.Result) {
	h.result = r
}

func (h *Handle) Result() (*backend.Result, error) {
	if h.result == nil {
		return nil, errors.Wrapf(ErrNotReady, "%s", h.name)
	}
	return h.result, nil
}

func (h *Handle) String() string {
	if h.derived {
		return h.name + " (derived)"
	}
	return h.name + " " + h.folder + " " + h.cuts.Expand() + " " + h.weights.Extract()
}
