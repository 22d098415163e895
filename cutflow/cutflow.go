// Package cutflow counts the events surviving each stage of a selection.
package cutflow

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"

	"github.com/decibelcooper/shapes/backend"
	"github.com/decibelcooper/shapes/histo"
	"github.com/decibelcooper/shapes/query"
	"github.com/decibelcooper/shapes/selection"
)

// Stage is the weighted yield after the cuts up to and including Name.
type Stage struct {
	Name  string
	Yield float64
	// Efficiency is relative to the base stage, Relative to the stage
	// before.
	Efficiency float64
	Relative   float64
}

// Options configures Compute.
type Options struct {
	// BaseStage indexes the stage absolute efficiencies divide by. Stage 0
	// applies no cut.
	BaseStage int
}

// Cutflow holds one count per cumulative stage: stage 0 applies no cut,
// stage k the first k cuts.
type Cutflow struct {
	name    string
	stages  []string
	handles []*histo.Handle
}

func New(name string, files []string, folder string, cuts *selection.Cuts, weights *selection.Weights) *Cutflow {
	if weights == nil {
		weights = &selection.Weights{}
	}
	c := &Cutflow{name: name}
	all := cuts.All()
	for k := 0; k <= len(all); k++ {
		stage := "none"
		if k > 0 {
			stage = all[k-1].Name()
		}
		c.stages = append(c.stages, stage)
		c.handles = append(c.handles, histo.New(query.Resolved{
			Name:       name + "_" + strconv.Itoa(k) + "_" + stage,
			InputFiles: files,
			Folder:     folder,
			Cuts:       selection.MustCuts(all[:k]...),
			Weights:    weights,
		}))
	}
	return c
}

func (c *Cutflow) Name() string { return c.name }

// Handles returns the stage counts in stage order.
func (c *Cutflow) Handles() []*histo.Handle {
	return append([]*histo.Handle(nil), c.handles...)
}

// Register adds the stage counts to holder.
func (c *Cutflow) Register(holder *histo.Holder) error {
	return holder.Add(c.handles...)
}

// Run produces the stage counts on b with at most workers queries in
// flight.
func (c *Cutflow) Run(ctx context.Context, b backend.Backend, workers int) error {
	holder := histo.NewHolder()
	if err := c.Register(holder); err != nil {
		return err
	}
	return holder.ProduceClassic(ctx, b, workers)
}

// Compute returns the stages with their efficiencies. A zero denominator
// gives a zero efficiency.
func (c *Cutflow) Compute(opts Options) ([]Stage, error) {
	if opts.BaseStage < 0 || opts.BaseStage >= len(c.handles) {
		return nil, errors.Newf("base stage %d out of range [0, %d)", opts.BaseStage, len(c.handles))
	}
	stages := make([]Stage, len(c.handles))
	for i, h := range c.handles {
		r, err := h.Result()
		if err != nil {
			return nil, errors.Wrapf(err, "cutflow %s", c.name)
		}
		stages[i] = Stage{Name: c.stages[i], Yield: r.Integral()}
	}
	base := stages[opts.BaseStage].Yield
	for i := range stages {
		stages[i].Efficiency = ratio(stages[i].Yield, base)
		if i == 0 {
			stages[i].Relative = 1
			continue
		}
		stages[i].Relative = ratio(stages[i].Yield, stages[i-1].Yield)
	}
	return stages, nil
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Table renders stages.
func Table(w io.Writer, stages []Stage) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"stage", "cut", "yield", "efficiency", "relative"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i, s := range stages {
		table.Append([]string{
			strconv.Itoa(i),
			s.Name,
			fmt.Sprintf("%.6g", s.Yield),
			fmt.Sprintf("%.4f", s.Efficiency),
			fmt.Sprintf("%.4f", s.Relative),
		})
	}
	table.Render()
}
