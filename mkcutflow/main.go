package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/pkg/profile"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/decibelcooper/shapes"
	"github.com/decibelcooper/shapes/config"
	"github.com/decibelcooper/shapes/cutflow"
	"github.com/decibelcooper/shapes/query"
	"github.com/decibelcooper/shapes/systematics"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: `+os.Args[0]+` [options] <analysis.yaml>

options:
`,
	)
	flag.PrintDefaults()
}

func main() {
	var (
		categoryName = flag.String("category", "", "category (default: the first one)")
		process      = flag.String("process", "data_obs", "process whose inputs are counted")
		base         = flag.Int("base", 0, "stage the absolute efficiencies divide by")
		workers      = flag.Int("workers", 4, "concurrent queries")
		plotFile     = flag.String("plot", "", "plot the efficiencies to this file")
		title        = flag.String("title", "", "plot title")
		verbose      = flag.Bool("v", false, "log every booked query")
		prof         = flag.Bool("profile", false, "write a CPU profile")
	)
	flag.Usage = printUsage
	flag.Parse()
	if flag.NArg() != 1 {
		printUsage()
		log.Fatal("Invalid arguments")
	}
	if *prof {
		defer profile.Start().Stop()
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	a, err := config.Load(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	a.Variations = nil
	b, err := a.Backend()
	if err != nil {
		log.Fatal(err)
	}
	reg, err := config.Build(a, b)
	if err != nil {
		log.Fatal(err)
	}
	s, err := find(reg, *categoryName, *process)
	if err != nil {
		log.Fatal(err)
	}
	c, err := newCutflow(s)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := c.Run(ctx, b, *workers); err != nil {
		log.Fatal(err)
	}
	stages, err := c.Compute(cutflow.Options{BaseStage: *base})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s, %s\n", s.Category().Name(), s.Process().Name)
	cutflow.Table(os.Stdout, stages)

	if *plotFile != "" {
		if err := plotStages(stages, *base, *title, *plotFile); err != nil {
			log.Fatal(err)
		}
	}
}

func find(reg *systematics.Systematics, categoryName, process string) (*systematics.Systematic, error) {
	for _, s := range reg.Systematics() {
		if categoryName != "" && s.Category().Name() != categoryName {
			continue
		}
		if s.Process().Name == process {
			return s, nil
		}
	}
	return nil, errors.Newf("no process %q in category %q", process, categoryName)
}

// newCutflow counts the inputs of s through the category cuts followed by
// the cuts of its estimation method.
func newCutflow(s *systematics.Systematic) (*cutflow.Cutflow, error) {
	m := s.Method()
	files, err := m.Files()
	if err != nil {
		return nil, err
	}
	weights, err := m.Weights()
	if err != nil {
		return nil, err
	}
	cuts, err := s.Category().Cuts().Concat(m.Cuts())
	if err != nil {
		return nil, err
	}
	name := s.Process().Name + "_" + s.Category().Name()
	return cutflow.New(name, files, query.Folder(s.Channel(), "nominal"), cuts, weights), nil
}

func plotStages(stages []cutflow.Stage, base int, title, output string) error {
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.X.Label.Text = "stage"
	p.Y.Label.Text = "efficiency"
	p.X.Tick.Marker = shapes.PreciseTicks{NSuggestedTicks: 5}
	p.Y.Tick.Marker = shapes.PreciseTicks{NSuggestedTicks: 5}

	n := stages[base].Yield
	points := make(plotter.XYs, len(stages))
	xErrors := make(plotter.XErrors, len(stages))
	yErrors := make(plotter.YErrors, len(stages))
	for i, s := range stages {
		points[i].X = float64(i)
		points[i].Y = s.Efficiency
		xErrors[i].Low, xErrors[i].High = 0.5, 0.5
		if n > 0 && s.Efficiency <= 1 {
			yErrors[i].Low = math.Sqrt((1 - s.Efficiency) * s.Efficiency / n)
			yErrors[i].High = yErrors[i].Low
		}
	}
	errPoints := plotutil.ErrorPoints{XYs: points, XErrors: xErrors, YErrors: yErrors}
	xerr, err := plotter.NewXErrorBars(errPoints)
	if err != nil {
		return err
	}
	yerr, err := plotter.NewYErrorBars(errPoints)
	if err != nil {
		return err
	}
	xerr.LineStyle.Color = color.RGBA{A: 255}
	yerr.LineStyle.Color = color.RGBA{A: 255}
	p.Add(xerr, yerr)

	return p.Save(6*vg.Inch, 4*vg.Inch, output)
}
