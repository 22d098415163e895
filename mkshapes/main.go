package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pkg/profile"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/decibelcooper/shapes"
	"github.com/decibelcooper/shapes/config"
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
		output   = flag.String("output", "", "output container, overriding the analysis")
		workers  = flag.Int("workers", 0, "concurrent queries, overriding the analysis")
		frames   = flag.Bool("frames", false, "share one event loop per input group")
		plotFile = flag.String("plot", "", "plot the nominal shapes of the first category to this file")
		title    = flag.String("title", "", "plot title")
		verbose  = flag.Bool("v", false, "log every booked query")
		prof     = flag.Bool("profile", false, "write a CPU profile")
		only     shapes.StringArrayFlags
		edges    shapes.FloatArrayFlags
	)
	flag.Var(&only, "process", "plot only this process (repeatable)")
	flag.Var(&edges, "edge", "bin edge replacing the binning of every category (repeatable)")
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
	if *output != "" {
		a.Output = *output
	}
	if *workers > 0 {
		a.Workers = *workers
	}
	if *frames {
		a.Frames = true
	}
	if len(edges.Array) > 0 {
		for i := range a.Categories {
			a.Categories[i].Variable.Edges = edges.Array
		}
	}

	b, err := a.Backend()
	if err != nil {
		log.Fatal(err)
	}
	reg, err := config.Build(a, b)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := reg.Produce(ctx); err != nil {
		log.Fatal(err)
	}
	if err := reg.Summary(os.Stdout); err != nil {
		log.Fatal(err)
	}

	if *plotFile != "" {
		if err := plotNominal(reg, only.Array, *title, *plotFile); err != nil {
			log.Fatal(err)
		}
	}
}

func lineColor(i int) color.Color {
	switch i % 4 {
	case 1:
		return color.RGBA{G: 255, A: 255}
	case 2:
		return color.RGBA{B: 255, A: 255}
	case 3:
		return color.RGBA{R: 255, B: 127, G: 127, A: 255}
	}
	return color.RGBA{A: 255}
}

func plotNominal(reg *systematics.Systematics, processes []string, title, output string) error {
	all := reg.Systematics()
	if len(all) == 0 {
		return nil
	}
	category := all[0].Category()

	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.X.Label.Text = category.VariableName()
	p.X.Tick.Marker = shapes.PreciseTicks{NSuggestedTicks: 5}
	p.Y.Tick.Marker = shapes.PreciseTicks{NSuggestedTicks: 5}

	n := 0
	for _, s := range all {
		if s.Category() != category || s.Variation().Name() != "Nominal" || !selected(s.Process().Name, processes) {
			continue
		}
		shape, err := s.Shape()
		if err != nil {
			return err
		}
		r, err := shape.Result()
		if err != nil {
			return err
		}

		h := hplot.NewH1D(r.H1D())
		h.FillColor = nil
		h.LineStyle.Color = lineColor(n)
		h.Infos.Style = hplot.HInfoNone
		p.Add(h)
		p.Legend.Add(s.Process().Name, h)
		n++
	}

	return p.Save(6*vg.Inch, 4*vg.Inch, output)
}

func selected(process string, processes []string) bool {
	if len(processes) == 0 {
		return true
	}
	for _, p := range processes {
		if p == process {
			return true
		}
	}
	return false
}
