// Package config reads an analysis description and assembles the registry
// of systematics it describes.
package config

import (
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/decibelcooper/shapes/backend"
	"github.com/decibelcooper/shapes/catalog"
	"github.com/decibelcooper/shapes/category"
	"github.com/decibelcooper/shapes/era"
	"github.com/decibelcooper/shapes/selection"
	"github.com/decibelcooper/shapes/systematics"
	"github.com/decibelcooper/shapes/variable"
	"github.com/decibelcooper/shapes/variation"
)

// Analysis is the YAML analysis description.
type Analysis struct {
	Analysis  string `yaml:"analysis"`
	Era       string `yaml:"era"`
	Channel   string `yaml:"channel"`
	Directory string `yaml:"directory"`
	// Catalog is the path of a datasets.json. Datasets, if set, is used
	// instead.
	Catalog    string                     `yaml:"catalog"`
	Datasets   map[string]catalog.Dataset `yaml:"datasets"`
	MCCampaign string                     `yaml:"mc_campaign"`

	// Source is one of memory, root and proio. Tables feed the memory
	// source.
	Source string  `yaml:"source"`
	Tables []Table `yaml:"tables"`

	Output  string `yaml:"output"`
	Workers int    `yaml:"workers"`
	Frames  bool   `yaml:"frames"`

	// ChannelCuts replaces the predefined baseline of the channel.
	ChannelCuts []Cut       `yaml:"channel_cuts"`
	Categories  []Category  `yaml:"categories"`
	Processes   []Process   `yaml:"processes"`
	Variations  []Variation `yaml:"variations"`
}

type Cut struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

type Variable struct {
	Name  string    `yaml:"name"`
	Bins  int       `yaml:"bins"`
	Low   float64   `yaml:"low"`
	High  float64   `yaml:"high"`
	Edges []float64 `yaml:"edges"`
}

type Category struct {
	Name     string   `yaml:"name"`
	Cuts     []Cut    `yaml:"cuts"`
	Variable Variable `yaml:"variable"`
}

// Process names an estimation method. Name defaults to the method.
// Backgrounds lists processes defined earlier: the simulated backgrounds
// subtracted by QCD, or the backgrounds other than W+jets in the WJSSOS
// sidebands. WJSSOS reads simulated W+jets from the process named by WJ,
// or from a private WJ_MC process when WJ is empty.
type Process struct {
	Name        string   `yaml:"name"`
	Method      string   `yaml:"method"`
	Backgrounds []string `yaml:"backgrounds"`
	WJ          string   `yaml:"wj"`

	ExtrapolationFactor float64 `yaml:"extrapolation_factor"`
	FQCD                float64 `yaml:"f_qcd"`
	HighMT              float64 `yaml:"high_mt"`
}

// Variation adds Down and Up shifts to the listed processes, or to all
// processes when none are listed. Kind pipeline reads the <name>Down and
// <name>Up pipelines, kind weight reapplies and removes the weight called
// name. Processes that never apply the weight keep their nominal shape.
type Variation struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"`
	Processes []string `yaml:"processes"`
}

type Table struct {
	File    string      `yaml:"file"`
	Tree    string      `yaml:"tree"`
	Columns []string    `yaml:"columns"`
	Rows    [][]float64 `yaml:"rows"`
}

func Load(path string) (*Analysis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading analysis")
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Analysis, error) {
	a := &Analysis{}
	if err := yaml.Unmarshal(raw, a); err != nil {
		return nil, errors.Wrap(err, "parsing analysis")
	}
	if a.Analysis == "" {
		return nil, errors.New("analysis has no name")
	}
	return a, nil
}

// Backend returns the engine over the configured event source.
func (a *Analysis) Backend() (*backend.Engine, error) {
	switch a.Source {
	case "", "root":
		return backend.NewEngine(backend.ROOTSource{}), nil
	case "proio":
		return backend.NewEngine(backend.ProioSource{}), nil
	case "memory":
		m := backend.NewMemory()
		for _, t := range a.Tables {
			m.Put(t.File, t.Tree, backend.Table{Columns: t.Columns, Rows: t.Rows})
		}
		return backend.NewEngine(m), nil
	}
	return nil, errors.Newf("unknown source %q", a.Source)
}

func (a *Analysis) catalog() (catalog.Catalog, error) {
	if a.Datasets != nil {
		return catalog.NewFile(a.Datasets), nil
	}
	if a.Catalog == "" {
		return nil, errors.New("neither catalog nor datasets given")
	}
	return catalog.Load(a.Catalog)
}

func (a *Analysis) channel() (*category.Channel, error) {
	if len(a.ChannelCuts) == 0 {
		return category.ByName(a.Channel)
	}
	cuts, err := buildCuts(a.ChannelCuts)
	if err != nil {
		return nil, errors.Wrapf(err, "channel %s", a.Channel)
	}
	return category.NewChannel(a.Channel, cuts), nil
}

func buildCuts(cuts []Cut) (*selection.Cuts, error) {
	set := &selection.Cuts{}
	for _, c := range cuts {
		if err := set.Add(selection.NewCut(c.Expr, c.Name)); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (v Variable) build() (variable.Variable, error) {
	var (
		b   variable.Binning
		err error
	)
	if len(v.Edges) > 0 {
		b, err = variable.NewVariableBinning(v.Edges...)
	} else {
		b, err = variable.NewConstantBinning(v.Bins, v.Low, v.High)
	}
	if err != nil {
		return variable.Variable{}, errors.Wrapf(err, "variable %s", v.Name)
	}
	return variable.New(v.Name, b), nil
}

func (c Category) build(ch *category.Channel) (*category.Category, error) {
	cuts, err := buildCuts(c.Cuts)
	if err != nil {
		return nil, errors.Wrapf(err, "category %s", c.Name)
	}
	v, err := c.Variable.build()
	if err != nil {
		return nil, errors.Wrapf(err, "category %s", c.Name)
	}
	return category.New(c.Name, ch, cuts, v)
}

// processes builds the processes in order, resolving references to
// processes defined before.
func (a *Analysis) processes(cfg systematics.Config) ([]*systematics.Process, error) {
	var (
		out    []*systematics.Process
		byName = make(map[string]*systematics.Process)
		data   *systematics.Process
	)
	lookup := func(names []string) ([]*systematics.Process, error) {
		ps := make([]*systematics.Process, 0, len(names))
		for _, n := range names {
			p, ok := byName[n]
			if !ok {
				return nil, errors.Newf("process %q is not defined before its use", n)
			}
			ps = append(ps, p)
		}
		return ps, nil
	}

	for _, pc := range a.Processes {
		name := pc.Name
		if name == "" {
			name = pc.Method
		}
		if _, ok := byName[name]; ok {
			return nil, errors.Newf("process %q defined twice", name)
		}
		var m systematics.Method
		switch pc.Method {
		case "data":
			m = systematics.NewData(cfg)
		case "ZTT":
			m = systematics.NewZTT(cfg)
		case "ZLL":
			m = systematics.NewZLL(cfg)
		case "WJ":
			m = systematics.NewWJ(cfg)
		case "TT":
			m = systematics.NewTT(cfg)
		case "VV":
			m = systematics.NewVV(cfg)
		case "QCD", "WJSSOS":
			if data == nil {
				return nil, errors.Newf("%s process %q needs a data process defined before it", pc.Method, name)
			}
			bgs, err := lookup(pc.Backgrounds)
			if err != nil {
				return nil, errors.Wrapf(err, "process %s", name)
			}
			if pc.Method == "QCD" {
				m = systematics.NewQCD(data, bgs, systematics.QCDOptions{ExtrapolationFactor: pc.ExtrapolationFactor})
				break
			}
			wj := systematics.NewProcess("WJ_MC", systematics.NewWJ(cfg))
			if pc.WJ != "" {
				ps, err := lookup([]string{pc.WJ})
				if err != nil {
					return nil, errors.Wrapf(err, "process %s", name)
				}
				wj = ps[0]
			}
			m = systematics.NewWJFromSSOS(data, wj, bgs, systematics.WJOptions{FQCD: pc.FQCD, HighMT: pc.HighMT})
		default:
			return nil, errors.Newf("process %q has unknown method %q", name, pc.Method)
		}
		p := systematics.NewProcess(name, m)
		if pc.Method == "data" && data == nil {
			data = p
		}
		byName[name] = p
		out = append(out, p)
	}
	return out, nil
}

func (v Variation) factory() (variation.Factory, error) {
	switch v.Kind {
	case "pipeline":
		return variation.DifferentPipelineFactory, nil
	case "weight":
		return variation.ReapplyRemoveWeightFactory, nil
	}
	return nil, errors.Newf("variation %s has unknown kind %q", v.Name, v.Kind)
}

// Build assembles the nominal systematic of every category and process,
// in that order, followed by the configured variations.
func Build(a *Analysis, b backend.Backend) (*systematics.Systematics, error) {
	e, err := era.ByName(a.Era)
	if err != nil {
		return nil, err
	}
	ch, err := a.channel()
	if err != nil {
		return nil, err
	}
	cat, err := a.catalog()
	if err != nil {
		return nil, err
	}
	cfg := systematics.Config{
		Era:        e,
		Directory:  a.Directory,
		Channel:    ch,
		Catalog:    cat,
		MCCampaign: a.MCCampaign,
	}
	processes, err := a.processes(cfg)
	if err != nil {
		return nil, err
	}

	reg := systematics.New(b, systematics.Options{Output: a.Output, Workers: a.Workers, Frames: a.Frames})
	for _, cc := range a.Categories {
		c, err := cc.build(ch)
		if err != nil {
			return nil, err
		}
		for _, p := range processes {
			reg.Add(systematics.NewSystematic(c, p, a.Analysis, e, nil))
		}
	}

	for _, vc := range a.Variations {
		f, err := vc.factory()
		if err != nil {
			return nil, err
		}
		down, up, err := variation.CreateVariations(vc.Name, f)
		if err != nil {
			return nil, err
		}
		var filters map[string][]string
		if len(vc.Processes) > 0 {
			filters = map[string][]string{"process": vc.Processes}
		}
		n, err := reg.AddSystVar([]variation.Variation{down, up}, filters)
		if err != nil {
			return nil, errors.Wrapf(err, "variation %s", vc.Name)
		}
		slog.Debug("configured variation", "name", vc.Name, "kind", vc.Kind, "systematics", n)
	}
	slog.Info("built analysis", "analysis", a.Analysis, "era", e.Name, "channel", ch.Name(),
		"categories", len(a.Categories), "processes", len(processes), "systematics", len(reg.Systematics()))
	return reg, nil
}
