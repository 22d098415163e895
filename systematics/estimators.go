package systematics

import (
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/catalog"
	"github.com/decibelcooper/shapes/category"
	"github.com/decibelcooper/shapes/era"
	"github.com/decibelcooper/shapes/histo"
	"github.com/decibelcooper/shapes/query"
	"github.com/decibelcooper/shapes/selection"
)

// DefaultMCCampaign is the simulation campaign queried when Config leaves
// it empty.
const DefaultMCCampaign = "RunIISummer17MiniAOD"

// Config is what every estimator of one channel shares.
type Config struct {
	Era *era.Era
	// Directory holds one <nick>/<nick>.root n-tuple per dataset.
	Directory  string
	Channel    *category.Channel
	Catalog    catalog.Catalog
	MCCampaign string
}

func (c Config) campaign() string {
	if c.MCCampaign == "" {
		return DefaultMCCampaign
	}
	return c.MCCampaign
}

// ntuples maps dataset nicknames to n-tuple paths.
func (c Config) ntuples(nicks []string) []string {
	files := make([]string, len(nicks))
	for i, nick := range nicks {
		files[i] = filepath.Join(c.Directory, nick, nick+".root")
	}
	return files
}

// WeightPolicy, CutPolicy and FilePolicy are the parts an estimator is
// assembled from.
type (
	WeightPolicy func(Config) *selection.Weights
	CutPolicy    func() *selection.Cuts
	FilePolicy   func(Config) ([]string, error)
)

// UnitWeight is the neutral weight.
func UnitWeight(Config) *selection.Weights {
	return selection.MustWeights(selection.NewWeight("1.0", "constant"))
}

// NoCuts adds nothing to the category selection.
func NoCuts() *selection.Cuts {
	return &selection.Cuts{}
}

func hadronicTauSF() *selection.Weight {
	return selection.NewWeight("((gen_match_2 == 5)*0.95 + (gen_match_2 != 5))", "hadronic_tau_sf")
}

func ztautauWeights(c Config) *selection.Weights {
	return selection.MustWeights(
		selection.NewWeight("eventWeight", "eventWeight"),
		selection.NewWeight("zPtReweightWeight", "zPtReweightWeight"),
		hadronicTauSF(),
		c.Era.LumiWeight(),
	)
}

func wjetsWeights(c Config) *selection.Weights {
	return selection.MustWeights(
		hadronicTauSF(),
		selection.NewWeight("eventWeight", "eventWeight"),
		c.Era.LumiWeight(),
	)
}

func ttbarWeights(c Config) *selection.Weights {
	return selection.MustWeights(
		selection.NewWeight("topPtReweightWeight", "topPtReweightWeight"),
		selection.NewWeight("eventWeight", "eventWeight"),
		hadronicTauSF(),
		c.Era.LumiWeight(),
	)
}

func dibosonWeights(c Config) *selection.Weights {
	return selection.MustWeights(
		hadronicTauSF(),
		selection.NewWeight("eventWeight", "eventWeight"),
		c.Era.LumiWeight(),
	)
}

// CutsOf always returns the given cuts.
func CutsOf(cuts ...*selection.Cut) CutPolicy {
	return func() *selection.Cuts {
		return selection.MustCuts(cuts...)
	}
}

// DataFiles reads the collision data of the era for the channel.
func DataFiles(c Config) ([]string, error) {
	nicks, err := c.Era.DataFiles(c.Catalog, c.Channel)
	if err != nil {
		return nil, err
	}
	if len(nicks) == 0 {
		return nil, errors.Wrapf(catalog.ErrUnknownDataset, "data of era %s, channel %s", c.Era.Name, c.Channel.Name())
	}
	return c.ntuples(nicks), nil
}

// SimulationFiles concatenates the simulated datasets matching queries.
// Queries without campaign use the configured simulation campaign.
func SimulationFiles(queries ...catalog.Query) FilePolicy {
	return func(c Config) ([]string, error) {
		var nicks []string
		for _, q := range queries {
			if q.Campaign == "" {
				q.Campaign = c.campaign()
			}
			if q.Data == nil {
				q.Data = catalog.Bool(false)
			}
			found, err := c.Catalog.Query(q)
			if err != nil {
				return nil, err
			}
			nicks = append(nicks, found...)
		}
		if len(nicks) == 0 {
			return nil, errors.Wrapf(catalog.ErrUnknownDataset, "%+v", queries)
		}
		return c.ntuples(nicks), nil
	}
}

// estimator reads its shape directly from simulation or data: one query
// per systematic with the category cuts, its own cuts and weights.
type estimator struct {
	base
	cfg     Config
	weights WeightPolicy
	cuts    CutPolicy
	files   FilePolicy
}

// NewEstimator assembles a method from policies. Nil weights mean a unit
// weight, nil cuts no additional cuts; a nil file policy makes Files fail
// with ErrNotImplemented.
func NewEstimator(name, pipeline string, cfg Config, w WeightPolicy, c CutPolicy, f FilePolicy) Method {
	if w == nil {
		w = UnitWeight
	}
	if c == nil {
		c = NoCuts
	}
	return &estimator{
		base:    base{name: name, pipeline: pipeline},
		cfg:     cfg,
		weights: w,
		cuts:    c,
		files:   f,
	}
}

func (e *estimator) Weights() (*selection.Weights, error) {
	return e.weights(e.cfg), nil
}

func (e *estimator) Cuts() *selection.Cuts {
	return e.cuts()
}

func (e *estimator) Files() ([]string, error) {
	if e.files == nil {
		return nil, errors.Wrapf(ErrNotImplemented, "files of %s", e.name)
	}
	return e.files(e.cfg)
}

func (e *estimator) DefineRootObjects(s *Systematic) ([]query.Spec, error) {
	cuts, err := s.Category().Cuts().Concat(e.Cuts())
	if err != nil {
		return nil, errors.Wrapf(err, "cuts of %s", s.Name())
	}
	v := s.Category().Variable()
	e.state = queriesDefined
	return []query.Spec{{
		Name:       query.Literal(s.Name()),
		InputFiles: query.Deferred(e.Files),
		Channel:    s.Category().ChannelName(),
		Pipeline:   query.Literal(e.pipeline),
		Cuts:       query.Literal(cuts),
		Weights:    query.Deferred(e.Weights),
		Variable:   &v,
	}}, nil
}

func (e *estimator) CreateRootObjects(s *Systematic) error {
	specs, err := e.DefineRootObjects(s)
	if err != nil {
		return err
	}
	if specs, err = e.ApplySystematicVariations(s, specs); err != nil {
		return err
	}
	handles := make([]*histo.Handle, 0, len(specs))
	for _, spec := range specs {
		r, err := spec.Resolve()
		if err != nil {
			return errors.Wrapf(err, "resolving queries of %s", s.Name())
		}
		handles = append(handles, histo.New(r))
	}
	e.handles = handles
	e.state = resultsProduced
	return nil
}

func (e *estimator) DoEstimation(s *Systematic, _ *histo.Holder) (*histo.Handle, error) {
	return e.pick(s)
}

func (e *estimator) Clone() Method {
	n := *e
	n.base = e.reset()
	return &n
}

// NewData reads the collision data of the era.
func NewData(cfg Config) Method {
	return NewEstimator("data_obs", "nominal", cfg, UnitWeight, NoCuts, DataFiles)
}

// NewZTT is Drell-Yan to tau tau with a genuine hadronic tau.
func NewZTT(cfg Config) Method {
	return NewEstimator("ZTT", "nominal", cfg, ztautauWeights,
		CutsOf(selection.NewCut("gen_match_2==5", "ztt_genmatch_mt")),
		SimulationFiles(catalog.Query{
			Process:   "(DYJetsToLL_M10to50|DYJetsToLL_M50)",
			Generator: `madgraph\-pythia8`,
			Version:   "v1",
		}))
}

// NewZLL is Drell-Yan where the tau candidate is a lepton or a jet.
func NewZLL(cfg Config) Method {
	return NewEstimator("ZLL", "nominal", cfg, ztautauWeights,
		CutsOf(selection.NewCut("(gen_match_2<5||gen_match_2==6)", "zll_genmatch_mt")),
		SimulationFiles(catalog.Query{
			Process:   "(DYJetsToLL_M10to50|DYJetsToLL_M50)",
			Generator: `madgraph\-pythia8`,
			Version:   "v1",
		}))
}

func NewWJ(cfg Config) Method {
	return NewEstimator("WJ", "nominal", cfg, wjetsWeights, NoCuts,
		SimulationFiles(catalog.Query{
			Process:   "WJetsToLNu",
			Generator: "madgraph-pythia8",
		}))
}

func NewTT(cfg Config) Method {
	return NewEstimator("TT", "nominal", cfg, ttbarWeights, NoCuts,
		SimulationFiles(catalog.Query{Process: "TT"}))
}

// NewVV covers di-boson and single top production.
func NewVV(cfg Config) Method {
	return NewEstimator("VV", "nominal", cfg, dibosonWeights, NoCuts,
		SimulationFiles(
			catalog.Query{
				Process:   "(WWTo1L1Nu2Q|WZTo1L1Nu2Q|WZTo1L3Nu|WZTo2L2Q|ZZTo2L2Q)",
				Generator: "amcatnlo-pythia8",
			},
			catalog.Query{
				Process:   "ZZTo4L",
				Extension: "ext1",
				Generator: "amcatnlo-pythia8",
			},
			catalog.Query{
				Process:   "WZJToLLLNu",
				Generator: "pythia8",
			},
			catalog.Query{
				Process: "(STt-channelantitop4finclusiveDecays|STt-channeltop4finclusiveDecays|STtWantitop5finclusiveDecays|STtWtop5finclusiveDecays)",
			},
		))
}
