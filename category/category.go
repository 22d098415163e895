// Package category defines decay channels and the analysis categories
// (signal and control regions) selected within them.
package category

import (
	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/selection"
	"github.com/decibelcooper/shapes/variable"
)

// Channel is a final state together with its baseline selection.
type Channel struct {
	name string
	cuts *selection.Cuts
}

func NewChannel(name string, cuts *selection.Cuts) *Channel {
	if cuts == nil {
		cuts = &selection.Cuts{}
	}
	return &Channel{name: name, cuts: cuts}
}

func (c *Channel) Name() string { return c.name }

// Cuts returns a copy of the baseline selection.
func (c *Channel) Cuts() *selection.Cuts { return c.cuts.Copy() }

// MT is the muon + hadronic tau channel.
func MT() *Channel {
	return NewChannel("mt", selection.MustCuts(
		selection.NewCut("extraelec_veto<0.5", "extraelec_veto"),
		selection.NewCut("extramuon_veto<0.5", "extramuon_veto"),
		selection.NewCut("againstMuonTight3_2>0.5", "againstMuonTight"),
		selection.NewCut("dilepton_veto<0.5", "dilepton_veto"),
		selection.NewCut("againstElectronVLooseMVA6_2>0.5", "againstElectronVeto"),
		selection.NewCut("byTightIsolationMVArun2v1DBoldDMwLT_2>0.5", "tau_iso"),
		selection.NewCut("iso_1<0.15", "muon_iso"),
		selection.NewCut("q_1*q_2<0", "os"),
		selection.NewCut("trg_singlemuon==1", "trg_singlemuon"),
	))
}

// ET is the electron + hadronic tau channel.
func ET() *Channel {
	return NewChannel("et", selection.MustCuts(
		selection.NewCut("extraelec_veto<0.5", "extraelec_veto"),
		selection.NewCut("againstMuonLoose3_2>0.5", "againstMuonTight"),
		selection.NewCut("dilepton_veto<0.5", "dilepton_veto"),
		selection.NewCut("againstElectronTightMVA6_2>0.5", "againstElectronVeto"),
		selection.NewCut("byTightIsolationMVArun2v1DBoldDMwLT_2>0.5", "tau_iso"),
		selection.NewCut("iso_1<0.1", "ele_iso"),
		selection.NewCut("q_1*q_2<0", "os"),
		selection.NewCut("trg_singleelectron==1", "trg_singleelectron"),
	))
}

// EM is the electron + muon channel. It carries only the opposite-sign
// requirement.
func EM() *Channel {
	return NewChannel("em", selection.MustCuts(
		selection.NewCut("q_1*q_2<0", "os"),
	))
}

// ByName returns the predefined channel called name.
func ByName(name string) (*Channel, error) {
	switch name {
	case "mt":
		return MT(), nil
	case "et":
		return ET(), nil
	case "em":
		return EM(), nil
	}
	return nil, errors.Newf("unknown channel %q", name)
}

// Category is a named region of a channel histogrammed in one variable.
//
// The channel's baseline cuts are merged into the category when it is
// constructed; later changes to the channel do not reach existing
// categories.
type Category struct {
	name     string
	channel  *Channel
	cuts     *selection.Cuts
	variable variable.Variable
}

// New creates a category whose cuts are cuts followed by the channel's
// baseline cuts. A name used by both is an error.
func New(name string, channel *Channel, cuts *selection.Cuts, v variable.Variable) (*Category, error) {
	if cuts == nil {
		cuts = &selection.Cuts{}
	}
	merged, err := cuts.Concat(channel.cuts)
	if err != nil {
		return nil, errors.Wrapf(err, "category %q in channel %q", name, channel.Name())
	}
	return &Category{
		name:     name,
		channel:  channel,
		cuts:     merged,
		variable: v,
	}, nil
}

func (c *Category) Name() string                { return c.name }
func (c *Category) Channel() *Channel           { return c.channel }
func (c *Category) ChannelName() string         { return c.channel.Name() }
func (c *Category) Variable() variable.Variable { return c.variable }
func (c *Category) VariableName() string        { return c.variable.Name }

// Cuts returns a copy of the effective selection.
func (c *Category) Cuts() *selection.Cuts { return c.cuts.Copy() }

// Copy returns an independent category.
func (c *Category) Copy() *Category {
	n := *c
	n.cuts = c.cuts.Copy()
	return &n
}

// Derive copies the category, appends suffix to its name and lets edit
// modify the copied cuts. The receiver is never modified.
func (c *Category) Derive(suffix string, edit func(*selection.Cuts) error) (*Category, error) {
	n := c.Copy()
	n.name += suffix
	if edit != nil {
		if err := edit(n.cuts); err != nil {
			return nil, errors.Wrapf(err, "deriving %q from category %q", n.name, c.name)
		}
	}
	return n, nil
}

// WithVariable returns a copy histogrammed in v.
func (c *Category) WithVariable(v variable.Variable) *Category {
	n := c.Copy()
	n.variable = v
	return n
}

// InvertCut returns an edit for Derive that inverts the cut called name and
// renames it to newName.
func InvertCut(name, newName string) func(*selection.Cuts) error {
	return func(cuts *selection.Cuts) error {
		cut, err := cuts.Get(name)
		if err != nil {
			return err
		}
		inverted, err := cut.Invert()
		if err != nil {
			return err
		}
		return cuts.Replace(name, inverted.Renamed(newName))
	}
}

// ReplaceCut returns an edit for Derive that swaps the cut called name for
// the given one.
func ReplaceCut(name string, cut *selection.Cut) func(*selection.Cuts) error {
	return func(cuts *selection.Cuts) error {
		return cuts.Replace(name, cut)
	}
}

// Chain combines several edits.
func Chain(edits ...func(*selection.Cuts) error) func(*selection.Cuts) error {
	return func(cuts *selection.Cuts) error {
		for _, edit := range edits {
			if err := edit(cuts); err != nil {
				return err
			}
		}
		return nil
	}
}
