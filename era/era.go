// Package era describes data-taking periods: their luminosity and where
// their collision data lives.
package era

import (
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/catalog"
	"github.com/decibelcooper/shapes/category"
	"github.com/decibelcooper/shapes/selection"
)

// Era is a data-taking period. Simulation files are not part of an era;
// they belong to the estimation methods.
type Era struct {
	Name       string
	Luminosity float64 // in pb^-1
	DataFormat string
	Energy     int // in TeV

	// dataQueries selects the collision data per channel name.
	dataQueries map[string]catalog.Query
}

func New(name string, luminosity float64, dataQueries map[string]catalog.Query) *Era {
	return &Era{
		Name:        name,
		Luminosity:  luminosity,
		DataFormat:  "MINIAOD",
		Energy:      13,
		dataQueries: dataQueries,
	}
}

func Run2016BCDEFG() *Era {
	return New("Run2016BCDEFG", 35870.0, map[string]catalog.Query{
		"mt": {Process: "SingleMuon", Data: catalog.Bool(true), Campaign: "Run2016(B|C|D|E|F|G|H)", Scenario: "03Feb2017.*"},
		"et": {Process: "SingleElectron", Data: catalog.Bool(true), Campaign: "Run2016(B|C|D|E|F|G|H)", Scenario: "03Feb2017.*"},
		"em": {Process: "MuonEG", Data: catalog.Bool(true), Campaign: "Run2016(B|C|D|E|F|G|H)", Scenario: "03Feb2017.*"},
	})
}

func Run2017() *Era {
	return New("Run2017", 41290.0, map[string]catalog.Query{
		"mt": {Process: "SingleMuon", Data: catalog.Bool(true), Campaign: "Run2017(B|C|D|E|F)"},
		"et": {Process: "SingleElectron", Data: catalog.Bool(true), Campaign: "Run2017(B|C|D|E|F)"},
		"em": {Process: "MuonEG", Data: catalog.Bool(true), Campaign: "Run2017(B|C|D|E|F)"},
	})
}

// ByName returns the predefined era called name.
func ByName(name string) (*Era, error) {
	switch name {
	case "Run2016BCDEFG":
		return Run2016BCDEFG(), nil
	case "Run2017":
		return Run2017(), nil
	}
	return nil, errors.Newf("unknown era %q", name)
}

// LumiWeight is the integrated luminosity as a constant weight named lumi.
func (e *Era) LumiWeight() *selection.Constant {
	return selection.NewConstant(strconv.FormatFloat(e.Luminosity, 'g', -1, 64), "lumi")
}

// DataQuery returns the dataset query for the collision data of channel.
func (e *Era) DataQuery(channel *category.Channel) (catalog.Query, error) {
	q, ok := e.dataQueries[channel.Name()]
	if !ok {
		return catalog.Query{}, errors.Newf("era %s has no data for channel %q", e.Name, channel.Name())
	}
	return q, nil
}

// DataFiles returns the dataset nicknames of the collision data of channel.
func (e *Era) DataFiles(c catalog.Catalog, channel *category.Channel) ([]string, error) {
	q, err := e.DataQuery(channel)
	if err != nil {
		return nil, err
	}
	return c.Query(q)
}
