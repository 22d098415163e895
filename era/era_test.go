package era

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/shapes/catalog"
	"github.com/decibelcooper/shapes/category"
)

func TestLumiWeight(t *testing.T) {
	w := Run2016BCDEFG().LumiWeight()
	assert.Equal(t, "lumi", w.Name())
	assert.Equal(t, "35870", w.Text())
}

func TestDataFiles(t *testing.T) {
	cat := catalog.NewFile(map[string]catalog.Dataset{
		"SingleMuon_Run2016B": {Process: "SingleMuon", Campaign: "Run2016B", Scenario: "03Feb2017v2", Data: true},
		"SingleMuon_Run2015D": {Process: "SingleMuon", Campaign: "Run2015D", Scenario: "16Dec2015v1", Data: true},
		"SingleElectron_Run2016B": {Process: "SingleElectron", Campaign: "Run2016B", Scenario: "03Feb2017v2", Data: true},
	})

	files, err := Run2016BCDEFG().DataFiles(cat, category.MT())
	require.NoError(t, err)
	assert.Equal(t, []string{"SingleMuon_Run2016B"}, files)

	files, err = Run2016BCDEFG().DataFiles(cat, category.ET())
	require.NoError(t, err)
	assert.Equal(t, []string{"SingleElectron_Run2016B"}, files)

	_, err = New("empty", 1, nil).DataFiles(cat, category.MT())
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	e, err := ByName("Run2017")
	require.NoError(t, err)
	assert.Equal(t, "Run2017", e.Name)
	_, err = ByName("Run2018")
	assert.Error(t, err)
}
