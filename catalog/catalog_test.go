package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const datasetsJSON = `{
  "DYJetsToLLM50_RunIISummer17MiniAOD_13TeV_MINIAOD_madgraph-pythia8": {
    "process": "DYJetsToLL_M50", "campaign": "RunIISummer17MiniAOD",
    "generator": "madgraph-pythia8", "version": "v1", "data": false, "energy": 13
  },
  "DYJetsToLLM10to50_RunIISummer17MiniAOD_13TeV_MINIAOD_madgraph-pythia8": {
    "process": "DYJetsToLL_M10to50", "campaign": "RunIISummer17MiniAOD",
    "generator": "madgraph-pythia8", "version": "v2", "data": false, "energy": 13
  },
  "ZZTo4L_RunIISummer17MiniAOD_13TeV_MINIAOD_amcatnlo-pythia8_ext1": {
    "process": "ZZTo4L", "campaign": "RunIISummer17MiniAOD",
    "generator": "amcatnlo-pythia8", "extension": "ext1", "data": false
  },
  "SingleMuon_Run2016B_03Feb2017ver2v2_13TeV_MINIAOD": {
    "process": "SingleMuon", "campaign": "Run2016B", "scenario": "03Feb2017ver2v2", "data": true
  },
  "SingleMuon_Run2016C_03Feb2017v1_13TeV_MINIAOD": {
    "process": "SingleMuon", "campaign": "Run2016C", "scenario": "03Feb2017v1", "data": true
  }
}`

func loadFixture(t *testing.T) *File {
	path := filepath.Join(t.TempDir(), "datasets.json")
	require.NoError(t, os.WriteFile(path, []byte(datasetsJSON), 0o644))
	f, err := Load(path)
	require.NoError(t, err)
	return f
}

func TestQuery(t *testing.T) {
	f := loadFixture(t)

	nicks, err := f.Query(Query{
		Process:   "(DYJetsToLL_M10to50|DYJetsToLL_M50)",
		Data:      Bool(false),
		Campaign:  "RunIISummer17MiniAOD",
		Generator: `madgraph\-pythia8`,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"DYJetsToLLM10to50_RunIISummer17MiniAOD_13TeV_MINIAOD_madgraph-pythia8",
		"DYJetsToLLM50_RunIISummer17MiniAOD_13TeV_MINIAOD_madgraph-pythia8",
	}, nicks)

	nicks, err = f.Query(Query{Process: "(DYJetsToLL_M10to50|DYJetsToLL_M50)", Version: "v1"})
	require.NoError(t, err)
	assert.Len(t, nicks, 1)

	nicks, err = f.Query(Query{Process: "SingleMuon", Data: Bool(true), Campaign: "Run2016(B|C|D|E|F|G|H)", Scenario: "03Feb2017.*"})
	require.NoError(t, err)
	assert.Len(t, nicks, 2)

	nicks, err = f.Query(Query{Process: "ZZTo4L", Extension: "ext1"})
	require.NoError(t, err)
	assert.Len(t, nicks, 1)
}

func TestQueryIsAnchored(t *testing.T) {
	f := loadFixture(t)
	nicks, err := f.Query(Query{Process: "DYJets"})
	require.NoError(t, err)
	assert.Empty(t, nicks)
}

func TestQueryBadRegexp(t *testing.T) {
	f := loadFixture(t)
	_, err := f.Query(Query{Process: "("})
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	s := Static{"^TT$": {"TT_b", "TT_a"}}
	nicks, err := s.Query(Query{Process: "^TT$"})
	require.NoError(t, err)
	assert.Equal(t, []string{"TT_a", "TT_b"}, nicks)

	_, err = s.Query(Query{Process: "WJetsToLNu"})
	assert.True(t, errors.Is(err, ErrUnknownDataset))
}
