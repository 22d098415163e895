package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/shapes/systematics"
)

const analysis = `
analysis: smhtt
era: Run2016BCDEFG
channel: mt
directory: /store
source: memory
workers: 2
channel_cuts:
  - {name: os, expr: "q_1*q_2<0"}
datasets:
  SingleMuon_Run2016B:
    process: SingleMuon
    campaign: Run2016B
    scenario: 03Feb2017_ver2-v2
    data: true
  DYJetsToLLM50:
    process: DYJetsToLL_M50
    campaign: RunIISummer17MiniAOD
    generator: madgraph-pythia8
    version: v1
  WJetsToLNu:
    process: WJetsToLNu
    campaign: RunIISummer17MiniAOD
    generator: madgraph-pythia8
tables:
  - file: /store/SingleMuon_Run2016B/SingleMuon_Run2016B.root
    tree: mt_nominal/ntuple
    columns: [q_1, q_2, nbtag, pt_1]
    rows:
      - [1, -1, 0, 30]
      - [1, 1, 0, 30]
      - [1, 1, 0, 50]
      - [1, 1, 1, 50]
  - file: /store/DYJetsToLLM50/DYJetsToLLM50.root
    tree: mt_nominal/ntuple
    columns: [q_1, q_2, nbtag, pt_1, gen_match_2, eventWeight, zPtReweightWeight]
    rows:
      - [1, -1, 0, 30, 5, 0.001, 1]
      - [1, 1, 0, 30, 5, 0.00001, 2]
  - file: /store/WJetsToLNu/WJetsToLNu.root
    tree: mt_nominal/ntuple
    columns: [q_1, q_2, nbtag, pt_1, gen_match_2, eventWeight]
    rows:
      - [1, 1, 0, 30, 1, 0.00001]
categories:
  - name: nobtag
    cuts:
      - {name: nobtag, expr: "nbtag==0"}
    variable: {name: pt_1, bins: 10, low: 0, high: 100}
processes:
  - {method: data, name: data_obs}
  - {method: ZTT}
  - {method: WJ}
  - {method: QCD, backgrounds: [ZTT, WJ]}
variations:
  - {name: zPtReweightWeight, kind: weight, processes: [ZTT]}
`

func TestBuild(t *testing.T) {
	a, err := Parse([]byte(analysis))
	require.NoError(t, err)
	b, err := a.Backend()
	require.NoError(t, err)
	reg, err := Build(a, b)
	require.NoError(t, err)

	var names []string
	for _, s := range reg.Systematics() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		"data_obs_nobtag_smhtt_Run2016BCDEFG_pt_1_Nominal",
		"ZTT_nobtag_smhtt_Run2016BCDEFG_pt_1_Nominal",
		"WJ_nobtag_smhtt_Run2016BCDEFG_pt_1_Nominal",
		"QCD_nobtag_smhtt_Run2016BCDEFG_pt_1_Nominal",
		"ZTT_nobtag_smhtt_Run2016BCDEFG_pt_1_zPtReweightWeight_Down",
		"ZTT_nobtag_smhtt_Run2016BCDEFG_pt_1_zPtReweightWeight_Up",
	}, names)

	require.NoError(t, reg.Produce(context.Background()))
	qcd, err := reg.Systematics()[3].Shape()
	require.NoError(t, err)
	r, err := qcd.Result()
	require.NoError(t, err)
	// Two same-sign data events minus the luminosity-scaled W+jets and
	// Z->tautau events.
	assert.InDelta(t, 2-0.3587-sameSignZTT, r.Integral(), 1e-9)
}

// sameSignZTT is the nominal same-sign Z->tautau yield: eventWeight times
// zPtReweightWeight times the hadronic tau scale factor times luminosity.
const sameSignZTT = 0.00001 * 2 * 0.95 * 35870

func TestWeightVariationSkipsUnweightedProcesses(t *testing.T) {
	for name, processes := range map[string][]string{
		"all processes": nil,
		"ZTT and QCD":   {"ZTT", "QCD"},
	} {
		t.Run(name, func(t *testing.T) {
			a, err := Parse([]byte(analysis))
			require.NoError(t, err)
			a.Variations = []Variation{{Name: "zPtReweightWeight", Kind: "weight", Processes: processes}}
			b, err := a.Backend()
			require.NoError(t, err)
			reg, err := Build(a, b)
			require.NoError(t, err)
			require.NoError(t, reg.Produce(context.Background()))

			integrals := make(map[string]float64)
			for _, s := range reg.Systematics() {
				shape, err := s.Shape()
				require.NoError(t, err)
				r, err := shape.Result()
				require.NoError(t, err)
				integrals[s.Name()] = r.Integral()
			}

			const qcd = "QCD_nobtag_smhtt_Run2016BCDEFG_pt_1_"
			require.Contains(t, integrals, qcd+"zPtReweightWeight_Down")
			require.Contains(t, integrals, qcd+"zPtReweightWeight_Up")
			assert.InDelta(t, 2-0.3587-sameSignZTT/2, integrals[qcd+"zPtReweightWeight_Down"], 1e-9)
			assert.InDelta(t, 2-0.3587-2*sameSignZTT, integrals[qcd+"zPtReweightWeight_Up"], 1e-9)
			assert.NotEqual(t, integrals[qcd+"zPtReweightWeight_Down"], integrals[qcd+"zPtReweightWeight_Up"])

			if processes == nil {
				const data = "data_obs_nobtag_smhtt_Run2016BCDEFG_pt_1_"
				assert.Equal(t, integrals[data+"Nominal"], integrals[data+"zPtReweightWeight_Up"])
				assert.Equal(t, integrals[data+"Nominal"], integrals[data+"zPtReweightWeight_Down"])
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(analysis), 0o644))
	a, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "smhtt", a.Analysis)
	assert.Len(t, a.Tables, 3)
	assert.Equal(t, []string{"ZTT", "WJ"}, a.Processes[3].Backgrounds)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBuildErrors(t *testing.T) {
	for name, edit := range map[string]func(*Analysis){
		"unknown era":       func(a *Analysis) { a.Era = "Run1999" },
		"unknown method":    func(a *Analysis) { a.Processes[1].Method = "Higgs" },
		"forward reference": func(a *Analysis) { a.Processes[3].Backgrounds = []string{"TT"} },
		"duplicate process": func(a *Analysis) { a.Processes[2].Name = "ZTT" },
		"unknown kind":      func(a *Analysis) { a.Variations[0].Kind = "jes" },
		"bad binning":       func(a *Analysis) { a.Categories[0].Variable.Bins = 0 },
		"no data first":     func(a *Analysis) { a.Processes = a.Processes[1:] },
	} {
		t.Run(name, func(t *testing.T) {
			a, err := Parse([]byte(analysis))
			require.NoError(t, err)
			edit(a)
			_, err = Build(a, nil)
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("era: Run2017\n"))
	assert.Error(t, err)

	a, err := Parse([]byte(analysis))
	require.NoError(t, err)
	a.Source = "hdf5"
	_, err = a.Backend()
	assert.Error(t, err)
}

func TestWJSSOSUsesPrivateSimulation(t *testing.T) {
	a, err := Parse([]byte(analysis))
	require.NoError(t, err)
	a.Processes = []Process{
		{Method: "data", Name: "data_obs"},
		{Method: "WJSSOS", Name: "WJ"},
	}
	a.Variations = nil
	reg, err := Build(a, nil)
	require.NoError(t, err)
	require.Len(t, reg.Systematics(), 2)
	_, ok := reg.Systematics()[1].Method().(*systematics.WJFromSSOS)
	assert.True(t, ok)
}
