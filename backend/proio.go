package backend

import (
	"context"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/proio-org/go-proio"
	"github.com/proio-org/go-proio-pb/model/eic"
)

// ProioSource flattens proio event streams into per-event columns. The tree
// path is ignored. The two leading stable generator particles play the two
// legs of the pair:
//
//	pt_N, eta_N, phi_N, q_N, m_N, pdg_N   N = 1, 2 (zero when missing)
//	m_vis                                 invariant mass of the pair
//	n_gen                                 number of stable generator particles
//	n_tracks                              number of reconstructed tracks
type ProioSource struct{}

var proioColumns = func() map[string]int {
	names := []string{
		"pt_1", "eta_1", "phi_1", "q_1", "m_1", "pdg_1",
		"pt_2", "eta_2", "phi_2", "q_2", "m_2", "pdg_2",
		"m_vis", "n_gen", "n_tracks",
	}
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}()

type fourVector struct {
	px, py, pz, e float64
}

func (v fourVector) add(o fourVector) fourVector {
	return fourVector{v.px + o.px, v.py + o.py, v.pz + o.pz, v.e + o.e}
}

func (v fourVector) mass() float64 {
	m2 := v.e*v.e - v.px*v.px - v.py*v.py - v.pz*v.pz
	if m2 < 0 {
		return 0
	}
	return math.Sqrt(m2)
}

func fillLeg(row []float64, offset int, part *eic.Particle) fourVector {
	px := float64(part.GetP().GetX())
	py := float64(part.GetP().GetY())
	pz := float64(part.GetP().GetZ())
	m := float64(part.GetMass())
	p := math.Sqrt(px*px + py*py + pz*pz)

	eta := 0.0
	if p > math.Abs(pz) {
		eta = math.Atanh(pz / p)
	}
	row[offset+0] = math.Hypot(px, py)
	row[offset+1] = eta
	row[offset+2] = math.Atan2(py, px)
	row[offset+3] = float64(part.GetCharge())
	row[offset+4] = m
	row[offset+5] = float64(part.GetPdg())
	return fourVector{px, py, pz, math.Sqrt(p*p + m*m)}
}

func flatten(event *proio.Event, row []float64) {
	for i := range row {
		row[i] = 0
	}

	var legs []fourVector
	for _, id := range event.TaggedEntries("GenStable") {
		part, ok := event.GetEntry(id).(*eic.Particle)
		if !ok {
			continue
		}
		row[proioColumns["n_gen"]]++
		switch len(legs) {
		case 0:
			legs = append(legs, fillLeg(row, proioColumns["pt_1"], part))
		case 1:
			legs = append(legs, fillLeg(row, proioColumns["pt_2"], part))
		}
	}
	if len(legs) == 2 {
		row[proioColumns["m_vis"]] = legs[0].add(legs[1]).mass()
	}

	for _, id := range event.TaggedEntries("Reconstructed") {
		if _, ok := event.GetEntry(id).(*eic.Track); ok {
			row[proioColumns["n_tracks"]]++
		}
	}
}

func (ProioSource) Scan(ctx context.Context, file, _ string, vars []string, fn func([]float64) error) error {
	index := make([]int, len(vars))
	for i, v := range vars {
		c, ok := proioColumns[v]
		if !ok {
			return errors.Newf("proio events provide no column %q", v)
		}
		index[i] = c
	}

	reader, err := proio.Open(file)
	if err != nil {
		return errors.Wrapf(err, "opening %s", file)
	}
	defer reader.Close()

	row := make([]float64, len(proioColumns))
	event := make([]float64, len(vars))
	for e := range reader.ScanEvents() {
		flatten(e, row)
		for i, c := range index {
			event[i] = row[c]
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return errors.Wrapf(drainErr(reader.Err), "reading %s", file)
}

// drainErr returns the first error queued on errs other than the end of the
// stream, without blocking.
func drainErr(errs <-chan error) error {
	for {
		select {
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if err != nil && err != io.EOF {
				return err
			}
		default:
			return nil
		}
	}
}
