package systematics

import (
	"log/slog"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/category"
	"github.com/decibelcooper/shapes/histo"
	"github.com/decibelcooper/shapes/query"
	"github.com/decibelcooper/shapes/selection"
)

// WJOptions configures the W+jets normalization from high transverse mass
// sidebands.
type WJOptions struct {
	// HighMT is the lower mt_1 edge of the sidebands. Zero means 70.
	HighMT float64
	// FQCD is the assumed opposite-sign to same-sign ratio of QCD events.
	// Zero means 1.2; the value is empirical and not fitted.
	FQCD float64
	// MTCut names the transverse mass cut of the category, replaced in the
	// sidebands. Empty means "mt".
	MTCut string
	// OSCut names the opposite-sign cut. Empty means "os".
	OSCut string
}

func (o WJOptions) withDefaults() WJOptions {
	if o.HighMT == 0 {
		o.HighMT = 70
	}
	if o.FQCD == 0 {
		o.FQCD = 1.2
	}
	if o.MTCut == "" {
		o.MTCut = "mt"
	}
	if o.OSCut == "" {
		o.OSCut = "os"
	}
	return o
}

// highMT moves the transverse mass cut into the sideband, adding it when
// the category has none.
func (o WJOptions) highMT(cuts *selection.Cuts) error {
	cut := selection.NewCut("mt_1>"+strconv.FormatFloat(o.HighMT, 'g', -1, 64), o.MTCut)
	if cuts.Has(o.MTCut) {
		return cuts.Replace(o.MTCut, cut)
	}
	return cuts.Add(cut)
}

// regions of the W+jets estimate, in the order of WJFromSSOS.subs.
const (
	wjSignalOS = iota
	wjSignalSS
	wjHighOS
	wjHighSS
	dataHighOS
	dataHighSS
	nRegions
)

// WJFromSSOS normalizes the simulated W+jets shape with the yield of W+jets
// events in data at high transverse mass:
//
//	N_OS, N_SS  data minus other backgrounds in the OS and SS sidebands
//	f_W         OS/SS ratio of simulated W+jets in the signal region
//	N_W         (N_OS - f_QCD*N_SS) / (1 + f_QCD/f_W)
//
// The simulated signal shape is scaled by N_W over the simulated W+jets
// yield of the OS sideband.
type WJFromSSOS struct {
	composite
	data   *Process
	wj     *Process
	others []*Process
	opts   WJOptions
	// othersHighOS and othersHighSS index the other backgrounds in subs.
	othersHighOS, othersHighSS []int
}

func NewWJFromSSOS(data, wj *Process, others []*Process, opts WJOptions) *WJFromSSOS {
	return &WJFromSSOS{
		composite: composite{base: base{name: "WJ", pipeline: "nominal"}},
		data:      data,
		wj:        wj,
		others:    append([]*Process(nil), others...),
		opts:      opts.withDefaults(),
	}
}

func (w *WJFromSSOS) DefineRootObjects(s *Systematic) ([]query.Spec, error) {
	c := s.Category()
	ss, err := sameSign(c, w.opts.OSCut)
	if err != nil {
		return nil, err
	}
	highOS, err := c.Derive("_highmt_os", w.opts.highMT)
	if err != nil {
		return nil, err
	}
	highSS, err := c.Derive("_highmt_ss", category.Chain(w.opts.highMT, category.InvertCut(w.opts.OSCut, "ss")))
	if err != nil {
		return nil, err
	}

	sub := func(c *category.Category, p *Process) *Systematic {
		return NewSystematic(c, p, s.Analysis(), s.Era(), s.Variation())
	}
	w.subs = make([]*Systematic, nRegions, nRegions+2*len(w.others))
	w.subs[wjSignalOS] = sub(c, w.wj)
	w.subs[wjSignalSS] = sub(ss, w.wj)
	w.subs[wjHighOS] = sub(highOS, w.wj)
	w.subs[wjHighSS] = sub(highSS, w.wj)
	w.subs[dataHighOS] = sub(highOS, w.data)
	w.subs[dataHighSS] = sub(highSS, w.data)
	w.othersHighOS, w.othersHighSS = nil, nil
	for _, p := range w.others {
		w.othersHighOS = append(w.othersHighOS, len(w.subs))
		w.subs = append(w.subs, sub(highOS, p))
		w.othersHighSS = append(w.othersHighSS, len(w.subs))
		w.subs = append(w.subs, sub(highSS, p))
	}
	w.state = queriesDefined
	return w.specs()
}

func (w *WJFromSSOS) CreateRootObjects(s *Systematic) error {
	if _, err := w.DefineRootObjects(s); err != nil {
		return err
	}
	return w.create()
}

func (w *WJFromSSOS) yield(i int) (float64, error) {
	shape, err := w.subs[i].Shape()
	if err != nil {
		return 0, err
	}
	r, err := shape.Result()
	if err != nil {
		return 0, err
	}
	return r.Integral(), nil
}

func (w *WJFromSSOS) fakes(data int, others []int) (float64, error) {
	n, err := w.yield(data)
	if err != nil {
		return 0, err
	}
	for _, i := range others {
		y, err := w.yield(i)
		if err != nil {
			return 0, err
		}
		n -= y
	}
	return n, nil
}

// ScaleFactor returns the normalization applied to the simulated signal
// shape. It is valid after the sub-systematics were estimated.
func (w *WJFromSSOS) ScaleFactor() (float64, error) {
	if err := w.ready(); err != nil {
		return 0, err
	}
	nOS, err := w.fakes(dataHighOS, w.othersHighOS)
	if err != nil {
		return 0, err
	}
	nSS, err := w.fakes(dataHighSS, w.othersHighSS)
	if err != nil {
		return 0, err
	}
	var y [nRegions]float64
	for _, i := range []int{wjSignalOS, wjSignalSS, wjHighOS} {
		if y[i], err = w.yield(i); err != nil {
			return 0, err
		}
	}
	if y[wjSignalOS] == 0 || y[wjSignalSS] == 0 {
		return 0, errors.Newf("W+jets signal region yields OS %g, SS %g give no OS/SS ratio", y[wjSignalOS], y[wjSignalSS])
	}
	if y[wjHighOS] == 0 {
		return 0, errors.New("no simulated W+jets events in the high mt OS sideband")
	}
	fW := y[wjSignalOS] / y[wjSignalSS]
	nW := (nOS - w.opts.FQCD*nSS) / (1 + w.opts.FQCD/fW)
	slog.Debug("W+jets normalization", "N_OS", nOS, "N_SS", nSS, "f_W", fW, "f_QCD", w.opts.FQCD, "N_W", nW, "mc_high_os", y[wjHighOS])
	return nW / y[wjHighOS], nil
}

func (w *WJFromSSOS) DoEstimation(s *Systematic, holder *histo.Holder) (*histo.Handle, error) {
	if err := w.estimate(holder); err != nil {
		return nil, errors.Wrapf(err, "sidebands of %s", s.Name())
	}
	sf, err := w.ScaleFactor()
	if err != nil {
		return nil, errors.Wrapf(err, "normalizing %s", s.Name())
	}
	signal, err := w.subs[wjSignalOS].Shape()
	if err != nil {
		return nil, err
	}
	r, err := signal.Result()
	if err != nil {
		return nil, err
	}
	shape := r.Clone()
	shape.Scale(sf)

	h := histo.Derive(s.Name(), shape)
	holder.Record(h)
	w.state = estimationDone
	return h, nil
}

func (w *WJFromSSOS) Clone() Method {
	n := *w
	n.composite = composite{base: w.reset()}
	n.others = append([]*Process(nil), w.others...)
	n.othersHighOS, n.othersHighSS = nil, nil
	return &n
}
