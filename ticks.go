package shapes

import (
	"math"
	"strconv"

	"gonum.org/v1/plot"
)

// PreciseTicks places NSuggestedTicks labelled ticks on round values and
// fills the gaps with unlabelled minor ticks. Shapes of empty categories
// produce a degenerate range; those get a single labelled tick.
type PreciseTicks struct {
	NSuggestedTicks int
}

func (t PreciseTicks) Ticks(min, max float64) []plot.Tick {
	if t.NSuggestedTicks < 2 {
		t.NSuggestedTicks = 4
	}

	if !(max > min) {
		return []plot.Tick{{Value: min, Label: formatFloatTick(min, -1)}}
	}

	majorDelta, majorMult := majorStep(max-min, t.NSuggestedTicks)

	var ticks []plot.Tick
	val := math.Floor(min/majorDelta) * majorDelta
	for ; val <= max; val += majorDelta {
		if val < min {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: val})
	}
	top := math.Max(math.Abs(min), math.Abs(max))
	prec := int(math.Ceil(math.Log10(top)) - math.Floor(math.Log10(majorDelta)))
	for i := range ticks {
		ticks[i].Value = round(ticks[i].Value, prec)
		ticks[i].Label = formatFloatTick(ticks[i].Value, -1)
	}

	minorDelta := majorDelta / 2
	switch majorMult {
	case 3, 6:
		minorDelta = majorDelta / 3
	case 5:
		minorDelta = majorDelta / 5
	}

	major := make(map[float64]bool, len(ticks))
	for _, tick := range ticks {
		major[tick.Value] = true
	}
	for val = math.Floor(min/minorDelta) * minorDelta; val <= max; val += minorDelta {
		if val >= min && !major[val] {
			ticks = append(ticks, plot.Tick{Value: val})
		}
	}
	return ticks
}

// majorStep picks the spacing of labelled ticks for a range of the given
// width and reports the multiplier of the underlying power of ten.
func majorStep(width float64, nTicks int) (float64, int) {
	tens := math.Pow10(int(math.Floor(math.Log10(width))))
	n := width / tens
	for n < float64(nTicks)-1 {
		tens /= 10
		n = width / tens
	}

	mult := int(n / float64(nTicks-1))
	switch mult {
	case 0:
		mult = 1
	case 7:
		mult = 6
	case 9:
		mult = 8
	}
	return float64(mult) * tens, mult
}

func round(x float64, prec int) float64 {
	if x == 0 {
		// no negative zero
		return 0
	}
	if prec >= 0 && x == math.Trunc(x) {
		return x
	}
	pow := math.Pow10(prec)
	intermed := x * pow
	if math.IsInf(intermed, 0) {
		return x
	}
	if x < 0 {
		x = math.Ceil(intermed - 0.5)
	} else {
		x = math.Floor(intermed + 0.5)
	}

	if x == 0 {
		return 0
	}

	return x / pow
}

func formatFloatTick(v float64, prec int) string {
	return strconv.FormatFloat(v, 'g', prec, 64)
}
