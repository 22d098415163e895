package shapes

import (
	"fmt"
	"strconv"
	"strings"
)

// FloatArrayFlags collects a repeatable float flag, e.g. -edge 0 -edge 20.
// Values given on the command line replace any default.
type FloatArrayFlags struct {
	Array   []float64
	beenSet bool
}

func (f *FloatArrayFlags) Set(valueStr string) error {
	for _, field := range strings.Split(valueStr, ",") {
		value, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return err
		}

		if !f.beenSet {
			f.beenSet = true
			f.Array = nil
		}

		f.Array = append(f.Array, value)
	}
	return nil
}

func (f *FloatArrayFlags) String() string {
	return fmt.Sprint(f.Array)
}

// StringArrayFlags is the string counterpart of FloatArrayFlags.
type StringArrayFlags struct {
	Array   []string
	beenSet bool
}

func (f *StringArrayFlags) Set(value string) error {
	if !f.beenSet {
		f.beenSet = true
		f.Array = nil
	}

	f.Array = append(f.Array, value)
	return nil
}

func (f *StringArrayFlags) String() string {
	return strings.Join(f.Array, ",")
}
