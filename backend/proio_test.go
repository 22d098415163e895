package backend

import (
	"context"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestDrainErr(t *testing.T) {
	errs := make(chan error, 3)
	assert.NoError(t, drainErr(errs), "nothing queued")

	errs <- io.EOF
	assert.NoError(t, drainErr(errs), "end of stream")

	bad := errors.New("corrupt bucket")
	errs <- io.EOF
	errs <- bad
	assert.Same(t, bad, drainErr(errs))

	close(errs)
	assert.NoError(t, drainErr(errs))
}

func TestProioUnknownColumn(t *testing.T) {
	err := ProioSource{}.Scan(context.Background(), "events.proio", "", []string{"met"}, func([]float64) error { return nil })
	assert.ErrorContains(t, err, "met")
}
