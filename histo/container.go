package histo

import (
	"bufio"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/backend"
)

// ErrOutputExists is returned when the output container is already there.
var ErrOutputExists = errors.New("output file already exists")

// Container is a YODA file of named histograms. Writes are sequential.
type Container struct {
	path string
	f    *os.File
	w    *bufio.Writer
	n    int
}

// Create creates a new container at path; an existing file is never
// overwritten.
func Create(path string) (*Container, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.Wrapf(ErrOutputExists, "%s", path)
		}
		return nil, errors.Wrapf(err, "creating %s", path)
	}
	return &Container{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Write appends r under name. r itself is left untouched.
func (c *Container) Write(name string, r *backend.Result) error {
	h := r.Clone()
	h.SetName(name)
	raw, err := h.H1D().MarshalYODA()
	if err != nil {
		return errors.Wrapf(err, "encoding %s", name)
	}
	if _, err := c.w.Write(raw); err != nil {
		return errors.Wrapf(err, "writing %s to %s", name, c.path)
	}
	if _, err := c.w.WriteString("\n"); err != nil {
		return err
	}
	c.n++
	return nil
}

// Len is the number of objects written so far.
func (c *Container) Len() int {
	return c.n
}

func (c *Container) Close() error {
	if err := c.w.Flush(); err != nil {
		c.f.Close()
		return errors.Wrapf(err, "flushing %s", c.path)
	}
	return c.f.Close()
}
