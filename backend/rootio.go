package backend

import (
	"context"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"go-hep.org/x/hep/rootio"
)

// ROOTSource reads flat TTree n-tuples with go-hep's rootio. Every branch
// read must hold a numeric or boolean scalar. Tree paths may name
// sub-directories, e.g. "mt_nominal/ntuple".
type ROOTSource struct{}

type rootGetter interface {
	Get(namecycle string) (rootio.Object, error)
}

func openTree(f *rootio.File, path string) (rootio.Tree, error) {
	var (
		dir  rootGetter = f
		obj  rootio.Object
		err  error
		elem = strings.Split(strings.Trim(path, "/"), "/")
	)
	for i, name := range elem {
		obj, err = dir.Get(name)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "%s", path), ErrNoSuchTree)
		}
		if i == len(elem)-1 {
			break
		}
		d, ok := obj.(rootGetter)
		if !ok {
			return nil, errors.Wrapf(ErrNoSuchTree, "%s is not a directory", name)
		}
		dir = d
	}
	t, ok := obj.(rootio.Tree)
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchTree, "%s is not a tree", path)
	}
	return t, nil
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Bool:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func (ROOTSource) Scan(ctx context.Context, file, tree string, vars []string, fn func([]float64) error) error {
	f, err := rootio.Open(file)
	if err != nil {
		return errors.Wrapf(err, "opening %s", file)
	}
	defer f.Close()

	t, err := openTree(f, tree)
	if err != nil {
		return err
	}

	scanVars := make([]rootio.ScanVar, len(vars))
	ptrs := make([]interface{}, len(vars))
	values := make([]reflect.Value, len(vars))
	for i, name := range vars {
		leaf := t.Leaf(name)
		if leaf == nil {
			return errors.Newf("tree %s:%s has no branch %q", file, tree, name)
		}
		p := reflect.New(leaf.Type())
		if _, ok := toFloat(p.Elem()); !ok {
			return errors.Newf("branch %q of %s:%s is not a scalar (%v)", name, file, tree, leaf.Type())
		}
		scanVars[i] = rootio.ScanVar{Name: name}
		ptrs[i] = p.Interface()
		values[i] = p.Elem()
	}

	sc, err := rootio.NewTreeScannerVars(t, scanVars...)
	if err != nil {
		return errors.Wrapf(err, "scanning %s:%s", file, tree)
	}
	defer sc.Close()

	event := make([]float64, len(vars))
	for sc.Next() {
		if err := sc.Scan(ptrs...); err != nil {
			return errors.Wrapf(err, "reading entry of %s:%s", file, tree)
		}
		for i, v := range values {
			event[i], _ = toFloat(v)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return sc.Err()
}
