package backend

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrNoSuchTree is returned when a source has no tree under the requested
// file and path.
var ErrNoSuchTree = errors.New("no such tree")

// Table is an in-memory n-tuple: one row per event.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Memory serves tables held in memory. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	tables map[memoryKey]Table
}

type memoryKey struct {
	file, tree string
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[memoryKey]Table)}
}

// Put stores t as tree in file, replacing what was there.
func (m *Memory) Put(file, tree string, t Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[memoryKey{file, tree}] = t
}

func (m *Memory) Scan(ctx context.Context, file, tree string, vars []string, fn func([]float64) error) error {
	m.mu.RLock()
	t, ok := m.tables[memoryKey{file, tree}]
	m.mu.RUnlock()
	if !ok {
		return errors.Wrapf(ErrNoSuchTree, "%s:%s", file, tree)
	}

	columns := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		columns[c] = i
	}
	index := make([]int, len(vars))
	for i, v := range vars {
		c, ok := columns[v]
		if !ok {
			return errors.Newf("tree %s:%s has no branch %q", file, tree, v)
		}
		index[i] = c
	}

	event := make([]float64, len(vars))
	for _, row := range t.Rows {
		for i, c := range index {
			event[i] = row[c]
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return nil
}
