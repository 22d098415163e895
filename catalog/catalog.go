// Package catalog resolves dataset queries into dataset nicknames, the
// directory and file stem under which skimmed n-tuples are stored.
package catalog

import (
	"log/slog"
	"os"
	"regexp"
	"sort"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

var ErrUnknownDataset = errors.New("no dataset matches query")

// Query selects datasets. String criteria are regular expressions matched
// against the whole attribute; empty criteria match anything.
type Query struct {
	Process   string
	Campaign  string
	Generator string
	Extension string
	Version   string
	Scenario  string
	Data      *bool
}

// Catalog answers dataset queries with nicknames in lexical order.
type Catalog interface {
	Query(q Query) ([]string, error)
}

func Bool(b bool) *bool {
	return &b
}

// Dataset holds the attributes of one entry of a datasets.json file.
type Dataset struct {
	Process   string `yaml:"process"`
	Campaign  string `yaml:"campaign"`
	Generator string `yaml:"generator"`
	Extension string `yaml:"extension"`
	Version   string `yaml:"version"`
	Scenario  string `yaml:"scenario"`
	Data      bool   `yaml:"data"`
	Energy    int    `yaml:"energy"`
	Format    string `yaml:"format"`
}

// File is a catalog read from a datasets.json file mapping nicknames to
// dataset attributes.
type File struct {
	datasets map[string]Dataset
}

// Load reads a datasets file. JSON is parsed as YAML.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading dataset catalog")
	}
	return Parse(raw)
}

func Parse(raw []byte) (*File, error) {
	datasets := make(map[string]Dataset)
	if err := yaml.Unmarshal(raw, &datasets); err != nil {
		return nil, errors.Wrap(err, "parsing dataset catalog")
	}
	return &File{datasets: datasets}, nil
}

func NewFile(datasets map[string]Dataset) *File {
	return &File{datasets: datasets}
}

func (f *File) Query(q Query) ([]string, error) {
	m, err := compile(q)
	if err != nil {
		return nil, err
	}
	var nicks []string
	for nick, d := range f.datasets {
		if m.matches(d) {
			nicks = append(nicks, nick)
		}
	}
	sort.Strings(nicks)
	slog.Debug("dataset query", "query", q, "nicks", nicks)
	return nicks, nil
}

type matcher struct {
	process, campaign, generator, extension, version, scenario *regexp.Regexp
	data                                                       *bool
}

func anchored(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, errors.Wrapf(err, "dataset query %q", expr)
	}
	return re, nil
}

func compile(q Query) (*matcher, error) {
	m := &matcher{data: q.Data}
	for _, c := range []struct {
		expr string
		re   **regexp.Regexp
	}{
		{q.Process, &m.process},
		{q.Campaign, &m.campaign},
		{q.Generator, &m.generator},
		{q.Extension, &m.extension},
		{q.Version, &m.version},
		{q.Scenario, &m.scenario},
	} {
		re, err := anchored(c.expr)
		if err != nil {
			return nil, err
		}
		*c.re = re
	}
	return m, nil
}

func (m *matcher) matches(d Dataset) bool {
	if m.data != nil && *m.data != d.Data {
		return false
	}
	for _, c := range []struct {
		re    *regexp.Regexp
		value string
	}{
		{m.process, d.Process},
		{m.campaign, d.Campaign},
		{m.generator, d.Generator},
		{m.extension, d.Extension},
		{m.version, d.Version},
		{m.scenario, d.Scenario},
	} {
		if c.re != nil && !c.re.MatchString(c.value) {
			return false
		}
	}
	return true
}

// Static answers every query whose process criterion equals a key with the
// listed nicknames. It stands in for a datasets file in tests and demos.
type Static map[string][]string

func (s Static) Query(q Query) ([]string, error) {
	nicks, ok := s[q.Process]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownDataset, "process %q", q.Process)
	}
	nicks = append([]string(nil), nicks...)
	sort.Strings(nicks)
	return nicks, nil
}
