package fips

import (
	"bytes"
	_ "embed"
	"io"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed default_table.yaml
var defaultTableYAML []byte

// Table is the FIPS reference data: state code -> abbreviation, and per-state
// county code -> county name (without the "County" suffix).
type Table struct {
	States   map[string]string            `yaml:"states"`
	Counties map[string]map[string]string `yaml:"counties"`
}

var defaultTable = sync.OnceValue(func() *Table {
	t, err := ParseYAML(bytes.NewReader(defaultTableYAML))
	if err != nil {
		panic("fips: embedded default table: " + err.Error())
	}
	return t
})

// Default returns a copy of the embedded reference table.
func Default() *Table {
	return defaultTable().Clone()
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		States:   make(map[string]string),
		Counties: make(map[string]map[string]string),
	}
}

// ParseYAML decodes a table in the embedded layout. Keys are normalized so
// that unquoted numeric keys ("6" for "06") still resolve.
func ParseYAML(r io.Reader) (*Table, error) {
	var raw Table
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return NewTable(), nil
		}
		return nil, eris.Wrap(err, "fips: decode yaml table")
	}

	t := NewTable()
	for code, abbr := range raw.States {
		t.SetState(code, abbr)
	}
	for state, counties := range raw.Counties {
		for county, name := range counties {
			t.SetCounty(state, county, name)
		}
	}
	return t, nil
}

// SetState records a state abbreviation.
func (t *Table) SetState(code, abbr string) {
	t.States[padLeft(code, 2)] = strings.ToUpper(strings.TrimSpace(abbr))
}

// SetCounty records a county name. A trailing " County" is dropped so labels
// never read "X County County".
func (t *Table) SetCounty(state, county, name string) {
	state = padLeft(state, 2)
	m, ok := t.Counties[state]
	if !ok {
		m = make(map[string]string)
		t.Counties[state] = m
	}
	m[padLeft(county, 3)] = trimCountySuffix(name)
}

// StateCode returns the 2-digit code for a state abbreviation.
func (t *Table) StateCode(abbr string) (string, bool) {
	abbr = strings.ToUpper(strings.TrimSpace(abbr))
	for code, a := range t.States {
		if a == abbr {
			return code, true
		}
	}
	return "", false
}

// CountyCount returns the number of counties across all states.
func (t *Table) CountyCount() int {
	n := 0
	for _, m := range t.Counties {
		n += len(m)
	}
	return n
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	c := NewTable()
	for code, abbr := range t.States {
		c.States[code] = abbr
	}
	for state, counties := range t.Counties {
		m := make(map[string]string, len(counties))
		for code, name := range counties {
			m[code] = name
		}
		c.Counties[state] = m
	}
	return c
}

// Merge copies every entry of other into t, overwriting on conflict.
func (t *Table) Merge(other *Table) {
	for code, abbr := range other.States {
		t.States[code] = abbr
	}
	for state, counties := range other.Counties {
		for code, name := range counties {
			t.SetCounty(state, code, name)
		}
	}
}

func padLeft(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

func trimCountySuffix(name string) string {
	name = strings.TrimSpace(name)
	if trimmed, ok := strings.CutSuffix(name, " County"); ok && trimmed != "" {
		return trimmed
	}
	return name
}
