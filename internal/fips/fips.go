// Package fips resolves 5-digit county FIPS codes to "County, ST" labels
// using a configurable state/county reference table.
package fips

import (
	"fmt"
	"strings"
)

// CodeLen is the length of a combined state+county FIPS code.
const CodeLen = 5

// Normalize trims a FIPS code and left-pads it with zeros to 5 characters.
// Codes already 5 or more characters long are returned trimmed but otherwise
// unchanged.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if len(code) >= CodeLen {
		return code
	}
	return strings.Repeat("0", CodeLen-len(code)) + code
}

// NormalizeInt formats a numeric FIPS code with zero-padding.
func NormalizeInt(code int) string {
	return fmt.Sprintf("%0*d", CodeLen, code)
}

// Split returns the 2-digit state and remaining county parts of a normalized code.
func Split(code string) (state, county string) {
	code = Normalize(code)
	return code[:2], code[2:]
}

// Unknown returns the sentinel label for a code that cannot be resolved.
func Unknown(code string) string {
	return fmt.Sprintf("Unknown County (FIPS: %s)", code)
}

// Label formats a county name and state abbreviation.
func Label(county, state string) string {
	return fmt.Sprintf("%s County, %s", county, state)
}

// Resolver maps FIPS codes to labels. It is safe for concurrent use; the
// table is never modified after construction.
type Resolver struct {
	table *Table
}

// NewResolver returns a Resolver over t, or over the embedded default table
// when t is nil.
func NewResolver(t *Table) *Resolver {
	if t == nil {
		t = Default()
	}
	return &Resolver{table: t}
}

// Table returns the reference table backing the resolver.
func (r *Resolver) Table() *Table {
	return r.table
}

// Lookup resolves code and reports whether both the state and the county were
// found.
func (r *Resolver) Lookup(code string) (string, bool) {
	code = Normalize(code)
	state, county := Split(code)

	abbr, ok := r.table.States[state]
	if !ok || abbr == "" {
		return Unknown(code), false
	}
	name, ok := r.table.Counties[state][county]
	if !ok || name == "" {
		return Unknown(code), false
	}
	return Label(name, abbr), true
}

// Resolve returns the label for code, or the unknown-county sentinel.
func (r *Resolver) Resolve(code string) string {
	label, _ := r.Lookup(code)
	return label
}

// ResolveInt resolves a numeric FIPS code; 6037 and "06037" are equivalent.
func (r *Resolver) ResolveInt(code int) string {
	return r.Resolve(NormalizeInt(code))
}
