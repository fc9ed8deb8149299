// Package zipcode holds ZIP code lists and ZIP -> county label mappings.
package zipcode

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Len is the length of a ZIP code.
const Len = 5

var separators = regexp.MustCompile(`[,\s]+`)

// Normalize trims a ZIP code and left-pads it with zeros to 5 characters.
func Normalize(zip string) string {
	zip = strings.TrimSpace(zip)
	if len(zip) >= Len {
		return zip
	}
	return strings.Repeat("0", Len-len(zip)) + zip
}

// ParseList splits r on any run of commas or whitespace and returns the
// non-empty tokens in order. Duplicates are kept and tokens are not re-padded,
// so report rows echo exactly what the caller supplied.
func ParseList(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "zipcode: read list")
	}
	var zips []string
	for _, tok := range separators.Split(string(data), -1) {
		if tok != "" {
			zips = append(zips, tok)
		}
	}
	return zips, nil
}

// LoadList reads a ZIP list file.
func LoadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zipcode: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ParseList(f)
}
