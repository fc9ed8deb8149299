package fetcher

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, rows Rows) [][]string {
	t.Helper()
	var out [][]string
	for {
		row, err := rows.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, row)
	}
}

func TestCSVRows_Basic(t *testing.T) {
	input := "zipcode,county,state_abbr\n90001,Los Angeles,CA\n10001,New York,NY\n"
	rows, err := NewCSVRows(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"zipcode", "county", "state_abbr"}, rows.Header())
	got := readAll(t, rows)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"90001", "Los Angeles", "CA"}, got[0])
}

func TestCSVRows_PipeDelimited(t *testing.T) {
	input := "STATE|STATEFP|COUNTYFP\nCA|06|037\n"
	rows, err := NewCSVRows(strings.NewReader(input), CSVOptions{Delimiter: '|'})
	require.NoError(t, err)

	got := readAll(t, rows)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"CA", "06", "037"}, got[0])
}

func TestCSVRows_TrimSpace(t *testing.T) {
	input := " a , b \n 1 , 2 \n"
	rows, err := NewCSVRows(strings.NewReader(input), CSVOptions{TrimSpace: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, rows.Header())
	assert.Equal(t, [][]string{{"1", "2"}}, readAll(t, rows))
}

func TestCSVRows_VariableFields(t *testing.T) {
	input := "a,b,c\n1,2\n3,4,5,6\n"
	rows, err := NewCSVRows(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Len(t, readAll(t, rows), 2)
}

func TestCSVRows_Empty(t *testing.T) {
	_, err := NewCSVRows(strings.NewReader(""), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header")
}

func TestCSVRows_MalformedRow(t *testing.T) {
	input := "a,b\n\"unterminated,2\n"
	rows, err := NewCSVRows(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)

	_, err = rows.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		input string
		want  rune
	}{
		{"STATE|STATEFP|COUNTYFP|COUNTYNAME\nAL|01|001|Autauga County\n", '|'},
		{"zipcode,county,state_abbr\n", ','},
		{"ZIP\tCOUNTY\n", '\t'},
		{"", ','},
	}
	for _, tt := range tests {
		br := bufio.NewReader(strings.NewReader(tt.input))
		assert.Equal(t, tt.want, SniffDelimiter(br), "input %q", tt.input)

		// Sniffing must not consume input.
		rest, _ := io.ReadAll(br)
		assert.Equal(t, tt.input, string(rest))
	}
}

func TestColumns(t *testing.T) {
	cols := IndexColumns([]string{"\ufeffZIP", " County ", "RES_RATIO", "zip"})

	i, ok := cols.Lookup("zip")
	require.True(t, ok)
	assert.Equal(t, 0, i, "first occurrence wins")

	idx, err := cols.Require("COUNTY", "res_ratio")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, idx)

	_, err = cols.Require("valid_end_date")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid_end_date")
}

func TestField(t *testing.T) {
	row := []string{" 90001 ", "06037"}
	assert.Equal(t, "90001", Field(row, 0))
	assert.Equal(t, "", Field(row, 5))
	assert.Equal(t, "", Field(row, -1))
}
