package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRoundTripsHeaderKeyedRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []string{" Name ", "Country"}, [][]string{
		{"Samsung", "KR"},
		{"", ""},
		{"  Apple  ", "US"},
	}))

	rows, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Samsung", rows[0].Get("name"))
	assert.Equal(t, "Apple", rows[1].Get("NAME"))
	assert.Equal(t, "US", rows[1].Get("country"))
}

func TestReadShortRowsYieldEmptyCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []string{"name", "note"}, [][]string{{"Sony"}}))

	rows, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Get("note"))
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(strings.NewReader("not a workbook"))
	require.Error(t, err)
}

func TestReadEmptyWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil, nil))

	_, err := Read(&buf)
	require.ErrorIs(t, err, ErrEmpty)
}
