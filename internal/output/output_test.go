package output

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
)

func TestEncodeCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Encode(&buf, FormatCSV, []crawler.Vacancy{
		{Title: "Engineer", Company: "Acme", Technologies: []string{"Go", "Python"}},
		{Title: "Dev, Senior", Company: `Beta "Labs"`, Technologies: []string{}},
	})
	require.NoError(t, err)
	require.Equal(t,
		"title,company,technologies\n"+
			"Engineer,Acme,\"Go, Python\"\n"+
			"\"Dev, Senior\",\"Beta \"\"Labs\"\"\",\n",
		buf.String())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"Dev, Senior", `Beta "Labs"`, ""}, records[2])
}

func TestEncodeEmptyStillWritesHeader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, FormatCSV, nil))
	assert.Equal(t, "title,company,technologies\n", buf.String())

	buf.Reset()
	require.NoError(t, Encode(&buf, FormatJSON, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestEncodeJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Encode(&buf, FormatJSON, []crawler.Vacancy{
		{Title: "Engineer", Company: "Acme", Technologies: []string{"Go"}},
		{Title: "Dev", Company: "Beta"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"title": "Engineer", "company": "Acme", "technologies": ["Go"]},
		{"title": "Dev", "company": "Beta", "technologies": []}
	]`, buf.String())
}

func TestEncodeUnknownFormat(t *testing.T) {
	t.Parallel()

	err := Encode(&bytes.Buffer{}, Format("xml"), nil)
	require.ErrorContains(t, err, "unsupported")
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"csv", FormatCSV, false},
		{" JSON ", FormatJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/json", FormatJSON.ContentType())
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
}
