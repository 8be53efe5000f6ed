// Package output renders crawled vacancies into the exported artifact formats.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
)

// Format names an artifact encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Header is the CSV header row.
var Header = []string{"title", "company", "technologies"}

// TechnologySeparator joins technologies inside a single CSV cell.
const TechnologySeparator = ", "

// ParseFormat accepts a format name case-insensitively. Empty means CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", raw)
	}
}

// ContentType returns the MIME type stored alongside the artifact.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// Encode writes vacancies to w in the given format. An empty slice still
// produces a valid artifact: a header-only CSV or an empty JSON array.
func Encode(w io.Writer, format Format, vacancies []crawler.Vacancy) error {
	switch format {
	case FormatCSV, "":
		return encodeCSV(w, vacancies)
	case FormatJSON:
		return encodeJSON(w, vacancies)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func encodeCSV(w io.Writer, vacancies []crawler.Vacancy) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, v := range vacancies {
		record := []string{v.Title, v.Company, strings.Join(v.Technologies, TechnologySeparator)}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func encodeJSON(w io.Writer, vacancies []crawler.Vacancy) error {
	if vacancies == nil {
		vacancies = []crawler.Vacancy{}
	}
	rows := make([]crawler.Vacancy, len(vacancies))
	for i, v := range vacancies {
		if v.Technologies == nil {
			v.Technologies = []string{}
		}
		rows[i] = v
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
