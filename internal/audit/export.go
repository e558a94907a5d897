package audit

import (
	"bytes"
	"encoding/csv"
	"strings"
	"time"

	"github.com/rangoon-shop/rangoon-admin/internal/platform/sheet"
)

var exportHeader = []string{"id", "at", "actor", "action", "resource", "resource_ids"}

// Exporter renders timeline rows for download.
type Exporter struct{}

// NewExporter returns an Exporter.
func NewExporter() Exporter { return Exporter{} }

// WriteCSV encodes rows as CSV with a header line.
func (Exporter) WriteCSV(rows []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, e := range rows {
		if err := w.Write(exportRecord(e)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// WriteXLSX encodes rows as a single-sheet workbook.
func (Exporter) WriteXLSX(rows []Entry) ([]byte, error) {
	records := make([][]string, 0, len(rows))
	for _, e := range rows {
		records = append(records, exportRecord(e))
	}
	var buf bytes.Buffer
	if err := sheet.Write(&buf, exportHeader, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportRecord(e Entry) []string {
	return []string{
		e.ID,
		e.At.UTC().Format(time.RFC3339),
		e.ActorID,
		string(e.Action),
		string(e.Resource),
		strings.Join(e.ResourceIDs, ";"),
	}
}
