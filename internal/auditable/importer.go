package auditable

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/sheet"
)

// Importer turns spreadsheet rows into upsert candidates keyed by a natural unique column.
type Importer struct {
	Key    string
	Decode func(row sheet.Row) (Values, error)
}

// NormalizeKey trims and NFC-normalises a natural key so visually equal names collide.
func NormalizeKey(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// plan decodes rows into upserts, dropping repeats of the same key within the file.
func (imp *Importer) plan(rows []sheet.Row) ([]Upsert, *apperr.Error) {
	if len(rows) == 0 {
		return nil, apperr.BadRequest("spreadsheet has no data rows")
	}
	seen := make(map[string]struct{}, len(rows))
	upserts := make([]Upsert, 0, len(rows))
	for i, row := range rows {
		line := i + 2 // header is line 1
		values, err := imp.Decode(row)
		if err != nil {
			return nil, apperr.Wrap(apperr.StatusBadRequest, fmt.Sprintf("row %d: %s", line, err.Error()), err)
		}
		raw, _ := values[imp.Key].(string)
		key := NormalizeKey(raw)
		if key == "" {
			return nil, apperr.BadRequest(fmt.Sprintf("row %d: %s is required", line, imp.Key))
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		values[imp.Key] = key
		upserts = append(upserts, Upsert{Key: imp.Key, Value: key, Create: values})
	}
	return upserts, nil
}
