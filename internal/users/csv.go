package users

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ParseCSV reads a roster with a header row. email and username columns
// are required; id, full_name, role, password and school_id are optional.
func ParseCSV(r io.Reader) ([]BulkRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"email", "username"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	col := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	rows := []BulkRow{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		row := BulkRow{
			ID:       col(rec, "id"),
			Email:    col(rec, "email"),
			Username: col(rec, "username"),
			FullName: col(rec, "full_name"),
			Role:     strings.ToLower(col(rec, "role")),
			Password: col(rec, "password"),
		}
		if sc := col(rec, "school_id"); sc != "" {
			row.SchoolID = &sc
		}
		rows = append(rows, row)
	}
	return rows, nil
}
