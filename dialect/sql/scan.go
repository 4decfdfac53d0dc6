package sql

import "fmt"

// ScanMaps reads all remaining rows into column-keyed maps, one per row, in
// result order. Keys are the column labels as reported by the driver, which
// for eager-load statements are the path-encoded aliases. []byte values are
// copied since drivers may reuse the buffer between Next calls.
func ScanMaps(rows ColumnScanner) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: scan columns: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan row: %w", err)
		}
		m := make(map[string]any, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			m[c] = values[i]
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: scan rows: %w", err)
	}
	return out, nil
}
