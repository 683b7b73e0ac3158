package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solarpro/erp/pkg/storage"
)

// scanRecords reads every row into a Record, decoding JSON columns into
// nested maps and slices so embeds come back as structured values.
func scanRecords(rows *sql.Rows) ([]storage.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	records := []storage.Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rec := make(storage.Record, len(columns))
		for i, col := range columns {
			v, err := normalize(values[i], types[i].DatabaseTypeName())
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col, err)
			}
			rec[col] = v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

func normalize(v any, dbType string) (any, error) {
	raw, ok := v.([]byte)
	if !ok {
		if s, isString := v.(string); isString && isJSONType(dbType) {
			return decodeJSON([]byte(s))
		}
		return v, nil
	}

	switch {
	case isJSONType(dbType):
		return decodeJSON(raw)
	case strings.EqualFold(dbType, "NUMERIC"):
		return json.Number(string(raw)), nil
	case strings.EqualFold(dbType, "BYTEA"):
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	default:
		return string(raw), nil
	}
}

func isJSONType(dbType string) bool {
	return strings.EqualFold(dbType, "JSON") || strings.EqualFold(dbType, "JSONB")
}

func decodeJSON(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid json value: %w", err)
	}
	return out, nil
}
