package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/mx-space/console/internal/pkg/record"
)

var (
	insertStatementPattern = regexp.MustCompile(`INSERT INTO\s+"?(\w+)"?\s*\(([^)]+)\)\s*VALUES\s*\(([^)]+)\)`)
	sqlTableNamePattern    = regexp.MustCompile(`^\w+$`)
)

// ErrNoInsertStatements means a non-empty SQL artifact held nothing the
// INSERT reader recognizes.
var ErrNoInsertStatements = errors.New("no INSERT statements recognized")

// sqlTableName reports whether collection survives the INSERT reader.
func sqlTableName(collection string) bool {
	return sqlTableNamePattern.MatchString(collection)
}

// EncodeSQL writes one INSERT statement per row. Columns are emitted in
// sorted key order.
func EncodeSQL(collection string, rows []record.Record) ([]byte, error) {
	var b strings.Builder
	for _, row := range rows {
		keys := row.Keys()
		if len(keys) == 0 {
			continue
		}
		cols := make([]string, 0, len(keys))
		vals := make([]string, 0, len(keys))
		for _, key := range keys {
			cols = append(cols, `"`+key+`"`)
			vals = append(vals, sqlLiteral(row[key]))
		}
		b.WriteString(`INSERT INTO "`)
		b.WriteString(collection)
		b.WriteString(`" (`)
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString(") VALUES (")
		b.WriteString(strings.Join(vals, ", "))
		b.WriteString(");\n")
	}
	return []byte(b.String()), nil
}

func sqlLiteral(v record.Value) string {
	switch v.Kind() {
	case record.KindNull:
		return "NULL"
	case record.KindBool, record.KindNumber:
		return v.Text()
	default:
		return "'" + strings.ReplaceAll(v.Text(), "'", "''") + "'"
	}
}

// DecodeSQL scans INSERT statements out of text. Value lists are split on
// every comma, so quoted strings containing commas do not survive.
func DecodeSQL(text []byte) ([]record.Record, error) {
	matches := insertStatementPattern.FindAllSubmatch(text, -1)
	rows := make([]record.Record, 0, len(matches))
	for _, m := range matches {
		cols := strings.Split(string(m[2]), ",")
		vals := strings.Split(string(m[3]), ",")
		row := make(record.Record, len(cols))
		for i, col := range cols {
			name := strings.Trim(strings.TrimSpace(col), `"`)
			if name == "" {
				continue
			}
			if i >= len(vals) {
				row[name] = record.Null()
				continue
			}
			row[name] = parseSQLValue(strings.TrimSpace(vals[i]))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSQLValue(raw string) record.Value {
	if raw == "NULL" {
		return record.Null()
	}
	if len(raw) >= 2 && strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'") {
		raw = strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
	}
	if strings.HasPrefix(raw, "{") {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			return record.Map(record.FromMap(parsed))
		}
	}
	return record.String(raw)
}

func decodeSQLArtifact(limit int64) Decoder {
	return func(data []byte) ([]record.Record, error) {
		text, err := decompressBytes(data, limit)
		if err != nil {
			return nil, err
		}
		rows, err := DecodeSQL(text)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 && len(bytes.TrimSpace(text)) > 0 {
			return nil, ErrNoInsertStatements
		}
		return rows, nil
	}
}

func encodeSQLArtifact(collection string, rows []record.Record) ([]byte, error) {
	text, err := EncodeSQL(collection, rows)
	if err != nil {
		return nil, err
	}
	return compressBytes(text)
}
