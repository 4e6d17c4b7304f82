package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"pm-intelligence/internal/intelligence/sources"
	"pm-intelligence/internal/models"
)

var (
	ErrEmptyFile     = errors.New("csv file has no header")
	ErrMissingColumn = errors.New("required column missing")
)

const listSeparator = ";"

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"02.01.2006",
}

// RowError is a rejected line. Line numbers are 1-based and count the header.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// RelationshipRecord is one evidence line for a (from, to, type) triple.
type RelationshipRecord struct {
	Line       int
	From       string
	To         string
	Type       models.RelationshipType
	Evidence   models.SourceEvidence
	Properties map[string]interface{}
}

func (r RelationshipRecord) Key() string {
	return models.RelationshipKey(r.From, r.To, r.Type)
}

type table struct {
	columns map[string]int
	rows    [][]string
	lines   []int
}

func (t *table) get(row []string, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func readTable(r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &table{columns: make(map[string]int, len(header))}
	for i, h := range header {
		name := normalizeColumn(h)
		if _, dup := t.columns[name]; !dup {
			t.columns[name] = i
		}
	}
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		t.rows = append(t.rows, record)
		t.lines = append(t.lines, line)
	}
	return t, nil
}

// ParseEntities reads an `id,type,name,<attribute>...` file. Rows without an
// id or name, or with an unknown type, are rejected individually.
func ParseEntities(r io.Reader) ([]models.Entity, []RowError, error) {
	t, err := readTable(r, "id", "type", "name")
	if err != nil {
		return nil, nil, err
	}

	var entities []models.Entity
	var rejected []RowError
	seen := map[string]int{}

	for i, row := range t.rows {
		line := t.lines[i]
		id := t.get(row, "id")
		name := t.get(row, "name")
		if id == "" || name == "" {
			rejected = append(rejected, RowError{Line: line, Reason: "id and name are required"})
			continue
		}
		et, ok := models.ParseEntityType(t.get(row, "type"))
		if !ok {
			rejected = append(rejected, RowError{Line: line, Reason: fmt.Sprintf("unknown entity type %q", t.get(row, "type"))})
			continue
		}

		e := models.Entity{ID: id, Type: et, Name: name, Attributes: models.Attributes{}}
		for col, idx := range t.columns {
			if col == "id" || col == "type" || col == "name" || idx >= len(row) {
				continue
			}
			if v, ok := ParseValue(row[idx]); ok {
				e.Attributes[col] = v
			}
		}

		// a repeated id updates the earlier row, like a second ingest would
		if at, dup := seen[id]; dup {
			entities[at].Merge(e)
			continue
		}
		seen[id] = len(entities)
		entities = append(entities, e)
	}
	return entities, rejected, nil
}

// ParseRelationships reads a `from_id,to_id,type[,source_type,authority,...]`
// file. Extra columns become edge properties and evidence.
func ParseRelationships(r io.Reader) ([]RelationshipRecord, []RowError, error) {
	t, err := readTable(r, "from_id", "to_id", "type")
	if err != nil {
		return nil, nil, err
	}

	var records []RelationshipRecord
	var rejected []RowError

	for i, row := range t.rows {
		line := t.lines[i]
		from := t.get(row, "from_id")
		to := t.get(row, "to_id")
		if from == "" || to == "" {
			rejected = append(rejected, RowError{Line: line, Reason: "from_id and to_id are required"})
			continue
		}
		if from == to {
			rejected = append(rejected, RowError{Line: line, Reason: "self relationship"})
			continue
		}
		relType := models.RelationshipType(strings.ToUpper(strings.ReplaceAll(t.get(row, "type"), " ", "_")))
		if !relType.Valid() {
			rejected = append(rejected, RowError{Line: line, Reason: fmt.Sprintf("invalid relationship type %q", t.get(row, "type"))})
			continue
		}

		sourceType := strings.ToUpper(t.get(row, "source_type"))
		if sourceType == "" {
			sourceType = sources.CSVImport
		}
		ev := models.SourceEvidence{SourceType: sourceType, Evidence: map[string]interface{}{"line": line}}
		if raw := t.get(row, "authority"); raw != "" {
			a, err := strconv.ParseFloat(raw, 64)
			if err != nil || a < 0 || a > 1 {
				rejected = append(rejected, RowError{Line: line, Reason: fmt.Sprintf("authority %q outside [0,1]", raw)})
				continue
			}
			ev.Authority = a
		}
		if raw := t.get(row, "timestamp"); raw != "" {
			if ts, ok := parseDate(raw); ok {
				ev.Timestamp = ts
			}
		}

		props := map[string]interface{}{}
		for col, idx := range t.columns {
			switch col {
			case "from_id", "to_id", "type", "source_type", "authority", "timestamp":
				continue
			}
			if idx >= len(row) {
				continue
			}
			if v, ok := ParseValue(row[idx]); ok {
				props[col] = v.Native()
				ev.Evidence[col] = v.Native()
			}
		}

		records = append(records, RelationshipRecord{
			Line:       line,
			From:       from,
			To:         to,
			Type:       relType,
			Evidence:   ev,
			Properties: props,
		})
	}
	return records, rejected, nil
}

// ParseValue types a raw cell: `;` separates list items, then numbers, then
// dates, else text. Blank cells carry no value.
func ParseValue(raw string) (models.AttributeValue, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.AttributeValue{}, false
	}
	if strings.Contains(raw, listSeparator) {
		var items []models.AttributeValue
		for _, part := range strings.Split(raw, listSeparator) {
			if v, ok := scalar(strings.TrimSpace(part)); ok {
				items = append(items, v)
			}
		}
		if len(items) == 0 {
			return models.AttributeValue{}, false
		}
		return models.ListValue(items...), true
	}
	return scalar(raw)
}

func scalar(s string) (models.AttributeValue, bool) {
	if s == "" {
		return models.AttributeValue{}, false
	}
	if n, ok := parseNumber(s); ok {
		return models.NumberValue(n), true
	}
	if t, ok := parseDate(s); ok {
		return models.DateValue(t), true
	}
	return models.StringValue(s), true
}

func parseNumber(s string) (float64, bool) {
	v := strings.ReplaceAll(s, ",", "")
	v = strings.TrimPrefix(v, "$")
	divisor := 1.0
	if strings.HasSuffix(v, "%") {
		// rates are stored as fractions
		v = strings.TrimSuffix(v, "%")
		divisor = 100
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n / divisor, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeColumn(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
