package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Shape identifies which of the accepted layouts a dataset document uses.
type Shape int

const (
	// ShapeEmpty is a valid JSON document that holds no records, e.g. a bare
	// string or number. Every lookup misses.
	ShapeEmpty Shape = iota
	// ShapeSequence is an array of records, each carrying a patientId field.
	ShapeSequence
	// ShapeKeyedMap is an object mapping patient id to record.
	ShapeKeyedMap
	// ShapeWrapped is an object whose "records" member maps patient id to record.
	ShapeWrapped
)

func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapeSequence:
		return "sequence"
	case ShapeKeyedMap:
		return "keyed"
	case ShapeWrapped:
		return "wrapped"
	default:
		return "unknown"
	}
}

// ParseShape maps a shape name as printed by Shape.String back to a Shape.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(name) {
	case "sequence", "array":
		return ShapeSequence, nil
	case "keyed", "map":
		return ShapeKeyedMap, nil
	case "wrapped":
		return ShapeWrapped, nil
	default:
		return ShapeEmpty, fmt.Errorf("unknown dataset shape %q (want sequence, keyed or wrapped)", name)
	}
}

const (
	idField      = "patientId"
	wrapperField = "records"
)

var errEmptyDocument = errors.New("empty dataset document")

// Dataset is a parsed, read-only record collection. The shape is decided
// once in ParseDataset and Resolve dispatches on it.
type Dataset struct {
	shape   Shape
	entries []sequenceEntry
	keyed   map[string]json.RawMessage
	wrapped map[string]json.RawMessage
}

type sequenceEntry struct {
	id     string
	record json.RawMessage
}

// ParseDataset decodes a dataset document. A document that is not valid JSON
// is an error; a valid document that is neither an array nor an object
// yields an empty dataset.
func ParseDataset(data []byte) (*Dataset, error) {
	doc := bytes.TrimSpace(data)
	if len(doc) == 0 {
		return nil, errEmptyDocument
	}
	if !json.Valid(doc) {
		return nil, fmt.Errorf("dataset is not valid JSON")
	}

	switch doc[0] {
	case '[':
		return parseSequence(doc)
	case '{':
		return parseObject(doc)
	default:
		return &Dataset{shape: ShapeEmpty}, nil
	}
}

func parseSequence(doc []byte) (*Dataset, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(doc, &elems); err != nil {
		return nil, fmt.Errorf("decode record array: %w", err)
	}

	ds := &Dataset{shape: ShapeSequence, entries: make([]sequenceEntry, 0, len(elems))}
	for _, elem := range elems {
		if !isObject(elem) {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(elem, &fields); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		id, ok := coerceID(fields[idField])
		if !ok {
			continue
		}
		ds.entries = append(ds.entries, sequenceEntry{id: id, record: elem})
	}
	return ds, nil
}

func parseObject(doc []byte) (*Dataset, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc, &obj); err != nil {
		return nil, fmt.Errorf("decode record object: %w", err)
	}

	inner, ok := obj[wrapperField]
	if !ok || !isObject(inner) {
		return &Dataset{shape: ShapeKeyedMap, keyed: obj}, nil
	}

	var records map[string]json.RawMessage
	if err := json.Unmarshal(inner, &records); err != nil {
		return nil, fmt.Errorf("decode %s member: %w", wrapperField, err)
	}
	return &Dataset{shape: ShapeWrapped, keyed: obj, wrapped: records}, nil
}

// Shape reports the layout the dataset was parsed from.
func (d *Dataset) Shape() Shape {
	if d == nil {
		return ShapeEmpty
	}
	return d.shape
}

// Len is the number of records a lookup can reach.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	switch d.shape {
	case ShapeSequence:
		return len(d.entries)
	case ShapeKeyedMap:
		return len(d.keyed)
	case ShapeWrapped:
		return len(d.wrapped)
	default:
		return 0
	}
}

// Resolve returns the record stored for patientID. Sequence entries are
// compared by their string-coerced patientId and the first match wins.
// For the wrapped shape an own entry of the outer object takes precedence
// over the records member, except for the "records" key itself. A present
// but blank outer entry hides the records member and the lookup misses.
func (d *Dataset) Resolve(patientID string) (json.RawMessage, bool) {
	if d == nil || patientID == "" {
		return nil, false
	}

	var (
		rec json.RawMessage
		ok  bool
	)
	switch d.shape {
	case ShapeSequence:
		for _, e := range d.entries {
			if e.id == patientID {
				rec, ok = e.record, true
				break
			}
		}
	case ShapeKeyedMap:
		rec, ok = entry(d.keyed, patientID)
	case ShapeWrapped:
		// A present outer entry decides the lookup even when it is null.
		if patientID != wrapperField {
			rec, ok = d.keyed[patientID]
		}
		if !ok {
			rec, ok = entry(d.wrapped, patientID)
		}
	}

	if !ok || isBlank(rec) {
		return nil, false
	}
	return rec, true
}

func entry(m map[string]json.RawMessage, id string) (json.RawMessage, bool) {
	raw, ok := m[id]
	if !ok || isNull(raw) {
		return nil, false
	}
	return raw, true
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// isBlank reports values that never count as a record: null, false, zero
// and the empty string.
func isBlank(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return true
	}
	switch raw[0] {
	case 'f':
		return true
	case '"':
		return bytes.Equal(raw, []byte(`""`))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(raw), 64)
		return err == nil && f == 0
	}
	return false
}

// coerceID turns a patientId value into its string form. Strings are taken
// as-is, numbers print in shortest decimal form and booleans as true/false.
// Null, empty and composite values are not usable ids.
func coerceID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, s != ""
	case 't':
		return "true", true
	case 'f':
		return "false", true
	case 'n', '{', '[':
		return "", false
	}

	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return "", false
	}
	return formatNumber(f), true
}

func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// Exponents print without zero padding: 1e-7, not 1e-07.
	s = strings.Replace(s, "e-0", "e-", 1)
	s = strings.Replace(s, "e+0", "e+", 1)
	return s
}
