// Package export writes instances as JSONL, one record per element, and reads
// them back against a schema.
package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/catmig/pkg/types"
)

// Header is the first record of an export file.
type Header struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Schema   string `json:"schema"`
	Elements int    `json:"elements"`
}

// Record is one element with its edge values. Attribute nulls are written as
// JSON null.
type Record struct {
	Node  string                     `json:"node"`
	ID    types.Element              `json:"id"`
	Links map[string]types.Element   `json:"links,omitempty"`
	Attrs map[string]json.RawMessage `json:"attrs,omitempty"`
}

const kindInstance = "instance"

// ErrUnexportable is returned for a custom-sort literal that JSON cannot
// carry and read back unchanged.
var ErrUnexportable = errors.New("literal cannot be exported")

// Records converts i into its header and element records, nodes in schema
// order and elements by id.
func Records(i *types.Instance) (Header, []Record, error) {
	s := i.Schema()
	h := Header{Kind: kindInstance, ID: i.ID(), Name: i.Name(), Schema: s.Name(), Elements: i.Size()}
	var recs []Record
	for _, n := range s.Nodes() {
		edges := s.OutEdges(n.ID)
		for _, e := range i.Carrier(n.ID) {
			rec := Record{Node: n.Name, ID: e}
			for _, ed := range edges {
				if !ed.IsAttribute() {
					if t, ok := i.Lookup(ed.ID, e); ok {
						if rec.Links == nil {
							rec.Links = make(map[string]types.Element)
						}
						rec.Links[ed.Name] = t
					}
					continue
				}
				v, ok := i.Attr(ed.ID, e)
				if !ok {
					continue
				}
				raw, err := encodeValue(v)
				if err != nil {
					return Header{}, nil, fmt.Errorf("%s[%d].%s: %w", n.Name, e, ed.Name, err)
				}
				if rec.Attrs == nil {
					rec.Attrs = make(map[string]json.RawMessage)
				}
				rec.Attrs[ed.Name] = raw
			}
			recs = append(recs, rec)
		}
	}
	return h, recs, nil
}

func encodeValue(v types.Value) (json.RawMessage, error) {
	if v.IsNull() {
		return json.RawMessage("null"), nil
	}
	switch v.Sort {
	case types.SortString, types.SortInt, types.SortFloat, types.SortBool:
		return json.Marshal(v.Lit)
	}
	switch lit := v.Lit.(type) {
	case string, int64, bool:
		return json.Marshal(lit)
	case float64:
		if math.IsNaN(lit) || math.IsInf(lit, 0) {
			return nil, fmt.Errorf("%w: %s literal %v", ErrUnexportable, v.Sort, lit)
		}
		// Floats keep a fraction or exponent so they read back as floats.
		text := strconv.FormatFloat(lit, 'g', -1, 64)
		if !strings.ContainsAny(text, ".eE") {
			text += ".0"
		}
		return json.RawMessage(text), nil
	}
	return nil, fmt.Errorf("%w: %s literal of type %T", ErrUnexportable, v.Sort, v.Lit)
}

// WriteInstance writes i to path atomically.
func WriteInstance(path string, i *types.Instance) error {
	h, recs, err := Records(i)
	if err != nil {
		return err
	}
	lines := make([]json.RawMessage, 0, len(recs)+1)
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	lines = append(lines, b)
	for _, rec := range recs {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding %s[%d]: %w", rec.Node, rec.ID, err)
		}
		lines = append(lines, b)
	}
	return writeJSONL(path, lines)
}

// ReadInstance reads an export file into a new instance of s. Attribute
// values are decoded by the sort of their edge. Malformed lines are skipped
// and unknown fields are ignored.
func ReadInstance(path string, s *types.Schema) (*types.Instance, error) {
	lines, err := readJSONL(path)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s: no header", path)
	}
	var h Header
	if err := json.Unmarshal(lines[0], &h); err != nil || h.Kind != kindInstance {
		return nil, fmt.Errorf("%s: first record is not an instance header", path)
	}
	if h.Schema != s.Name() {
		return nil, fmt.Errorf("%w: %s holds an instance of %s, not %s", types.ErrSchemaMismatch, path, h.Schema, s.Name())
	}

	var recs []Record
	for _, line := range lines[1:] {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}

	inst, err := types.NewInstance(h.Name, s)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		n, err := s.Node(rec.Node)
		if err != nil {
			return nil, err
		}
		if err := inst.Adopt(n, rec.ID); err != nil {
			return nil, err
		}
	}
	for _, rec := range recs {
		for name, t := range rec.Links {
			e, err := s.Edge(name)
			if err != nil {
				return nil, err
			}
			if err := inst.Set(e, rec.ID, t); err != nil {
				return nil, fmt.Errorf("%s[%d].%s: %w", rec.Node, rec.ID, name, err)
			}
		}
		for name, raw := range rec.Attrs {
			e, err := s.Edge(name)
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(s.EdgeAt(e).Sort, raw)
			if err != nil {
				return nil, fmt.Errorf("%s[%d].%s: %w", rec.Node, rec.ID, name, err)
			}
			if err := inst.SetAttr(e, rec.ID, v); err != nil {
				return nil, fmt.Errorf("%s[%d].%s: %w", rec.Node, rec.ID, name, err)
			}
		}
	}
	return inst, nil
}

func decodeValue(sort types.Sort, raw json.RawMessage) (types.Value, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return types.Null(sort), nil
	}
	switch sort {
	case types.SortString:
		var s string
		err := json.Unmarshal(raw, &s)
		return types.String(s), err
	case types.SortInt:
		var n int64
		err := json.Unmarshal(raw, &n)
		return types.Int(n), err
	case types.SortFloat:
		var f float64
		err := json.Unmarshal(raw, &f)
		return types.Float(f), err
	case types.SortBool:
		var b bool
		err := json.Unmarshal(raw, &b)
		return types.Bool(b), err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var lit any
	if err := dec.Decode(&lit); err != nil {
		return types.Value{}, err
	}
	if num, ok := lit.(json.Number); ok {
		if strings.ContainsAny(num.String(), ".eE") {
			f, err := num.Float64()
			if err != nil {
				return types.Value{}, err
			}
			lit = f
		} else {
			n, err := num.Int64()
			if err != nil {
				return types.Value{}, err
			}
			lit = n
		}
	}
	return types.Const(sort, lit), nil
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(what string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", what, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
