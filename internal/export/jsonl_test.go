package export

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mesh-intelligence/catmig/internal/fixture"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

func TestWriteInstanceRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) *types.Instance
	}{
		{"company", func(t *testing.T) *types.Instance { return fixture.CompanyData(t, fixture.Company(t)) }},
		{"ledger", func(t *testing.T) *types.Instance { return fixture.LedgerData(t, fixture.Ledger(t)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := tt.build(t)
			path := filepath.Join(t.TempDir(), "out.jsonl")

			if err := WriteInstance(path, inst); err != nil {
				t.Fatalf("WriteInstance failed: %v", err)
			}
			got, err := ReadInstance(path, inst.Schema())
			if err != nil {
				t.Fatalf("ReadInstance failed: %v", err)
			}
			if !got.Equal(inst) {
				t.Errorf("round trip differs")
			}
			if diff := cmp.Diff(inst.Snapshot(), got.Snapshot()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
			if got.Name() != inst.Name() {
				t.Errorf("name = %q, want %q", got.Name(), inst.Name())
			}
		})
	}
}

func TestWriteInstanceFormat(t *testing.T) {
	inst := fixture.CompanyData(t, fixture.Company(t))
	path := filepath.Join(t.TempDir(), "out.jsonl")
	if err := WriteInstance(path, inst); err != nil {
		t.Fatalf("WriteInstance failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected header plus 5 records, got %d lines", len(lines))
	}

	var h Header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("header: %v", err)
	}
	want := Header{Kind: "instance", ID: inst.ID(), Name: "Acme", Schema: "Company", Elements: 5}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	var rec Record
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Node != "Employee" || rec.ID != 1 || rec.Links["worksIn"] != 1 || string(rec.Attrs["ename"]) != `"Ann"` {
		t.Errorf("unexpected first record %+v", rec)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".jsonl-*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestReadInstanceSkipsMalformedLines(t *testing.T) {
	s := fixture.Company(t)
	inst := fixture.CompanyData(t, s)
	path := filepath.Join(t.TempDir(), "out.jsonl")
	if err := WriteInstance(path, inst); err != nil {
		t.Fatalf("WriteInstance failed: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{not json\n\n")
	f.Close()

	got, err := ReadInstance(path, s)
	if err != nil {
		t.Fatalf("ReadInstance failed: %v", err)
	}
	if !got.Equal(inst) {
		t.Errorf("malformed trailing lines changed the instance")
	}
}

func TestReadInstanceErrors(t *testing.T) {
	dir := t.TempDir()
	company := fixture.Company(t)

	staffPath := filepath.Join(dir, "staff.jsonl")
	if err := WriteInstance(staffPath, fixture.Instance(t, "S", fixture.Staff(t), fixture.Rows{})); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.jsonl")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		is   error
	}{
		{"missing file", filepath.Join(dir, "nope.jsonl"), os.ErrNotExist},
		{"empty file", empty, nil},
		{"other schema", staffPath, types.ErrSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadInstance(tt.path, company)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("expected %v, got %v", tt.is, err)
			}
		})
	}
}

func ledgerEntry(t *testing.T, s *types.Schema, day types.Value) *types.Instance {
	return fixture.Instance(t, "Books", s, fixture.Rows{
		Counts: map[string]int{"Entry": 1},
		Attrs: map[string][]types.Value{
			"memo":   {types.String("rent")},
			"amount": {types.Int(1200)},
			"rate":   {types.Float(2)},
			"posted": {types.Bool(true)},
			"day":    {day},
		},
	})
}

func TestCustomLiteralsKeepTheirType(t *testing.T) {
	s := fixture.Ledger(t)
	tests := []struct {
		name string
		lit  any
		text string
	}{
		{"integral float", float64(2), "2.0"},
		{"fractional float", 2.5, "2.5"},
		{"large float", 1e21, "1e+21"},
		{"int", int64(2), "2"},
		{"string", "2024-01-01", `"2024-01-01"`},
		{"bool", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := types.Const("Date", tt.lit)
			inst := ledgerEntry(t, s, day)
			_, recs, err := Records(inst)
			if err != nil {
				t.Fatalf("Records failed: %v", err)
			}
			if got := string(recs[0].Attrs["day"]); got != tt.text {
				t.Errorf("encoded day = %s, want %s", got, tt.text)
			}

			path := filepath.Join(t.TempDir(), "out.jsonl")
			if err := WriteInstance(path, inst); err != nil {
				t.Fatalf("WriteInstance failed: %v", err)
			}
			got, err := ReadInstance(path, s)
			if err != nil {
				t.Fatalf("ReadInstance failed: %v", err)
			}
			dayEdge, _ := s.Edge("day")
			v, ok := got.Attr(dayEdge, 1)
			if !ok || !v.Equal(day) {
				t.Errorf("day = %#v (%v), want %#v", v.Lit, ok, tt.lit)
			}
			if !got.Equal(inst) {
				t.Errorf("round trip differs")
			}
		})
	}
}

func TestUnexportableCustomLiterals(t *testing.T) {
	s := fixture.Ledger(t)
	for _, lit := range []any{math.NaN(), math.Inf(1), struct{ Y, M int }{2024, 1}} {
		inst := ledgerEntry(t, s, types.Const("Date", lit))
		path := filepath.Join(t.TempDir(), "out.jsonl")
		err := WriteInstance(path, inst)
		if !errors.Is(err, ErrUnexportable) {
			t.Errorf("WriteInstance(%v) = %v, want ErrUnexportable", lit, err)
		}
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Errorf("export file written for %v", lit)
		}
	}
}
