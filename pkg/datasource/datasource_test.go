package datasource

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestLoadJSON(t *testing.T) {
	in := `[{"name": "Ann", "amount": 3.5}, {"name": "Bo"}]`
	rows, err := LoadJSON(strings.NewReader(in))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	want := []map[string]any{
		{"name": "Ann", "amount": 3.5},
		{"name": "Bo"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestLoadJSONRejectsObject(t *testing.T) {
	if _, err := LoadJSON(strings.NewReader(`{"name": "Ann"}`)); err == nil {
		t.Error("expected error for non-array input")
	}
}

func TestLoadCSV(t *testing.T) {
	in := "name,city\nAnn,Berlin\nBo,Paris\nCy\n"
	rows, err := LoadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	want := []map[string]any{
		{"name": "Ann", "city": "Berlin"},
		{"name": "Bo", "city": "Paris"},
		{"name": "Cy"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestLoadCSVEmpty(t *testing.T) {
	if _, err := LoadCSV(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestLoadYAML(t *testing.T) {
	in := "- name: Ann\n  city: Berlin\n- name: Bo\n"
	rows, err := LoadYAML(strings.NewReader(in))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	want := []map[string]any{
		{"name": "Ann", "city": "Berlin"},
		{"name": "Bo"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func buildWorkbook(t *testing.T, records [][]any) []byte {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := wb.SetSheetRow("Sheet1", cell, &rec); err != nil {
			t.Fatalf("setting row: %v", err)
		}
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("writing workbook: %v", err)
	}
	return buf.Bytes()
}

func TestLoadXLSX(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"name", "city"},
		{"Ann", "Berlin"},
		{"Bo", "Paris"},
	})
	rows, err := LoadXLSX(bytes.NewReader(data), "")
	if err != nil {
		t.Fatalf("LoadXLSX: %v", err)
	}
	want := []map[string]any{
		{"name": "Ann", "city": "Berlin"},
		{"name": "Bo", "city": "Paris"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}
}

func TestLoadXLSXEmptySheet(t *testing.T) {
	data := buildWorkbook(t, nil)
	if _, err := LoadXLSX(bytes.NewReader(data), ""); err == nil {
		t.Error("expected error for empty sheet")
	}
}

func TestLoadFileDispatch(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "rows.json")
	if err := os.WriteFile(jsonPath, []byte(`[{"name": "Ann"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	rows, err := LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("LoadFile(json): %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Ann" {
		t.Errorf("rows = %v", rows)
	}

	if _, err := LoadFile(filepath.Join(dir, "rows.toml")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
