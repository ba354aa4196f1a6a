package totalseg

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLabelTableAssignSortsNewNames(t *testing.T) {
	table := NewLabelTable()
	table.Assign([]string{"spleen", "aorta", "liver"})

	want := LabelTable{"aorta": 1, "liver": 2, "spleen": 3}
	if !reflect.DeepEqual(table, want) {
		t.Errorf("assigned %v, expected %v", table, want)
	}
}

func TestLabelTableAssignIsStable(t *testing.T) {
	table := NewLabelTable()
	table.Assign([]string{"aorta", "liver", "spleen"})

	// A later mask set that drops an organ must not renumber the others.
	table.Assign([]string{"spleen"})
	if table["spleen"] != 3 {
		t.Errorf("spleen renumbered to %d after re-assignment", table["spleen"])
	}

	// New organs continue after the highest existing id.
	table.Assign([]string{"kidney_left", "aorta"})
	if table["kidney_left"] != 4 {
		t.Errorf("kidney_left assigned %d, expected 4", table["kidney_left"])
	}
	if table["aorta"] != 1 {
		t.Errorf("aorta renumbered to %d", table["aorta"])
	}
}

func TestLabelTableAssignDeduplicates(t *testing.T) {
	table := NewLabelTable()
	table.Assign([]string{"liver", "liver", "aorta"})

	want := LabelTable{"aorta": 1, "liver": 2}
	if !reflect.DeepEqual(table, want) {
		t.Errorf("assigned %v, expected %v", table, want)
	}
}

func TestLabelTableNamesOrderedByID(t *testing.T) {
	table := LabelTable{"spleen": 3, "aorta": 1, "liver": 2}

	want := []string{"aorta", "liver", "spleen"}
	if got := table.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, expected %v", got, want)
	}
}

func TestLabelTableValid(t *testing.T) {
	if valid := (LabelTable{"aorta": 1, "liver": 2}).Valid(); !valid {
		t.Error("bijective table reported invalid")
	}
	if valid := (LabelTable{"aorta": 1, "liver": 1}).Valid(); valid {
		t.Error("table with a duplicated id reported valid")
	}
}

func TestLabelTableSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")

	table := NewLabelTable()
	table.Assign([]string{"liver", "aorta"})
	if err := table.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadLabelTable(path)
	if err != nil {
		t.Fatalf("LoadLabelTable failed: %v", err)
	}
	if !reflect.DeepEqual(loaded, table) {
		t.Errorf("loaded %v, expected %v", loaded, table)
	}
}

func TestLoadLabelTableMissingFileIsEmpty(t *testing.T) {
	table, err := LoadLabelTable(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadLabelTable failed: %v", err)
	}
	if len(table) != 0 {
		t.Errorf("expected an empty table, got %v", table)
	}
}

func TestLoadLabelTableRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
	if err := os.WriteFile(path, []byte(`{"aorta": 1, "liver": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadLabelTable(path); err == nil {
		t.Error("expected an error for a table with duplicate ids")
	}
}

func TestMaskLabel(t *testing.T) {
	for _, v := range []struct {
		filename string
		want     string
	}{
		{"liver.nii.gz", "liver"},
		{"spleen.nii", "spleen"},
		{"kidney_left.nii.gz", "kidney_left"},
	} {
		if got := MaskLabel(v.filename); got != v.want {
			t.Errorf("MaskLabel(%q) = %q, expected %q", v.filename, got, v.want)
		}
	}
}
