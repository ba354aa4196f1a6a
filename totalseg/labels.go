package totalseg

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/carbocation/pfx"
)

// LabelTable maps organ names (mask filenames without the NIfTI suffix) to
// the class ids used in combined label volumes. One table is kept per case
// so ids stay comparable across that case's variants even when a variant's
// mask set drops an organ.
type LabelTable map[string]int32

func NewLabelTable() LabelTable {
	return make(LabelTable)
}

// LoadLabelTable reads a table previously written with Save. A missing file
// yields an empty table.
func LoadLabelTable(path string) (LabelTable, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewLabelTable(), nil
	} else if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	out := NewLabelTable()
	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return nil, pfx.Err(err)
	}

	if !out.Valid() {
		return nil, fmt.Errorf("label table %s assigns one id to several names", path)
	}

	return out, nil
}

// Assign allocates ids for any names the table has not seen, in sorted name
// order, continuing after the highest id already present. The first id is 1;
// 0 is reserved for background.
func (t LabelTable) Assign(names []string) {
	next := int32(1)
	for _, id := range t {
		if id >= next {
			next = id + 1
		}
	}

	unseen := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := t[name]; !ok {
			unseen = append(unseen, name)
		}
	}
	sort.Strings(unseen)

	for _, name := range unseen {
		if _, ok := t[name]; ok {
			continue
		}

		t[name] = next
		next++
	}
}

// ID returns the class id assigned to name.
func (t LabelTable) ID(name string) (int32, bool) {
	id, ok := t[name]

	return id, ok
}

// Names returns the table's organ names ordered by class id.
func (t LabelTable) Names() []string {
	out := make([]string, 0, len(t))
	for name := range t {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return t[out[i]] < t[out[j]] })

	return out
}

// Valid ensures that the table is valid by testing that it is bijective.
func (t LabelTable) Valid() bool {
	inverse := make(map[int32]string)
	for name, id := range t {
		inverse[id] = name
	}

	return len(inverse) == len(t)
}

// Save writes the table as JSON next to the case's segmentation output.
func (t LabelTable) Save(path string) error {
	bts, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(os.WriteFile(path, bts, 0o644))
}
