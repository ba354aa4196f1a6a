package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"github.com/fcrlab/segsweep/dice"
)

// Row is one line of the results table: one (case, augmentation) pair, or a
// case's baseline. Failed rows carry no scores; the reason column explains
// what went wrong.
type Row struct {
	Case      string  `csv:"case"`
	Kind      string  `csv:"kind"`
	Params    string  `csv:"params"`
	Dice      string  `csv:"dice"`
	Classes   int     `csv:"classes"`
	Aggregate float64 `csv:"aggregate"`
	OK        bool    `csv:"ok"`
	Reason    string  `csv:"reason"`
}

var resultColumns = []string{"case", "kind", "params", "dice", "classes", "aggregate", "ok", "reason"}

// ScoredRow builds a successful row from a dice result.
func ScoredRow(caseID, kind, params string, res dice.Result) Row {
	return Row{
		Case:      caseID,
		Kind:      kind,
		Params:    params,
		Dice:      formatPerClass(res),
		Classes:   len(res.PerClass),
		Aggregate: res.Aggregate,
		OK:        true,
	}
}

// FailedRow builds a row recording why a case or variant produced no score.
func FailedRow(caseID, kind, params, reason string) Row {
	return Row{Case: caseID, Kind: kind, Params: params, Reason: reason}
}

// formatPerClass renders per-class scores as "1=0.9;2=0.75", ascending by
// class id.
func formatPerClass(res dice.Result) string {
	parts := make([]string, 0, len(res.PerClass))
	for _, class := range res.Classes() {
		parts = append(parts, fmt.Sprintf("%d=%s", class, formatScore(res.PerClass[class])))
	}

	return strings.Join(parts, ";")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Writer appends rows to a TSV results file, writing the header only when
// it creates the file. Every row is written straight through, so rows
// survive an interrupted sweep. Safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	f  *os.File
}

func NewWriter(path string) (*Writer, error) {
	_, statErr := os.Stat(path)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, pfx.Err(err)
	}

	w := &Writer{f: f}
	if os.IsNotExist(statErr) {
		if _, err := fmt.Fprintln(f, strings.Join(resultColumns, "\t")); err != nil {
			f.Close()

			return nil, pfx.Err(err)
		}
	}

	return w, nil
}

func (w *Writer) Append(row Row) error {
	cols := []string{
		sanitizeField(row.Case),
		sanitizeField(row.Kind),
		sanitizeField(row.Params),
		sanitizeField(row.Dice),
		strconv.Itoa(row.Classes),
		formatScore(row.Aggregate),
		strconv.FormatBool(row.OK),
		sanitizeField(row.Reason),
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := fmt.Fprintln(w.f, strings.Join(cols, "\t"))

	return pfx.Err(err)
}

func (w *Writer) Close() error {
	return pfx.Err(w.f.Close())
}

// sanitizeField keeps free-text values (tool output tails in particular) on
// one tab-separated line.
func sanitizeField(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return ' '
		}

		return r
	}, s)
}

// ReadRows loads a results file written by Writer.
func ReadRows(path string) ([]Row, error) {
	fileBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// Tell gocsv to use tab as the delimiter
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = '\t'
		r.LazyQuotes = true
		return r
	})

	records := []*Row{}
	if err := gocsv.UnmarshalBytes(fileBytes, &records); err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]Row, 0, len(records))
	for _, record := range records {
		out = append(out, *record)
	}

	return out, nil
}
