// Package export reads and writes the pipeline's JSON and CSV files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsawler/pragma"
)

// UsageHeader is the header row of the classification CSV.
var UsageHeader = []string{"Lemma", "Register", "Mood", "Usage_Category", "Full_Sentence"}

// ExtractionHeader is the header row of the textbook extraction CSV.
var ExtractionHeader = []string{"Target_Lemma", "Extracted_Sentence", "Context_Pattern", "Original_Source", "Register"}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ReadRecords loads a JSON array of sentence records.
func ReadRecords(path string) ([]pragma.SentenceRecord, error) {
	var records []pragma.SentenceRecord
	if err := ReadJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadFiltered loads a JSON array of filtered records.
func ReadFiltered(path string) ([]pragma.FilteredRecord, error) {
	var records []pragma.FilteredRecord
	if err := ReadJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// WriteJSON writes v to path as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	})
}

// WriteUsageCSV writes one row per classified sentence.
func WriteUsageCSV(w io.Writer, rows []pragma.UsageRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(UsageHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Lemma, string(r.Register), r.Mood, r.UsageCategory, r.FullSentence}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadUsageCSV reads a file written by WriteUsageCSV. Columns are located by
// header name, so extra or reordered columns are tolerated.
func ReadUsageCSV(r io.Reader) ([]pragma.UsageRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range UsageHeader {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var rows []pragma.UsageRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, pragma.UsageRow{
			Lemma:         rec[col["Lemma"]],
			Register:      pragma.ParseRegister(rec[col["Register"]]),
			Mood:          rec[col["Mood"]],
			UsageCategory: strings.ToUpper(strings.TrimSpace(rec[col["Usage_Category"]])),
			FullSentence:  rec[col["Full_Sentence"]],
		})
	}
	return rows, nil
}

// WriteExtractionCSV writes textbook extraction rows.
func WriteExtractionCSV(w io.Writer, rows []pragma.ExtractedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExtractionHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.TargetLemma, r.Sentence, r.ContextPattern, r.Source, string(r.Register)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates path and fills it with write.
func WriteCSVFile(path string, write func(io.Writer) error) error {
	return writeFile(path, write)
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
