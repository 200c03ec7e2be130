// package formatter provides functions to export destination records to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/desertthunder/mlsync/internal/models"
	"github.com/desertthunder/mlsync/internal/repositories"
	"github.com/desertthunder/mlsync/internal/shared"
)

// RecordExport bundles a destination record with everything stored against it.
type RecordExport struct {
	Record  repositories.Record              `json:"record"`
	Params  map[string]string                `json:"params"`
	Tags    map[string]string                `json:"tags"`
	Metrics map[string][]models.MetricSample `json:"metrics"`
}

// BuildRecordExport assembles a RecordExport from the destination store.
func BuildRecordExport(store *repositories.RecordRepository, id string) (*RecordExport, error) {
	record, err := store.Get(id)
	if err != nil {
		return nil, err
	}

	params, err := store.Params(id)
	if err != nil {
		return nil, err
	}
	tags, err := store.Tags(id)
	if err != nil {
		return nil, err
	}

	metrics := map[string][]models.MetricSample{}
	names, err := store.Metrics(id)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		samples, err := store.Samples(id, name)
		if err != nil {
			return nil, err
		}
		metrics[name] = samples
	}

	return &RecordExport{Record: *record, Params: params, Tags: tags, Metrics: metrics}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ExportToCSV converts a RecordExport's metric series to CSV format with
// columns: Metric, Step, Value, Timestamp. Metrics appear in name order,
// samples in stored order.
func ExportToCSV(export *RecordExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Metric", "Step", "Value", "Timestamp"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, metric := range sortedKeys(export.Metrics) {
		for _, s := range export.Metrics[metric] {
			record := []string{
				metric,
				strconv.FormatInt(s.Step, 10),
				strconv.FormatFloat(s.Value, 'g', -1, 64),
				strconv.FormatInt(s.Timestamp, 10),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a RecordExport to Markdown format
func ExportToMarkdown(export *RecordExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.Record.Name))
	buf.WriteString(fmt.Sprintf("**Experiment**: %s\n", export.Record.Experiment))
	buf.WriteString(fmt.Sprintf("**Record ID**: %s\n\n", export.Record.ID))

	if len(export.Params) > 0 {
		buf.WriteString("## Params\n\n")
		for _, key := range sortedKeys(export.Params) {
			buf.WriteString(fmt.Sprintf("- `%s`: %s\n", key, export.Params[key]))
		}
		buf.WriteString("\n")
	}

	if len(export.Tags) > 0 {
		buf.WriteString("## Tags\n\n")
		for _, key := range sortedKeys(export.Tags) {
			buf.WriteString(fmt.Sprintf("- `%s`: %s\n", key, export.Tags[key]))
		}
		buf.WriteString("\n")
	}

	if len(export.Metrics) > 0 {
		buf.WriteString("## Metrics\n\n")
		for _, metric := range sortedKeys(export.Metrics) {
			samples := export.Metrics[metric]
			last := ""
			if len(samples) > 0 {
				last = strconv.FormatFloat(samples[len(samples)-1].Value, 'g', -1, 64)
			}
			buf.WriteString(fmt.Sprintf("- %s: %d sample(s), last %s\n", metric, len(samples), last))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a RecordExport to plain text format
func ExportToText(export *RecordExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Record: %s\n", export.Record.Name))
	buf.WriteString(fmt.Sprintf("Experiment: %s\n", export.Record.Experiment))
	buf.WriteString(fmt.Sprintf("Params: %d\n", len(export.Params)))
	buf.WriteString(fmt.Sprintf("Tags: %d\n", len(export.Tags)))
	buf.WriteString(fmt.Sprintf("Metrics: %d\n\n", len(export.Metrics)))

	for _, metric := range sortedKeys(export.Metrics) {
		for _, s := range export.Metrics[metric] {
			buf.WriteString(fmt.Sprintf("%s step=%d value=%s\n", metric, s.Step, strconv.FormatFloat(s.Value, 'g', -1, 64)))
		}
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of a record (without metric samples)
func ToMetadataJSON(export *RecordExport) ([]byte, error) {
	metadata := struct {
		Record repositories.Record `json:"record"`
		Params map[string]string   `json:"params"`
		Tags   map[string]string   `json:"tags"`
	}{export.Record, export.Params, export.Tags}
	return shared.MarshalJSON(metadata, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	SamplesFile  string
	MetadataFile string
}

// WriteCSVExport exports a record to CSV format with accompanying metadata JSON file.
//
// Defaults to the record ID as the base filename & creates {base}_samples.csv and {base}_metadata.json
func WriteCSVExport(export *RecordExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Record.ID
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	samplesFile := baseFilepath + "_samples.csv"
	if err := os.WriteFile(samplesFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		SamplesFile:  samplesFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport exports a record to Markdown format in a dedicated directory.
//
// Directory name defaults to the record ID. Creates {dir}/README.md.
func WriteMarkdownExport(export *RecordExport, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = export.Record.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := fmt.Sprintf("%s/README.md", outputDir)
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextExport exports a record to plain text format.
//
// Defaults to {record.ID}_record.txt as the filename.
func WriteTextExport(export *RecordExport, filepath string) (string, error) {
	if filepath == "" {
		filepath = fmt.Sprintf("%s_record.txt", export.Record.ID)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(filepath, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return filepath, nil
}
