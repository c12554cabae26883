package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vnykmshr/rateguard/pkg/batch"
	"github.com/vnykmshr/rateguard/pkg/metrics"
)

// DefaultFileName returns the output file name used for model.
func DefaultFileName(model string) string {
	return "generated_response_" + strings.ReplaceAll(model, ".", "_") + ".json"
}

// FileSink writes a report as a JSON object keyed by question ID.
type FileSink struct {
	// Path of the output file. When empty, DefaultFileName(report.Model)
	// is used in Dir.
	Path string

	// Dir is used with the default file name (default: current directory).
	Dir string

	Metrics *metrics.Registry
}

// Target returns the file a report would be written to.
func (s *FileSink) Target(report batch.Report) string {
	if s.Path != "" {
		return s.Path
	}
	return filepath.Join(s.Dir, DefaultFileName(report.Model))
}

// Write encodes the report and replaces the target file atomically.
func (s *FileSink) Write(ctx context.Context, report batch.Report) error {
	err := s.write(ctx, report)
	observe(s.Metrics, "file", len(report.Results), err)
	return err
}

func (s *FileSink) write(ctx context.Context, report batch.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(report)
	if err != nil {
		return err
	}

	path := s.Target(report)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".rateguard-*.json")
	if err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() // nolint:errcheck // write error takes precedence
		return fmt.Errorf("file sink: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	return nil
}

// Encode renders report as indented JSON without HTML escaping.
func Encode(report batch.Report) ([]byte, error) {
	entries := make(map[string]Entry, len(report.Results))
	for _, id := range ids(report) {
		entries[id] = NewEntry(report.Results[id])
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}
