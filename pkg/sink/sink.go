// Package sink persists batch reports.
package sink

import (
	"context"
	"sort"

	"github.com/vnykmshr/rateguard/pkg/batch"
	"github.com/vnykmshr/rateguard/pkg/metrics"
)

// Sink stores a report.
type Sink interface {
	Write(ctx context.Context, report batch.Report) error
}

// Entry is the stored form of one result.
type Entry struct {
	MainQuestion       string `json:"main_question"`
	GeneratedQuestions string `json:"generated_questions"`
	Error              string `json:"error,omitempty"`
}

// NewEntry converts a result to its stored form.
func NewEntry(r batch.Result) Entry {
	e := Entry{
		MainQuestion:       r.Question,
		GeneratedQuestions: r.Response,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// ids returns the report's result IDs in sorted order.
func ids(report batch.Report) []string {
	out := make([]string, 0, len(report.Results))
	for id := range report.Results {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func observe(m *metrics.Registry, name string, records int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SinkErrors.WithLabelValues(name).Inc()
		return
	}
	m.SinkWrites.WithLabelValues(name).Inc()
	m.SinkRecords.WithLabelValues(name).Add(float64(records))
}
