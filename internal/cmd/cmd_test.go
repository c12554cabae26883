package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/rateguard/pkg/batch"
	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
	"github.com/vnykmshr/rateguard/pkg/sink"
)

func writeInput(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("RATEGUARD_CLIENT_API_KEY", "")

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-10-17")
	defer SetVersionInfo("dev", "unknown", "unknown")

	out, err := execute(t, context.Background(), "version", "--extended")
	require.NoError(t, err)
	assert.Contains(t, out, "rateguard 1.2.3")
	assert.Contains(t, out, "Commit: abc123")
}

func TestRunDryRunToFile(t *testing.T) {
	input := writeInput(t, `[
		{"Question Id": 1, "Question": "What is a rate limit?"},
		{"Question Id": 2, "Question": "Why space requests?"},
		{"Question Id": 3}
	]`)
	output := filepath.Join(t.TempDir(), "out.json")

	out, err := execute(t, context.Background(), "run",
		"--input", input,
		"--dry-run",
		"--rpm", "6000",
		"--workers", "3",
		"--output-path", output,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "3/3 ok")
	assert.Contains(t, out, output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	var entries map[string]sink.Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "What is a rate limit?", entries["1"].MainQuestion)
	assert.Contains(t, entries["3"].GeneratedQuestions, "No question provided.")
}

func TestRunDryRunToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("RATEGUARD_REDIS_ADDR", mr.Addr())
	t.Setenv("RATEGUARD_REDIS_KEY_PREFIX", "cli")

	input := writeInput(t, `[{"Question Id": "a", "Question": "q"}]`)
	out, err := execute(t, context.Background(), "run",
		"--input", input, "--dry-run", "--rpm", "6000", "--output", "redis")
	require.NoError(t, err)
	assert.Contains(t, out, "1/1 ok")

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "cli:")
	assert.NotEmpty(t, mr.HGet(keys[0], "a"))
}

func TestRunRequiresAPIKey(t *testing.T) {
	input := writeInput(t, `[{"Question Id": 1, "Question": "q"}]`)
	_, err := execute(t, context.Background(), "run", "--input", input)
	assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration)
}

func TestRunRejectsBadInput(t *testing.T) {
	_, err := execute(t, context.Background(), "run", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input file")

	input := writeInput(t, `[{"Question": "no id"}]`)
	_, err = execute(t, context.Background(), "run", "--dry-run", "--input", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing "Question Id"`)

	_, err = execute(t, context.Background(), "run", "--dry-run", "--input", input, "--rpm", "0")
	assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration)
}

func TestScheduleValidatesCron(t *testing.T) {
	input := writeInput(t, `[{"Question Id": 1, "Question": "q"}]`)

	_, err := execute(t, context.Background(), "schedule", "--dry-run", "--input", input)
	assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration)

	_, err = execute(t, context.Background(), "schedule", "--dry-run", "--input", input, "--cron", "every day")
	assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration)
}

func TestScheduleStopsOnCancel(t *testing.T) {
	input := writeInput(t, `[{"Question Id": 1, "Question": "q"}]`)
	output := filepath.Join(t.TempDir(), "out.json")

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	_, err := execute(t, ctx, "schedule",
		"--dry-run", "--input", input, "--rpm", "6000",
		"--output-path", output, "--cron", "* * * * * *")
	require.NoError(t, err)

	_, err = os.Stat(output)
	assert.NoError(t, err, "at least one scheduled run stored results")
}

func TestRenderSummary(t *testing.T) {
	report := batch.Report{
		RunID: "run-1",
		Model: "m",
		Results: map[string]batch.Result{
			"1": {ID: "1", Response: "first line\nsecond line", Duration: 1500 * time.Microsecond},
			"2": {ID: "2", Err: gferrors.ErrRateLimited},
		},
		Failed:  1,
		Elapsed: 2 * time.Second,
	}

	out := renderSummary(report, "out.json")
	assert.Contains(t, out, "Run run-1 (m)")
	assert.Contains(t, out, "first line")
	assert.NotContains(t, out, "second line")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "rate limited")
	assert.Contains(t, out, "1/2 ok")
	assert.Contains(t, out, "out.json")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "café", truncate("café", 4))
}
