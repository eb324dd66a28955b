package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/gt"

	"workforce/internal/app/cli"
)

const lic1Rows = `{
  "asOf": "2024-06-01",
  "rows": [
    {"key": "A", "category": "license", "validTo": "2024-05-15"},
    {"key": "B", "category": "license", "validTo": "2024-06-20"},
    {"key": "C", "category": "license", "validTo": "2024-09-01"},
    {"key": "D", "category": "license", "validTo": "2024-05-15", "waived": true},
    {"key": "E", "category": "license", "validTo": null}
  ]
}`

func runEvaluate(t *testing.T, args ...string) map[string]any {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.json")
	gt.NoError(t, os.WriteFile(path, []byte(lic1Rows), 0o600))

	stdout := os.Stdout
	r, w, err := os.Pipe()
	gt.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	argv := append([]string{"workforce", "--log-level", "error", "--log-format", "json", "evaluate", "--input", path}, args...)
	runErr := cli.Run(context.Background(), argv)
	gt.NoError(t, w.Close())
	os.Stdout = stdout
	gt.NoError(t, runErr)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	gt.NoError(t, err)

	var out map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestEvaluateCommand(t *testing.T) {
	out := runEvaluate(t, "--window", "30")

	gt.Equal(t, out["asOf"], any("2024-06-01"))
	gt.Equal(t, out["primary"], any("overdue"))

	rows, ok := out["rows"].([]any)
	gt.True(t, ok)
	gt.Equal(t, len(rows), 5)

	want := []string{"overdue", "expiring", "valid", "waived", "missing"}
	for i, row := range rows {
		gt.Equal(t, row.(map[string]any)["status"], any(want[i]))
	}
}

func TestEvaluateCommandLegacyNames(t *testing.T) {
	out := runEvaluate(t, "--window", "30", "--status-names", "legacy")
	gt.Equal(t, out["primary"], any("expired"))

	counts, ok := out["counts"].(map[string]any)
	gt.True(t, ok)
	_, hasOverdue := counts["overdue"]
	gt.False(t, hasOverdue)
	gt.Equal(t, counts["expired"], any(float64(1)))
}

func TestEvaluateCommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.json")
	gt.NoError(t, os.WriteFile(path, []byte(lic1Rows), 0o600))

	cases := map[string][]string{
		"bad as-of":       {"--as-of", "2024-13-40", "--input", path},
		"negative window": {"--window", "-1", "--input", path},
		"missing file":    {"--input", filepath.Join(dir, "missing.json")},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			argv := append([]string{"workforce", "--log-level", "error", "--log-format", "json", "evaluate"}, args...)
			err := cli.Run(context.Background(), argv)
			gt.Error(t, err)
			gt.True(t, strings.Contains(err.Error(), "CLI execution failed"))
		})
	}
}
