package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStudy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const warmGrid = `
name: grid
models:
  - scorer: sum
    space:
      - name: x
        values: [0, 1, 2, 3]
      - name: y
        low: 0
        high: 1
        step: 0.25
    warm_start: {x: 3, y: 1.0}
iterations: 10
`

func TestRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-f", writeStudy(t, warmGrid), "-jobs", "3", "-seed", "42"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "study: grid")
	assert.Contains(t, out, "budgets: [4 3 3]")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[2], "RANK"))
	assert.Regexp(t, `^1\s+0\s+sum\s+4\s+.*x=3 y=1$`, lines[3])
}

func TestRunTop(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-f", writeStudy(t, warmGrid), "-jobs", "3", "-top", "1"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(stdout.String()), "\n"), 4)
}

func TestRunErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), nil, &stdout, &stderr)
	assert.ErrorContains(t, err, "-f is required")

	err = run(context.Background(), []string{"-f", filepath.Join(t.TempDir(), "none.yaml")}, &stdout, &stderr)
	assert.ErrorContains(t, err, "failed to read study file")

	err = run(context.Background(), []string{"-f", writeStudy(t, warmGrid), "-seed", "abc"}, &stdout, &stderr)
	assert.Error(t, err)

	err = run(context.Background(), []string{"-f", writeStudy(t, warmGrid), "-strategy", "grid"}, &stdout, &stderr)
	assert.ErrorContains(t, err, "unknown strategy")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = run(ctx, []string{"-f", writeStudy(t, warmGrid)}, &stdout, &stderr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExampleStudiesParse(t *testing.T) {
	for _, name := range []string{"grid.yaml", "regression.yaml"} {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			path := filepath.Join("..", "..", "examples", name)
			err := run(context.Background(), []string{"-f", path, "-iterations", "8", "-jobs", "2", "-strategy", "random"}, &stdout, &stderr)
			require.NoError(t, err, stderr.String())
			assert.Contains(t, stdout.String(), "budgets: [4 4]")
		})
	}
}
