package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles pytyper once into dir and returns its path.
func buildBinary(tb testing.TB, dir string) string {
	tb.Helper()
	bin := filepath.Join(dir, "pytyper")
	cmd := exec.Command("go", "build", "-o", bin, "../..")
	output, err := cmd.CombinedOutput()
	require.NoError(tb, err, "build failed: %s", string(output))
	return bin
}

func runBinary(tb testing.TB, bin, stdin string, args ...string) (string, string, error) {
	tb.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// TestEndToEnd_ComplexNestedStructures tests the application with complex nested JSON structures
func TestEndToEnd_ComplexNestedStructures(t *testing.T) {
	tempDir := t.TempDir()
	bin := buildBinary(t, tempDir)

	jsonContent := `{
		"id": 12345,
		"uuid": "550e8400-e29b-41d4-a716-446655440000",
		"updated_at": null,
		"config": {
			"enabled": true,
			"features": ["logging", "metrics"],
			"rate_limits": {"per_second": 100, "burst": 150},
			"environments": {
				"development": {"debug": true, "log_level": "debug"},
				"production": {"debug": false, "log_level": "info"}
			}
		},
		"users": [
			{"id": 1, "name": "Alice", "roles": ["admin"], "metadata": {"login_count": 42}},
			{"id": 2, "name": "Bob", "roles": [], "metadata": {"login_count": 7}}
		],
		"stats": {"ratio": 0.75, "samples": [1, 2.5, 3]}
	}`
	jsonFile := filepath.Join(tempDir, "service_state.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(jsonContent), 0o644))
	outputFile := filepath.Join(tempDir, "service_state.py")

	_, stderr, err := runBinary(t, bin, "", "-i", jsonFile, "-o", outputFile)
	require.NoError(t, err, "CLI command failed: %s", stderr)

	content, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	code := string(content)

	// Nested records come before the records that use them. Each user
	// object is its own record instance.
	order := []string{
		`RateLimits = TypedDict(`,
		`Development = TypedDict(`,
		`Production = TypedDict(`,
		`Environments = TypedDict(`,
		`Config = TypedDict(`,
		`Metadata = TypedDict(`,
		`Users = TypedDict(`,
		`Metadata2 = TypedDict(`,
		`Users2 = TypedDict(`,
		`Stats = TypedDict(`,
		`ServiceState = TypedDict(`,
	}
	last := -1
	for _, decl := range order {
		idx := strings.Index(code, decl)
		require.GreaterOrEqual(t, idx, 0, "missing %s in:\n%s", decl, code)
		assert.Greater(t, idx, last, "%s out of order", decl)
		last = idx
	}

	assert.Contains(t, code, `"samples": List[Union[int, float]]`)
	assert.Contains(t, code, `"updated_at": None`)
	assert.Contains(t, code, `"users": List[Union[Users, Users2]]`)
	assert.Contains(t, code, `"roles": List[Any]`)
	assert.Contains(t, code, "from typing import Any, List, TypedDict, Union\n")

	for _, line := range strings.Split(code, "\n") {
		assert.LessOrEqual(t, len(line), 88, line)
	}

	// The module must be valid Python when an interpreter is available.
	if python, err := exec.LookPath("python3"); err == nil {
		check := exec.Command(python, "-c", "import ast, sys; ast.parse(open(sys.argv[1]).read())", outputFile)
		output, err := check.CombinedOutput()
		require.NoError(t, err, "generated module does not parse: %s", string(output))
	}
}

func TestEndToEnd_HeterogeneousArrays(t *testing.T) {
	bin := buildBinary(t, t.TempDir())

	input := `{"values": [1, "two", 3.0, true, null, [1], {"k": 1}]}`
	stdout, stderr, err := runBinary(t, bin, input, "-r", "Mixed", "--no-format")
	require.NoError(t, err, "CLI command failed: %s", stderr)

	assert.Contains(t, stdout, `Values = TypedDict("Values", { "k": int })`)
	assert.Contains(t, stdout, `"values": List[Union[int, float, str, bool, None, List[int], Values]]`)
}

func TestEndToEnd_EdgeCases(t *testing.T) {
	bin := buildBinary(t, t.TempDir())

	tests := []struct {
		name     string
		input    string
		args     []string
		expected string
		wantErr  string
	}{
		{
			name:     "empty object",
			input:    `{}`,
			expected: `RootType = TypedDict("RootType", {})`,
		},
		{
			name:     "empty array",
			input:    `{"items": []}`,
			expected: `RootType = TypedDict("RootType", { "items": List[Any] })`,
		},
		{
			name:     "reserved names",
			input:    `{"dict": {"a": 1}, "list": {"b": 2}}`,
			args:     []string{"-r", "Root"},
			expected: `Root = TypedDict("Root", { "dict": Dict2, "list": List2 })`,
		},
		{
			name:     "special characters in keys",
			input:    `{"content-type": "x", "say \"hi\"": 1}`,
			args:     []string{"-r", "Headers"},
			expected: `Headers = TypedDict("Headers", { "content-type": str, "say \"hi\"": int })`,
		},
		{
			name:     "yaml stdin",
			input:    "a: 1\nb: [x]\n",
			args:     []string{"--input-format", "yaml", "-r", "Doc"},
			expected: `Doc = TypedDict("Doc", { "a": int, "b": List[str] })`,
		},
		{
			name:    "multiple documents",
			input:   `{"a": 1} {"b": 2}`,
			wantErr: "multiple JSON values",
		},
		{
			name:    "scalar root",
			input:   `42`,
			wantErr: "JSON does not represent an object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := runBinary(t, bin, tt.input, tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, stderr, tt.wantErr)
				return
			}
			require.NoError(t, err, "CLI command failed: %s", stderr)
			assert.Contains(t, stdout, tt.expected)
		})
	}
}

// generateLargeJSON writes an object holding itemCount records.
func generateLargeJSON(tb testing.TB, filePath string, itemCount int) {
	tb.Helper()
	items := make([]map[string]any, itemCount)
	for i := range items {
		items[i] = map[string]any{
			"id":     i,
			"name":   fmt.Sprintf("Item %d", i),
			"active": i%2 == 0,
			"price":  float64(i) + 0.99,
			"tags":   []string{"tag1", "tag2"},
			"dimensions": map[string]any{
				"width":  10.5,
				"height": 20.5,
			},
		}
	}
	data, err := json.Marshal(map[string]any{"items": items, "total": itemCount})
	require.NoError(tb, err)
	require.NoError(tb, os.WriteFile(filePath, data, 0o644))
}

func BenchmarkLargeJSON(b *testing.B) {
	if testing.Short() {
		b.Skip("skipping benchmark in short mode")
	}

	tempDir := b.TempDir()
	bin := buildBinary(b, tempDir)

	for _, count := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("Items%d", count), func(b *testing.B) {
			jsonFile := filepath.Join(tempDir, fmt.Sprintf("large_%d.json", count))
			generateLargeJSON(b, jsonFile, count)
			outputFile := filepath.Join(tempDir, fmt.Sprintf("large_%d.py", count))

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, stderr, err := runBinary(b, bin, "", "-i", jsonFile, "-o", outputFile)
				require.NoError(b, err, "CLI command failed: %s", stderr)
			}
		})
	}
}
