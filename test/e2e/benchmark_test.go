package e2e_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// generateNestedJSON creates a deeply nested JSON structure for benchmarking
func generateNestedJSON(depth int, width int) map[string]any {
	if depth <= 0 {
		return map[string]any{
			"leaf_value": "data",
			"count":      depth + width,
			"enabled":    width%2 == 0,
		}
	}

	result := make(map[string]any)
	for i := 0; i < width; i++ {
		result[fmt.Sprintf("nested_%d_%d", depth, i)] = generateNestedJSON(depth-1, width)
	}
	return result
}

// generateWideJSON creates a JSON object with many fields at the same level
func generateWideJSON(fieldCount int) map[string]any {
	result := make(map[string]any)
	for i := 0; i < fieldCount; i++ {
		switch i % 5 {
		case 0:
			result[fmt.Sprintf("string_field_%d", i)] = fmt.Sprintf("value_%d", i)
		case 1:
			result[fmt.Sprintf("int_field_%d", i)] = i
		case 2:
			result[fmt.Sprintf("bool_field_%d", i)] = i%2 == 0
		case 3:
			result[fmt.Sprintf("float_field_%d", i)] = float64(i) + 0.5
		case 4:
			result[fmt.Sprintf("array_field_%d", i)] = []any{i, fmt.Sprint(i), nil}
		}
	}
	return result
}

func benchmarkDocuments(b *testing.B, docs map[string]any, args ...string) {
	if testing.Short() {
		b.Skip("skipping benchmark in short mode")
	}

	tempDir := b.TempDir()
	bin := buildBinary(b, tempDir)

	for name, doc := range docs {
		b.Run(name, func(b *testing.B) {
			data, err := json.MarshalIndent(doc, "", "  ")
			require.NoError(b, err)

			jsonFile := filepath.Join(tempDir, name+".json")
			require.NoError(b, os.WriteFile(jsonFile, data, 0o644))
			outputFile := filepath.Join(tempDir, name+".py")

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				cmdArgs := append([]string{"-i", jsonFile, "-o", outputFile}, args...)
				_, stderr, err := runBinary(b, bin, "", cmdArgs...)
				require.NoError(b, err, "CLI command failed: %s", stderr)
			}
		})
	}
}

// BenchmarkDeepNesting benchmarks performance with deeply nested JSON structures
func BenchmarkDeepNesting(b *testing.B) {
	benchmarkDocuments(b, map[string]any{
		"Depth3Width3":  generateNestedJSON(3, 3),
		"Depth5Width2":  generateNestedJSON(5, 2),
		"Depth2Width10": generateNestedJSON(2, 10),
	})
}

// BenchmarkWideStructures benchmarks performance with wide JSON structures (many fields)
func BenchmarkWideStructures(b *testing.B) {
	benchmarkDocuments(b, map[string]any{
		"Fields10":   generateWideJSON(10),
		"Fields100":  generateWideJSON(100),
		"Fields1000": generateWideJSON(1000),
	})
}

// BenchmarkArrayProcessing benchmarks arrays of records, where every
// element is declared separately.
func BenchmarkArrayProcessing(b *testing.B) {
	docs := make(map[string]any)
	for _, n := range []int{10, 100, 1000} {
		rows := make([]any, n)
		for i := range rows {
			rows[i] = map[string]any{"id": i, "label": fmt.Sprint(i), "score": float64(i) / 3}
		}
		docs[fmt.Sprintf("Rows%d", n)] = map[string]any{"rows": rows}
	}
	benchmarkDocuments(b, docs, "--notation", "pep604")
}
