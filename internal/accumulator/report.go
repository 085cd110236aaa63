package accumulator

import (
	"fmt"

	j "github.com/goccy/go-json"
	"sigs.k8s.io/yaml"

	"github.com/mcncl/pytyper/internal/generator"
	"github.com/mcncl/pytyper/internal/models"
)

// FieldReport describes one key of a merged record.
type FieldReport struct {
	Key      string `json:"key"`
	Type     string `json:"type"`
	Present  int    `json:"present"`
	Required bool   `json:"required"`
}

// PathReport describes the records seen at one key path.
type PathReport struct {
	Path        KeyPath       `json:"path"`
	Declaration string        `json:"declaration"`
	Shapes      int           `json:"shapes"`
	Distinct    int           `json:"distinct"`
	Fields      []FieldReport `json:"fields"`
}

// Report summarises an accumulation.
type Report struct {
	Documents int          `json:"documents"`
	Paths     []PathReport `json:"paths"`
}

// Build merges the collected documents, synthesizes declarations for the
// merged tree with g and reports per path which fields were always
// present.
func (a *Accumulator) Build(g *generator.Generator) (*Report, *generator.Synthesis, error) {
	merged, err := a.Merge()
	if err != nil {
		return nil, nil, err
	}
	synthesis, err := g.FromCode(a.rootName, merged)
	if err != nil {
		return nil, nil, err
	}

	occurrences, err := FindRecords(KeyPath(a.rootName), merged)
	if err != nil {
		return nil, nil, err
	}
	mergedAt := make(map[KeyPath]*models.Record, len(occurrences))
	for _, occ := range occurrences {
		if _, ok := mergedAt[occ.Path]; !ok {
			mergedAt[occ.Path] = occ.Record
		}
	}

	report := &Report{Documents: len(a.roots)}
	for _, path := range a.order {
		st := a.stats[path]
		record, ok := mergedAt[path]
		if !ok {
			return nil, nil, fmt.Errorf("no merged record at %q", path)
		}
		pr := PathReport{
			Path:        path,
			Declaration: synthesis.Assignments[record],
			Shapes:      len(st.shapes),
			Distinct:    distinctShapes(st.shapes),
		}
		for _, f := range record.Fields {
			rendered, err := g.Render(f.Type, synthesis.Assignments)
			if err != nil {
				return nil, nil, err
			}
			pr.Fields = append(pr.Fields, FieldReport{
				Key:      f.Key,
				Type:     rendered,
				Present:  st.present[f.Key],
				Required: st.present[f.Key] == len(st.shapes),
			})
		}
		report.Paths = append(report.Paths, pr)
	}
	return report, synthesis, nil
}

// distinctShapes counts structurally different records, ignoring names.
func distinctShapes(records []*models.Record) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		anonymous := &models.Record{Fields: r.Fields}
		seen[models.Fingerprint(anonymous)] = struct{}{}
	}
	return len(seen)
}

// JSON encodes the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return j.MarshalIndent(r, "", "  ")
}

// YAML encodes the report as YAML.
func (r *Report) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}
