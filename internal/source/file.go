// Package source loads test-case records from YAML files and Notion
// databases.
package source

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tcsync/internal/model"
)

// SourceFile marks records loaded from a local file.
const SourceFile = "file"

type fileDoc struct {
	Cases []model.TestCase `yaml:"cases"`
}

// LoadFile reads a YAML (or JSON) document of the form `cases: [...]`.
func LoadFile(path string) ([]model.TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "source: read cases file")
	}
	cases, err := ParseCases(data)
	if err != nil {
		return nil, eris.Wrapf(err, "source: parse %s", path)
	}
	return cases, nil
}

// ParseCases decodes a cases document and normalizes each record. Records
// without a title are rejected.
func ParseCases(data []byte) ([]model.TestCase, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "source: unmarshal cases")
	}

	seen := make(map[string]bool, len(doc.Cases))
	for i := range doc.Cases {
		tc := &doc.Cases[i]
		tc.Title = strings.TrimSpace(tc.Title)
		if tc.Title == "" {
			return nil, eris.Errorf("source: case %d has no title", i+1)
		}
		if tc.ID != "" {
			if seen[tc.ID] {
				return nil, eris.Errorf("source: duplicate case id %q", tc.ID)
			}
			seen[tc.ID] = true
		}
		if tc.Status == "" {
			tc.Status = model.RecordReady
		}
		tc.Source = SourceFile
	}
	return doc.Cases, nil
}
