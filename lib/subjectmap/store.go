// Package subjectmap persists the subject abbreviation to full name
// lookup (MATH -> Mathematics) accumulated across scrape runs, scoped
// per school. Entries are only ever added, never removed.
package subjectmap

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/adrg/xdg"
)

type Store struct {
	path    string
	schools map[string]map[string]string
}

// DefaultPath resolves the mappings file under the user data directory.
func DefaultPath() (string, error) {
	return xdg.DataFile("catalog-scraper/mappings.json")
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		schools: map[string]map[string]string{},
	}

	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	err = json.Unmarshal(contents, &s.schools)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the mapping for a school. The returned map must not be
// mutated directly, additions go through Update.
func (s *Store) Get(school string) map[string]string {
	m := s.schools[school]
	if m == nil {
		m = map[string]string{}
		s.schools[school] = m
	}
	return m
}

// Update merges newly seen abbreviations into the school's mapping and
// writes the file back if anything was actually added. Calling it again
// with the same input is a no-op.
func (s *Store) Update(school string, mappings map[string]string) (bool, error) {
	existing := s.Get(school)

	added := false
	for abbr, name := range mappings {
		if _, ok := existing[abbr]; ok {
			continue
		}
		existing[abbr] = name
		added = true
		slog.Info("new subject mapping",
			"school", school,
			"abbreviation", abbr,
			"subject", name,
		)
	}
	if !added {
		return false, nil
	}

	err := os.MkdirAll(filepath.Dir(s.path), 0o755)
	if err != nil {
		return false, err
	}
	err = os.WriteFile(s.path, s.marshal(), 0o644)
	if err != nil {
		return false, err
	}
	return true, nil
}

// marshal writes schools alphabetically by name, and each school's
// subjects alphabetically by full subject name.
func (s *Store) marshal() []byte {
	schools := make([]string, 0, len(s.schools))
	for school := range s.schools {
		schools = append(schools, school)
	}
	sort.Strings(schools)

	var buf bytes.Buffer
	buf.WriteString("{")
	for i, school := range schools {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n    ")
		writeJSONString(&buf, school)
		buf.WriteString(": {")

		subjects := s.schools[school]
		abbrs := make([]string, 0, len(subjects))
		for abbr := range subjects {
			abbrs = append(abbrs, abbr)
		}
		sort.Slice(abbrs, func(a, b int) bool {
			if subjects[abbrs[a]] != subjects[abbrs[b]] {
				return subjects[abbrs[a]] < subjects[abbrs[b]]
			}
			return abbrs[a] < abbrs[b]
		})

		for j, abbr := range abbrs {
			if j > 0 {
				buf.WriteString(",")
			}
			buf.WriteString("\n        ")
			writeJSONString(&buf, abbr)
			buf.WriteString(": ")
			writeJSONString(&buf, subjects[abbr])
		}
		if len(abbrs) > 0 {
			buf.WriteString("\n    ")
		}
		buf.WriteString("}")
	}
	if len(schools) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.Bytes()
}

func writeJSONString(buf *bytes.Buffer, s string) {
	encoded, err := json.Marshal(s)
	if err != nil {
		// strings always marshal
		panic(err)
	}
	buf.Write(encoded)
}
