package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"protocol-engine/internal/domain"
)

//go:embed terminology.yaml
var defaultTerminology []byte

// Substitution maps a shorthand or phonetic form to its canonical term.
type Substitution struct {
	Match     string `yaml:"match"`
	Canonical string `yaml:"canonical"`
}

// terminologyFile is the on-disk schema of the terminology tables.
type terminologyFile struct {
	Version       int                 `yaml:"version"`
	Substitutions []Substitution      `yaml:"substitutions"`
	Medications   []string            `yaml:"medications"`
	Intents       map[string][]string `yaml:"intents"`
	Emergent      []string            `yaml:"emergent"`
	Conditions    []string            `yaml:"conditions"`
}

// compiledSubstitution is a substitution with its word-boundary matcher, so
// replacements never corrupt substrings.
type compiledSubstitution struct {
	re        *regexp.Regexp
	canonical string
}

// Terminology holds the loaded, compiled lookup tables. Immutable after
// load; safe for concurrent use.
type Terminology struct {
	version       int
	substitutions []compiledSubstitution
	medications   []string
	intents       map[domain.Intent][]string
	emergent      []string
	conditions    []string
}

// LoadTerminology parses terminology tables from YAML bytes.
func LoadTerminology(data []byte) (*Terminology, error) {
	var file terminologyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse terminology tables: %w", err)
	}
	if len(file.Substitutions) == 0 {
		return nil, fmt.Errorf("terminology tables contain no substitutions")
	}

	t := &Terminology{
		version:     file.Version,
		medications: file.Medications,
		emergent:    file.Emergent,
		conditions:  file.Conditions,
		intents:     make(map[domain.Intent][]string, len(file.Intents)),
	}

	for _, sub := range file.Substitutions {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(sub.Match)) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("failed to compile substitution %q: %w", sub.Match, err)
		}
		t.substitutions = append(t.substitutions, compiledSubstitution{re: re, canonical: sub.Canonical})
	}

	for name, keywords := range file.Intents {
		intent := domain.Intent(name)
		switch intent {
		case domain.IntentMedicationDosing, domain.IntentContraindicationCheck, domain.IntentProtocolLookup:
			t.intents[intent] = keywords
		default:
			return nil, fmt.Errorf("unknown intent category %q in terminology tables", name)
		}
	}

	return t, nil
}

// LoadTerminologyFile loads terminology tables from path, falling back to
// the embedded defaults when path is empty.
func LoadTerminologyFile(path string) (*Terminology, error) {
	if path == "" {
		return LoadTerminology(defaultTerminology)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read terminology file: %w", err)
	}
	return LoadTerminology(data)
}

// Version returns the loaded table version.
func (t *Terminology) Version() int { return t.version }
