package rules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// DefaultPath is the rules file location relative to the project root.
const DefaultPath = "rules/categorization-rules.yaml"

// ValidationError describes one invalid rule in a rules file.
type ValidationError struct {
	Index       int
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("rule %d: %s", e.Index, e.Description)
}

type ruleFile struct {
	Rules []model.Rule `yaml:"rules"`
}

// FileSource reads rules from a YAML file on every call, so edits made by the
// owning rules module are picked up by the next import.
type FileSource struct {
	Path string
}

// Rules loads the file. A missing file yields no rules.
func (s FileSource) Rules(_ context.Context, _ string) ([]model.Rule, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a rules document.
func Parse(data []byte) ([]model.Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	if verrs := Validate(f.Rules); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return nil, fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
	}
	return f.Rules, nil
}

// Validate checks every rule for a keyword, a known direction and a category.
func Validate(rules []model.Rule) []ValidationError {
	var errs []ValidationError
	for i, r := range rules {
		if strings.TrimSpace(r.Keyword) == "" {
			errs = append(errs, ValidationError{Index: i, Description: "keyword is empty"})
		}
		if !r.Direction.Valid() {
			errs = append(errs, ValidationError{Index: i, Description: fmt.Sprintf("unknown direction %q", r.Direction)})
		}
		if strings.TrimSpace(r.Category) == "" {
			errs = append(errs, ValidationError{Index: i, Description: "category is empty"})
		}
	}
	return errs
}

// Save writes rules to path in the format FileSource reads.
func Save(path string, rules []model.Rule) error {
	if rules == nil {
		rules = []model.Rule{}
	}
	data, err := yaml.Marshal(ruleFile{Rules: rules})
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}
