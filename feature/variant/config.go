package variant

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition configures one portfolio variant: a named, filtered,
// independently-output projection of the same underlying record set.
type Definition struct {
	// ID names the variant; output files are namespaced with it.
	ID string `yaml:"id"`
	// Namespace is the URL path segment records of this variant live under.
	Namespace string `yaml:"namespace"`
	// Include is the inclusion rule records must satisfy.
	Include Include `yaml:"include"`
}

// Include is a variant's inclusion rule. Empty lists match anything.
type Include struct {
	// Statuses lists the record statuses the variant accepts.
	Statuses []string `yaml:"statuses"`
	// Audiences lists the audience tags the variant accepts; a record is
	// included when any of its audiences match.
	Audiences []string `yaml:"audiences"`
}

type definitionsFile struct {
	Variants []Definition `yaml:"variants"`
}

// LoadDefinitions reads the variant definitions file. At least one variant
// must be defined and ids and namespaces must be unique; violations are
// configuration errors and fatal at startup.
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variants file %s: %w", path, err)
	}

	var file definitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse variants file %s: %w", path, err)
	}

	if len(file.Variants) == 0 {
		return nil, fmt.Errorf("variants file %s defines no variants", path)
	}

	seenID := map[string]struct{}{}
	seenNS := map[string]struct{}{}
	for _, def := range file.Variants {
		if def.ID == "" {
			return nil, fmt.Errorf("variants file %s: variant with empty id", path)
		}
		if def.Namespace == "" {
			return nil, fmt.Errorf("variants file %s: variant %s has empty namespace", path, def.ID)
		}
		if _, dup := seenID[def.ID]; dup {
			return nil, fmt.Errorf("variants file %s: duplicate variant id %s", path, def.ID)
		}
		if _, dup := seenNS[def.Namespace]; dup {
			return nil, fmt.Errorf("variants file %s: duplicate namespace %s", path, def.Namespace)
		}
		seenID[def.ID] = struct{}{}
		seenNS[def.Namespace] = struct{}{}
	}

	return file.Variants, nil
}

// Includes applies the variant's inclusion rule to a record's status and
// audience tags.
func (d Definition) Includes(status string, audiences []string) bool {
	if len(d.Include.Statuses) > 0 && !contains(d.Include.Statuses, status) {
		return false
	}
	if len(d.Include.Audiences) > 0 {
		for _, aud := range audiences {
			if contains(d.Include.Audiences, aud) {
				return true
			}
		}
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
