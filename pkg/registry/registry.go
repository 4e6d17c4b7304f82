// Package registry describes the job types served by the worker manager.
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"pm-intelligence/internal/common/validation"
)

//go:embed activities.json
var builtin []byte

// Default returns the activities compiled into the binary.
func Default() (*ActivityRegistry, error) {
	return parse(builtin)
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode activity registry: %w", err)
	}
	seen := make(map[string]bool, len(reg.Activities))
	for i, a := range reg.Activities {
		if a.TaskType == "" {
			return nil, fmt.Errorf("activity #%d (%q) has no task type", i, a.DisplayName)
		}
		if seen[a.TaskType] {
			return nil, fmt.Errorf("duplicate task type %q", a.TaskType)
		}
		seen[a.TaskType] = true
		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return nil, fmt.Errorf("activity %q: invalid timeout %q", a.TaskType, a.Timeout)
			}
		}
	}
	return &reg, nil
}

func (r *ActivityRegistry) Lookup(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// TaskTypes lists the registered task types in order.
func (r *ActivityRegistry) TaskTypes() []string {
	out := make([]string, 0, len(r.Activities))
	for _, a := range r.Activities {
		out = append(out, a.TaskType)
	}
	sort.Strings(out)
	return out
}

// ValidateInput checks raw job variables against the activity's input schema.
// Activities without a schema accept anything.
func (a Activity) ValidateInput(variables string) (*validation.ValidationResult, error) {
	if len(a.Input) == 0 {
		return &validation.ValidationResult{Valid: true}, nil
	}
	return validation.ValidateJSON(a.Input, variables)
}

// TimeoutOr parses Timeout, returning fallback when unset.
func (a Activity) TimeoutOr(fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(a.Timeout); err == nil && d > 0 {
		return d
	}
	return fallback
}
