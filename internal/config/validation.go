package config

import (
	"fmt"
	"strings"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

var knownPlaceholders = []string{"{version}", "{target}", "{ext}", "{arch}"}

// Validate checks the configuration for values the bootstrap cannot use.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, validateTemplate("mirrors.manager_url", c.Mirrors.ManagerURL)...)
	results = append(results, validateTemplate("mirrors.runtime_url", c.Mirrors.RuntimeURL)...)

	if c.EventBuffer < 0 {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("event_buffer must not be negative (got %d)", c.EventBuffer),
		})
	}
	if strings.TrimSpace(c.ErrorPrefix) == "" {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "error_prefix is blank; every subprocess line would count as an error",
		})
	}
	return results
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func validateTemplate(field, tmpl string) []ValidationResult {
	if tmpl == "" {
		return nil
	}
	var results []ValidationResult
	if !strings.HasPrefix(tmpl, "http://") && !strings.HasPrefix(tmpl, "https://") {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("%s must be an http(s) URL", field),
		})
	}
	if !strings.Contains(tmpl, "{version}") {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("%s is missing the {version} placeholder", field),
		})
	}
	for _, token := range extractPlaceholders(tmpl) {
		if !isKnownPlaceholder(token) {
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: fmt.Sprintf("%s uses unknown placeholder %s", field, token),
			})
		}
	}
	return results
}

func extractPlaceholders(tmpl string) []string {
	var tokens []string
	for {
		start := strings.IndexByte(tmpl, '{')
		if start < 0 {
			return tokens
		}
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			return tokens
		}
		tokens = append(tokens, tmpl[start:start+end+1])
		tmpl = tmpl[start+end+1:]
	}
}

func isKnownPlaceholder(token string) bool {
	for _, known := range knownPlaceholders {
		if token == known {
			return true
		}
	}
	return false
}
