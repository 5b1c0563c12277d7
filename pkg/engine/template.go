package engine

import (
	"regexp"
	"strings"

	"github.com/aretw0/wflow/pkg/domain"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// RenderCommand substitutes {{name}} placeholders in tmpl with args.
// A placeholder without a value is a Validation error.
func RenderCommand(tmpl string, args map[string]string) (string, error) {
	var missingVars []string
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		v, ok := args[name]
		if !ok {
			missingVars = append(missingVars, name)
			return m
		}
		return v
	})
	if len(missingVars) > 0 {
		return "", domain.ValidationError("command template references unknown arguments: %s",
			strings.Join(missingVars, ", "))
	}
	return out, nil
}
