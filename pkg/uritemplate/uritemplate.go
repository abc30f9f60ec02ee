// Package uritemplate resolves the {name} placeholders of a resource URI
// template by literal substitution.
//
// Values are inserted verbatim. The host builds URIs from what a user typed,
// and the provider matches them against its registered templates, so no
// percent-encoding happens here.
package uritemplate

import (
	"fmt"
	"strings"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

// Placeholder is one {name} span. Start and End are byte offsets of the
// opening and one past the closing brace.
type Placeholder struct {
	Name  string
	Start int
	End   int
}

// ValueFunc supplies the value for a placeholder, for example by asking the
// user.
type ValueFunc func(name string) (string, error)

// Placeholders returns every span in order of appearance.
func Placeholders(tmpl string) ([]Placeholder, error) {
	var (
		spans []Placeholder
		open  = -1
	)
	for i := 0; i < len(tmpl); i++ {
		switch tmpl[i] {
		case '{':
			if open >= 0 {
				return nil, mcperrors.TemplateMalformed(tmpl, i, "nested '{'")
			}
			open = i
		case '}':
			if open < 0 {
				return nil, mcperrors.TemplateMalformed(tmpl, i, "'}' without '{'")
			}
			name := strings.TrimSpace(tmpl[open+1 : i])
			if name == "" {
				return nil, mcperrors.TemplateMalformed(tmpl, open, "empty placeholder")
			}
			spans = append(spans, Placeholder{Name: name, Start: open, End: i + 1})
			open = -1
		}
	}
	if open >= 0 {
		return nil, mcperrors.TemplateMalformed(tmpl, open, "unclosed '{'")
	}
	return spans, nil
}

// Names returns the distinct placeholder names in order of first appearance.
func Names(tmpl string) ([]string, error) {
	spans, err := Placeholders(tmpl)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(spans))
	var names []string
	for _, s := range spans {
		if !seen[s.Name] {
			seen[s.Name] = true
			names = append(names, s.Name)
		}
	}
	return names, nil
}

// IsResolved reports whether uri is well formed and has no placeholders left.
func IsResolved(uri string) bool {
	spans, err := Placeholders(uri)
	return err == nil && len(spans) == 0
}

// Resolve substitutes values into tmpl. A placeholder without a non-empty
// value fails with a template-unresolved error naming every such
// placeholder. A value containing a brace is malformed, so a successful
// result always satisfies IsResolved. A URI without placeholders is
// returned unchanged.
func Resolve(tmpl string, values map[string]string) (string, error) {
	names, err := Names(tmpl)
	if err != nil {
		return "", err
	}
	var missing []string
	for _, name := range names {
		if values[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", mcperrors.TemplateUnresolved(tmpl, missing)
	}
	return substitute(tmpl, values)
}

// ResolveWith asks supply for each distinct placeholder in order of
// appearance and substitutes the answers left to right. supply is not called
// for a URI that is already resolved.
func ResolveWith(tmpl string, supply ValueFunc) (string, error) {
	names, err := Names(tmpl)
	if err != nil {
		return "", err
	}
	values := make(map[string]string, len(names))
	for _, name := range names {
		v, err := supply(name)
		if err != nil {
			return "", err
		}
		values[name] = v
	}
	return Resolve(tmpl, values)
}

func substitute(tmpl string, values map[string]string) (string, error) {
	spans, err := Placeholders(tmpl)
	if err != nil {
		return "", err
	}
	if len(spans) == 0 {
		return tmpl, nil
	}

	var b strings.Builder
	last := 0
	for _, s := range spans {
		v := values[s.Name]
		if strings.ContainsAny(v, "{}") {
			return "", mcperrors.TemplateMalformed(tmpl, s.Start, fmt.Sprintf("value for %q contains a brace", s.Name))
		}
		b.WriteString(tmpl[last:s.Start])
		b.WriteString(v)
		last = s.End
	}
	b.WriteString(tmpl[last:])
	return b.String(), nil
}
