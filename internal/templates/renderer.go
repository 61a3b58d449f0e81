// Package templates renders stored message templates by substituting
// {{variable}} placeholders and keeps per-template usage statistics.
package templates

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"studio-messaging/internal/store"
)

// ErrTemplateNotFound is returned when a template is absent or
// inactive.
var ErrTemplateNotFound = errors.New("template not found")

// MissingVariableError reports a placeholder present in the body with
// no corresponding entry in the supplied variables. Rendering is
// all-or-nothing; nothing is substituted when any placeholder fails.
type MissingVariableError struct {
	Key string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable %q", e.Key)
}

// placeholderRe matches well-formed {{identifier}} tokens only.
// Malformed or unmatched braces are left verbatim by design of the
// template format.
var placeholderRe = regexp.MustCompile(`\{\{([\p{L}\p{N}_]+)\}\}`)

type Renderer struct {
	templates *store.TemplateStore
}

func NewRenderer(templates *store.TemplateStore) *Renderer {
	return &Renderer{templates: templates}
}

// Render fills every placeholder of the named active template. It
// never mutates usage statistics; callers performing an actual send
// call CommitUsage after the transport accepts the message.
func (r *Renderer) Render(name string, vars map[string]string) (string, error) {
	tpl, err := r.templates.FindActiveByName(name)
	if err != nil {
		return "", fmt.Errorf("lookup template %q: %w", name, err)
	}
	if tpl == nil {
		return "", ErrTemplateNotFound
	}
	return Fill(tpl.BodyText, vars)
}

// CommitUsage records one successful send that used the template.
func (r *Renderer) CommitUsage(name string) error {
	return r.templates.RecordUsage(name)
}

// Fill substitutes {{key}} placeholders in body. Every placeholder
// must resolve or the whole render fails with MissingVariableError.
func Fill(body string, vars map[string]string) (string, error) {
	for _, match := range placeholderRe.FindAllStringSubmatch(body, -1) {
		key := match[1]
		if _, ok := vars[key]; !ok {
			return "", &MissingVariableError{Key: key}
		}
	}

	out := placeholderRe.ReplaceAllStringFunc(body, func(token string) string {
		key := strings.TrimSuffix(strings.TrimPrefix(token, "{{"), "}}")
		return vars[key]
	})
	return out, nil
}

// Placeholders lists the distinct placeholder names present in body,
// in order of first appearance.
func Placeholders(body string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range placeholderRe.FindAllStringSubmatch(body, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}
