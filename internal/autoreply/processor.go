// Package autoreply inspects inbound message text and picks a canned
// response. Rules are ordered; the first rule whose keyword set
// intersects the message tokens wins and evaluation stops there.
// Overlapping keyword sets resolving by order is intentional.
package autoreply

import (
	"strings"
	"unicode"
)

// Rule maps a set of trigger keywords to either a stored template or a
// literal reply text. Exactly one of Template/Reply should be set.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Template string   `yaml:"template,omitempty"`
	Reply    string   `yaml:"reply,omitempty"`
}

// Reply is the dispatch decision for a matched rule.
type Reply struct {
	RuleName     string
	TemplateName string // set when the rule points at a stored template
	Text         string // set for literal replies
}

type Processor struct {
	rules []Rule
}

func NewProcessor(rules []Rule) *Processor {
	return &Processor{rules: rules}
}

// Evaluate normalizes the message body and scans the rules in order.
// It returns the reply of the first matching rule, or false when no
// rule matched and no automated response should be sent.
func (p *Processor) Evaluate(body string) (Reply, bool) {
	tokens := tokenize(strings.ToLower(strings.TrimSpace(body)))
	if len(tokens) == 0 {
		return Reply{}, false
	}

	for _, rule := range p.rules {
		for _, kw := range rule.Keywords {
			if tokens[strings.ToLower(kw)] {
				return Reply{
					RuleName:     rule.Name,
					TemplateName: rule.Template,
					Text:         rule.Reply,
				}, true
			}
		}
	}
	return Reply{}, false
}

// tokenize splits a normalized body into a word set. Anything that is
// not a letter or digit separates tokens.
func tokenize(body string) map[string]bool {
	fields := strings.FieldsFunc(body, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
