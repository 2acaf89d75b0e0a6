// Package validation checks inbound payloads against declarative JSON
// schemas, reporting every violation in one pass.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Rule names a constraint a field can violate.
type Rule string

const (
	RuleRequired Rule = "required"
	RuleType     Rule = "type"
	RuleEmpty    Rule = "empty"
	RuleMin      Rule = "min"
	RuleMax      Rule = "max"
	RuleFormat   Rule = "format"
)

// rulePriority orders rules within one field; only the first is reported.
var rulePriority = map[Rule]int{
	RuleRequired: 0,
	RuleType:     1,
	RuleEmpty:    2,
	RuleMin:      3,
	RuleFormat:   4,
	RuleMax:      5,
}

// Field declares one schema property and its client-facing messages.
type Field struct {
	Name     string
	Messages map[Rule]string
}

// Violation is a single failed constraint.
type Violation struct {
	Field   string
	Rule    Rule
	Message string
}

// Error collects every violation of one document.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, ", ")
}

// Schema pairs a compiled JSON schema with the declaration order of its
// fields, which fixes the order violations are reported in.
type Schema struct {
	compiled *gojsonschema.Schema
	fields   []Field
	index    map[string]int
}

// Compile builds a Schema from a JSON schema document.
func Compile(jsonSchema string, fields []Field) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(jsonSchema))
	if err != nil {
		return nil, fmt.Errorf("validation: compile schema: %w", err)
	}
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f.Name] = i
	}
	return &Schema{compiled: compiled, fields: fields, index: index}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(jsonSchema string, fields []Field) *Schema {
	s, err := Compile(jsonSchema, fields)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate sanitises doc and checks it. Unknown properties are dropped and
// string values are trimmed before any constraint is evaluated. The returned
// map holds the sanitised document; err is an *Error when doc is invalid.
func (s *Schema) Validate(doc map[string]any) (map[string]any, error) {
	clean := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		v, ok := doc[f.Name]
		if !ok {
			continue
		}
		if str, isStr := v.(string); isStr {
			v = strings.TrimSpace(str)
		}
		clean[f.Name] = v
	}

	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(clean))
	if err != nil {
		return nil, fmt.Errorf("validation: evaluate: %w", err)
	}
	if result.Valid() {
		return clean, nil
	}

	first := make(map[string]Violation)
	for _, re := range result.Errors() {
		name, rule := s.classify(re, clean)
		if name == "" {
			continue
		}
		prev, seen := first[name]
		if seen && rulePriority[prev.Rule] <= rulePriority[rule] {
			continue
		}
		first[name] = Violation{Field: name, Rule: rule, Message: s.message(name, rule, re)}
	}
	if len(first) == 0 {
		// Schema-level failure not tied to a declared field.
		return nil, &Error{Violations: []Violation{{Rule: RuleType, Message: "Invalid request body"}}}
	}

	violations := make([]Violation, 0, len(first))
	for _, v := range first {
		violations = append(violations, v)
	}
	sort.Slice(violations, func(i, j int) bool {
		return s.index[violations[i].Field] < s.index[violations[j].Field]
	})
	return nil, &Error{Violations: violations}
}

func (s *Schema) classify(re gojsonschema.ResultError, doc map[string]any) (string, Rule) {
	name := strings.TrimPrefix(re.Field(), "(root).")
	var rule Rule
	switch re.Type() {
	case "required":
		if p, ok := re.Details()["property"].(string); ok {
			name = p
		}
		rule = RuleRequired
	case "invalid_type":
		rule = RuleType
	case "string_gte":
		rule = RuleMin
	case "string_lte":
		rule = RuleMax
	case "format":
		rule = RuleFormat
	default:
		rule = Rule(re.Type())
	}
	if _, declared := s.index[name]; !declared {
		return "", rule
	}
	// A blank string is reported as missing whichever keyword rejected it.
	if str, ok := doc[name].(string); ok && str == "" && rule != RuleRequired && rule != RuleType {
		rule = RuleEmpty
	}
	return name, rule
}

func (s *Schema) message(name string, rule Rule, re gojsonschema.ResultError) string {
	if msg, ok := s.fields[s.index[name]].Messages[rule]; ok {
		return msg
	}
	return re.Description()
}
