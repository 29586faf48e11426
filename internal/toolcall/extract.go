// Package toolcall reads and writes the plain-text tool call markers
// emitted by LFM2-style models.
package toolcall

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// Sentinel markers wrapping a tool call list in model output
const (
	StartMarker = "<|tool_call_start|>"
	EndMarker   = "<|tool_call_end|>"
)

// ErrNoToolCall is returned when a reply carries no parsable call
var ErrNoToolCall = errors.New("no tool call found")

var callPattern = regexp2.MustCompile(`\w+\([^)]*\)`, regexp2.None)

// Between returns the text between the first start marker and the first end marker
func Between(content string) (string, bool) {
	_, rest, ok := strings.Cut(content, StartMarker)
	if !ok {
		return "", false
	}
	inner, _, ok := strings.Cut(rest, EndMarker)
	if !ok {
		return "", false
	}
	return inner, true
}

// Extract returns every name(args) call between the markers, in order.
// A reply missing either marker yields no calls.
func Extract(content string) []string {
	inner, ok := Between(content)
	if !ok {
		return nil
	}
	inner = strings.Trim(strings.TrimSpace(inner), "[]")
	if inner == "" {
		return nil
	}

	var calls []string
	m, err := callPattern.FindStringMatch(inner)
	for err == nil && m != nil {
		calls = append(calls, m.String())
		m, err = callPattern.FindNextMatch(m)
	}
	return calls
}

// Format renders calls the way the model emits them
func Format(calls ...string) string {
	return StartMarker + "[" + strings.Join(calls, ", ") + "]" + EndMarker
}

// Call is a parsed name(args) invocation
type Call struct {
	Name string
	Args map[string]string
	// Order keeps argument names in source order; positional args are "$0", "$1", ...
	Order []string
	// Quoted marks arguments whose value was written as a string literal
	Quoted map[string]bool
}

// Parse splits a call string into its name and arguments
func Parse(call string) (Call, error) {
	name, rest, ok := strings.Cut(strings.TrimSpace(call), "(")
	if !ok || name == "" || !strings.HasSuffix(rest, ")") {
		return Call{}, fmt.Errorf("%w: %q", ErrNoToolCall, call)
	}

	c := Call{Name: name, Args: make(map[string]string), Quoted: make(map[string]bool)}
	for i, arg := range splitArgs(strings.TrimSuffix(rest, ")")) {
		key := fmt.Sprintf("$%d", i)
		value := arg
		if k, v, ok := strings.Cut(arg, "="); ok && isIdent(strings.TrimSpace(k)) {
			key, value = strings.TrimSpace(k), v
		}
		value = strings.TrimSpace(value)
		c.Args[key] = unquote(value)
		c.Quoted[key] = c.Args[key] != value
		c.Order = append(c.Order, key)
	}
	return c, nil
}

// FirstString returns the first quoted argument value, or "" when there is none
func (c Call) FirstString() string {
	if len(c.Order) == 0 {
		return ""
	}
	return c.Args[c.Order[0]]
}

// splitArgs splits on commas outside quotes
func splitArgs(s string) []string {
	var (
		args  []string
		buf   strings.Builder
		quote rune
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ',':
			if a := strings.TrimSpace(buf.String()); a != "" {
				args = append(args, a)
			}
			buf.Reset()
			continue
		}
		buf.WriteRune(r)
	}
	if a := strings.TrimSpace(buf.String()); a != "" {
		args = append(args, a)
	}
	return args
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Invocation is a JSON function call wrapped in <invoke></invoke> tags
type Invocation struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ExtractInvocations decodes every <invoke> block in content. Malformed blocks are skipped.
func ExtractInvocations(content string) []Invocation {
	var out []Invocation
	rest := content
	for {
		_, after, ok := strings.Cut(rest, "<invoke>")
		if !ok {
			return out
		}
		body, tail, ok := strings.Cut(after, "</invoke>")
		if !ok {
			return out
		}
		rest = tail

		var inv Invocation
		if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &inv); err != nil || inv.Name == "" {
			continue
		}
		out = append(out, inv)
	}
}
