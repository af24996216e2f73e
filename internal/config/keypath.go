package config

import (
	"fmt"
	"regexp"
	"strings"
)

var keySegment = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// KeyPath addresses a value in the raw YAML tree, e.g. scoring.tiers.oro.
type KeyPath []string

// ParseKeyPath splits a dotted key and checks every segment is a plain
// identifier.
func ParseKeyPath(raw string) (KeyPath, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if !keySegment.MatchString(p) {
			return nil, &ConfigError{Path: raw, Message: fmt.Sprintf("invalid key segment %q", p)}
		}
	}
	return KeyPath(parts), nil
}

func (k KeyPath) String() string { return strings.Join(k, ".") }

// Lookup returns the value at k.
func (k KeyPath) Lookup(root map[string]any) (any, bool) {
	var cur any = root
	for _, seg := range k {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores v at k, creating missing sections. It refuses to replace a
// scalar with a section.
func (k KeyPath) Set(root map[string]any, v any) error {
	cur := root
	for i, seg := range k[:len(k)-1] {
		next, ok := cur[seg]
		if !ok {
			m := map[string]any{}
			cur[seg] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return &ConfigError{Path: k.String(), Message: k[:i+1].String() + " is not a section"}
		}
		cur = m
	}
	cur[k[len(k)-1]] = v
	return nil
}
