package graphql

import "regexp"

// ResolveString looks up an argument value, consulting the structured
// variables map first and falling back to extracting a double-quoted value
// after a `name:` token in the raw query text. The boolean distinguishes a
// genuinely absent argument from an empty string.
func ResolveString(variables map[string]any, rawQuery, name string) (string, bool) {
	if v, ok := variables[name]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(name) + `\s*:\s*"([^"]*)"`)
	if err != nil {
		return "", false
	}
	if m := pattern.FindStringSubmatch(rawQuery); m != nil {
		return m[1], true
	}
	return "", false
}

// ResolveBool reads a boolean flag from the variables map. Accepts a bool or
// the strings "true"/"false"; anything else resolves to the default.
func ResolveBool(variables map[string]any, name string, def bool) bool {
	v, ok := variables[name]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return def
	}
}
