// Package resolver reads dotted paths against rooted objects. Node
// configs reference values as "payload.x.y" or "memory.alias.result";
// the resolver is pure and total: any miss is reported as undefined,
// never as an error.
package resolver

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Read walks a dotted path against root. An empty path returns the root
// itself. Each segment must select a key of a mapping; anything else
// (missing key, scalar, array indexing) is undefined. The second return
// reports whether the path resolved.
func Read(root any, path string) (any, bool) {
	if path == "" {
		return root, root != nil
	}

	rootMap, ok := root.(map[string]any)
	if !ok {
		return nil, false
	}

	segments := strings.Split(path, ".")
	current := rootMap
	for i, segment := range segments {
		value, exists := current[segment]
		if !exists {
			return nil, false
		}
		if i == len(segments)-1 {
			return value, true
		}
		next, isMap := value.(map[string]any)
		if !isMap {
			return nil, false
		}
		current = next
	}
	return nil, false
}

// ReadString resolves a path and renders the value as a string. Scalars
// use their natural representation; objects and arrays render as JSON.
// Undefined resolves to the empty string.
func ReadString(root any, path string) string {
	value, ok := Read(root, path)
	if !ok || value == nil {
		return ""
	}
	return Stringify(value)
}

// Stringify renders a value the way prompt templates and HTTP bodies
// expect: strings pass through, everything else marshals via gjson-
// compatible JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		// Round-trip through gjson keeps number rendering stable
		// (5000, not 5e+03) for values that were decoded as float64.
		return gjson.ParseBytes(data).String()
	}
}

var templatePattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// RenderTemplate substitutes every {{path}} in the template with the
// resolved string form of the path against root. Missing paths render
// as the empty string.
func RenderTemplate(root any, template string) string {
	return templatePattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := templatePattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return ""
		}
		return ReadString(root, sub[1])
	})
}
