// Package sanitize strips markup and script fragments out of free-text
// fields before they are persisted or echoed back.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	jsPattern      = regexp.MustCompile(`(?i)javascript:`)
	handlerPattern = regexp.MustCompile(`(?i)on\w+=`)
)

// String removes HTML tags, javascript: URLs, and inline event handler
// attributes, then trims surrounding whitespace.
func String(input string) string {
	out := tagPattern.ReplaceAllString(input, "")
	out = jsPattern.ReplaceAllString(out, "")
	out = handlerPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// Strings sanitizes every element of a slice in place and returns it.
func Strings(inputs []string) []string {
	for i, s := range inputs {
		inputs[i] = String(s)
	}
	return inputs
}
