// Package coursekey parses and serializes course identifiers. Two forms are
// accepted: the current "course-v1:org+course+run" and the legacy
// "org/course/run". Serialization preserves the form that was parsed.
package coursekey

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxLength bounds the serialized form.
const MaxLength = 255

const v1Prefix = "course-v1:"

var partPattern = regexp.MustCompile(`^[\w\-~.:%]+$`)

// Key is a parsed course identifier.
type Key struct {
	Org    string
	Course string
	Run    string
	legacy bool
}

// Parse validates s and returns the parsed key.
func Parse(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Key{}, fmt.Errorf("course key is empty")
	}
	if len(s) > MaxLength {
		return Key{}, fmt.Errorf("course key exceeds %d characters", MaxLength)
	}

	var parts []string
	legacy := false
	if rest, ok := strings.CutPrefix(s, v1Prefix); ok {
		parts = strings.Split(rest, "+")
	} else {
		parts = strings.Split(s, "/")
		legacy = true
	}
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("course key %q must have org, course and run", s)
	}
	for _, p := range parts {
		if !partPattern.MatchString(p) {
			return Key{}, fmt.Errorf("course key %q has an invalid part %q", s, p)
		}
	}
	return Key{Org: parts[0], Course: parts[1], Run: parts[2], legacy: legacy}, nil
}

// String returns the serialized identifier in its original form.
func (k Key) String() string {
	if k.legacy {
		return k.Org + "/" + k.Course + "/" + k.Run
	}
	return v1Prefix + k.Org + "+" + k.Course + "+" + k.Run
}

// Normalize parses s and re-serializes it.
func Normalize(s string) (string, error) {
	k, err := Parse(s)
	if err != nil {
		return "", err
	}
	return k.String(), nil
}
