package messaging

import (
	"strings"
	"unicode"
)

// RoutingKey derives the routing key for an event type given in
// concatenated-capitalized-words form: a separator is inserted before each
// internal capital and the result is lowercased, so IntakeCompleted becomes
// intake.completed and FormCreated becomes form.created. The transform is
// deterministic; queues out in the wild are bound against its output, so it
// must not change.
func RoutingKey(eventType string) string {
	var b strings.Builder
	b.Grow(len(eventType) + 4)

	for i, r := range eventType {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// MatchTopic reports whether a routing key matches a topic binding pattern.
// Patterns use dot-separated segments where * matches exactly one segment
// and # matches zero or more. The broker does the real matching; this exists
// so configuration can be verified explicitly, e.g. that a queue bound with
// form.* will never see intake.completed.
func MatchTopic(pattern, key string) bool {
	return matchSegments(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchSegments(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}

	if pattern[0] == "#" {
		if len(pattern) == 1 {
			return true
		}
		for i := 0; i <= len(key); i++ {
			if matchSegments(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	}

	if len(key) == 0 {
		return false
	}
	if pattern[0] == "*" || pattern[0] == key[0] {
		return matchSegments(pattern[1:], key[1:])
	}
	return false
}
