package mqtt

import (
	"strconv"
	"strings"
)

// TopicMatches reports whether a concrete topic matches a subscription
// pattern under MQTT wildcard rules: "+" matches exactly one level, "#"
// matches any number of trailing levels (including zero).
//
// The broker does this matching for live traffic; this implementation exists
// so the command router and tests can resolve which pattern a message
// arrived under without a broker in the loop.
func TopicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")

	for i, seg := range pp {
		if seg == "#" {
			// "#" must be the last segment; it swallows the rest.
			return i == len(pp)-1
		}
		if i >= len(tp) {
			return false
		}
		if seg != "+" && seg != tp[i] {
			return false
		}
	}

	return len(pp) == len(tp)
}

// ParseOutletCommand extracts the device id and outlet number from a topic
// of the form {prefix}/{device_id}/outlet/{n}/command.
func (t Topics) ParseOutletCommand(topic string) (deviceID string, outlet int, ok bool) {
	parts := strings.Split(topic, "/")
	prefixParts := strings.Split(t.prefix(), "/")
	n := len(prefixParts)

	if len(parts) != n+4 {
		return "", 0, false
	}
	for i, seg := range prefixParts {
		if parts[i] != seg {
			return "", 0, false
		}
	}
	if parts[n+1] != "outlet" || parts[n+3] != "command" {
		return "", 0, false
	}

	outlet, err := strconv.Atoi(parts[n+2])
	if err != nil || outlet < 1 {
		return "", 0, false
	}

	return parts[n], outlet, true
}
