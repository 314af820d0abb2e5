package tgui

import "strings"

// Data formats inline callback data as "scope:action:payload".
// Payload is kept as-is (no escaping); Split tolerates payloads that
// themselves contain colons.
func Data(scope, action, payload string) string {
	scope = strings.TrimSpace(scope)
	action = strings.TrimSpace(action)
	if payload == "" {
		return scope + ":" + action
	}
	return scope + ":" + action + ":" + payload
}

// Split parses "scope:action:payload" callback data.
// The payload part may itself contain colons.
func Split(data string) (scope, action, payload string) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) > 0 {
		scope = parts[0]
	}
	if len(parts) > 1 {
		action = parts[1]
	}
	if len(parts) > 2 {
		payload = parts[2]
	}
	return scope, action, payload
}
