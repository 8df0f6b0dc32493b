// Package dialog implements the conversational engine: event normalization,
// state-aware dispatch and reply application. It owns no transport; inbound
// updates arrive as normalized events and outbound messages leave through a
// Deliverer.
package dialog

import "strings"

// Kind classifies a normalized inbound event.
type Kind string

const (
	// KindText is a free-text message.
	KindText Kind = "text"
	// KindChoice is a button press carrying a structured token.
	KindChoice Kind = "choice"
)

// Event is one normalized inbound event. It lives for a single dispatch
// cycle and is never persisted.
type Event struct {
	UserID int64
	Kind   Kind

	// Text is the verbatim message text for KindText events.
	Text string

	// Namespace and Value are the parsed choice token parts for KindChoice
	// events. A bare token like "done" has an empty Value.
	Namespace string
	Value     string

	// MessageID is the id of the message the event originated from.
	// Used for edit-in-place rendering of button menus.
	MessageID int
}

// Token builds a choice token from its parts. Tokens round-trip through
// NormalizeCallback: Token(ns, v) always parses back to (ns, v).
func Token(namespace, value string) string {
	if value == "" {
		return namespace
	}
	return namespace + ":" + value
}

// NormalizeText builds a text event. The text is kept verbatim.
func NormalizeText(userID int64, text string, messageID int) Event {
	return Event{
		UserID:    userID,
		Kind:      KindText,
		Text:      text,
		MessageID: messageID,
	}
}

// NormalizeCallback classifies a callback payload. Well-formed payloads are
// "<namespace>:<value>" or a bare "<namespace>"; anything else falls back to
// a text event carrying the payload verbatim. Never fails.
func NormalizeCallback(userID int64, payload string, messageID int) Event {
	ns, value, ok := splitToken(payload)
	if !ok {
		return NormalizeText(userID, payload, messageID)
	}
	return Event{
		UserID:    userID,
		Kind:      KindChoice,
		Namespace: ns,
		Value:     value,
		MessageID: messageID,
	}
}

// splitToken parses "<namespace>:<value>" on the first colon. A payload
// without a colon is namespace-only. Empty namespaces and namespaces with
// whitespace are malformed.
func splitToken(payload string) (namespace, value string, ok bool) {
	if payload == "" {
		return "", "", false
	}
	namespace, value, _ = strings.Cut(payload, ":")
	if namespace == "" || strings.ContainsAny(namespace, " \t\n") {
		return "", "", false
	}
	return namespace, value, true
}
