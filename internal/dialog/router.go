package dialog

import (
	"context"
	"strings"

	"github.com/studsched/studsched-bot/internal/session"
)

// HandlerFunc processes one event for one user. The session snapshot
// reflects the state the router matched against. Session effects are
// declared on the Reply, never applied directly.
type HandlerFunc func(ctx context.Context, sess session.Session, ev Event) (*Reply, error)

// Trigger is a handler's match predicate. Exactly one of the fields should
// be set; Any matches every event.
type Trigger struct {
	// Command matches a text event whose first token is "/<Command>",
	// with an optional "@botname" suffix.
	Command string

	// Namespace matches a choice event with this token namespace.
	Namespace string

	// OnText matches any text event.
	OnText bool

	// Any matches unconditionally.
	Any bool
}

// Matches reports whether the trigger accepts the event.
func (t Trigger) Matches(ev Event) bool {
	switch {
	case t.Any:
		return true
	case t.Command != "":
		return ev.Kind == KindText && commandOf(ev.Text) == t.Command
	case t.Namespace != "":
		return ev.Kind == KindChoice && ev.Namespace == t.Namespace
	case t.OnText:
		return ev.Kind == KindText
	default:
		return false
	}
}

// commandOf extracts the command name from "/name[@bot] args...".
// Returns "" for non-command text.
func commandOf(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	first, _, _ := strings.Cut(text[1:], " ")
	name, _, _ := strings.Cut(first, "@")
	return name
}

type registration struct {
	name    string
	trigger Trigger
	fn      HandlerFunc
}

// Router selects exactly one handler per event. State-scoped handlers take
// priority over globals; within each group the first registered match wins.
// Selection is pure: no session mutation happens here.
type Router struct {
	byState map[session.State][]registration
	globals []registration
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{byState: make(map[session.State][]registration)}
}

// Handle registers a handler scoped to one state.
// Registration order is match order.
func (r *Router) Handle(state session.State, name string, t Trigger, fn HandlerFunc) {
	r.byState[state] = append(r.byState[state], registration{name: name, trigger: t, fn: fn})
}

// HandleGlobal registers a handler that matches in any state, after all
// state-scoped handlers have been tried.
func (r *Router) HandleGlobal(name string, t Trigger, fn HandlerFunc) {
	r.globals = append(r.globals, registration{name: name, trigger: t, fn: fn})
}

// Route selects the handler for the event given the user's current state.
// ok is false when nothing matches; the caller drops the event silently.
func (r *Router) Route(state session.State, ev Event) (name string, fn HandlerFunc, ok bool) {
	for _, reg := range r.byState[state] {
		if reg.trigger.Matches(ev) {
			return reg.name, reg.fn, true
		}
	}
	for _, reg := range r.globals {
		if reg.trigger.Matches(ev) {
			return reg.name, reg.fn, true
		}
	}
	return "", nil, false
}
