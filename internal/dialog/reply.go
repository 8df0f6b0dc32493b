package dialog

import "github.com/studsched/studsched-bot/internal/session"

// Choice is one labeled button. Token must keep the "<namespace>:<value>"
// form byte-for-byte; the router depends on it round-tripping.
type Choice struct {
	Label string
	Token string
}

// Message is one abstract outbound message. The presentation layer turns it
// into a transport payload; it carries no transport types.
type Message struct {
	Text    string
	Choices []Choice

	// Columns controls keyboard layout; 0 means one button per row.
	Columns int

	// EditInPlace asks the presenter to edit the originating message
	// instead of sending a new one. Used for paging through button menus.
	EditInPlace bool

	// HTML marks Text as pre-formatted rich text.
	HTML bool
}

// Reply is a handler's complete output: outbound messages plus the session
// effects to apply. Effects are applied by the engine only when the handler
// returns without error.
type Reply struct {
	Messages []Message

	nextState *session.State
	patch     map[string]string
	clear     bool
}

// NewReply creates an empty reply.
func NewReply() *Reply {
	return &Reply{}
}

// Say appends a plain text message.
func (r *Reply) Say(text string) *Reply {
	r.Messages = append(r.Messages, Message{Text: text})
	return r
}

// Add appends a fully specified message.
func (r *Reply) Add(m Message) *Reply {
	r.Messages = append(r.Messages, m)
	return r
}

// Transition sets the next conversation state.
func (r *Reply) Transition(state session.State) *Reply {
	r.nextState = &state
	return r
}

// Put adds one key to the context patch. An empty value removes the key.
func (r *Reply) Put(key, value string) *Reply {
	if r.patch == nil {
		r.patch = make(map[string]string)
	}
	r.patch[key] = value
	return r
}

// ClearSession resets the session to idle with an empty context.
// It overrides Transition and Put.
func (r *Reply) ClearSession() *Reply {
	r.clear = true
	return r
}
