package session

// History is the append-only conversation log for one process run. It is
// written from a single goroutine (the agent loop), so it carries no locking.
type History struct {
	messages []Message
}

func NewHistory() *History {
	return &History{}
}

// Append adds a message to the end of the history.
func (h *History) Append(msg Message) {
	h.messages = append(h.messages, msg)
}

// Messages returns the current message list. The slice header is shared, so
// callers see the log as of this call; later appends do not grow a slice a
// caller already holds.
func (h *History) Messages() []Message {
	return h.messages
}

func (h *History) Len() int {
	return len(h.messages)
}

// Clear discards the history wholesale. Not visible through previously
// returned slices.
func (h *History) Clear() {
	h.messages = nil
}
