package core

import "strings"

// lineSeparator joins author and body in the stored and transmitted form.
const lineSeparator = ": "

// Message is the domain model for a chat message. Messages never change once
// appended.
type Message struct {
	Author string
	Body   string
}

// String renders the message as "author: body".
func (m Message) String() string {
	return m.Author + lineSeparator + m.Body
}

// ParseMessage splits a stored line at the first separator. A line without one
// is treated as a body with no author.
func ParseMessage(line string) Message {
	author, body, ok := strings.Cut(line, lineSeparator)
	if !ok {
		return Message{Body: line}
	}
	return Message{Author: author, Body: body}
}
