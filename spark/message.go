package spark

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Message is posted either into a room or directly to one person.
type Message struct {
	Object

	Room           *Room
	Recipient      *Person
	RecipientEmail string
	Author         *Person

	Text     string
	Markdown string
	HTML     string
	Files    []*File
	Mentions []*Person
}

// NewMessageToRoom returns an uncommitted message for room. author is kept
// locally; the service always attributes messages to the token owner.
func NewMessageToRoom(room *Room, author *Person, text string) *Message {
	return &Message{Room: room, Author: author, Text: text}
}

// NewDirectMessage returns an uncommitted 1:1 message to recipient.
func NewDirectMessage(recipient *Person, author *Person, text string) *Message {
	return &Message{Recipient: recipient, Author: author, Text: text}
}

// NewDirectMessageToEmail addresses a 1:1 message by email address.
func NewDirectMessageToEmail(email string, author *Person, text string) *Message {
	return &Message{RecipientEmail: email, Author: author, Text: text}
}

func (m *Message) Kind() Kind { return KindMessage }

func (m *Message) wireFields() map[string]any {
	data := m.baseFields()
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.Room != nil:
		data["roomId"] = m.Room.ID()
	case m.Recipient != nil:
		data["toPersonId"] = m.Recipient.ID()
	case m.RecipientEmail != "":
		data["toPersonEmail"] = m.RecipientEmail
	}
	if m.Author != nil {
		if id := m.Author.ID(); id != "" {
			data["personId"] = id
		}
	}
	if m.Text != "" {
		data["text"] = m.Text
	}
	if m.Markdown != "" {
		data["markdown"] = m.Markdown
	}
	if len(m.Files) > 0 {
		urls := make([]string, 0, len(m.Files))
		for _, f := range m.Files {
			if f != nil && f.URL != "" {
				urls = append(urls, f.URL)
			}
		}
		data["files"] = urls
	}
	if len(m.Mentions) > 0 {
		ids := make([]string, 0, len(m.Mentions))
		for _, p := range m.Mentions {
			if p != nil {
				ids = append(ids, p.ID())
			}
		}
		data["mentionedPeople"] = ids
	}
	return data
}

func (m *Message) validate(op Operation) error {
	if op != OpCreate {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	destinations := 0
	if m.Room != nil {
		destinations++
		if m.Room.ID() == "" {
			return invalidState(KindMessage, string(op), "room has not been created")
		}
	}
	if m.Recipient != nil {
		destinations++
		if m.Recipient.ID() == "" {
			return invalidState(KindMessage, string(op), "recipient has no identifier")
		}
	}
	if m.RecipientEmail != "" {
		destinations++
	}
	switch {
	case destinations == 0:
		return invalidState(KindMessage, string(op), "a room or a recipient is required")
	case destinations > 1:
		return invalidState(KindMessage, string(op), "exactly one of room or recipient may be set")
	}

	hasFiles := false
	for _, f := range m.Files {
		if f != nil && f.URL != "" {
			hasFiles = true
			break
		}
	}
	if m.Text == "" && m.Markdown == "" && !hasFiles {
		return invalidState(KindMessage, string(op), "text or files required")
	}
	return nil
}

func (m *Message) decode(d *wireDecoder, c *Client) func() {
	roomID := d.str("roomId", false)
	toPersonID := d.str("toPersonId", false)
	toPersonEmail := d.str("toPersonEmail", false)
	if roomID == "" && toPersonID == "" && toPersonEmail == "" {
		d.missing = append(d.missing, "roomId")
	}
	authorID := d.str("personId", true)
	text := d.str("text", false)
	markdown := d.str("markdown", false)
	html := d.str("html", false)
	fileURLs := d.strings("files", false)
	mentionIDs := d.strings("mentionedPeople", false)

	return func() {
		m.Room, m.Recipient, m.RecipientEmail = nil, nil, ""
		switch {
		case roomID != "":
			m.Room = c.Room(roomID)
		case toPersonID != "":
			m.Recipient = c.Person(toPersonID)
		default:
			m.RecipientEmail = toPersonEmail
		}
		m.Author = c.Person(authorID)
		m.Text = text
		m.Markdown = markdown
		m.HTML = html
		m.Files = nil
		for _, u := range fileURLs {
			m.Files = append(m.Files, NewFileFromURL(u))
		}
		m.Mentions = nil
		for _, id := range mentionIDs {
			m.Mentions = append(m.Mentions, c.Person(id))
		}
	}
}

type MessageFilter struct {
	Room            *Room
	MentionedPeople []*Person
	Before          time.Time
	BeforeMessage   *Message
	Max             int
}

// ListMessages lists the messages of filter.Room, newest first.
func (c *Client) ListMessages(ctx context.Context, filter MessageFilter) (*Page[*Message], error) {
	if filter.Room == nil || filter.Room.ID() == "" {
		return nil, listError(KindMessage, "room has no identifier")
	}
	query := url.Values{}
	query.Set("roomId", filter.Room.ID())
	if len(filter.MentionedPeople) > 0 {
		ids := make([]string, 0, len(filter.MentionedPeople))
		for _, p := range filter.MentionedPeople {
			if p != nil && p.ID() != "" {
				ids = append(ids, p.ID())
			}
		}
		if len(ids) > 0 {
			query.Set("mentionedPeople", strings.Join(ids, ","))
		}
	}
	if !filter.Before.IsZero() {
		query.Set("before", filter.Before.UTC().Format(time.RFC3339Nano))
	}
	if filter.BeforeMessage != nil {
		id := filter.BeforeMessage.ID()
		if id == "" {
			return nil, listError(KindMessage, "before message has no identifier")
		}
		query.Set("beforeMessage", id)
	}
	setMax(query, filter.Max)
	return listEntities(ctx, c, KindMessage, KindMessage.Endpoint(), query, c.Message)
}
