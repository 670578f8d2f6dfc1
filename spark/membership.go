package spark

import (
	"context"
	"net/url"
)

// Membership places a person in a room.
type Membership struct {
	Object

	Room              *Room
	Person            *Person
	PersonEmail       string
	PersonDisplayName string
	IsModerator       bool
	IsMonitor         bool
}

// NewMembership returns an uncommitted membership of person in room.
func NewMembership(room *Room, person *Person, moderator bool) *Membership {
	return &Membership{Room: room, Person: person, IsModerator: moderator}
}

// NewMembershipByEmail invites a person by email address.
func NewMembershipByEmail(room *Room, email string, moderator bool) *Membership {
	return &Membership{Room: room, PersonEmail: email, IsModerator: moderator}
}

func (m *Membership) Kind() Kind { return KindMembership }

func (m *Membership) wireFields() map[string]any {
	data := m.baseFields()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Room != nil {
		setString(data, "roomId", m.Room.ID())
	}
	if m.Person != nil {
		setString(data, "personId", m.Person.ID())
	}
	setString(data, "personEmail", m.PersonEmail)
	setString(data, "personDisplayName", m.PersonDisplayName)
	data["isModerator"] = m.IsModerator
	data["isMonitor"] = m.IsMonitor
	return data
}

func (m *Membership) validate(op Operation) error {
	if op != OpCreate {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Room == nil || m.Room.ID() == "" {
		return invalidState(KindMembership, string(op), "room has no identifier")
	}
	hasPerson := m.Person != nil && m.Person.ID() != ""
	if !hasPerson && m.PersonEmail == "" {
		return invalidState(KindMembership, string(op), "a person or an email is required")
	}
	return nil
}

func (m *Membership) decode(d *wireDecoder, c *Client) func() {
	roomID := d.str("roomId", true)
	personID := d.str("personId", true)
	email := d.str("personEmail", false)
	displayName := d.str("personDisplayName", false)
	moderator := d.boolean("isModerator", false)
	monitor := d.boolean("isMonitor", false)
	return func() {
		m.Room = c.Room(roomID)
		m.Person = c.Person(personID)
		m.PersonEmail = email
		m.PersonDisplayName = displayName
		m.IsModerator = moderator
		m.IsMonitor = monitor
	}
}

type MembershipFilter struct {
	Room        *Room
	Person      *Person
	PersonEmail string
	Max         int
}

func (c *Client) ListMemberships(ctx context.Context, filter MembershipFilter) (*Page[*Membership], error) {
	query := url.Values{}
	if filter.Room != nil {
		id := filter.Room.ID()
		if id == "" {
			return nil, listError(KindMembership, "room has no identifier")
		}
		query.Set("roomId", id)
	}
	if filter.Person != nil {
		id := filter.Person.ID()
		if id == "" {
			return nil, listError(KindMembership, "person has no identifier")
		}
		query.Set("personId", id)
	}
	if filter.PersonEmail != "" {
		query.Set("personEmail", filter.PersonEmail)
	}
	setMax(query, filter.Max)
	return listEntities(ctx, c, KindMembership, KindMembership.Endpoint(), query, c.Membership)
}
