package spark

import (
	"context"
	"net/url"
)

type TeamMembership struct {
	Object

	Team              *Team
	Person            *Person
	PersonEmail       string
	PersonDisplayName string
	IsModerator       bool
}

func NewTeamMembership(team *Team, person *Person, moderator bool) *TeamMembership {
	return &TeamMembership{Team: team, Person: person, IsModerator: moderator}
}

func (m *TeamMembership) Kind() Kind { return KindTeamMembership }

func (m *TeamMembership) wireFields() map[string]any {
	data := m.baseFields()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Team != nil {
		setString(data, "teamId", m.Team.ID())
	}
	if m.Person != nil {
		setString(data, "personId", m.Person.ID())
	}
	setString(data, "personEmail", m.PersonEmail)
	setString(data, "personDisplayName", m.PersonDisplayName)
	data["isModerator"] = m.IsModerator
	return data
}

func (m *TeamMembership) validate(op Operation) error {
	if op != OpCreate {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Team == nil || m.Team.ID() == "" {
		return invalidState(KindTeamMembership, string(op), "team has no identifier")
	}
	hasPerson := m.Person != nil && m.Person.ID() != ""
	if !hasPerson && m.PersonEmail == "" {
		return invalidState(KindTeamMembership, string(op), "a person or an email is required")
	}
	return nil
}

func (m *TeamMembership) decode(d *wireDecoder, c *Client) func() {
	teamID := d.str("teamId", true)
	personID := d.str("personId", true)
	email := d.str("personEmail", false)
	displayName := d.str("personDisplayName", false)
	moderator := d.boolean("isModerator", false)
	return func() {
		m.Team = c.Team(teamID)
		m.Person = c.Person(personID)
		m.PersonEmail = email
		m.PersonDisplayName = displayName
		m.IsModerator = moderator
	}
}

// TeamMembershipFilter lists the memberships of one team.
type TeamMembershipFilter struct {
	Team *Team
	Max  int
}

func (c *Client) ListTeamMemberships(ctx context.Context, filter TeamMembershipFilter) (*Page[*TeamMembership], error) {
	if filter.Team == nil || filter.Team.ID() == "" {
		return nil, listError(KindTeamMembership, "team has no identifier")
	}
	query := url.Values{}
	query.Set("teamId", filter.Team.ID())
	setMax(query, filter.Max)
	return listEntities(ctx, c, KindTeamMembership, KindTeamMembership.Endpoint(), query, c.TeamMembership)
}
