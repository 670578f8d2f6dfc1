package spark

import (
	"context"
	"net/url"
)

// Team groups rooms and people.
type Team struct {
	Object

	Name string
}

func NewTeam(name string) *Team {
	return &Team{Name: name}
}

func (t *Team) Kind() Kind { return KindTeam }

func (t *Team) wireFields() map[string]any {
	data := t.baseFields()
	t.mu.RLock()
	defer t.mu.RUnlock()
	data["name"] = t.Name
	return data
}

func (t *Team) validate(op Operation) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.Name == "" {
		return invalidState(KindTeam, string(op), "name required")
	}
	return nil
}

func (t *Team) decode(d *wireDecoder, _ *Client) func() {
	name := d.str("name", true)
	return func() {
		t.Name = name
	}
}

type TeamFilter struct {
	Max int
}

func (c *Client) ListTeams(ctx context.Context, filter TeamFilter) (*Page[*Team], error) {
	query := url.Values{}
	setMax(query, filter.Max)
	return listEntities(ctx, c, KindTeam, KindTeam.Endpoint(), query, c.Team)
}
