package spark

import (
	"context"
	"net/url"
	"sync/atomic"
)

type Person struct {
	Object

	Emails      []string
	DisplayName string
	NickName    string
	FirstName   string
	LastName    string
	// Avatar is the URL of the person's avatar image.
	Avatar string
	OrgID  string
	Type   string
	Status string

	avatar atomic.Pointer[File]
}

// NewPerson returns an uncommitted person. Creating people requires an
// administrator token.
func NewPerson(email, displayName string) *Person {
	return &Person{Emails: []string{email}, DisplayName: displayName}
}

func (p *Person) Kind() Kind { return KindPerson }

func (p *Person) wireFields() map[string]any {
	data := p.baseFields()
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.Emails) > 0 {
		data["emails"] = append([]string(nil), p.Emails...)
	}
	setString(data, "displayName", p.DisplayName)
	setString(data, "nickName", p.NickName)
	setString(data, "firstName", p.FirstName)
	setString(data, "lastName", p.LastName)
	setString(data, "avatar", p.Avatar)
	setString(data, "orgId", p.OrgID)
	setString(data, "type", p.Type)
	setString(data, "status", p.Status)
	return data
}

func setString(data map[string]any, key, value string) {
	if value != "" {
		data[key] = value
	}
}

func (p *Person) validate(op Operation) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.Emails) == 0 {
		return invalidState(KindPerson, string(op), "at least one email required")
	}
	return nil
}

func (p *Person) decode(d *wireDecoder, _ *Client) func() {
	emails := d.strings("emails", true)
	displayName := d.str("displayName", false)
	nickName := d.str("nickName", false)
	firstName := d.str("firstName", false)
	lastName := d.str("lastName", false)
	avatar := d.str("avatar", false)
	orgID := d.str("orgId", false)
	personType := d.str("type", false)
	status := d.str("status", false)
	return func() {
		p.Emails = emails
		p.DisplayName = displayName
		p.NickName = nickName
		p.FirstName = firstName
		p.LastName = lastName
		p.Avatar = avatar
		p.OrgID = orgID
		p.Type = personType
		p.Status = status
	}
}

// PersonFilter needs Email or DisplayName; the service refuses unfiltered
// people listings.
type PersonFilter struct {
	Email       string
	DisplayName string
	Max         int
}

func (c *Client) ListPeople(ctx context.Context, filter PersonFilter) (*Page[*Person], error) {
	if filter.Email == "" && filter.DisplayName == "" {
		return nil, listError(KindPerson, "email or display name required")
	}
	query := url.Values{}
	if filter.Email != "" {
		query.Set("email", filter.Email)
	}
	if filter.DisplayName != "" {
		query.Set("displayName", filter.DisplayName)
	}
	setMax(query, filter.Max)
	return listEntities(ctx, c, KindPerson, KindPerson.Endpoint(), query, c.Person)
}
