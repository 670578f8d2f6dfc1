package spark

import (
	"context"
	"net/url"
	"time"
)

// Room is a group or 1:1 conversation.
type Room struct {
	Object

	Title        string
	Type         RoomType
	IsLocked     bool
	Team         *Team
	LastActivity time.Time
	Creator      *Person
}

// NewRoom returns an uncommitted room. team may be nil.
func NewRoom(title string, team *Team) *Room {
	return &Room{Title: title, Team: team}
}

func (r *Room) Kind() Kind { return KindRoom }

func (r *Room) wireFields() map[string]any {
	data := r.baseFields()
	r.mu.RLock()
	defer r.mu.RUnlock()
	data["title"] = r.Title
	if r.Team != nil {
		if id := r.Team.ID(); id != "" {
			data["teamId"] = id
		}
	}
	return data
}

func (r *Room) validate(op Operation) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.Title == "" {
		return invalidState(KindRoom, string(op), "title required")
	}
	if op == OpCreate && r.Team != nil && r.Team.ID() == "" {
		return invalidState(KindRoom, string(op), "team has not been created")
	}
	return nil
}

func (r *Room) decode(d *wireDecoder, c *Client) func() {
	title := d.str("title", true)
	roomType := d.str("type", true)
	locked := d.boolean("isLocked", true)
	teamID := d.str("teamId", false)
	lastActivity := d.time("lastActivity", false)
	creatorID := d.str("creatorId", false)
	return func() {
		r.Title = title
		r.Type = roomTypeFromAPI(roomType)
		r.IsLocked = locked
		r.Team = nil
		if teamID != "" {
			r.Team = c.Team(teamID)
		}
		r.LastActivity = lastActivity
		r.Creator = nil
		if creatorID != "" {
			r.Creator = c.Person(creatorID)
		}
	}
}

type RoomFilter struct {
	Team   *Team
	Type   RoomType
	SortBy SortBy
	Max    int
}

// ListRooms lists the rooms the authenticated user belongs to.
func (c *Client) ListRooms(ctx context.Context, filter RoomFilter) (*Page[*Room], error) {
	query := url.Values{}
	if filter.Team != nil {
		id := filter.Team.ID()
		if id == "" {
			return nil, listError(KindRoom, "team has no identifier")
		}
		query.Set("teamId", id)
	}
	if filter.Type != RoomTypeUnsupported {
		query.Set("type", filter.Type.String())
	}
	if filter.SortBy != SortNone {
		query.Set("sortBy", filter.SortBy.String())
	}
	setMax(query, filter.Max)
	return listEntities(ctx, c, KindRoom, KindRoom.Endpoint(), query, c.Room)
}

// RoomMessages lists the messages of room, newest first.
func (c *Client) RoomMessages(ctx context.Context, room *Room, filter MessageFilter) (*Page[*Message], error) {
	filter.Room = room
	return c.ListMessages(ctx, filter)
}

// RoomPeople returns the people of one page of room's memberships.
func (c *Client) RoomPeople(ctx context.Context, room *Room, max int) ([]*Person, error) {
	if room == nil || room.ID() == "" {
		return nil, listError(KindPerson, "room has no identifier")
	}
	page, err := c.ListMemberships(ctx, MembershipFilter{Room: room, Max: max})
	if err != nil {
		return nil, err
	}
	people := make([]*Person, 0, len(page.Items))
	for _, m := range page.Items {
		m.mu.RLock()
		p := m.Person
		m.mu.RUnlock()
		if p != nil {
			people = append(people, p)
		}
	}
	return people, nil
}
