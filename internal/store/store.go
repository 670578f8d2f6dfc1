package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"spark-client-lite/internal/model"
)

var (
	ErrNotFound = errors.New("The requested resource could not be found.")
	ErrInvalid  = errors.New("Invalid request")
	ErrConflict = errors.New("Resource already exists")
)

// Store holds every record of the fake service in memory.
type Store struct {
	mu sync.RWMutex

	people          *table[model.Person]
	rooms           *table[model.Room]
	messages        *table[model.Message]
	teams           *table[model.Team]
	memberships     *table[model.Membership]
	teamMemberships *table[model.TeamMembership]
	webhooks        *table[model.Webhook]
	contents        *table[model.Content]
}

func New() *Store {
	return &Store{
		people:          newTable[model.Person](),
		rooms:           newTable[model.Room](),
		messages:        newTable[model.Message](),
		teams:           newTable[model.Team](),
		memberships:     newTable[model.Membership](),
		teamMemberships: newTable[model.TeamMembership](),
		webhooks:        newTable[model.Webhook](),
		contents:        newTable[model.Content](),
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// People

// GetOrCreatePerson returns the person for id, creating it with email when
// missing. Token subjects are materialized this way.
func (s *Store) GetOrCreatePerson(id, email, displayName string, now time.Time) (model.Person, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.people.get(id); ok {
		return existing, false
	}
	p := model.Person{
		ID:          id,
		Emails:      []string{email},
		DisplayName: displayName,
		Type:        "person",
		Status:      "active",
		Created:     now,
	}
	s.people.put(id, p)
	return p, true
}

func (s *Store) personByEmailLocked(email string) (model.Person, bool) {
	for _, p := range s.people.filter(nil) {
		for _, e := range p.Emails {
			if strings.EqualFold(e, email) {
				return p, true
			}
		}
	}
	return model.Person{}, false
}

// personForEmailLocked resolves an invitee by email, creating a pending
// person for unknown addresses like the real service does.
func (s *Store) personForEmailLocked(email string, now time.Time) model.Person {
	if p, ok := s.personByEmailLocked(email); ok {
		return p
	}
	p := model.Person{ID: newID("PEOPLE"), Emails: []string{email}, Type: "person", Status: "pending", Created: now}
	s.people.put(p.ID, p)
	return p
}

func (s *Store) CreatePerson(p model.Person, now time.Time) (model.Person, error) {
	if len(p.Emails) == 0 || p.Emails[0] == "" {
		return model.Person{}, invalid("emails is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range p.Emails {
		if _, ok := s.personByEmailLocked(e); ok {
			return model.Person{}, fmt.Errorf("%w: %s", ErrConflict, e)
		}
	}
	p.ID = newID("PEOPLE")
	p.Created = now
	if p.Type == "" {
		p.Type = "person"
	}
	if p.Status == "" {
		p.Status = "active"
	}
	s.people.put(p.ID, p)
	return p, nil
}

func (s *Store) GetPerson(id string) (model.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.people.get(id)
}

// PersonUpdate carries the mutable person fields; nil leaves a field as is.
type PersonUpdate struct {
	Emails      []string
	DisplayName *string
	NickName    *string
	FirstName   *string
	LastName    *string
	Avatar      *string
}

func (s *Store) UpdatePerson(id string, u PersonUpdate) (model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.people.get(id)
	if !ok {
		return model.Person{}, ErrNotFound
	}
	if u.Emails != nil {
		if len(u.Emails) == 0 {
			return model.Person{}, invalid("emails cannot be empty")
		}
		p.Emails = u.Emails
	}
	assign(&p.DisplayName, u.DisplayName)
	assign(&p.NickName, u.NickName)
	assign(&p.FirstName, u.FirstName)
	assign(&p.LastName, u.LastName)
	assign(&p.Avatar, u.Avatar)
	s.people.put(id, p)
	return p, nil
}

func assign(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func (s *Store) DeletePerson(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.people.remove(id)
}

func (s *Store) ListPeople(email, displayName string) []model.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.people.filter(func(p model.Person) bool {
		if email != "" {
			found := false
			for _, e := range p.Emails {
				if strings.EqualFold(e, email) {
					found = true
				}
			}
			if !found {
				return false
			}
		}
		if displayName != "" && !strings.HasPrefix(strings.ToLower(p.DisplayName), strings.ToLower(displayName)) {
			return false
		}
		return true
	})
}

// Rooms

// CreateRoom creates a group room and makes creatorID its moderator.
func (s *Store) CreateRoom(creatorID, title, teamID string, now time.Time) (model.Room, error) {
	if title == "" {
		return model.Room{}, invalid("title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if teamID != "" {
		if _, ok := s.teams.get(teamID); !ok {
			return model.Room{}, invalid("unknown teamId")
		}
	}
	room := model.Room{
		ID:           newID("ROOM"),
		Title:        title,
		Type:         "group",
		TeamID:       teamID,
		LastActivity: now,
		CreatorID:    creatorID,
		Created:      now,
	}
	s.rooms.put(room.ID, room)
	s.addMembershipLocked(room.ID, creatorID, true, now)
	return room, nil
}

func (s *Store) addMembershipLocked(roomID, personID string, moderator bool, now time.Time) model.Membership {
	m := model.Membership{
		ID:          newID("MEMBERSHIP"),
		RoomID:      roomID,
		PersonID:    personID,
		IsModerator: moderator,
		Created:     now,
	}
	if p, ok := s.people.get(personID); ok {
		if len(p.Emails) > 0 {
			m.PersonEmail = p.Emails[0]
		}
		m.PersonDisplayName = p.DisplayName
	}
	s.memberships.put(m.ID, m)
	return m
}

func (s *Store) GetRoom(id string) (model.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms.get(id)
}

func (s *Store) UpdateRoom(id, title string) (model.Room, error) {
	if title == "" {
		return model.Room{}, invalid("title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms.get(id)
	if !ok {
		return model.Room{}, ErrNotFound
	}
	room.Title = title
	s.rooms.put(id, room)
	return room, nil
}

// DeleteRoom removes the room with its messages and memberships.
func (s *Store) DeleteRoom(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.rooms.remove(id) {
		return false
	}
	for _, m := range s.messages.filter(func(m model.Message) bool { return m.RoomID == id }) {
		s.messages.remove(m.ID)
	}
	for _, m := range s.memberships.filter(func(m model.Membership) bool { return m.RoomID == id }) {
		s.memberships.remove(m.ID)
	}
	return true
}

type RoomQuery struct {
	MemberID string
	TeamID   string
	Type     string
	SortBy   string
}

// ListRooms returns rooms memberID belongs to, newest first unless SortBy
// says otherwise.
func (s *Store) ListRooms(q RoomQuery) []model.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member := make(map[string]bool)
	for _, m := range s.memberships.filter(func(m model.Membership) bool { return m.PersonID == q.MemberID }) {
		member[m.RoomID] = true
	}
	rooms := s.rooms.filter(func(r model.Room) bool {
		if !member[r.ID] {
			return false
		}
		if q.TeamID != "" && r.TeamID != q.TeamID {
			return false
		}
		if q.Type != "" && r.Type != q.Type {
			return false
		}
		return true
	})

	switch q.SortBy {
	case "id":
		sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	case "lastactivity":
		sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].LastActivity.After(rooms[j].LastActivity) })
	default:
		sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].Created.After(rooms[j].Created) })
	}
	return rooms
}

// Messages

func (s *Store) CreateMessage(msg model.Message, now time.Time) (model.Message, error) {
	destinations := 0
	for _, v := range []string{msg.RoomID, msg.ToPersonID, msg.ToPersonEmail} {
		if v != "" {
			destinations++
		}
	}
	if destinations != 1 {
		return model.Message{}, invalid("exactly one of roomId, toPersonId or toPersonEmail is required")
	}
	if msg.Text == "" && msg.Markdown == "" && len(msg.Files) == 0 {
		return model.Message{}, invalid("text, markdown or files is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.RoomID != "" {
		room, ok := s.rooms.get(msg.RoomID)
		if !ok {
			return model.Message{}, invalid("unknown roomId")
		}
		room.LastActivity = now
		s.rooms.put(room.ID, room)
	}
	if msg.ToPersonID != "" {
		if _, ok := s.people.get(msg.ToPersonID); !ok {
			return model.Message{}, invalid("unknown toPersonId")
		}
	}
	if author, ok := s.people.get(msg.PersonID); ok && len(author.Emails) > 0 {
		msg.PersonEmail = author.Emails[0]
	}
	if msg.Markdown != "" && msg.HTML == "" {
		msg.HTML = "<p>" + msg.Markdown + "</p>"
	}
	if msg.Text == "" {
		msg.Text = msg.Markdown
	}
	msg.ID = newID("MESSAGE")
	msg.Created = now
	s.messages.put(msg.ID, msg)
	return msg, nil
}

func (s *Store) GetMessage(id string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages.get(id)
}

func (s *Store) DeleteMessage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages.remove(id)
}

type MessageQuery struct {
	RoomID          string
	MentionedPeople []string
	Before          time.Time
	BeforeMessage   string
}

// ListMessages returns the room's messages newest first.
func (s *Store) ListMessages(q MessageQuery) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.rooms.get(q.RoomID); !ok {
		return nil, ErrNotFound
	}
	before := q.Before
	if q.BeforeMessage != "" {
		anchor, ok := s.messages.get(q.BeforeMessage)
		if !ok {
			return nil, invalid("unknown beforeMessage")
		}
		before = anchor.Created
	}

	msgs := s.messages.filter(func(m model.Message) bool {
		if m.RoomID != q.RoomID {
			return false
		}
		if !before.IsZero() && !m.Created.Before(before) {
			return false
		}
		if len(q.MentionedPeople) > 0 && !mentionsAny(m, q.MentionedPeople) {
			return false
		}
		return true
	})
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func mentionsAny(m model.Message, people []string) bool {
	for _, want := range people {
		for _, got := range m.MentionedPeople {
			if got == want {
				return true
			}
		}
	}
	return false
}

// Teams

// CreateTeam creates a team and makes creatorID its moderator.
func (s *Store) CreateTeam(creatorID, name string, now time.Time) (model.Team, error) {
	if name == "" {
		return model.Team{}, invalid("name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	team := model.Team{ID: newID("TEAM"), Name: name, CreatorID: creatorID, Created: now}
	s.teams.put(team.ID, team)
	s.addTeamMembershipLocked(team.ID, creatorID, true, now)
	return team, nil
}

func (s *Store) addTeamMembershipLocked(teamID, personID string, moderator bool, now time.Time) model.TeamMembership {
	m := model.TeamMembership{
		ID:          newID("TEAM_MEMBERSHIP"),
		TeamID:      teamID,
		PersonID:    personID,
		IsModerator: moderator,
		Created:     now,
	}
	if p, ok := s.people.get(personID); ok {
		if len(p.Emails) > 0 {
			m.PersonEmail = p.Emails[0]
		}
		m.PersonDisplayName = p.DisplayName
	}
	s.teamMemberships.put(m.ID, m)
	return m
}

func (s *Store) GetTeam(id string) (model.Team, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teams.get(id)
}

func (s *Store) UpdateTeam(id, name string) (model.Team, error) {
	if name == "" {
		return model.Team{}, invalid("name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	team, ok := s.teams.get(id)
	if !ok {
		return model.Team{}, ErrNotFound
	}
	team.Name = name
	s.teams.put(id, team)
	return team, nil
}

func (s *Store) DeleteTeam(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.teams.remove(id) {
		return false
	}
	for _, m := range s.teamMemberships.filter(func(m model.TeamMembership) bool { return m.TeamID == id }) {
		s.teamMemberships.remove(m.ID)
	}
	return true
}

// ListTeams returns the teams memberID belongs to.
func (s *Store) ListTeams(memberID string) []model.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member := make(map[string]bool)
	for _, m := range s.teamMemberships.filter(func(m model.TeamMembership) bool { return m.PersonID == memberID }) {
		member[m.TeamID] = true
	}
	return s.teams.filter(func(t model.Team) bool { return member[t.ID] })
}

// Memberships

func (s *Store) CreateMembership(roomID, personID, personEmail string, moderator bool, now time.Time) (model.Membership, error) {
	if roomID == "" {
		return model.Membership{}, invalid("roomId is required")
	}
	if personID == "" && personEmail == "" {
		return model.Membership{}, invalid("personId or personEmail is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms.get(roomID); !ok {
		return model.Membership{}, invalid("unknown roomId")
	}
	if personID == "" {
		personID = s.personForEmailLocked(personEmail, now).ID
	} else if _, ok := s.people.get(personID); !ok {
		return model.Membership{}, invalid("unknown personId")
	}
	for _, m := range s.memberships.filter(func(m model.Membership) bool { return m.RoomID == roomID }) {
		if m.PersonID == personID {
			return model.Membership{}, fmt.Errorf("%w: person is already a member", ErrConflict)
		}
	}
	return s.addMembershipLocked(roomID, personID, moderator, now), nil
}

func (s *Store) GetMembership(id string) (model.Membership, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memberships.get(id)
}

func (s *Store) UpdateMembership(id string, moderator bool) (model.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships.get(id)
	if !ok {
		return model.Membership{}, ErrNotFound
	}
	m.IsModerator = moderator
	s.memberships.put(id, m)
	return m, nil
}

func (s *Store) DeleteMembership(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memberships.remove(id)
}

type MembershipQuery struct {
	RoomID      string
	PersonID    string
	PersonEmail string
}

func (s *Store) ListMemberships(q MembershipQuery) []model.Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.memberships.filter(func(m model.Membership) bool {
		if q.RoomID != "" && m.RoomID != q.RoomID {
			return false
		}
		if q.PersonID != "" && m.PersonID != q.PersonID {
			return false
		}
		if q.PersonEmail != "" && !strings.EqualFold(m.PersonEmail, q.PersonEmail) {
			return false
		}
		return true
	})
}

// Team memberships

func (s *Store) CreateTeamMembership(teamID, personID, personEmail string, moderator bool, now time.Time) (model.TeamMembership, error) {
	if teamID == "" {
		return model.TeamMembership{}, invalid("teamId is required")
	}
	if personID == "" && personEmail == "" {
		return model.TeamMembership{}, invalid("personId or personEmail is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.teams.get(teamID); !ok {
		return model.TeamMembership{}, invalid("unknown teamId")
	}
	if personID == "" {
		personID = s.personForEmailLocked(personEmail, now).ID
	} else if _, ok := s.people.get(personID); !ok {
		return model.TeamMembership{}, invalid("unknown personId")
	}
	for _, m := range s.teamMemberships.filter(func(m model.TeamMembership) bool { return m.TeamID == teamID }) {
		if m.PersonID == personID {
			return model.TeamMembership{}, fmt.Errorf("%w: person is already a member", ErrConflict)
		}
	}
	return s.addTeamMembershipLocked(teamID, personID, moderator, now), nil
}

func (s *Store) GetTeamMembership(id string) (model.TeamMembership, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.teamMemberships.get(id)
}

func (s *Store) UpdateTeamMembership(id string, moderator bool) (model.TeamMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.teamMemberships.get(id)
	if !ok {
		return model.TeamMembership{}, ErrNotFound
	}
	m.IsModerator = moderator
	s.teamMemberships.put(id, m)
	return m, nil
}

func (s *Store) DeleteTeamMembership(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teamMemberships.remove(id)
}

func (s *Store) ListTeamMemberships(teamID string) ([]model.TeamMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.teams.get(teamID); !ok {
		return nil, ErrNotFound
	}
	return s.teamMemberships.filter(func(m model.TeamMembership) bool { return m.TeamID == teamID }), nil
}

// Webhooks

var webhookResources = map[string]bool{
	"rooms": true, "messages": true, "people": true, "teams": true,
	"memberships": true, "team/memberships": true, "webhooks": true,
}

var webhookEvents = map[string]bool{"created": true, "updated": true, "deleted": true, "all": true}

func (s *Store) CreateWebhook(w model.Webhook, now time.Time) (model.Webhook, error) {
	if w.Name == "" || w.TargetURL == "" {
		return model.Webhook{}, invalid("name and targetUrl are required")
	}
	if !webhookResources[w.Resource] {
		return model.Webhook{}, invalid("unsupported resource %q", w.Resource)
	}
	if !webhookEvents[w.Event] {
		return model.Webhook{}, invalid("unsupported event %q", w.Event)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w.ID = newID("WEBHOOK")
	w.Status = "active"
	w.Created = now
	s.webhooks.put(w.ID, w)
	return w, nil
}

func (s *Store) GetWebhook(id string) (model.Webhook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.webhooks.get(id)
}

func (s *Store) UpdateWebhook(id, name, targetURL string) (model.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks.get(id)
	if !ok {
		return model.Webhook{}, ErrNotFound
	}
	if name != "" {
		w.Name = name
	}
	if targetURL != "" {
		w.TargetURL = targetURL
	}
	w.Status = "active"
	s.webhooks.put(id, w)
	return w, nil
}

// SetWebhookStatus records the delivery status of a webhook.
func (s *Store) SetWebhookStatus(id, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks.get(id)
	if !ok {
		return false
	}
	w.Status = status
	s.webhooks.put(id, w)
	return true
}

func (s *Store) DeleteWebhook(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webhooks.remove(id)
}

func (s *Store) ListWebhooks(ownerID string) []model.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.webhooks.filter(func(w model.Webhook) bool { return ownerID == "" || w.CreatedBy == ownerID })
}

// Contents

func (s *Store) PutContent(filename, contentType string, data []byte) model.Content {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := model.Content{ID: newID("CONTENT"), Filename: filename, ContentType: contentType, Data: data}
	s.contents.put(c.ID, c)
	return c
}

func (s *Store) GetContent(id string) (model.Content, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contents.get(id)
}
