package model

import "time"

type Person struct {
	ID          string    `json:"id"`
	Emails      []string  `json:"emails"`
	DisplayName string    `json:"displayName,omitempty"`
	NickName    string    `json:"nickName,omitempty"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	OrgID       string    `json:"orgId,omitempty"`
	Type        string    `json:"type,omitempty"`
	Status      string    `json:"status,omitempty"`
	Created     time.Time `json:"created"`
}

type Room struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	IsLocked     bool      `json:"isLocked"`
	TeamID       string    `json:"teamId,omitempty"`
	LastActivity time.Time `json:"lastActivity"`
	CreatorID    string    `json:"creatorId"`
	Created      time.Time `json:"created"`
}

type Message struct {
	ID              string    `json:"id"`
	RoomID          string    `json:"roomId,omitempty"`
	ToPersonID      string    `json:"toPersonId,omitempty"`
	ToPersonEmail   string    `json:"toPersonEmail,omitempty"`
	PersonID        string    `json:"personId"`
	PersonEmail     string    `json:"personEmail,omitempty"`
	Text            string    `json:"text,omitempty"`
	Markdown        string    `json:"markdown,omitempty"`
	HTML            string    `json:"html,omitempty"`
	Files           []string  `json:"files,omitempty"`
	MentionedPeople []string  `json:"mentionedPeople,omitempty"`
	Created         time.Time `json:"created"`
}

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creatorId"`
	Created   time.Time `json:"created"`
}

type Membership struct {
	ID                string    `json:"id"`
	RoomID            string    `json:"roomId"`
	PersonID          string    `json:"personId"`
	PersonEmail       string    `json:"personEmail"`
	PersonDisplayName string    `json:"personDisplayName,omitempty"`
	IsModerator       bool      `json:"isModerator"`
	IsMonitor         bool      `json:"isMonitor"`
	Created           time.Time `json:"created"`
}

type TeamMembership struct {
	ID                string    `json:"id"`
	TeamID            string    `json:"teamId"`
	PersonID          string    `json:"personId"`
	PersonEmail       string    `json:"personEmail"`
	PersonDisplayName string    `json:"personDisplayName,omitempty"`
	IsModerator       bool      `json:"isModerator"`
	Created           time.Time `json:"created"`
}

type Webhook struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TargetURL string    `json:"targetUrl"`
	Resource  string    `json:"resource"`
	Event     string    `json:"event"`
	Filter    string    `json:"filter,omitempty"`
	Secret    string    `json:"secret,omitempty"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"createdBy"`
	Created   time.Time `json:"created"`
}

// Content is an uploaded file served from contents/{id}.
type Content struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
}
