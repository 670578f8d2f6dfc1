package spark

import "spark-client-lite/internal/registry"

// Kind tags the entity variants backed by a remote resource.
type Kind int

const (
	KindUnsupported Kind = iota
	KindRoom
	KindMessage
	KindPerson
	KindTeam
	KindMembership
	KindTeamMembership
	KindWebhook
)

// Reserved kinds key the in-flight table for fetches that are not entity
// loads. They have no endpoint and never appear in the identity map.
const (
	kindAvatar Kind = -1
	kindMe     Kind = -2
)

var kindEndpoints = map[Kind]string{
	KindRoom:           "rooms",
	KindMessage:        "messages",
	KindPerson:         "people",
	KindTeam:           "teams",
	KindMembership:     "memberships",
	KindTeamMembership: "team/memberships",
	KindWebhook:        "webhooks",
}

var kindNames = map[Kind]string{
	KindRoom:           "Room",
	KindMessage:        "Message",
	KindPerson:         "Person",
	KindTeam:           "Team",
	KindMembership:     "Membership",
	KindTeamMembership: "TeamMembership",
	KindWebhook:        "Webhook",
	kindAvatar:         "Avatar",
	kindMe:             "Me",
}

// Endpoint returns the resource path of the kind, or "" when unsupported.
func (k Kind) Endpoint() string {
	return kindEndpoints[k]
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unsupported"
}

// KindFromEndpoint maps a resource path back to its kind.
func KindFromEndpoint(endpoint string) (Kind, bool) {
	for k, e := range kindEndpoints {
		if e == endpoint {
			return k, true
		}
	}
	return KindUnsupported, false
}

// Operation names a mutating request in the field registry.
type Operation = registry.Operation

const (
	OpCreate = registry.OpCreate
	OpUpdate = registry.OpUpdate
)

type RoomType int

const (
	RoomTypeUnsupported RoomType = iota
	RoomTypeDirect
	RoomTypeGroup
)

func (t RoomType) String() string {
	switch t {
	case RoomTypeDirect:
		return "direct"
	case RoomTypeGroup:
		return "group"
	default:
		return ""
	}
}

func roomTypeFromAPI(s string) RoomType {
	switch s {
	case "direct":
		return RoomTypeDirect
	case "group":
		return RoomTypeGroup
	default:
		return RoomTypeUnsupported
	}
}

// SortBy orders room listings server-side.
type SortBy int

const (
	SortNone SortBy = iota
	SortByID
	SortByLastActivity
	SortByCreated
)

func (s SortBy) String() string {
	switch s {
	case SortByID:
		return "id"
	case SortByLastActivity:
		return "lastactivity"
	case SortByCreated:
		return "created"
	default:
		return ""
	}
}
