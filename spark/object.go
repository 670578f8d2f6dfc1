package spark

import (
	"sync"
	"sync/atomic"
	"time"
)

// Object carries the state shared by every remote-backed entity: the remote
// identifier, the service-assigned creation time, and whether the fields
// reflect a successful fetch or commit.
//
// Kind-specific exported fields are overwritten when a Load, Commit or list
// call completes for the instance; callers must not read them concurrently
// with such a call on the same instance.
type Object struct {
	mu      sync.RWMutex
	id      string
	created time.Time

	loaded  atomic.Bool
	deleted atomic.Bool
}

// ID is empty until the object has been created on the service.
func (o *Object) ID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.id
}

func (o *Object) Created() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.created
}

func (o *Object) Loaded() bool { return o.loaded.Load() }

// Deleted reports whether a Delete of this instance succeeded. The instance
// stays cached with its last-known fields.
func (o *Object) Deleted() bool { return o.deleted.Load() }

func (o *Object) object() *Object { return o }

func (o *Object) baseFields() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	data := make(map[string]any)
	if o.id != "" {
		data["id"] = o.id
	}
	if !o.created.IsZero() {
		data["created"] = o.created.UTC().Format(time.RFC3339Nano)
	}
	return data
}

// Entity is implemented by Room, Message, Person, Team, Membership,
// TeamMembership and Webhook.
type Entity interface {
	Kind() Kind
	ID() string
	Created() time.Time
	Loaded() bool
	Deleted() bool

	object() *Object
	// wireFields returns every populated field in wire form. The client
	// filters it through the field registry before sending.
	wireFields() map[string]any
	// validate checks local preconditions for op before any request.
	validate(op Operation) error
	// decode reads kind-specific fields and returns a closure that assigns
	// them. The closure only runs when the decoder reports no problems.
	decode(d *wireDecoder, c *Client) func()
}
