package spark

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
)

type cacheKey struct {
	kind Kind
	id   string
}

// identityCache owns the single instance per (kind, id) and the table of
// fetches in flight. Lock order: an object's mu may be held while taking
// identityCache.mu, never the reverse.
type identityCache struct {
	mu       sync.Mutex
	objects  map[cacheKey]Entity
	inflight map[cacheKey][]chan error
	mePerson *Person
	// avatars holds the last download per avatar URL so every person
	// sharing a URL sees the file fetched for any of them.
	avatars map[string]*File
}

func newIdentityCache() *identityCache {
	return &identityCache{
		objects:  make(map[cacheKey]Entity),
		inflight: make(map[cacheKey][]chan error),
		avatars:  make(map[string]*File),
	}
}

func getOrCreate[T Entity](c *Client, kind Kind, id string, newEntity func() T) T {
	if id == "" {
		return newEntity()
	}
	key := cacheKey{kind: kind, id: id}

	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	if existing, ok := c.cache.objects[key]; ok {
		if typed, ok := existing.(T); ok {
			return typed
		}
	}
	e := newEntity()
	e.object().id = id
	c.cache.objects[key] = e
	return e
}

// insert stores e under key and reports whether a different instance was
// already cached there.
func (ic *identityCache) insert(key cacheKey, e Entity) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	prev, ok := ic.objects[key]
	ic.objects[key] = e
	return ok && prev != e
}

func (ic *identityCache) lookup(key cacheKey) (Entity, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	e, ok := ic.objects[key]
	return e, ok
}

// join registers interest in key. When ready reports true under the cache
// lock there is nothing to do. Otherwise the first caller becomes the leader
// and later callers get a channel that receives the leader's outcome.
func (ic *identityCache) join(key cacheKey, ready func() bool) (wait chan error, leader, done bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ready != nil && ready() {
		return nil, false, true
	}
	if waiters, ok := ic.inflight[key]; ok {
		wait = make(chan error, 1)
		ic.inflight[key] = append(waiters, wait)
		return wait, false, false
	}
	ic.inflight[key] = make([]chan error, 0, 1)
	return nil, true, false
}

// finish clears key and notifies queued waiters in arrival order.
func (ic *identityCache) finish(key cacheKey, err error) {
	ic.mu.Lock()
	waiters := ic.inflight[key]
	delete(ic.inflight, key)
	ic.mu.Unlock()

	for _, wait := range waiters {
		wait <- err
	}
}

func (ic *identityCache) waiting(key cacheKey) int {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return len(ic.inflight[key])
}

// once runs fetch at most once per key at a time. The fetch is detached from
// ctx cancellation; a waiter whose ctx ends stops waiting but the fetch still
// completes and reaches the remaining waiters.
func (ic *identityCache) once(ctx context.Context, key cacheKey, ready func() bool, fetch func(context.Context) error) error {
	wait, leader, done := ic.join(key, ready)
	if done {
		return nil
	}
	if !leader {
		select {
		case err := <-wait:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	err := fetch(context.WithoutCancel(ctx))
	ic.finish(key, err)
	return err
}

func (ic *identityCache) me() *Person {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.mePerson
}

func (ic *identityCache) avatar(url string) *File {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.avatars[url]
}

func (ic *identityCache) setAvatar(url string, f *File) {
	ic.mu.Lock()
	ic.avatars[url] = f
	ic.mu.Unlock()
}

func (ic *identityCache) setMe(p *Person) {
	ic.mu.Lock()
	ic.mePerson = p
	ic.mu.Unlock()
}

// Room returns the cached room for id, creating an unloaded one on first use.
// An empty id yields a new uncached instance.
func (c *Client) Room(id string) *Room {
	return getOrCreate(c, KindRoom, id, func() *Room { return &Room{} })
}

// Message returns the cached message for id.
func (c *Client) Message(id string) *Message {
	return getOrCreate(c, KindMessage, id, func() *Message { return &Message{} })
}

// Person returns the cached person for id.
func (c *Client) Person(id string) *Person {
	return getOrCreate(c, KindPerson, id, func() *Person { return &Person{} })
}

// Team returns the cached team for id.
func (c *Client) Team(id string) *Team {
	return getOrCreate(c, KindTeam, id, func() *Team { return &Team{} })
}

// Membership returns the cached room membership for id.
func (c *Client) Membership(id string) *Membership {
	return getOrCreate(c, KindMembership, id, func() *Membership { return &Membership{} })
}

// TeamMembership returns the cached team membership for id.
func (c *Client) TeamMembership(id string) *TeamMembership {
	return getOrCreate(c, KindTeamMembership, id, func() *TeamMembership { return &TeamMembership{} })
}

// Webhook returns the cached webhook for id.
func (c *Client) Webhook(id string) *Webhook {
	return getOrCreate(c, KindWebhook, id, func() *Webhook { return &Webhook{} })
}

// Lookup returns the cached instance of kind for id, creating it when absent.
// It returns nil for unsupported kinds.
func (c *Client) Lookup(kind Kind, id string) Entity {
	switch kind {
	case KindRoom:
		return c.Room(id)
	case KindMessage:
		return c.Message(id)
	case KindPerson:
		return c.Person(id)
	case KindTeam:
		return c.Team(id)
	case KindMembership:
		return c.Membership(id)
	case KindTeamMembership:
		return c.TeamMembership(id)
	case KindWebhook:
		return c.Webhook(id)
	default:
		return nil
	}
}

// Load fetches the fields of e. It returns immediately when e is already
// loaded, and concurrent loads of one id share a single request.
func (c *Client) Load(ctx context.Context, e Entity) error {
	kind := e.Kind()
	o := e.object()
	if o.deleted.Load() {
		return invalidState(kind, "load", "object was deleted")
	}
	if o.loaded.Load() {
		return nil
	}
	id := o.ID()
	if id == "" {
		return invalidState(kind, "load", "identifier required")
	}

	key := cacheKey{kind: kind, id: id}
	return c.cache.once(ctx, key, o.loaded.Load, func(ctx context.Context) error {
		return c.fetch(ctx, e, id)
	})
}

func (c *Client) fetch(ctx context.Context, e Entity, id string) error {
	kind := e.Kind()
	resp, err := c.send(ctx, http.MethodGet, kind.Endpoint(), entityPath(kind, id), nil, nil)
	if err != nil {
		return err
	}
	gotID, created, apply, err := decodeRecord(c, e, resp.body)
	if err != nil {
		return err
	}
	if gotID != id {
		return &ParseError{Kind: kind, Invalid: []string{"id"}, Err: fmt.Errorf("requested %s, got %s", id, gotID)}
	}
	applyRecord(e, gotID, created, apply)
	return nil
}

// Commit creates e when it has no id yet and updates it otherwise. Only the
// fields the registry allows for the operation are sent. Fields of e are left
// untouched unless the response decodes cleanly.
func (c *Client) Commit(ctx context.Context, e Entity) error {
	kind := e.Kind()
	o := e.object()
	id := o.ID()
	op := OpUpdate
	if id == "" {
		op = OpCreate
	}
	if o.deleted.Load() {
		return invalidState(kind, string(op), "object was deleted")
	}
	if err := e.validate(op); err != nil {
		return err
	}

	fields, err := c.registry.Filter(kind.Endpoint(), op, e.wireFields())
	if err != nil {
		return &ConfigurationError{Kind: kind, Operation: op, Err: err}
	}

	method, path := http.MethodPost, kind.Endpoint()
	if op == OpUpdate {
		method, path = http.MethodPut, entityPath(kind, id)
	}
	resp, err := c.send(ctx, method, kind.Endpoint(), path, nil, fields)
	if err != nil {
		return err
	}

	gotID, created, apply, err := decodeRecord(c, e, resp.body)
	if err != nil {
		return err
	}
	if op == OpUpdate && gotID != id {
		return &ParseError{Kind: kind, Invalid: []string{"id"}, Err: fmt.Errorf("updated %s, got %s", id, gotID)}
	}
	applyRecord(e, gotID, created, apply)

	if op == OpCreate {
		if c.cache.insert(cacheKey{kind: kind, id: gotID}, e) {
			c.logger.WithFields(logrus.Fields{"kind": kind.String(), "id": gotID}).
				Warn("created object replaces a cached instance with the same id")
		}
		c.logger.WithFields(logrus.Fields{"kind": kind.String(), "id": gotID}).Info("created")
	}
	return nil
}

// Delete removes the remote record of e. The instance stays cached with its
// last-known fields and every later Load, Commit or Delete on it fails.
func (c *Client) Delete(ctx context.Context, e Entity) error {
	kind := e.Kind()
	o := e.object()
	if o.deleted.Load() {
		return invalidState(kind, "delete", "object was deleted")
	}
	id := o.ID()
	if id == "" {
		return invalidState(kind, "delete", "identifier required")
	}

	resp, err := c.send(ctx, http.MethodDelete, kind.Endpoint(), entityPath(kind, id), nil, nil)
	if err != nil {
		return err
	}
	if resp.status != http.StatusNoContent && len(resp.body) > 0 {
		return &ParseError{Kind: kind, Err: fmt.Errorf("expected 204 from delete, got %d with a body", resp.status)}
	}
	o.deleted.Store(true)

	c.logger.WithFields(logrus.Fields{"kind": kind.String(), "id": id}).Info("deleted")
	return nil
}

func entityPath(kind Kind, id string) string {
	return kind.Endpoint() + "/" + url.PathEscape(id)
}
