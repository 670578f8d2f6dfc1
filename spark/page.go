package spark

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Page is one page of a list call. Items are the cached instances for the
// listed ids, with their fields overwritten by the listing.
type Page[T Entity] struct {
	Items []T

	client  *Client
	kind    Kind
	next    string
	resolve func(id string) T
}

// HasNext reports whether the service advertised a following page.
func (p *Page[T]) HasNext() bool { return p.next != "" }

// Next fetches the following page.
func (p *Page[T]) Next(ctx context.Context) (*Page[T], error) {
	if p.next == "" {
		return nil, invalidState(p.kind, "list", "no next page")
	}
	return listEntities(ctx, p.client, p.kind, p.next, nil, p.resolve)
}

type listedItem[T Entity] struct {
	entity  T
	id      string
	created time.Time
	apply   func()
}

// listEntities issues one GET and routes every item through the identity
// cache. If any item fails to decode the page fails as a whole and no item
// is applied.
func listEntities[T Entity](ctx context.Context, c *Client, kind Kind, path string, query url.Values, resolve func(id string) T) (*Page[T], error) {
	resp, err := c.send(ctx, http.MethodGet, kind.Endpoint(), path, query, nil)
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return nil, &ParseError{Kind: kind, Err: err}
	}
	rawItems, ok := envelope["items"]
	if !ok {
		return nil, &ParseError{Kind: kind, Missing: []string{"items"}}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawItems, &items); err != nil {
		return nil, &ParseError{Kind: kind, Invalid: []string{"items"}, Err: err}
	}

	ids := make([]string, len(items))
	perr := &ParseError{Kind: kind}
	for i, raw := range items {
		d, err := newWireDecoder(kind, raw)
		if err != nil {
			perr.Invalid = append(perr.Invalid, itemField(i, ""))
			continue
		}
		ids[i] = d.str("id", true)
		collectItemErrors(perr, i, d.err())
	}
	if perr.Missing != nil || perr.Invalid != nil {
		return nil, perr
	}

	decoded := make([]listedItem[T], 0, len(items))
	for i, raw := range items {
		e := resolve(ids[i])
		id, created, apply, err := decodeRecord(c, e, raw)
		if err != nil {
			collectItemErrors(perr, i, err)
			continue
		}
		decoded = append(decoded, listedItem[T]{entity: e, id: id, created: created, apply: apply})
	}
	if perr.Missing != nil || perr.Invalid != nil || perr.Err != nil {
		return nil, perr
	}

	page := &Page[T]{
		Items:   make([]T, 0, len(decoded)),
		client:  c,
		kind:    kind,
		next:    nextLink(resp.header),
		resolve: resolve,
	}
	for _, item := range decoded {
		applyRecord(item.entity, item.id, item.created, item.apply)
		page.Items = append(page.Items, item.entity)
	}
	return page, nil
}

func itemField(i int, field string) string {
	if field == "" {
		return "items[" + strconv.Itoa(i) + "]"
	}
	return "items[" + strconv.Itoa(i) + "]." + field
}

func collectItemErrors(perr *ParseError, i int, err error) {
	if err == nil {
		return
	}
	var itemErr *ParseError
	if !errors.As(err, &itemErr) {
		perr.Err = err
		return
	}
	for _, f := range itemErr.Missing {
		perr.Missing = append(perr.Missing, itemField(i, f))
	}
	for _, f := range itemErr.Invalid {
		perr.Invalid = append(perr.Invalid, itemField(i, f))
	}
	if itemErr.Err != nil && itemErr.Missing == nil && itemErr.Invalid == nil {
		perr.Invalid = append(perr.Invalid, itemField(i, ""))
	}
}

// nextLink extracts the rel="next" target of an RFC 8288 Link header.
func nextLink(header http.Header) string {
	for _, value := range header.Values("Link") {
		for _, link := range strings.Split(value, ",") {
			parts := strings.Split(link, ";")
			target := strings.TrimSpace(parts[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			for _, param := range parts[1:] {
				key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
				if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
					continue
				}
				for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(val), `"`)) {
					if strings.EqualFold(rel, "next") {
						return target[1 : len(target)-1]
					}
				}
			}
		}
	}
	return ""
}

func setMax(query url.Values, max int) {
	if max > 0 {
		query.Set("max", strconv.Itoa(max))
	}
}

func listError(kind Kind, reason string) error {
	return invalidState(kind, "list", reason)
}
