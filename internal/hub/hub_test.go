package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"spark-client-lite/internal/auth"
)

type testDeliverer struct {
	bodies     [][]byte
	signatures []string
	fail       bool
}

func (d *testDeliverer) Deliver(_ context.Context, _ string, body []byte, signature string) error {
	d.bodies = append(d.bodies, body)
	d.signatures = append(d.signatures, signature)
	if d.fail {
		return errTest
	}
	return nil
}

var errTest = &testErr{}

type testErr struct{}

func (*testErr) Error() string { return "test" }

func TestHub_RegisterPublishUnregister(t *testing.T) {
	d := &testDeliverer{}
	h := New(d, nil)
	h.Register(&Subscription{WebhookID: "w1", Resource: "messages", Event: "created", Secret: "s"})

	ev := Event{Resource: "messages", Event: "created", Data: map[string]any{"id": "m1"}}
	if n := h.Publish(context.Background(), ev); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if !auth.VerifyPayload("s", d.bodies[0], d.signatures[0]) {
		t.Fatalf("expected signed body")
	}
	var env map[string]any
	if err := json.Unmarshal(d.bodies[0], &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env["resource"] != "messages" || env["id"] != "w1" {
		t.Fatalf("unexpected envelope: %v", env)
	}

	h.Unregister("w1")
	if n := h.Publish(context.Background(), ev); n != 0 {
		t.Fatalf("expected no more deliveries, got %d", n)
	}
}

func TestHub_Matching(t *testing.T) {
	d := &testDeliverer{}
	h := New(d, nil)
	h.Register(&Subscription{WebhookID: "all", Resource: "messages", Event: "all"})
	h.Register(&Subscription{WebhookID: "deleted", Resource: "messages", Event: "deleted"})
	h.Register(&Subscription{WebhookID: "room", Resource: "messages", Event: "created", Filter: "roomId=r1"})
	h.Register(&Subscription{WebhookID: "rooms", Resource: "rooms", Event: "created"})

	n := h.Publish(context.Background(), Event{Resource: "messages", Event: "created", Data: map[string]any{"id": "m1", "roomId": "r1"}})
	if n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	n = h.Publish(context.Background(), Event{Resource: "messages", Event: "created", Data: map[string]any{"id": "m2", "roomId": "r2"}})
	if n != 1 {
		t.Fatalf("expected filter to exclude r2, got %d deliveries", n)
	}
}

func TestHub_DropsFailedSubscriptions(t *testing.T) {
	d := &testDeliverer{fail: true}
	h := New(d, nil)
	var disabled []string
	h.OnDisable = func(id string) { disabled = append(disabled, id) }
	h.Register(&Subscription{WebhookID: "w1", Resource: "rooms", Event: "all"})

	ev := Event{Resource: "rooms", Event: "updated", Data: map[string]any{"id": "r1"}}
	h.Publish(context.Background(), ev)
	h.Publish(context.Background(), ev)
	if len(d.bodies) != 1 {
		t.Fatalf("expected only 1 attempt before removal, got %d", len(d.bodies))
	}
	if len(disabled) != 1 || disabled[0] != "w1" {
		t.Fatalf("expected w1 disabled, got %v", disabled)
	}
}

func TestHTTPDeliverer(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(auth.SignatureHeader)
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewHTTPDeliverer()
	if err := d.Deliver(context.Background(), srv.URL+"/ok", []byte("{}"), "abc"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotSig != "abc" {
		t.Fatalf("expected signature header, got %q", gotSig)
	}
	if err := d.Deliver(context.Background(), srv.URL+"/fail", []byte("{}"), ""); err == nil {
		t.Fatalf("expected error for 500")
	}
}
