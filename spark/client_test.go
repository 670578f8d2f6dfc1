package spark

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatalf("expected error without a token")
	}
	if _, err := NewClient(ClientConfig{AccessToken: "x", BaseURL: "ftp://example.com"}); err == nil {
		t.Fatalf("expected error for a non-http base url")
	}
	if _, err := NewClient(ClientConfig{AccessToken: "x", Constraints: []byte("apiConstraints: [")}); err == nil {
		t.Fatalf("expected error for malformed constraints")
	}
	c, err := NewClient(ClientConfig{AccessToken: "x", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.baseURL != "https://api.ciscospark.com/v1" {
		t.Fatalf("expected default base url, got %q", c.baseURL)
	}
}

func TestRequestHeaders(t *testing.T) {
	var auth, tracking string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		tracking = r.Header.Get("TrackingID")
		writeJSON(w, http.StatusOK, roomJSON("r1", "x"))
	}))
	if err := c.Load(context.Background(), c.Room("r1")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if auth != "Bearer token" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
	if !strings.HasPrefix(tracking, "spark-client_") {
		t.Fatalf("expected tracking id, got %q", tracking)
	}
}

func TestServiceErrorInSuccessBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"message":"not found","trackingId":"t-1","errors":[{"description":"no such room"}]}`)
	}))

	room := c.Room("r1")
	err := c.Load(context.Background(), room)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if serviceErr.Message != "not found" || serviceErr.TrackingID != "t-1" {
		t.Fatalf("unexpected error %+v", serviceErr)
	}
	if len(serviceErr.Errors) != 1 || serviceErr.Errors[0].Description != "no such room" {
		t.Fatalf("unexpected details %+v", serviceErr.Errors)
	}
	if room.Loaded() {
		t.Fatalf("expected room unloaded")
	}
}

func TestServiceErrorStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("TrackingID", "hdr-1")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))

	err := c.Load(context.Background(), c.Room("r1"))
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if serviceErr.StatusCode != http.StatusBadGateway || serviceErr.Message != "Bad Gateway" {
		t.Fatalf("unexpected error %+v", serviceErr)
	}
	if serviceErr.TrackingID != "hdr-1" {
		t.Fatalf("expected tracking id from header, got %q", serviceErr.TrackingID)
	}
	if len(serviceErr.Errors) != 1 || serviceErr.Errors[0].Description != "upstream down" {
		t.Fatalf("expected body as detail, got %+v", serviceErr.Errors)
	}
}

func TestRetryAfter(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		writeJSON(w, http.StatusTooManyRequests, `{"message":"slow down"}`)
	}))

	err := c.Load(context.Background(), c.Room("r1"))
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if serviceErr.StatusCode != http.StatusTooManyRequests || serviceErr.RetryAfter != 7*time.Second {
		t.Fatalf("unexpected error %+v", serviceErr)
	}

	if got := parseRetryAfter("soon"); got != 0 {
		t.Fatalf("expected 0 for garbage, got %v", got)
	}
	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > time.Hour {
		t.Fatalf("expected a positive duration for an HTTP date, got %v", got)
	}
}

func TestTransportError(t *testing.T) {
	c, srv := newTestClient(t, http.NotFoundHandler())
	srv.Close()

	room := c.Room("r1")
	err := c.Load(context.Background(), room)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transportErr.Method != http.MethodGet {
		t.Fatalf("unexpected method %q", transportErr.Method)
	}
	if room.Loaded() {
		t.Fatalf("expected room unloaded")
	}
}

func TestMe(t *testing.T) {
	var requests atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/people/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"id":"p1","emails":["me@example.com"],"displayName":"Me","created":"2026-01-02T03:04:05Z"}`)
	}))

	me, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	again, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me != again || me != c.Person("p1") {
		t.Fatalf("expected one cached instance for the token owner")
	}
	if !me.Loaded() || me.DisplayName != "Me" {
		t.Fatalf("unexpected person %q loaded=%v", me.DisplayName, me.Loaded())
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
}

func TestMetrics(t *testing.T) {
	_, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, roomJSON("r1", "x"))
	}))

	reg := prometheus.NewRegistry()
	newClient := func() *Client {
		c, err := NewClient(ClientConfig{BaseURL: srv.URL, AccessToken: "t", Logger: quietLogger(), Registerer: reg})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		return c
	}
	first, second := newClient(), newClient()
	if err := first.Load(context.Background(), first.Room("r1")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := second.Load(context.Background(), second.Room("r1")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var total float64
	for _, family := range families {
		if family.GetName() != "spark_client_requests_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	if total != 2 {
		t.Fatalf("expected 2 requests counted on the shared registry, got %v", total)
	}
}

func TestRateLimitedClient(t *testing.T) {
	_, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, roomJSON("r1", "x"))
	}))

	limited, err := NewClient(ClientConfig{BaseURL: srv.URL, AccessToken: "t", Logger: quietLogger(), RequestsPerSecond: 1})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := limited.Load(context.Background(), limited.Room("r1")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var transportErr *TransportError
	if err := limited.Commit(ctx, NewRoom("x", nil)); !errors.As(err, &transportErr) {
		t.Fatalf("expected the limiter to refuse within the deadline, got %v", err)
	}
}

func TestMeDoesNotJoinPersonLoads(t *testing.T) {
	var requests atomic.Int32
	release := make(chan struct{})
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		<-release
		writeJSON(w, http.StatusOK, `{"id":"p1","emails":["me@example.com"],"created":"2026-01-02T03:04:05Z"}`)
	}))

	meDone := make(chan error, 1)
	go func() {
		_, err := c.Me(context.Background())
		meDone <- err
	}()
	loadDone := make(chan error, 1)
	go func() { loadDone <- c.Load(context.Background(), c.Person("me")) }()

	deadline := time.Now().Add(5 * time.Second)
	for requests.Load() != 2 {
		if time.Now().After(deadline) {
			close(release)
			t.Fatalf("expected separate requests for Me and Person(\"me\"), got %d", requests.Load())
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	if err := <-meDone; err != nil {
		t.Fatalf("Me: %v", err)
	}
	<-loadDone
}
