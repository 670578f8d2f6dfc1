package spark

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

func TestDownloadFileClassifies(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contents/c1":
			w.Header().Set("Content-Disposition", `attachment; filename="cat.png"`)
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngHeader)
		case "/contents/c2":
			w.Header().Set("Content-Disposition", `attachment; filename="teapot.obj"`)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte("v 0 0 0\n"))
		default:
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(pngHeader)
		}
	}))
	ctx := context.Background()

	f := NewFileFromID("c1")
	if err := c.DownloadFile(ctx, f); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if f.Filename != "cat.png" || f.Extension != "png" || f.Class != FileClassImage || f.ContentType != "image/png" {
		t.Fatalf("unexpected file %+v", f)
	}
	if f.Size != int64(len(pngHeader)) {
		t.Fatalf("expected size %d, got %d", len(pngHeader), f.Size)
	}

	model := NewFileFromID("c2")
	if err := c.DownloadFile(ctx, model); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if model.Class != FileClassModel || model.ContentType != "text/plain" {
		t.Fatalf("unexpected model file %+v", model)
	}

	sniffed := NewFileFromID("c3")
	if err := c.DownloadFile(ctx, sniffed); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if sniffed.ContentType != "image/png" || sniffed.Extension != "png" || sniffed.Class != FileClassImage {
		t.Fatalf("expected sniffed png, got %+v", sniffed)
	}
}

func TestFileInfo(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="scan.tiff"`)
		w.Header().Set("Content-Type", "image/tiff")
		w.Header().Set("Content-Length", "2048")
	}))

	f := NewFileFromID("c1")
	if err := c.FileInfo(context.Background(), f); err != nil {
		t.Fatalf("FileInfo: %v", err)
	}
	if f.Size != 2048 || f.Filename != "scan.tiff" || f.Class != FileClassImage || f.Data != nil {
		t.Fatalf("unexpected file %+v", f)
	}
}

func TestFileTargetRequired(t *testing.T) {
	c, _ := newTestClient(t, http.NotFoundHandler())
	var stateErr *InvalidStateError
	if err := c.DownloadFile(context.Background(), &File{}); !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestNewFileFromURL(t *testing.T) {
	if f := NewFileFromURL("https://api.ciscospark.com/v1/contents/abc"); f.ID != "abc" {
		t.Fatalf("expected content id abc, got %q", f.ID)
	}
	if f := NewFileFromURL("https://example.com/images/abc.png"); f.ID != "" {
		t.Fatalf("expected no content id, got %q", f.ID)
	}
}

func TestDownloadAvatar(t *testing.T) {
	var requests atomic.Int32
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngHeader)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/v1", AccessToken: "token", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	p := c.Person("p1")
	p.Avatar = srv.URL + "/avatars/p1.png"

	first, err := c.DownloadAvatar(context.Background(), p, false)
	if err != nil {
		t.Fatalf("DownloadAvatar: %v", err)
	}
	second, err := c.DownloadAvatar(context.Background(), p, false)
	if err != nil {
		t.Fatalf("DownloadAvatar: %v", err)
	}
	if first != second || first.Class != FileClassImage {
		t.Fatalf("expected the cached avatar, got %+v", second)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}
	if auth != "" {
		t.Fatalf("expected no token sent outside the API, got %q", auth)
	}

	if _, err := c.DownloadAvatar(context.Background(), p, true); err != nil {
		t.Fatalf("DownloadAvatar: %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected force to refetch, got %d requests", got)
	}

	var stateErr *InvalidStateError
	if _, err := c.DownloadAvatar(context.Background(), c.Person("p2"), false); !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError without an avatar, got %v", err)
	}
}

func TestDownloadAvatarSharedURL(t *testing.T) {
	var requests atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngHeader)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/v1", AccessToken: "token", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	avatarURL := srv.URL + "/avatars/default.png"
	a, b := c.Person("a"), c.Person("b")
	a.Avatar, b.Avatar = avatarURL, avatarURL

	type result struct {
		f   *File
		err error
	}
	first, second := make(chan result, 1), make(chan result, 1)
	go func() {
		f, err := c.DownloadAvatar(context.Background(), a, false)
		first <- result{f, err}
	}()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for the first request")
	}
	go func() {
		f, err := c.DownloadAvatar(context.Background(), b, false)
		second <- result{f, err}
	}()
	key := cacheKey{kind: kindAvatar, id: avatarURL}
	deadline := time.Now().Add(5 * time.Second)
	for c.cache.waiting(key) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the second download to queue")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)

	ra, rb := <-first, <-second
	if ra.err != nil || rb.err != nil {
		t.Fatalf("DownloadAvatar: %v, %v", ra.err, rb.err)
	}
	if ra.f == nil || rb.f == nil || ra.f != rb.f {
		t.Fatalf("expected both people to get the shared file, got %v and %v", ra.f, rb.f)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected 1 request, got %d", got)
	}

	// A third person with the same avatar reuses the download.
	third := c.Person("c")
	third.Avatar = avatarURL
	if f, err := c.DownloadAvatar(context.Background(), third, false); err != nil || f != ra.f {
		t.Fatalf("expected the shared file, got %v %v", f, err)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected no further request, got %d", got)
	}
}
