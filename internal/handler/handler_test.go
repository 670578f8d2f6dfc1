package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"spark-client-lite/internal/store"
)

func pageRouter(h *Handler, items []int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/items", func(c *gin.Context) { writePage(h, c, items) })
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestWritePage(t *testing.T) {
	r := pageRouter(&Handler{PageSize: 2}, []int{1, 2, 3, 4, 5})

	w := get(r, "/items")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Items []int `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fmt.Sprint(body.Items) != "[1 2]" {
		t.Fatalf("expected [1 2], got %v", body.Items)
	}
	if link := w.Header().Get("Link"); !strings.Contains(link, "cursor=2") || !strings.HasSuffix(link, `rel="next"`) {
		t.Fatalf("unexpected Link %q", link)
	}

	w = get(r, "/items?cursor=4")
	body.Items = nil
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fmt.Sprint(body.Items) != "[5]" || w.Header().Get("Link") != "" {
		t.Fatalf("expected the last page without a Link, got %v", body.Items)
	}

	w = get(r, "/items?max=1")
	if link := w.Header().Get("Link"); !strings.Contains(link, "cursor=1") || !strings.Contains(link, "max=1") {
		t.Fatalf("expected max carried into the Link, got %q", link)
	}
}

func TestWritePage_RejectsBadQuery(t *testing.T) {
	r := pageRouter(&Handler{}, []int{1})
	for _, target := range []string{"/items?max=0", "/items?max=x", "/items?cursor=-1"} {
		if w := get(r, target); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestFail_MapsStoreErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: title is required", store.ErrInvalid), http.StatusBadRequest},
		{store.ErrConflict, http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		fail(c, tc.err)
		if w.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
		var body struct {
			Message    string `json:"message"`
			TrackingID string `json:"trackingId"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Message == "" || body.TrackingID == "" {
			t.Fatalf("expected message and trackingId, got %s", w.Body.String())
		}
	}
}
