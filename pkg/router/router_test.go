package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMatchWildcardRoute(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/api/v1/runs/abc/years", "/api/v1/runs/*/years", true},
		{"/api/v1/runs/abc/errors", "/api/v1/runs/*/years", false},
		{"/api/v1/runs//years", "/api/v1/runs/*/years", false},
		{"/api/v1/runs/abc", "/api/v1/runs/*", true},
		{"/api/v1/runs/abc/years", "/api/v1/runs/*", true},
		{"/api/v1/runs", "/api/v1/runs/*", false},
		{"/api/v1/other/abc", "/api/v1/runs/*", false},
	}
	for _, tt := range tests {
		if got := matchWildcardRoute(tt.path, tt.pattern); got != tt.want {
			t.Errorf("matchWildcardRoute(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}

func TestDispatch(t *testing.T) {
	r := New()
	hit := ""
	r.GET("/api/v1/runs", func(w http.ResponseWriter, _ *http.Request) { hit = "list" })
	r.GET("/api/v1/runs/*/years", func(w http.ResponseWriter, _ *http.Request) { hit = "years" })
	r.GET("/api/v1/runs/*", func(w http.ResponseWriter, _ *http.Request) { hit = "get" })
	r.Handle("/swagger/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { hit = "swagger" }))

	tests := []struct {
		method, path string
		hit          string
		code         int
	}{
		{http.MethodGet, "/api/v1/runs", "list", http.StatusOK},
		{http.MethodGet, "/api/v1/runs/42/years", "years", http.StatusOK},
		{http.MethodGet, "/api/v1/runs/42", "get", http.StatusOK},
		{http.MethodGet, "/swagger/index.html", "swagger", http.StatusOK},
		{http.MethodDelete, "/api/v1/runs", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/v1/runs/42", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		hit = ""
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if hit != tt.hit || rec.Code != tt.code {
			t.Errorf("%s %s: hit %q code %d, want %q %d", tt.method, tt.path, hit, rec.Code, tt.hit, tt.code)
		}
	}

	if len(r.Routes()) != 3 || !r.Paths()["/api/v1/runs/*"] {
		t.Errorf("routes = %d, paths = %v", len(r.Routes()), r.Paths())
	}
}
