package router

import (
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type Router struct {
	mux      *http.ServeMux
	routes   map[string]HandlerFunc // key = METHOD:PATH
	paths    map[string]bool        // track registered paths
	patterns []string               // wildcard paths in registration order
}

func New() *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
	}
	r.mux.HandleFunc("/", r.dispatch)
	return r
}

// dispatch resolves exact routes first, then wildcard routes in the order
// they were registered.
func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	if h, ok := r.routes[req.Method+":"+req.URL.Path]; ok {
		h(w, req)
		return
	}

	pathMatched := r.paths[req.URL.Path]
	for _, pattern := range r.patterns {
		if !matchWildcardRoute(req.URL.Path, pattern) {
			continue
		}
		if h, ok := r.routes[req.Method+":"+pattern]; ok {
			h(w, req)
			return
		}
		pathMatched = true
	}

	if pathMatched {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern.
// A trailing "*" matches one or more remaining segments; any other "*"
// matches exactly one non-empty segment.
func matchWildcardRoute(requestPath, routePattern string) bool {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	last := len(routeSegments) - 1
	if routeSegments[last] == "*" && len(requestSegments) > len(routeSegments) {
		requestSegments = append(requestSegments[:last], strings.Join(requestSegments[last:], "/"))
	}
	if len(requestSegments) != len(routeSegments) {
		return false
	}

	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			if requestSegments[i] == "" {
				return false
			}
			continue
		}
		if requestSegments[i] != routeSegment {
			return false
		}
	}
	return true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	if _, seen := r.routes[key]; !seen && strings.Contains(path, "*") {
		r.patterns = append(r.patterns, path)
	}
	r.routes[key] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)  { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc) { r.register(http.MethodPost, path, handler) }

// Handle mounts a plain http.Handler on a ServeMux prefix such as "/swagger/".
func (r *Router) Handle(prefix string, h http.Handler) {
	r.mux.Handle(prefix, h)
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

// ServeHTTP wraps every request with access logging.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	r.mux.ServeHTTP(lrw, req)

	entry := log.WithFields(log.Fields{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   lrw.statusCode,
		"duration": time.Since(start),
	})
	switch {
	case lrw.statusCode >= 500:
		entry.Error("request")
	case lrw.statusCode >= 400:
		entry.Warn("request")
	default:
		entry.Info("request")
	}
}

// --- Start server ---
func (r *Router) Start(addr string) error {
	log.Infof("🚀 Server started on http://localhost%s", addr)
	return http.ListenAndServe(addr, r)
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
