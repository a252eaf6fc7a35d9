package router

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

// --- ANSI color codes ---
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method  string
	pattern string
	handler HandlerFunc
}

type Router struct {
	mux       *http.ServeMux
	routes    map[string]HandlerFunc // key = METHOD:PATH
	paths     map[string]bool        // track registered paths
	wildcards []route                // matched in registration order
}

func New() *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
	}

	r.mux.HandleFunc("/", r.serveLogged)
	return r
}

// serveLogged dispatches the request and prints one colored access line
func (r *Router) serveLogged(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	r.dispatch(rec, req)

	log.Printf("%s[%s]%s %s%s%s %s %s%d%s %s(%v)%s",
		colorCyan, start.Format(time.DateTime), colorReset,
		methodColors.pick(req.Method), req.Method, colorReset,
		req.URL.Path,
		statusColor(rec.status), rec.status, colorReset,
		colorBlue, time.Since(start).Round(time.Microsecond), colorReset,
	)
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	if h, ok := r.routes[req.Method+":"+req.URL.Path]; ok {
		h(w, req)
		return
	}

	// More specific wildcard routes must be registered first
	pathMatched := r.paths[req.URL.Path]
	for _, rt := range r.wildcards {
		if !matchWildcardRoute(req.URL.Path, rt.pattern) {
			continue
		}
		if rt.method == req.Method {
			rt.handler(w, req)
			return
		}
		pathMatched = true
	}

	if pathMatched {
		// Path exists but method not allowed
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern
func matchWildcardRoute(requestPath, routePattern string) bool {
	// Split both paths into segments
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	// Trailing "**" matches any number of remaining segments
	if last := len(routeSegments) - 1; routeSegments[last] == "**" {
		if len(requestSegments) < last {
			return false
		}
		return matchSegments(requestSegments[:last], routeSegments[:last])
	}

	if len(requestSegments) != len(routeSegments) {
		return false
	}
	return matchSegments(requestSegments, routeSegments)
}

// matchSegments compares segment by segment; "*" matches any single non-empty segment
func matchSegments(requestSegments, routeSegments []string) bool {
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

// Segment returns the i-th path segment of the request ("" when out of range)
func Segment(req *http.Request, i int) string {
	segments := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if i < 0 || i >= len(segments) {
		return ""
	}
	return segments[i]
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	r.routes[key] = handler
	r.paths[path] = true
	if strings.Contains(path, "*") {
		r.wildcards = append(r.wildcards, route{method: method, pattern: path, handler: handler})
	}
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

// ServeHTTP lets the router be mounted or driven by httptest
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// --- Start server ---

// Start serves until ctx is cancelled, then shuts down gracefully
func (r *Router) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Server started on %shttp://localhost%s%s", colorGreen, addr, colorReset)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Printf("🛑 Shutting down server on %s", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// --- Color helpers ---
type palette map[string]string

func (p palette) pick(key string) string {
	if c, ok := p[key]; ok {
		return c
	}
	return colorCyan
}

var methodColors = palette{
	http.MethodGet:    colorGreen,
	http.MethodPost:   colorBlue,
	http.MethodPut:    colorYellow,
	http.MethodPatch:  colorYellow,
	http.MethodDelete: colorRed,
}

func statusColor(code int) string {
	switch {
	case code >= 500:
		return colorRed
	case code >= 400:
		return colorYellow
	case code >= 300:
		return colorCyan
	case code >= 200:
		return colorGreen
	default:
		return colorRed
	}
}
