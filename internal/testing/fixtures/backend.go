package fixtures

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
)

// Point is one position served by the fake backend
type Point struct {
	Lat        float64
	Lng        float64
	Timestamp  int64
	Confidence float64
}

// FakeBackend is an in-process tracker service for tests. Every handler
// reads its state under a mutex so tests may change it between cycles.
type FakeBackend struct {
	mu         sync.Mutex
	server     *httptest.Server
	order      []string
	points     map[string][]Point
	rawStats   string
	rawHistory map[string]string
	failures   map[string]int
	hooks      map[string]func()
	requests   map[string]int
	registered []string
}

// NewFakeBackend starts a fake service; Close it when done
func NewFakeBackend() *FakeBackend {
	b := &FakeBackend{
		points:     make(map[string][]Point),
		rawHistory: make(map[string]string),
		failures:   make(map[string]int),
		hooks:      make(map[string]func()),
		requests:   make(map[string]int),
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	return b
}

// URL is the base URL of the service
func (b *FakeBackend) URL() string {
	return b.server.URL
}

// Close shuts the service down
func (b *FakeBackend) Close() {
	b.server.Close()
}

// SetTracker adds or replaces a tracker and its history
func (b *FakeBackend) SetTracker(serial string, points ...Point) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.points[serial]; !ok {
		b.order = append(b.order, serial)
	}
	b.points[serial] = points
}

// SetRawStats overrides the /stats body
func (b *FakeBackend) SetRawStats(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rawStats = body
}

// SetRawHistory overrides the /data/{serial} body
func (b *FakeBackend) SetRawHistory(serial, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rawHistory[serial] = body
}

// Fail makes requests to path (e.g. "/stats", "/data/T1") answer status.
// A zero status clears the failure.
func (b *FakeBackend) Fail(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, path)
		return
	}
	b.failures[path] = status
}

// OnRequest runs hook before path is answered, outside the lock
func (b *FakeBackend) OnRequest(path string, hook func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks[path] = hook
}

// Requests returns how often path was requested
func (b *FakeBackend) Requests(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[path]
}

// Registered returns the serials passed to /add
func (b *FakeBackend) Registered() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.registered...)
}

func (b *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	b.mu.Lock()
	b.requests[path]++
	hook := b.hooks[path]
	status := b.failures[path]
	b.mu.Unlock()

	if hook != nil {
		hook()
	}
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case path == "/trackers":
		data, _ := sonic.Marshal(b.order)
		w.Write(data)
	case path == "/stats":
		if b.rawStats != "" {
			fmt.Fprint(w, b.rawStats)
			return
		}
		fmt.Fprint(w, b.statsBody())
	case strings.HasPrefix(path, "/data/"):
		serial := strings.TrimPrefix(path, "/data/")
		if raw, ok := b.rawHistory[serial]; ok {
			fmt.Fprint(w, raw)
			return
		}
		fmt.Fprint(w, FeatureCollection(b.points[serial]...))
	case strings.HasPrefix(path, "/add/"):
		serial := strings.TrimPrefix(path, "/add/")
		b.registered = append(b.registered, serial)
		if _, ok := b.points[serial]; !ok {
			b.order = append(b.order, serial)
			b.points[serial] = nil
		}
		fmt.Fprint(w, `{"status":"ok"}`)
	default:
		http.NotFound(w, r)
	}
}

// statsBody writes the stats object in insertion order
func (b *FakeBackend) statsBody() string {
	entries := make([]string, 0, len(b.order))
	for _, serial := range b.order {
		points := b.points[serial]
		key, _ := sonic.Marshal(serial)
		entry := fmt.Sprintf(`%s:{"points":%d`, key, len(points))
		if len(points) > 0 {
			entry += fmt.Sprintf(`,"first":%d,"last":%d`, points[0].Timestamp, points[len(points)-1].Timestamp)
		}
		entries = append(entries, entry+"}")
	}
	return "{" + strings.Join(entries, ",") + "}"
}

// FeatureCollection renders points as the GeoJSON the service returns
func FeatureCollection(points ...Point) string {
	features := make([]map[string]interface{}, 0, len(points))
	for _, p := range points {
		props := map[string]interface{}{"timestamp": p.Timestamp}
		if p.Confidence > 0 {
			props["confidence"] = p.Confidence
		}
		features = append(features, map[string]interface{}{
			"type": "Feature",
			"geometry": map[string]interface{}{
				"type":        "Point",
				"coordinates": []float64{p.Lng, p.Lat},
			},
			"properties": props,
		})
	}
	data, _ := sonic.Marshal(map[string]interface{}{
		"type":     "FeatureCollection",
		"features": features,
	})
	return string(data)
}
