package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/atomicdeploy/pandata/pkg/pandata"
	"github.com/atomicdeploy/pandata/pkg/watcher"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server exposes one JSON collection over HTTP and WebSocket.
//
// The collection does no locking of its own; every access from a handler
// goes through mu.
type Server struct {
	router  *mux.Router
	path    string
	mu      sync.RWMutex
	items   *pandata.Collection
	last    []pandata.Record
	watcher *watcher.FileWatcher
	metrics *metrics

	clients   map[*client]struct{}
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
	origins   []string
}

const clientQueueSize = 64

// client owns one WebSocket connection. Change sets are written by a
// single goroutine in the order they were queued.
type client struct {
	id    string
	conn  *websocket.Conn
	queue chan ChangeSet
	done  chan struct{}
	once  sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:    uuid.NewString(),
		conn:  conn,
		queue: make(chan ChangeSet, clientQueueSize),
		done:  make(chan struct{}),
	}
}

// enqueue queues changes without blocking and reports whether there was room
func (c *client) enqueue(changes ChangeSet) bool {
	select {
	case c.queue <- changes:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case changes := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(changes); err != nil {
				log.Printf("Failed to send to WebSocket %s: %v", c.id, err)
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// ChangeSet is pushed to WebSocket clients when the collection changes
type ChangeSet struct {
	Type       string           `json:"type"`
	Timestamp  string           `json:"timestamp"`
	Added      []pandata.Record `json:"added,omitempty"`
	Deleted    []pandata.Record `json:"deleted,omitempty"`
	TotalCount int              `json:"total_count"`
}

// Option configures a Server
type Option func(*Server)

// WithAllowedOrigins lists extra WebSocket origins besides the request host
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = append(s.origins, origins...)
	}
}

// NewServer loads the JSON file at path and prepares the routes
func NewServer(path string, opts ...Option) (*Server, error) {
	items, err := pandata.New().LoadJSON(path)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:  mux.NewRouter(),
		path:    path,
		items:   items,
		last:    items.GetAll(),
		metrics: newMetrics(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.metrics.records.Set(float64(items.Len()))

	s.setupRoutes()

	return s, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Direct connections and tests send no Origin
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	if slices.Contains(s.origins, origin) {
		return true
	}
	log.Printf("⚠️  Rejected WebSocket connection from origin: %s", origin)
	return false
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/records", s.handleGetRecords).Methods(http.MethodGet)
	api.HandleFunc("/records/{key}", s.handleFind).Methods(http.MethodGet)
	api.HandleFunc("/records/{key}", s.handleRemove).Methods(http.MethodDelete)
	api.HandleFunc("/records/{key}/first", s.handleFirst).Methods(http.MethodGet)
	api.HandleFunc("/records/{key}/sorted", s.handleSorted).Methods(http.MethodGet)
	api.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	api.HandleFunc("/info", s.handleGetInfo).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.handler())
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the HTTP handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// queryValue reads the value parameter as a JSON literal
func queryValue(w http.ResponseWriter, r *http.Request) (any, bool) {
	q := r.URL.Query()
	if !q.Has("value") {
		http.Error(w, "missing value query parameter", http.StatusBadRequest)
		return nil, false
	}
	return pandata.ParseValue(q.Get("value")), true
}

func (s *Server) handleGetRecords(w http.ResponseWriter, r *http.Request) {
	s.metrics.queries.WithLabelValues("all").Inc()

	s.mu.RLock()
	records := s.items.GetAll()
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	value, ok := queryValue(w, r)
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]
	s.metrics.queries.WithLabelValues("find").Inc()

	s.mu.RLock()
	records := s.items.DelegateGetAllByKey(key).Get(value)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleFirst(w http.ResponseWriter, r *http.Request) {
	value, ok := queryValue(w, r)
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]
	s.metrics.queries.WithLabelValues("first").Inc()

	s.mu.RLock()
	record := s.items.DelegateGetFirstByKey(key).Get(value)
	s.mu.RUnlock()

	if record == nil {
		http.Error(w, fmt.Sprintf("no record with %s = %v", key, value), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"record":  record,
	})
}

func (s *Server) handleSorted(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	var ascending bool
	switch order := r.URL.Query().Get("order"); order {
	case "", "asc":
		ascending = true
	case "desc":
		ascending = false
	default:
		http.Error(w, fmt.Sprintf("invalid order %q (expected asc or desc)", order), http.StatusBadRequest)
		return
	}
	s.metrics.queries.WithLabelValues("sorted").Inc()

	s.mu.RLock()
	records := s.items.DelegateAllByKeySorted(key).Get(ascending)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	value, ok := queryValue(w, r)
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]
	s.metrics.queries.WithLabelValues("remove").Inc()

	s.mu.Lock()
	removed := s.items.RemoveByKeyValue(key, value)
	count := s.items.Len()
	changes := s.computeChangesLocked()
	if removed > 0 {
		s.broadcastLocked(changes)
	}
	s.mu.Unlock()

	s.metrics.records.Set(float64(count))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"removed": removed,
		"count":   count,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(); err != nil {
		http.Error(w, fmt.Sprintf("Failed to reload: %v", err), http.StatusInternalServerError)
		return
	}

	s.mu.RLock()
	count := s.items.Len()
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   count,
	})
}

func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	count := s.items.Len()
	keys := s.items.Keys()
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"file":        filepath.Base(s.path),
		"num_records": count,
		"keys":        keys,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	c := newClient(conn)
	go c.writeLoop()

	// The snapshot and the registration happen under one read lock, so
	// every later update is relative to the snapshot the client received.
	s.mu.RLock()
	records := s.items.GetAll()
	c.enqueue(ChangeSet{
		Type:       "initial",
		Timestamp:  time.Now().Format(time.RFC3339),
		Added:      records,
		TotalCount: len(records),
	})
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	s.mu.RUnlock()
	s.metrics.clients.Inc()

	log.Printf("🔌 New WebSocket connection %s (total: %d)", c.id, total)

	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, c)
			remaining := len(s.clients)
			s.clientsMu.Unlock()
			s.metrics.clients.Dec()
			c.stop()
			conn.Close()
			log.Printf("🔌 WebSocket %s disconnected (remaining: %d)", c.id, remaining)
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// broadcastLocked queues changes for every connected client. Callers hold
// mu, which keeps change sets in the order their diffs were computed. A
// client that has fallen a full queue behind is disconnected.
func (s *Server) broadcastLocked(changes ChangeSet) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	if len(s.clients) == 0 {
		return
	}

	log.Printf("📡 Broadcasting update to %d clients", len(s.clients))

	for c := range s.clients {
		if !c.enqueue(changes) {
			log.Printf("⚠️  WebSocket %s is too far behind, disconnecting", c.id)
			c.conn.Close()
		}
	}
}

// recordKey identifies a record by content. encoding/json sorts map keys,
// so equal records always produce the same key.
func recordKey(record pandata.Record) string {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Sprintf("%v", record)
	}
	return string(data)
}

// computeChangesLocked diffs the current contents against the last
// broadcast snapshot by content, counting duplicates. Callers hold mu.
func (s *Server) computeChangesLocked() ChangeSet {
	current := s.items.GetAll()
	changes := ChangeSet{
		Type:       "update",
		Timestamp:  time.Now().Format(time.RFC3339),
		TotalCount: len(current),
	}

	pending := make(map[string][]pandata.Record)
	for _, record := range s.last {
		k := recordKey(record)
		pending[k] = append(pending[k], record)
	}

	for _, record := range current {
		k := recordKey(record)
		if old := pending[k]; len(old) > 0 {
			pending[k] = old[1:]
			continue
		}
		changes.Added = append(changes.Added, record)
	}

	for _, record := range s.last {
		k := recordKey(record)
		if old := pending[k]; len(old) > 0 {
			changes.Deleted = append(changes.Deleted, old[0])
			pending[k] = old[1:]
		}
	}

	s.last = current
	return changes
}

// Reload replaces the collection with the current file contents and
// notifies clients. On error the previous contents stay in place.
func (s *Server) Reload() error {
	s.mu.Lock()
	_, err := s.items.LoadJSON(s.path)
	if err != nil {
		s.mu.Unlock()
		s.metrics.loads.WithLabelValues("error").Inc()
		return err
	}
	count := s.items.Len()
	s.broadcastLocked(s.computeChangesLocked())
	s.mu.Unlock()

	s.metrics.loads.WithLabelValues("ok").Inc()
	s.metrics.records.Set(float64(count))
	return nil
}

// StartWatching reloads the collection whenever the source file changes
func (s *Server) StartWatching(debounce time.Duration) error {
	fw, err := watcher.NewFileWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fw.Watch(s.path, func(path string) {
		log.Printf("🔄 File changed: %s", filepath.Base(path))
		if err := s.Reload(); err != nil {
			log.Printf("⚠️  Reload failed, keeping previous records: %v", err)
		}
	}, debounce); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch file: %w", err)
	}

	s.watcher = fw
	fw.Start()
	log.Printf("👀 Watching source file: %s", filepath.Base(s.path))

	return nil
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	log.Printf("🚀 Starting server on %s", addr)
	log.Printf("📊 Serving records from: %s", filepath.Base(s.path))

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// Close cleans up server resources
func (s *Server) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
