// Package server exposes the loaded CRM records over REST and pushes
// change sets to WebSocket clients when the data is refreshed.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clinicware/clinic-sync/pkg/cache"
	"github.com/clinicware/clinic-sync/pkg/loader"
	"github.com/clinicware/clinic-sync/pkg/record"
	"github.com/clinicware/clinic-sync/pkg/remote"
	"github.com/clinicware/clinic-sync/pkg/watcher"
	"github.com/clinicware/clinic-sync/web"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server is the HTTP/WebSocket front for the loader.
type Server struct {
	router *mux.Router
	ldr    *loader.Loader
	client *remote.Client // nil when no remote API is configured
	store  cache.Store

	importFile string
	watcher    *watcher.FileWatcher

	wsClients   map[*websocket.Conn]bool
	wsClientsMu sync.RWMutex
	upgrader    websocket.Upgrader

	lastRecords   map[record.Kind][]record.Record
	lastRecordsMu sync.Mutex
}

// ChangeSet is the message broadcast to WebSocket clients after a
// refresh. Added and Deleted are diffed by record id against the
// previously broadcast state of the same kind.
type ChangeSet struct {
	Type       string          `json:"type"`
	Kind       record.Kind     `json:"kind"`
	Timestamp  string          `json:"timestamp"`
	Added      []record.Record `json:"added,omitempty"`
	Deleted    []string        `json:"deleted,omitempty"`
	TotalCount int             `json:"total_count"`
}

// NewServer creates a server. client may be nil; the loader then serves
// from cache and defaults only.
func NewServer(ldr *loader.Loader, client *remote.Client, store cache.Store) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		ldr:         ldr,
		client:      client,
		store:       store,
		wsClients:   make(map[*websocket.Conn]bool),
		lastRecords: make(map[record.Kind][]record.Record),
		upgrader: websocket.Upgrader{
			// The service binds to localhost next to the desktop CRM;
			// remote origins have no business connecting.
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if origin == "http://localhost:8080" || origin == "http://127.0.0.1:8080" {
					return true
				}
				log.Printf("⚠️  WebSocket connection from origin: %s (origin check bypassed - configure for production!)", origin)
				return true
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleWelcome).Methods("GET")
	s.router.HandleFunc("/viewer", s.handleViewer).Methods("GET")
	s.router.HandleFunc("/api/patients", s.recordsHandler(record.KindPatients)).Methods("GET")
	s.router.HandleFunc("/api/sales", s.recordsHandler(record.KindSales)).Methods("GET")
	s.router.HandleFunc("/api/proformas", s.recordsHandler(record.KindProformas)).Methods("GET")
	s.router.HandleFunc("/api/info", s.handleGetInfo).Methods("GET")
	s.router.HandleFunc("/api/refresh", s.handleRefresh).Methods("POST")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// handleWelcome serves the welcome page.
func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(web.WelcomeHTML)
}

// handleViewer serves the record viewer.
func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(web.ViewerHTML)
}

// recordsHandler returns all records of one kind as JSON. The loader
// guarantees a record list, so this handler has no error path.
func (s *Server) recordsHandler(kind record.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := s.load(r.Context(), kind)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"count":   len(records),
			"records": records,
		})
	}
}

// handleGetInfo returns cache and remote configuration details.
func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.Keys()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to inspect cache: %v", err), http.StatusInternalServerError)
		return
	}

	counts := make(map[record.Kind]int)
	for _, kind := range record.Kinds() {
		counts[kind] = len(s.load(r.Context(), kind))
	}

	remoteURL := ""
	if s.client != nil {
		remoteURL = s.client.BaseURL()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     true,
		"remote":      remoteURL,
		"cache_keys":  keys,
		"counts":      counts,
		"import_file": s.importFile,
	})
}

// handleRefresh reloads every kind and broadcasts the resulting changes.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.broadcastUpdate(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// handleWebSocket handles WebSocket connections.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	s.wsClientsMu.Lock()
	s.wsClients[conn] = true
	s.wsClientsMu.Unlock()

	log.Printf("🔌 New WebSocket connection (total: %d)", len(s.wsClients))

	s.sendInitial(conn)

	// Handle disconnection
	go func() {
		defer func() {
			s.wsClientsMu.Lock()
			delete(s.wsClients, conn)
			s.wsClientsMu.Unlock()
			conn.Close()
			log.Printf("🔌 WebSocket disconnected (remaining: %d)", len(s.wsClients))
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// sendInitial sends one "initial" change set per kind to a new client.
func (s *Server) sendInitial(conn *websocket.Conn) {
	ctx := context.Background()
	for _, kind := range record.Kinds() {
		records := s.load(ctx, kind)

		s.lastRecordsMu.Lock()
		s.lastRecords[kind] = records
		s.lastRecordsMu.Unlock()

		msg := ChangeSet{
			Type:       "initial",
			Kind:       kind,
			Timestamp:  time.Now().Format(time.RFC3339),
			Added:      records,
			TotalCount: len(records),
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Failed to send to WebSocket: %v", err)
			return
		}
	}
}

// broadcastUpdate reloads every kind, diffs against the last broadcast
// state and pushes non-empty change sets to all connected clients.
func (s *Server) broadcastUpdate(ctx context.Context) {
	for _, kind := range record.Kinds() {
		current := s.load(ctx, kind)

		s.lastRecordsMu.Lock()
		changes := s.computeChanges(kind, current)
		s.lastRecords[kind] = current
		s.lastRecordsMu.Unlock()

		if len(changes.Added) == 0 && len(changes.Deleted) == 0 {
			continue
		}

		s.wsClientsMu.RLock()
		clientCount := len(s.wsClients)
		for conn := range s.wsClients {
			go func(c *websocket.Conn) {
				if err := c.WriteJSON(changes); err != nil {
					log.Printf("Failed to send to WebSocket: %v", err)
				}
			}(conn)
		}
		s.wsClientsMu.RUnlock()

		if clientCount > 0 {
			log.Printf("📡 Broadcast %s update to %d clients (%d added, %d deleted)",
				kind, clientCount, len(changes.Added), len(changes.Deleted))
		}
	}
}

// computeChanges diffs current against the last broadcast state of the
// kind, keyed by record id. Caller holds lastRecordsMu.
func (s *Server) computeChanges(kind record.Kind, current []record.Record) ChangeSet {
	changes := ChangeSet{
		Type:       "update",
		Kind:       kind,
		Timestamp:  time.Now().Format(time.RFC3339),
		TotalCount: len(current),
	}

	previous := s.lastRecords[kind]
	if len(previous) == 0 {
		changes.Added = current
		return changes
	}

	oldByID := make(map[string]bool, len(previous))
	for _, r := range previous {
		if id := record.ID(r); id != "" {
			oldByID[id] = true
		}
	}

	newByID := make(map[string]bool, len(current))
	for _, r := range current {
		id := record.ID(r)
		if id != "" {
			newByID[id] = true
		}
		if id == "" || !oldByID[id] {
			changes.Added = append(changes.Added, r)
		}
	}

	for _, r := range previous {
		if id := record.ID(r); id != "" && !newByID[id] {
			changes.Deleted = append(changes.Deleted, id)
		}
	}

	return changes
}

// load runs the loader chain for a kind.
func (s *Server) load(ctx context.Context, kind record.Kind) []record.Record {
	return s.ldr.LoadKind(ctx, kind, s.client.Fetcher(kind))
}

// StartImportWatch watches a JSON export dropped by the desktop app and
// re-imports it into the cache on change, broadcasting the result.
func (s *Server) StartImportWatch(path string, debounce time.Duration) error {
	fw, err := watcher.New(path, debounce, func(changed string) {
		log.Printf("🔄 Import file changed: %s", filepath.Base(changed))
		if err := s.importFromFile(changed); err != nil {
			log.Printf("⚠️  Import failed: %v", err)
			return
		}
		s.broadcastUpdate(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to watch import file: %w", err)
	}

	s.importFile = path
	s.watcher = fw
	fw.Start()
	log.Printf("👀 Watching import file: %s", filepath.Base(path))

	return nil
}

// importFromFile loads a kind-keyed JSON export ({"patients": [...],
// "sales": [...], "proformas": [...]}) into the cache. Kinds missing
// from the file are left untouched.
func (s *Server) importFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	var byKind map[string][]record.Record
	if err := json.Unmarshal(data, &byKind); err != nil {
		return fmt.Errorf("failed to parse import file: %w", err)
	}

	for name, records := range byKind {
		kind, err := record.ParseKind(name)
		if err != nil {
			log.Printf("⚠️  Skipping unknown section %q in import file", name)
			continue
		}
		encoded, err := json.Marshal(record.NormalizeAll(records))
		if err != nil {
			return fmt.Errorf("failed to encode %s records: %w", kind, err)
		}
		if err := s.store.Set(kind.CacheKey(), string(encoded)); err != nil {
			return fmt.Errorf("failed to cache %s records: %w", kind, err)
		}
		log.Printf("📥 Imported %d %s records", len(records), kind)
	}

	return nil
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	log.Printf("🚀 Starting server on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Close cleans up server resources.
func (s *Server) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
