// Package api serves the converter controller, its DNA values and apply
// traces over HTTP, with a websocket feed of controller changes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"dnaconverter/internal/converter"
	"dnaconverter/internal/dna"
	"dnaconverter/internal/shadowstate"
	"dnaconverter/pkg/plugin"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Options wires a Server to the objects it serves.
type Options struct {
	Controller *converter.Controller
	DNA        *dna.Store
	Shadow     *shadowstate.Tracker
	Hub        *Hub
	Logger     *zap.Logger

	// Lock serialises controller access. Share it with anything else that
	// touches the controller, such as the store watcher.
	Lock sync.Locker

	ReadOnly bool
	Addr     string
}

// Server provides HTTP API endpoints for a converter controller
type Server struct {
	mu         sync.Locker
	controller *converter.Controller
	dna        *dna.Store
	shadow     *shadowstate.Tracker
	hub        *Hub
	logger     *zap.Logger
	readOnly   bool
	handler    http.Handler
	server     *http.Server
	dnaSub     dna.Subscription
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lock := opts.Lock
	if lock == nil {
		lock = &sync.Mutex{}
	}
	shadow := opts.Shadow
	if shadow == nil {
		shadow = shadowstate.NewTracker()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(logger, nil)
	}

	s := &Server{
		mu:         lock,
		controller: opts.Controller,
		dna:        opts.DNA,
		shadow:     shadow,
		hub:        hub,
		logger:     logger.Named("api"),
		readOnly:   opts.ReadOnly,
	}

	if s.dna != nil {
		sub, err := s.dna.Subscribe(dna.AnyName, hub.DNAChanged)
		if err != nil {
			s.logger.Warn("DNA changes will not be streamed", zap.Error(err))
		}
		s.dnaSub = sub
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSitemap)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/kinds", s.handleListKinds)
	mux.HandleFunc("GET /api/plugins", s.handleListPlugins)
	mux.HandleFunc("POST /api/plugins", s.handleAddPlugin)
	mux.HandleFunc("GET /api/plugins/{name}", s.handleGetPlugin)
	mux.HandleFunc("PUT /api/plugins/{name}", s.handleUpdatePlugin)
	mux.HandleFunc("DELETE /api/plugins/{name}", s.handleRemovePlugin)
	mux.HandleFunc("GET /api/dna", s.handleGetDNA)
	mux.HandleFunc("PUT /api/dna", s.handleSetDNA)
	mux.HandleFunc("DELETE /api/dna", s.handleResetDNA)
	mux.HandleFunc("GET /api/dna/names", s.handleUsedNames)
	mux.HandleFunc("POST /api/apply", s.handleApply)
	mux.HandleFunc("GET /api/shadow", s.handleShadow)
	mux.Handle("GET /api/events", s.hub)
	s.handler = mux

	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the request router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// KindResponse describes one registered plugin kind
type KindResponse struct {
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
	DefaultName string `json:"defaultName"`
	Order       int    `json:"order"`
}

// PluginResponse describes one plugin of the controller
type PluginResponse struct {
	Index    int              `json:"index"`
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Kind     string           `json:"kind"`
	Pass     plugin.ApplyPass `json:"pass"`
	DNANames []string         `json:"dnaNames"`
	Settings any              `json:"settings,omitempty"`
}

// DNAResponse is the body of GET /api/dna
type DNAResponse struct {
	Asset  string             `json:"asset"`
	Hash   uint32             `json:"hash"`
	Values map[string]float64 `json:"values"`
}

// ApplyRequest is the optional body of POST /api/apply. Values override the
// stored DNA for this apply only.
type ApplyRequest struct {
	Values map[string]float64 `json:"values"`
}

// ApplyResponse reports the outputs of a dispatch and the working DNA after it
type ApplyResponse struct {
	Outputs map[string]float64 `json:"outputs"`
	DNA     map[string]float64 `json:"dna"`
}

// UpdatePluginRequest renames a plugin, replaces its settings, or both.
type UpdatePluginRequest struct {
	Name     string          `json:"name,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) rejectReadOnly(w http.ResponseWriter, r *http.Request) bool {
	if !s.readOnly {
		return false
	}
	s.logger.Info("READ-ONLY: Rejecting change",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	s.writeError(w, http.StatusForbidden, errors.New("server is read-only"))
	return true
}

func describe(idx int, p plugin.Plugin, withSettings bool) PluginResponse {
	names := make([]string, 0)
	for name := range p.IndexesForDNANames() {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := PluginResponse{
		Index:    idx,
		ID:       p.ID(),
		Name:     p.Name(),
		Kind:     p.Kind(),
		Pass:     p.ApplyPass(),
		DNANames: names,
	}
	if cfg, ok := p.(plugin.Configurable); ok && withSettings {
		resp.Settings = cfg.Settings()
	}
	return resp
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	infos := s.controller.Kinds().List()
	kinds := make([]KindResponse, 0, len(infos))
	for _, info := range infos {
		kinds = append(kinds, KindResponse{
			Kind:        info.Kind,
			Description: info.Description,
			DefaultName: info.DefaultName,
			Order:       info.Order,
		})
	}
	s.writeJSON(w, http.StatusOK, kinds)
}

func (s *Server) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	plugins := s.controller.Plugins()
	resp := make([]PluginResponse, 0, len(plugins))
	for i, p := range plugins {
		resp = append(resp, describe(i, p, false))
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPlugin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := r.PathValue("name")
	p, ok := s.controller.PluginNamed(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("plugin %s not found", name))
		return
	}
	s.writeJSON(w, http.StatusOK, describe(s.indexOf(p), p, true))
}

func (s *Server) handleAddPlugin(w http.ResponseWriter, r *http.Request) {
	if s.rejectReadOnly(w, r) {
		return
	}

	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.controller.Add(req.Kind)
	switch {
	case errors.Is(err, converter.ErrInvalidPluginType):
		s.writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, describe(s.controller.Count()-1, p, true))
}

func (s *Server) handleUpdatePlugin(w http.ResponseWriter, r *http.Request) {
	if s.rejectReadOnly(w, r) {
		return
	}

	var req UpdatePluginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := r.PathValue("name")
	p, ok := s.controller.PluginNamed(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("plugin %s not found", name))
		return
	}

	if len(req.Settings) > 0 {
		if err := s.reconfigure(p, req.Settings); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.Name != "" {
		if _, err := s.controller.Rename(p, req.Name); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, describe(s.indexOf(p), p, true))
}

// reconfigure swaps in new settings, putting the old ones back if the plugin
// rejects them.
func (s *Server) reconfigure(p plugin.Plugin, settings json.RawMessage) error {
	cfg, ok := p.(plugin.Configurable)
	if !ok {
		return fmt.Errorf("plugin kind %s has no settings", p.Kind())
	}
	previous, err := yaml.Marshal(cfg.Settings())
	if err != nil {
		return fmt.Errorf("failed to encode current settings: %w", err)
	}

	// JSON is valid YAML, so the plugin's YAML decoding applies as is.
	err = plugin.DecodeSettings(p, settings)
	if err == nil {
		if v, ok := p.(plugin.Validator); ok && !v.Valid() {
			err = fmt.Errorf("invalid settings for %s", p.Name())
		}
	}
	if err != nil {
		if rerr := plugin.DecodeSettings(p, previous); rerr != nil {
			s.logger.Error("Failed to restore plugin settings", zap.String("plugin", p.Name()), zap.Error(rerr))
		}
		return err
	}
	return s.controller.Reconfigure(p)
}

func (s *Server) handleRemovePlugin(w http.ResponseWriter, r *http.Request) {
	if s.rejectReadOnly(w, r) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := r.PathValue("name")
	p, ok := s.controller.PluginNamed(name)
	if !ok || !s.controller.Remove(p) {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("plugin %s not found", name))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetDNA(w http.ResponseWriter, r *http.Request) {
	asset := s.dna.Asset()
	s.writeJSON(w, http.StatusOK, DNAResponse{
		Asset:  asset.Name,
		Hash:   asset.NameHash(),
		Values: s.dna.Snapshot(),
	})
}

func (s *Server) handleSetDNA(w http.ResponseWriter, r *http.Request) {
	var values map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.dna.SetMany(values); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.handleGetDNA(w, r)
}

func (s *Server) handleResetDNA(w http.ResponseWriter, r *http.Request) {
	s.dna.Reset()
	s.handleGetDNA(w, r)
}

func (s *Server) handleUsedNames(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"

	s.mu.Lock()
	names := s.controller.UsedNames(refresh)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}

	asset := s.dna.Asset()
	values := s.dna.Snapshot()
	for name, v := range req.Values {
		if _, ok := values[name]; !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("DNA value %s not found", name))
			return
		}
		values[name] = v
	}

	actx := plugin.NewApplyContext(values, asset.NameHash(), s.logger)

	s.mu.Lock()
	err := s.controller.Apply(r.Context(), actx)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Apply failed", zap.Error(err))
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ApplyResponse{Outputs: actx.Outputs, DNA: values})
}

func (s *Server) handleShadow(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("plugin"); name != "" {
		rec, ok := s.shadow.Get(name)
		if !ok {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("no apply recorded for %s", name))
			return
		}
		s.writeJSON(w, http.StatusOK, rec)
		return
	}
	s.writeJSON(w, http.StatusOK, s.shadow.Snapshot())
}

func (s *Server) indexOf(p plugin.Plugin) int {
	for i, existing := range s.controller.Plugins() {
		if existing == p {
			return i
		}
	}
	return -1
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")
	if s.dnaSub != nil {
		s.dnaSub.Unsubscribe()
	}
	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
