// Package api exposes the HTTP and WebSocket surface of the dispatch
// pipeline.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/nexusai/nexus/internal/events"
	"github.com/nexusai/nexus/internal/httputil"
	"github.com/nexusai/nexus/internal/memory"
	"github.com/nexusai/nexus/internal/metrics"
	"github.com/nexusai/nexus/internal/pipeline"
	"github.com/nexusai/nexus/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	version = "1.0.0"

	defaultTaskLimit = 50
	defaultLogLimit  = 100
	maxListLimit     = 500
)

type API struct {
	pipe     *pipeline.Pipeline
	hub      *events.Hub
	store    store.Store
	memory   *memory.Memory
	mux      *http.ServeMux
	log      *zap.Logger
	upgrader websocket.Upgrader
}

type TaskRequest struct {
	Task string `json:"task"`
	Mode string `json:"mode"`
}

func New(pipe *pipeline.Pipeline, hub *events.Hub, st store.Store, mem *memory.Memory, log *zap.Logger) *API {
	a := &API{
		pipe:   pipe,
		hub:    hub,
		store:  st,
		memory: mem,
		mux:    http.NewServeMux(),
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	a.setupRoutes()
	return a
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("/", a.handleRoot)
	a.mux.HandleFunc("/status", a.handleStatus)
	a.mux.HandleFunc("/tasks", a.handleTasks)
	a.mux.HandleFunc("/logs", a.handleLogs)
	a.mux.HandleFunc("/start", a.handleStart)
	a.mux.HandleFunc("/stop", a.handleStop)
	a.mux.HandleFunc("/memory/search", a.handleMemorySearch)
	a.mux.HandleFunc("/ws", a.handleWebSocket)
	a.mux.Handle("/metrics", promhttp.Handler())
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.WriteJSONError(w, "Not found", http.StatusNotFound)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Nexus API Running",
		"version": version,
	})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, a.pipe.Status(r.Context()))
}

func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createTask(w, r)
	case http.MethodGet:
		a.listTasks(w, r)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	taskID, err := a.pipe.Submit(r.Context(), req.Task, req.Mode)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyTask) {
			httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"status":  "started",
	})
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultTaskLimit)

	tasks, err := a.store.RecentTasks(r.Context(), limit)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tasks)
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultLogLimit)

	logs, err := a.store.RecentLogs(r.Context(), limit)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, logs)
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a.pipe.Start()
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "system started"})
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a.pipe.Stop()
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "system stopped"})
}

func (a *API) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	if keyword == "" {
		httputil.WriteJSONError(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	result, err := a.memory.Search(keyword)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleWebSocket upgrades the connection, registers it with the hub, sends
// the connected acknowledgement and then drains inbound messages until the
// client disconnects. Outbound traffic goes exclusively through the hub.
func (a *API) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	a.hub.Register(conn)
	metrics.RecordObserverConnected()
	a.hub.Send(conn, events.Connected("connected to Nexus live feed"))

	go func() {
		defer func() {
			a.hub.Unregister(conn)
			_ = conn.Close()
			metrics.RecordObserverDisconnected()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
