// Package web exposes a small HTTP/WebSocket interface for triggering
// compression runs and watching per-file outcomes live.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"img-compress-go/internal/compressor"
	"img-compress-go/internal/config"
	"img-compress-go/internal/pipeline"
	"img-compress-go/internal/probe"
	"img-compress-go/internal/report"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	// wsMutex serializes every write to every client connection as
	// well as map membership. Result hooks fire from all pipeline
	// workers at once, and a websocket connection only supports one
	// concurrent writer.
	wsClients map[*websocket.Conn]bool
	wsMutex   sync.Mutex

	// Current operation state
	opMutex    sync.RWMutex
	isRunning  bool
	cancelRun  context.CancelFunc
	lastReport *report.Report
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type CompressRequest struct {
	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir,omitempty"`
	Quality   int    `json:"quality,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type fileOutcome struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tool, all origins accepted
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/report", s.handleReport).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.opMutex.RLock()
	running := s.isRunning
	s.opMutex.RUnlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    map[string]interface{}{"running": running},
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.InputDir == "" {
		s.writeError(w, "input_dir is required", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(req.InputDir); err != nil || !info.IsDir() {
		s.writeError(w, "input_dir does not exist", http.StatusBadRequest)
		return
	}

	s.opMutex.Lock()
	if s.isRunning {
		s.opMutex.Unlock()
		s.writeError(w, "A run is already in progress", http.StatusConflict)
		return
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelRun = cancel
	s.opMutex.Unlock()

	go s.runCompressAsync(ctx, cancel, req)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.opMutex.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.opMutex.Unlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Stop requested",
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.opMutex.RLock()
	rep := s.lastReport
	s.opMutex.RUnlock()

	if rep == nil {
		s.writeJSON(w, APIResponse{Success: true, Data: nil})
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"total_files": rep.TotalFiles,
			"compressed":  rep.Compressed,
			"skipped":     rep.Skipped,
			"failed":      rep.Failed,
			"duration":    rep.Duration.String(),
		},
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) runCompressAsync(ctx context.Context, cancel context.CancelFunc, req CompressRequest) {
	defer func() {
		cancel()
		s.opMutex.Lock()
		s.isRunning = false
		s.cancelRun = nil
		s.opMutex.Unlock()
	}()

	cfg := *s.cfg
	cfg.InputDir = req.InputDir
	cfg.OutputDir = req.OutputDir
	if req.Quality > 0 {
		cfg.Quality = req.Quality
	}

	s.broadcastWSMessage("run_started", map[string]interface{}{
		"input_dir":  cfg.InputDir,
		"output_dir": cfg.OutputDir,
		"quality":    cfg.Quality,
	})

	flags := probe.Detect(ctx, s.log)
	comp := compressor.NewDefaultCompressor(flags, compressor.Options{KeepMetadata: cfg.KeepMetadata}, s.log)
	runner := pipeline.NewRunnerWithHook(&cfg, s.log, comp, flags, func(res compressor.Result) {
		s.broadcastWSMessage("file_result", fileOutcome{
			Source:      res.Source,
			Destination: res.Destination,
			Status:      res.Status.String(),
			Message:     res.Message,
		})
	})

	rep, err := runner.Run(ctx)
	if err != nil {
		s.broadcastWSMessage("run_error", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.opMutex.Lock()
	s.lastReport = rep
	s.opMutex.Unlock()

	s.broadcastWSMessage("run_completed", map[string]interface{}{
		"total_files": rep.TotalFiles,
		"compressed":  rep.Compressed,
		"skipped":     rep.Skipped,
		"failed":      rep.Failed,
		"duration":    rep.Duration.String(),
	})
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
