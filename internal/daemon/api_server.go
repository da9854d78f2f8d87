package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/queue"
	"revoice/internal/stage"
	"revoice/internal/textutil"
)

// maxUploadBytes caps multipart video uploads at 2 GiB.
const maxUploadBytes = 2 << 30

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

type apiQueueItem struct {
	ID              int64      `json:"id"`
	SourcePath      string     `json:"sourcePath"`
	Title           string     `json:"title"`
	Status          string     `json:"status"`
	ProgressStage   string     `json:"progressStage,omitempty"`
	ProgressPercent float64    `json:"progressPercent"`
	ProgressMessage string     `json:"progressMessage,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	NeedsReview     bool       `json:"needsReview,omitempty"`
	ReviewReason    string     `json:"reviewReason,omitempty"`
	FinalFile       string     `json:"finalFile,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	LastHeartbeat   *time.Time `json:"lastHeartbeat,omitempty"`
}

type apiStageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

type apiStatusResponse struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	QueueDBPath  string           `json:"queueDbPath"`
	LockFilePath string           `json:"lockFilePath"`
	LastError    string           `json:"lastError,omitempty"`
	QueueStats   map[string]int   `json:"queueStats"`
	StageHealth  []apiStageHealth `json:"stageHealth"`
}

type apiQueueListResponse struct {
	Items []apiQueueItem `json:"items"`
}

type apiQueueItemResponse struct {
	Item apiQueueItem `json:"item"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(s.token, s.handleStatus))
	mux.HandleFunc("/api/health", authMiddleware(s.token, s.handleHealth))
	mux.HandleFunc("/api/queue", authMiddleware(s.token, s.handleQueue))
	mux.HandleFunc("/api/queue/", authMiddleware(s.token, s.handleQueueItem))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	stats := make(map[string]int, len(status.Workflow.QueueStats))
	for key, value := range status.Workflow.QueueStats {
		stats[string(key)] = value
	}
	health := sortedStageHealth(status.Workflow.StageHealth)
	s.writeJSON(w, http.StatusOK, apiStatusResponse{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		LastError:    status.Workflow.LastError,
		QueueStats:   stats,
		StageHealth:  health,
	})
}

func sortedStageHealth(health map[string]stage.Health) []apiStageHealth {
	out := make([]apiStageHealth, 0, len(health))
	for name, h := range health {
		out = append(out, apiStageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := s.daemon.QueueHealth(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleQueueList(w, r)
	case http.MethodPost:
		s.handleQueueUpload(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleQueueList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
			return
		}
		statuses = append(statuses, status)
	}

	items, err := s.daemon.ListQueue(r.Context(), statuses)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]apiQueueItem, 0, len(items))
	for _, item := range items {
		views = append(views, toAPIQueueItem(item))
	}
	s.writeJSON(w, http.StatusOK, apiQueueListResponse{Items: views})
}

func (s *apiServer) handleQueueUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	name := filepath.Base(strings.TrimSpace(header.Filename))
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := uploadFileExtensions[ext]; !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file extension %q", ext))
		return
	}

	destPath, err := s.saveUpload(file, name, ext)
	if err != nil {
		s.log().Error("upload save failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	item, err := s.daemon.AddFile(r.Context(), destPath)
	if err != nil {
		_ = os.Remove(destPath)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, apiQueueItemResponse{Item: toAPIQueueItem(item)})
}

func (s *apiServer) saveUpload(src io.Reader, name, ext string) (string, error) {
	uploadDir := filepath.Join(s.daemon.cfg.Paths.StagingDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	stem := textutil.SanitizeFileName(strings.TrimSuffix(name, filepath.Ext(name)))
	if stem == "" {
		stem = "upload"
	}
	destPath := filepath.Join(uploadDir, stem+ext)
	if _, err := os.Stat(destPath); err == nil {
		destPath = filepath.Join(uploadDir, fmt.Sprintf("%s-%d%s", stem, time.Now().UnixNano(), ext))
	}
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		_ = os.Remove(destPath)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := dest.Close(); err != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return destPath, nil
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	idStr, action, _ := strings.Cut(rest, "/")
	if idStr == "" {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleQueueDescribe(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.handleQueueRemove(w, r, id)
	case action == "download" && r.Method == http.MethodGet:
		s.handleQueueDownload(w, r, id)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleQueueDescribe(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, apiQueueItemResponse{Item: toAPIQueueItem(item)})
}

func (s *apiServer) handleQueueRemove(w http.ResponseWriter, r *http.Request, id int64) {
	removed, err := s.daemon.RemoveItem(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *apiServer) handleQueueDownload(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	if item.Status != queue.StatusCompleted || strings.TrimSpace(item.FinalFile) == "" {
		s.writeError(w, http.StatusConflict, "item has no final file yet")
		return
	}
	if _, err := os.Stat(item.FinalFile); err != nil {
		s.writeError(w, http.StatusNotFound, "final file missing on disk")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(item.FinalFile)))
	http.ServeFile(w, r, item.FinalFile)
}

func toAPIQueueItem(item *queue.Item) apiQueueItem {
	return apiQueueItem{
		ID:              item.ID,
		SourcePath:      item.SourcePath,
		Title:           item.Title,
		Status:          string(item.Status),
		ProgressStage:   item.ProgressStage,
		ProgressPercent: item.ProgressPercent,
		ProgressMessage: item.ProgressMessage,
		ErrorMessage:    item.ErrorMessage,
		NeedsReview:     item.NeedsReview,
		ReviewReason:    item.ReviewReason,
		FinalFile:       item.FinalFile,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
		LastHeartbeat:   item.LastHeartbeat,
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
