package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lylexist/deepseek-ocr-ui/internal/utils"
	"github.com/lylexist/deepseek-ocr-ui/pkg/grounding"
	"github.com/lylexist/deepseek-ocr-ui/pkg/hocr"
	"github.com/lylexist/deepseek-ocr-ui/pkg/overlay"
	"github.com/lylexist/deepseek-ocr-ui/pkg/providers"
	"github.com/spf13/cobra"
)

const maxUploadSize = 64 << 20

const (
	ocrRunning = "running"
	ocrDone    = "done"
	ocrFailed  = "failed"
)

var (
	daemonPort    string
	daemonHost    string
	uiUploadsDir  string
	uiLetterbox   bool
	uiBackend     backendFlags
	uiNoStreaming bool
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Start the grounding overlay API server",
	Long: `Start an HTTP server that holds one overlay session per uploaded image.

Sessions keep the model output, the image viewport and the active region. Model output can
be supplied by the client or produced by the configured backend, in which case the session
is re-parsed as the stream grows.`,
	RunE: runDaemon,
}

func init() {
	RootCmd.AddCommand(uiCmd)
	uiCmd.Flags().StringVar(&daemonPort, "port", "8888", "Port to run the web server on")
	uiCmd.Flags().StringVar(&daemonHost, "host", "localhost", "Host to bind the web server to")
	uiCmd.Flags().StringVar(&uiUploadsDir, "uploads", "uploads", "Directory for uploaded images")
	uiCmd.Flags().BoolVar(&uiLetterbox, "letterbox", false, "Resolve sessions with letterbox mapping")
	uiCmd.Flags().BoolVar(&uiNoStreaming, "no-stream", false, "Wait for the full backend response instead of streaming")
	uiBackend.register(uiCmd)
}

// uiSession is one image with its overlay state. mu guards state and the OCR fields.
type uiSession struct {
	mu        sync.Mutex
	ID        string
	ImagePath string
	ImageName string
	CreatedAt time.Time
	OCRStatus string
	OCRError  string
	state     *overlay.State
}

// SessionView is the JSON form of a session
type SessionView struct {
	ID             string           `json:"id"`
	ImageName      string           `json:"image_name"`
	ImageURL       string           `json:"image_url"`
	CreatedAt      time.Time        `json:"created_at"`
	OCRStatus      string           `json:"ocr_status,omitempty"`
	OCRError       string           `json:"ocr_error,omitempty"`
	Text           string           `json:"text"`
	Markdown       string           `json:"markdown"`
	HasAnnotations bool             `json:"has_annotations"`
	Space          grounding.Space  `json:"space"`
	Viewport       overlay.Viewport `json:"viewport"`
	Active         int              `json:"active"`
	ActiveRef      int              `json:"active_annotation"`
	Regions        []overlay.Region `json:"regions"`
}

func (s *uiSession) view() SessionView {
	return SessionView{
		ID:             s.ID,
		ImageName:      s.ImageName,
		ImageURL:       "/api/sessions/" + s.ID + "/image",
		CreatedAt:      s.CreatedAt,
		OCRStatus:      s.OCRStatus,
		OCRError:       s.OCRError,
		Text:           s.state.Text(),
		Markdown:       grounding.StripGrounding(s.state.Text()),
		HasAnnotations: s.state.HasAnnotations(),
		Space:          s.state.Result().Space,
		Viewport:       s.state.Viewport(),
		Active:         s.state.Active(),
		ActiveRef:      s.state.ActiveAnnotation(),
		Regions:        s.state.Regions(),
	}
}

// uiServer owns every session. Handlers may run concurrently, so the session
// map and each session's state are behind their own mutexes.
type uiServer struct {
	uploadsDir string
	mapping    grounding.Mapping
	provider   providers.Provider
	config     providers.Config
	stream     bool

	mu       sync.RWMutex
	sessions map[string]*uiSession

	// background OCR runs
	wg sync.WaitGroup
}

func newUIServer(uploadsDir string, mapping grounding.Mapping, provider providers.Provider, config providers.Config, stream bool) *uiServer {
	return &uiServer{
		uploadsDir: uploadsDir,
		mapping:    mapping,
		provider:   provider,
		config:     config,
		stream:     stream,
		sessions:   make(map[string]*uiSession),
	}
}

func (s *uiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/parse", s.handleParse)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleUpload)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PUT /api/sessions/{id}/text", s.handleUpdateText)
	mux.HandleFunc("PUT /api/sessions/{id}/viewport", s.handleResize)
	mux.HandleFunc("PUT /api/sessions/{id}/active", s.handleSelect)
	mux.HandleFunc("GET /api/sessions/{id}/image", s.handleImage)
	mux.HandleFunc("GET /api/sessions/{id}/hocr", s.handleHOCR)
	return mux
}

func runDaemon(cmd *cobra.Command, args []string) error {
	config := uiBackend.config()
	provider, err := newRegistry().Resolve(config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(uiUploadsDir, 0755); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}

	mapping := grounding.MappingPerAxis
	if uiLetterbox {
		mapping = grounding.MappingLetterbox
	}
	srv := newUIServer(uiUploadsDir, mapping, provider, config, !uiNoStreaming)

	addr := fmt.Sprintf("%s:%s", daemonHost, daemonPort)
	slog.Info("Starting grounding overlay server", "url", fmt.Sprintf("http://%s", addr), "provider", provider.Name(), "mapping", mapping)

	return http.ListenAndServe(addr, srv.routes())
}

func (s *uiServer) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if s.mapping == grounding.MappingLetterbox {
		req.Letterbox = true
	}
	respondWithJSON(w, http.StatusOK, BuildParseOutput(req))
}

func (s *uiServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	list := make([]*uiSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		list = append(list, session)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})

	views := make([]SessionView, 0, len(list))
	for _, session := range list {
		session.mu.Lock()
		views = append(views, session.view())
		session.mu.Unlock()
	}
	respondWithJSON(w, http.StatusOK, views)
}

// handleUpload creates a session from a multipart image upload. The optional
// "text" field seeds the model output; "ocr=true" runs the backend instead.
func (s *uiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !utils.IsImageFile(header.Filename) {
		respondWithError(w, "Unsupported image type: "+header.Filename, http.StatusBadRequest)
		return
	}

	id := uuid.New().String()
	filename := fmt.Sprintf("%s_%s", id, filepath.Base(header.Filename))
	filePath := filepath.Join(s.uploadsDir, filename)
	if err := saveUpload(filePath, file); err != nil {
		respondWithError(w, "Failed to save file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	width, height, err := utils.ImageFileDimensions(filePath)
	if err != nil {
		os.Remove(filePath)
		respondWithError(w, "Failed to read image: "+err.Error(), http.StatusBadRequest)
		return
	}

	session := &uiSession{
		ID:        id,
		ImagePath: filePath,
		ImageName: header.Filename,
		CreatedAt: time.Now(),
		state:     overlay.NewState(s.mapping),
	}
	session.state.Resize(overlay.Viewport{
		NativeWidth:    float64(width),
		NativeHeight:   float64(height),
		RenderedWidth:  float64(width),
		RenderedHeight: float64(height),
	})
	session.state.Update(r.FormValue("text"))
	session.state.Open()

	startOCR, _ := strconv.ParseBool(r.FormValue("ocr"))
	if startOCR {
		session.OCRStatus = ocrRunning
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	slog.Info("Created session", "id", id, "image", header.Filename, "width", width, "height", height, "ocr", startOCR)

	status := http.StatusCreated
	if startOCR {
		status = http.StatusAccepted
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runSessionOCR(session)
		}()
	}

	session.mu.Lock()
	view := session.view()
	session.mu.Unlock()
	respondWithJSON(w, status, view)
}

// runSessionOCR feeds backend output into the session as it arrives. Each
// chunk replaces the text and re-parses it, so regions appear while streaming.
func (s *uiServer) runSessionOCR(session *uiSession) {
	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	text, err := s.extract(ctx, session)

	session.mu.Lock()
	defer session.mu.Unlock()
	if err != nil {
		err = utils.MaskSensitiveError(err)
		slog.Error("Session OCR failed", "id", session.ID, "err", err)
		session.OCRStatus = ocrFailed
		session.OCRError = err.Error()
		return
	}

	hadRegions := overlay.CountRegions(session.state.Result()) > 0
	session.state.Update(text)
	if !hadRegions {
		session.state.Open()
	}
	session.OCRStatus = ocrDone
	slog.Info("Session OCR finished", "id", session.ID, "annotations", len(session.state.Result().Annotations))
}

func (s *uiServer) extract(ctx context.Context, session *uiSession) (string, error) {
	imageBase64, err := getImageAsBase64(session.ImagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	if sp, ok := s.provider.(providers.StreamingProvider); ok && s.stream {
		text, _, err := sp.StreamText(ctx, s.config, session.ImagePath, imageBase64, func(accumulated string) {
			session.mu.Lock()
			defer session.mu.Unlock()
			hadRegions := overlay.CountRegions(session.state.Result()) > 0
			session.state.Update(accumulated)
			if !hadRegions {
				session.state.Open()
			}
		})
		return text, err
	}

	text, _, err := s.provider.ExtractText(ctx, s.config, session.ImagePath, imageBase64)
	return text, err
}

func (s *uiServer) session(w http.ResponseWriter, r *http.Request) (*uiSession, bool) {
	id := r.PathValue("id")
	s.mu.RLock()
	session, exists := s.sessions[id]
	s.mu.RUnlock()
	if !exists {
		respondWithError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (s *uiServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	session.mu.Lock()
	view := session.view()
	session.mu.Unlock()
	respondWithJSON(w, http.StatusOK, view)
}

func (s *uiServer) handleUpdateText(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var request struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	session.mu.Lock()
	session.state.Update(request.Text)
	view := session.view()
	session.mu.Unlock()
	respondWithJSON(w, http.StatusOK, view)
}

// handleResize accepts a full viewport or only the rendered size, in which
// case the session keeps its native size.
func (s *uiServer) handleResize(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var v overlay.Viewport
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		respondWithError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if v.RenderedWidth < 0 || v.RenderedHeight < 0 || v.NativeWidth < 0 || v.NativeHeight < 0 {
		respondWithError(w, "Viewport sizes must not be negative", http.StatusBadRequest)
		return
	}

	session.mu.Lock()
	if !v.HasNativeSize() {
		current := session.state.Viewport()
		v.NativeWidth, v.NativeHeight = current.NativeWidth, current.NativeHeight
	}
	session.state.Resize(v)
	view := session.view()
	session.mu.Unlock()
	respondWithJSON(w, http.StatusOK, view)
}

func (s *uiServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	var request struct {
		Index *int `json:"index"`
		Open  bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	session.mu.Lock()
	switch {
	case request.Open:
		session.state.Open()
	case request.Index != nil:
		session.state.Select(*request.Index)
	default:
		session.state.Select(overlay.None)
	}
	view := session.view()
	session.mu.Unlock()
	respondWithJSON(w, http.StatusOK, view)
}

func (s *uiServer) handleImage(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", utils.MimeType(session.ImagePath))
	http.ServeFile(w, r, session.ImagePath)
}

func (s *uiServer) handleHOCR(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}
	session.mu.Lock()
	doc := hocr.FromResult(session.state.Result())
	session.mu.Unlock()

	w.Header().Set("Content-Type", "application/xhtml+xml; charset=utf-8")
	io.WriteString(w, doc)
}

func saveUpload(path string, src io.Reader) error {
	outFile, err := os.Create(path)
	if err != nil {
		return err
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, src); err != nil {
		return err
	}
	return outFile.Close()
}

func respondWithJSON(w http.ResponseWriter, statusCode int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("Unable to encode response", "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"Unable to encode response"}`+"\n")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(buf.Bytes())
}

func respondWithError(w http.ResponseWriter, message string, statusCode int) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
