package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"study-ai/internal/extract"
	"study-ai/internal/models"
	"study-ai/internal/services"
)

const maxMultipartMemory = 32 << 20 // 32 MB

type Server struct {
	mux       *http.ServeMux
	documents *services.DocumentService
	ingestion *services.IngestionService
	analysis  *services.AnalysisService
	analyses  *services.AnalysisStore
	tools     *services.ToolsService
	jobs      *JobManager
}

// AnalysisResult is the job payload the frontend renders when an analysis
// completes.
type AnalysisResult struct {
	AnalysisID    int64    `json:"analysisId"`
	TestName      string   `json:"testName"`
	Policy        string   `json:"policy"`
	QuestionCount int      `json:"questionCount"`
	TotalGraded   int      `json:"totalGraded"`
	ScorePercent  float64  `json:"scorePercent"`
	Wrong         []string `json:"wrong"`
	Unanswered    []string `json:"unanswered"`
	ReviewSet     []string `json:"reviewSet"`
	TopicAnalysis string   `json:"topicAnalysis"`
	Guide         string   `json:"guide"`
	Degraded      bool     `json:"degraded"`
	DegradeReason string   `json:"degradeReason,omitempty"`
	DurationSecs  int      `json:"durationSecs"`
}

func NewServer(
	documents *services.DocumentService,
	ingestion *services.IngestionService,
	analysis *services.AnalysisService,
	analyses *services.AnalysisStore,
	tools *services.ToolsService,
) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		documents: documents,
		ingestion: ingestion,
		analysis:  analysis,
		analyses:  analyses,
		tools:     tools,
		jobs:      NewJobManager(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/materials", s.handleMaterials)
	s.mux.HandleFunc("/api/analyses", s.handleListAnalyses)
	s.mux.HandleFunc("/api/analyses/jobs", s.handleCreateAnalysisJob)
	s.mux.HandleFunc("/api/analyses/jobs/", s.handleJobStatus)
	s.mux.HandleFunc("/api/analyses/", s.handleGetAnalysis)
	s.mux.HandleFunc("/api/tools/ask", s.handleAsk)
	s.mux.HandleFunc("/api/tools/quiz", s.toolHandler(s.tools.Quiz))
	s.mux.HandleFunc("/api/tools/guide", s.toolHandler(s.tools.StudyGuide))
	s.mux.HandleFunc("/api/tools/map", s.toolHandler(s.tools.ConceptMap))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListMaterials(w, r)
	case http.MethodPost:
		s.handleUploadMaterials(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context(), models.DocumentMaterial)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, map[string]any{
			"id":          doc.ID,
			"name":        doc.OriginalName,
			"units":       doc.PageCount,
			"uploaded_at": doc.UploadedAt.Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"materials": out})
}

type materialResult struct {
	DocumentID int64  `json:"documentId"`
	Name       string `json:"name"`
	Units      int    `json:"units"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

func (s *Server) handleUploadMaterials(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if form := r.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	results := make([]materialResult, 0, len(files))
	for _, file := range files {
		results = append(results, s.ingestMaterial(r.Context(), file))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) ingestMaterial(ctx context.Context, file *multipart.FileHeader) materialResult {
	result := materialResult{Name: file.Filename, Status: "error"}

	src, err := file.Open()
	if err != nil {
		result.Message = err.Error()
		return result
	}
	defer src.Close()

	doc, err := s.documents.Create(ctx, file.Filename, models.DocumentMaterial, src)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.DocumentID = doc.ID

	units, err := s.ingestion.IndexDocument(ctx, doc, nil)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	if err := s.documents.UpdatePageCount(ctx, doc.ID, units); err != nil {
		result.Message = err.Error()
		return result
	}

	result.Units = units
	result.Status = "ok"
	return result
}

func (s *Server) handleCreateAnalysisJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	form := r.MultipartForm
	if form == nil || len(form.File["file"]) == 0 {
		writeError(w, http.StatusBadRequest, "no test file uploaded")
		return
	}
	file := form.File["file"][0]

	opts := services.AnalysisOptions{
		FastMode: r.FormValue("fast") == "true",
	}
	if flagged := strings.TrimSpace(r.FormValue("flagged")); flagged != "" {
		for _, num := range strings.Split(flagged, ",") {
			if num = strings.TrimSpace(num); num != "" {
				opts.Flagged = append(opts.Flagged, num)
			}
		}
	}

	src, err := file.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := s.documents.Create(r.Context(), file.Filename, models.DocumentTest, src)
	src.Close()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	jobID, snapshot := s.jobs.CreateJob(file.Filename)
	go s.runAnalysisJob(context.Background(), jobID, doc, opts)

	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) runAnalysisJob(ctx context.Context, jobID string, doc *models.Document, opts services.AnalysisOptions) {
	s.jobs.MarkProcessing(jobID)
	if units, err := extract.UnitCount(doc.StoredPath); err == nil {
		s.jobs.SetEstimate(jobID, services.EstimateSeconds(doc.StoredPath, units))
	}

	progress := func(step, message string, current, total int) {
		s.jobs.UpdateProgress(jobID, step, message, current, total)
	}

	result, err := s.analysis.AnalyzeTest(ctx, doc.StoredPath, doc.OriginalName, opts, progress)
	if err != nil {
		s.jobs.MarkFailed(jobID, err.Error())
		return
	}
	s.jobs.MarkCompleted(jobID, toAnalysisResult(result))
}

func toAnalysisResult(result *services.AnalysisResult) AnalysisResult {
	return AnalysisResult{
		AnalysisID:    result.SavedID,
		TestName:      result.TestName,
		Policy:        string(result.Diff.Policy),
		QuestionCount: result.QuestionCount,
		TotalGraded:   result.Diff.TotalGraded,
		ScorePercent:  result.Diff.ScorePercent,
		Wrong:         result.Diff.Wrong,
		Unanswered:    result.Diff.Unanswered,
		ReviewSet:     result.Diff.ReviewSet,
		TopicAnalysis: result.TopicAnalysis,
		Guide:         result.Guide.Text,
		Degraded:      result.Extraction.Degraded,
		DegradeReason: result.Extraction.Reason,
		DurationSecs:  result.DurationSecs,
	}
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/analyses/jobs/")
	jobID = strings.Trim(jobID, "/")
	if jobID == "" {
		http.NotFound(w, r)
		return
	}

	job, ok := s.jobs.GetJob(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	analyses, err := s.analyses.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, map[string]any{
			"id":             a.ID,
			"test_name":      a.TestName,
			"policy":         string(a.Policy),
			"score_percent":  a.ScorePercent,
			"total_graded":   a.TotalGraded,
			"question_count": a.QuestionCount,
			"duration_secs":  a.DurationSecs,
			"created_at":     a.CreatedAt.Format(timeLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": out})
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/analyses/")
	path = strings.Trim(path, "/")
	if path == "" || strings.Contains(path, "/") {
		http.NotFound(w, r)
		return
	}

	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid analysis id")
		return
	}

	analysis, err := s.analyses.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrAnalysisNotFound) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":             analysis.ID,
		"test_name":      analysis.TestName,
		"policy":         string(analysis.Policy),
		"score_percent":  analysis.ScorePercent,
		"total_graded":   analysis.TotalGraded,
		"question_count": analysis.QuestionCount,
		"topic_analysis": analysis.TopicAnalysis,
		"guide":          analysis.Guide,
		"duration_secs":  analysis.DurationSecs,
		"estimate_secs":  analysis.EstimateSecs,
		"created_at":     analysis.CreatedAt.Format(timeLayout),
	})
}

type toolRequest struct {
	Question string `json:"question"`
	Topic    string `json:"topic"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload toolRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	question := strings.TrimSpace(payload.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := s.tools.Ask(r.Context(), question)
	if err != nil {
		writeToolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toolResponse(result))
}

func (s *Server) toolHandler(fn func(context.Context, string) (services.ToolResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}

		var payload toolRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		topic := strings.TrimSpace(payload.Topic)
		if topic == "" {
			writeError(w, http.StatusBadRequest, "topic is required")
			return
		}

		result, err := fn(r.Context(), topic)
		if err != nil {
			writeToolError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toolResponse(result))
	}
}

func writeToolError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrAIUnavailable) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func toolResponse(result services.ToolResult) map[string]any {
	sources := make([]map[string]any, 0, len(result.Sources))
	for _, unit := range result.Sources {
		name := unit.DisplayName
		if name == "" {
			name = unit.SourceDocument
		}
		sources = append(sources, map[string]any{
			"document": name,
			"position": unit.Position,
		})
	}
	return map[string]any{
		"text":    result.Text,
		"sources": sources,
	}
}

const timeLayout = time.RFC3339

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
