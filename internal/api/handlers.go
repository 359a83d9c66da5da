package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/recloned/adcloner/internal/db"
	"github.com/recloned/adcloner/internal/models"
	"github.com/recloned/adcloner/internal/pipeline"
	"github.com/recloned/adcloner/internal/queue"
	"github.com/recloned/adcloner/internal/storage"
)

const maxUploadBytes = 100 << 20 // 100 MB

// Handler holds the API's dependencies.
type Handler struct {
	db      *db.DB
	queue   *queue.Queue
	storage *storage.Storage
	image   *pipeline.ImageStage
	video   *pipeline.VideoStage
	music   *pipeline.MusicStage
}

func NewHandler(database *db.DB, q *queue.Queue, store *storage.Storage, image *pipeline.ImageStage, video *pipeline.VideoStage, music *pipeline.MusicStage) *Handler {
	return &Handler{
		db:      database,
		queue:   q,
		storage: store,
		image:   image,
		video:   video,
		music:   music,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateProject creates a project row. Callers may supply their own id so
// uploads can be keyed by project before the row exists.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.ProjectName) == "" {
		respondError(w, http.StatusBadRequest, "project_name is required")
		return
	}

	aspect := req.AspectRatio
	if aspect == "" {
		aspect = models.AspectRatio16x9
	}
	if !models.ValidAspectRatio(aspect) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported aspect ratio %q", aspect))
		return
	}

	id := uuid.New()
	if req.ID != nil {
		id = *req.ID
	}

	generateMusic := false
	if req.GenerateMusic != nil {
		generateMusic = *req.GenerateMusic
	}

	inputRequest := ""
	if req.InputRequest != nil {
		inputRequest = *req.InputRequest
	}

	project := &models.Project{
		ID:                 id,
		ProjectName:        req.ProjectName,
		InputVideoURL:      req.InputVideoURL,
		InputRequest:       inputRequest,
		SourceBrand:        req.SourceBrand,
		TargetBrand:        req.TargetBrand,
		ProductDescription: req.ProductDescription,
		CreativeDirection:  req.CreativeDirection,
		AspectRatio:        aspect,
		GenerateMusic:      generateMusic,
		Status:             models.ProjectStatusPending,
	}

	if err := h.db.CreateProject(r.Context(), project); err != nil {
		log.Printf("[API] Failed to create project: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateProjectResponse{
		ProjectID: project.ID,
		Status:    project.Status,
	})
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.db.ListProjects(r.Context())
	if err != nil {
		log.Printf("[API] Failed to list projects: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	respondJSON(w, http.StatusOK, projects)
}

// GetProject returns the project with its scenes in scene order.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "projectID")
	if !ok {
		return
	}

	project, err := h.db.GetProject(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "project not found")
		return
	}

	scenes, err := h.db.GetProjectScenes(r.Context(), id)
	if err != nil {
		log.Printf("[API] Failed to load scenes for %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load scenes")
		return
	}

	respondJSON(w, http.StatusOK, models.ProjectResponse{Project: *project, Scenes: scenes})
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "projectID")
	if !ok {
		return
	}

	if err := h.db.DeleteProject(r.Context(), id); err != nil {
		respondError(w, http.StatusNotFound, "project not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadAsset stores a source video (kind=video) or a reference image
// (kind=reference&slot=1|2) for a project and patches the matching URL
// column. Uploading before the project row exists is allowed; the URL is
// returned either way so the client can include it at creation time.
func (h *Handler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "projectID")
	if !ok {
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind != "video" && kind != "reference" {
		respondError(w, http.StatusBadRequest, "kind must be video or reference")
		return
	}

	slot := 1
	if kind == "reference" {
		if s := r.URL.Query().Get("slot"); s != "" {
			parsed, err := strconv.Atoi(s)
			if err != nil || (parsed != 1 && parsed != 2) {
				respondError(w, http.StatusBadRequest, "slot must be 1 or 2")
				return
			}
			slot = parsed
		}
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	storageKind := storage.KindImage
	objectName := fmt.Sprintf("reference_%d_%s", slot, header.Filename)
	if kind == "video" {
		storageKind = storage.KindVideo
		objectName = "source_" + header.Filename
	}

	objectPath := storage.ObjectPath(id, objectName)
	if err := h.storage.Upload(r.Context(), storageKind, objectPath, data, contentType); err != nil {
		log.Printf("[API] Upload failed for project %s: %v", id, err)
		respondError(w, http.StatusBadGateway, "upload failed")
		return
	}

	url := h.storage.PublicURL(storageKind, objectPath)

	// Best effort: the project row may not exist yet
	if kind == "video" {
		err = h.db.SetProjectInputVideo(r.Context(), id, url)
	} else {
		err = h.db.SetProjectReferenceImage(r.Context(), id, slot, url)
	}
	if err != nil {
		log.Printf("[API] Failed to patch project %s after upload: %v", id, err)
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// ProcessProject queues a full pipeline run. The project must be in a state
// from which analysis may start (pending, or error for a restart).
func (h *Handler) ProcessProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "projectID")
	if !ok {
		return
	}

	project, err := h.db.GetProject(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "project not found")
		return
	}

	if !models.CanTransition(project.Status, models.ProjectStatusAnalyzing) {
		respondError(w, http.StatusConflict, fmt.Sprintf("project is %s and cannot be processed", project.Status))
		return
	}

	if err := h.queue.EnqueuePipelineRun(r.Context(), id); err != nil {
		log.Printf("[API] Failed to enqueue run for %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to queue pipeline run")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// PollImageTask reconciles an async image task on behalf of a client.
func (h *Handler) PollImageTask(w http.ResponseWriter, r *http.Request) {
	taskID, sceneID, ok := parseTaskQuery(w, r, "sceneId")
	if !ok {
		return
	}

	resp, err := h.image.Poll(r.Context(), taskID, sceneID)
	if err != nil {
		log.Printf("[API] Image task poll failed: %v", err)
		respondError(w, http.StatusBadGateway, "task lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// PollVideoTask reconciles an async video task on behalf of a client.
func (h *Handler) PollVideoTask(w http.ResponseWriter, r *http.Request) {
	taskID, sceneID, ok := parseTaskQuery(w, r, "sceneId")
	if !ok {
		return
	}

	resp, err := h.video.Poll(r.Context(), taskID, sceneID)
	if err != nil {
		log.Printf("[API] Video task poll failed: %v", err)
		respondError(w, http.StatusBadGateway, "task lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// PollMusicTask reconciles an async music task on behalf of a client.
func (h *Handler) PollMusicTask(w http.ResponseWriter, r *http.Request) {
	taskID, projectID, ok := parseTaskQuery(w, r, "projectId")
	if !ok {
		return
	}

	resp, err := h.music.Poll(r.Context(), taskID, projectID)
	if err != nil {
		log.Printf("[API] Music task poll failed: %v", err)
		respondError(w, http.StatusBadGateway, "task lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project id")
		return uuid.Nil, false
	}
	return id, true
}

func parseTaskQuery(w http.ResponseWriter, r *http.Request, ownerParam string) (string, uuid.UUID, bool) {
	taskID := r.URL.Query().Get("taskId")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "taskId is required")
		return "", uuid.Nil, false
	}

	ownerID, err := uuid.Parse(r.URL.Query().Get(ownerParam))
	if err != nil {
		respondError(w, http.StatusBadRequest, ownerParam+" is required")
		return "", uuid.Nil, false
	}

	return taskID, ownerID, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
