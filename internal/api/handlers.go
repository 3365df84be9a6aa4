package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edutoons/backend/internal/models"
	"github.com/edutoons/backend/internal/queue"
	"github.com/edutoons/backend/internal/services"
	"github.com/edutoons/backend/internal/storage"
)

// imageGenConcurrency bounds parallel still generation for one outline.
const imageGenConcurrency = 4

type Handler struct {
	queue   *queue.Queue
	storage *storage.Client
	openai  *services.OpenAIService
	gemini  *services.GeminiService
}

func NewHandler(q *queue.Queue, stor *storage.Client, openaiSvc *services.OpenAIService, geminiSvc *services.GeminiService) *Handler {
	return &Handler{
		queue:   q,
		storage: stor,
		openai:  openaiSvc,
		gemini:  geminiSvc,
	}
}

// CreateOutline handles POST /v1/outlines
//
// Generates a storyboard from raw content, renders a still for every scene,
// uploads the stills, and returns the ordered scene list. This is the
// synchronous half of the product: the caller reviews the storyboard before
// submitting it for rendering.
func (h *Handler) CreateOutline(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOutlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "Content is required")
		return
	}
	if req.ProjectID == "" {
		respondError(w, http.StatusBadRequest, "projectId is required")
		return
	}

	videoType := req.Type
	if videoType == "" {
		videoType = "educational"
	}
	duration := req.Duration
	if duration == "" {
		duration = "30 seconds"
	}

	storyboard, err := h.openai.GenerateStoryboard(r.Context(), req.Content, videoType, duration)
	if err != nil {
		respondError(w, http.StatusBadGateway, "Failed to generate storyboard")
		return
	}

	// Stills are generated in parallel and collected by index so the
	// returned order always matches storyboard order.
	outline := make([]models.OutlineScene, len(storyboard))

	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(imageGenConcurrency)

	for i, scene := range storyboard {
		i, scene := i, scene
		g.Go(func() error {
			imageData, err := h.gemini.GenerateImage(gctx, scene.Prompt)
			if err != nil {
				return fmt.Errorf("scene %d image generation failed: %w", i, err)
			}

			imagePath := storage.ImagePath(req.ProjectID, "png")
			if err := h.storage.Upload(gctx, imagePath, imageData, "image/png"); err != nil {
				return fmt.Errorf("scene %d image upload failed: %w", i, err)
			}

			outline[i] = models.OutlineScene{
				ImageURL: h.storage.GetPublicURL(imagePath),
				Script:   scene.Script,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		respondError(w, http.StatusBadGateway, "Failed to generate storyboard images")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"projectId": req.ProjectID,
		"scenes":    outline,
	})
}

// CreateRender handles POST /v1/renders
//
// Validates the storyboard and enqueues one render job. Returns immediately;
// the finished video is delivered by email.
func (h *Handler) CreateRender(w http.ResponseWriter, r *http.Request) {
	var req models.RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ProjectID == "" {
		respondError(w, http.StatusBadRequest, "projectId is required")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if len(req.Scenes) == 0 {
		respondError(w, http.StatusBadRequest, "At least one scene is required")
		return
	}

	for i, scene := range req.Scenes {
		if scene.ImageURL == "" {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Scene %d is missing imageUrl", i))
			return
		}
		if scene.Script == "" {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("Scene %d is missing script", i))
			return
		}
	}

	jobID := uuid.New()
	if err := h.queue.EnqueueRender(r.Context(), jobID, req.ProjectID, req.Email, req.Scenes); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue render job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.RenderResponse{
		JobID:   jobID,
		Message: "Render queued. You will receive an email when your video is ready.",
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
