package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStage tracks where a render job is in its lifecycle. Stages are
// logged, not persisted — a job lives only for the duration of one run.
type JobStage string

const (
	StageCreated          JobStage = "created"
	StageWorkspaceReady   JobStage = "workspace_ready"
	StageProcessingScenes JobStage = "processing_scenes"
	StageStitching        JobStage = "stitching"
	StageUploading        JobStage = "uploading"
	StageNotifying        JobStage = "notifying"
	StageDone             JobStage = "done"
	StageFailed           JobStage = "failed"
)

// Scene is one storyboard entry: a previously generated still image plus
// the narration text for that image. Scene order is narration order and is
// preserved through every stage of the pipeline.
type Scene struct {
	ImageURL string `json:"imageUrl"`
	Script   string `json:"script"`
}

// RenderJob is one end-to-end request to turn a storyboard into a narrated
// video. ProjectID is an opaque, per-request identifier that namespaces both
// the local workspace and the storage paths, so concurrent jobs never collide.
type RenderJob struct {
	ID        uuid.UUID `json:"id"`
	ProjectID string    `json:"project_id"`
	Email     string    `json:"email"`
	Scenes    []Scene   `json:"scenes"`
	CreatedAt time.Time `json:"created_at"`
}

// ---------------------------------------------------------------------------
// API DTOs
// ---------------------------------------------------------------------------

// CreateOutlineRequest asks for a storyboard (scene scripts + generated
// stills) from raw content.
type CreateOutlineRequest struct {
	Content   string `json:"content"`
	Type      string `json:"type"`     // e.g. "educational", "explainer"
	Duration  string `json:"duration"` // e.g. "30 seconds"
	ProjectID string `json:"projectId"`
}

// OutlineScene is one storyboard entry returned to the caller: the uploaded
// still's public URL plus its narration script.
type OutlineScene struct {
	ImageURL string `json:"imageUrl"`
	Script   string `json:"script"`
}

// RenderRequest submits a storyboard for rendering. The response is returned
// immediately; the finished video is delivered out-of-band by email.
type RenderRequest struct {
	ProjectID string  `json:"projectId"`
	Email     string  `json:"email"`
	Scenes    []Scene `json:"data"`
}

type RenderResponse struct {
	JobID   uuid.UUID `json:"job_id"`
	Message string    `json:"message"`
}
