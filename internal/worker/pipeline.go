package worker

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edutoons/backend/internal/models"
	"github.com/edutoons/backend/internal/services"
	"github.com/edutoons/backend/internal/storage"
)

// ---------------------------------------------------------------------------
// Pipeline
// Orchestrates one render job end to end: workspace setup, per-scene
// animation + narration, clip assembly, stitching, upload, signed URL,
// notification, and workspace teardown. The pipeline is the only component
// that touches the local filesystem; everything durable lives in object
// storage.
// ---------------------------------------------------------------------------

// ObjectStore is the slice of the storage gateway the pipeline needs.
type ObjectStore interface {
	UploadFile(ctx context.Context, storagePath, localPath, contentType string) error
	DownloadURL(ctx context.Context, url string) ([]byte, error)
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// MediaAssembler builds per-scene clips and stitches them into the final cut.
type MediaAssembler interface {
	BuildClip(ctx context.Context, videoPath, audioPath, outputPath string) error
	Stitch(ctx context.Context, clipPaths []string, outputPath string) error
}

// Notifier tells the user their video is ready. Implementations must not
// fail the render: delivery problems are theirs to log and absorb.
type Notifier interface {
	VideoReady(ctx context.Context, videoURL, projectID, email string)
}

type Pipeline struct {
	store            ObjectStore
	assembler        MediaAssembler
	animator         services.Animator
	tts              services.SpeechSynthesizer
	notifier         Notifier
	workspaceRoot    string
	sceneConcurrency int
	signedURLTTL     time.Duration
}

func NewPipeline(
	store ObjectStore,
	assembler MediaAssembler,
	animator services.Animator,
	tts services.SpeechSynthesizer,
	notifier Notifier,
	workspaceRoot string,
	sceneConcurrency int,
	signedURLTTL time.Duration,
) *Pipeline {
	if sceneConcurrency < 1 {
		sceneConcurrency = 1
	}
	if signedURLTTL <= 0 {
		signedURLTTL = storage.DefaultSignedURLTTL
	}
	return &Pipeline{
		store:            store,
		assembler:        assembler,
		animator:         animator,
		tts:              tts,
		notifier:         notifier,
		workspaceRoot:    workspaceRoot,
		sceneConcurrency: sceneConcurrency,
		signedURLTTL:     signedURLTTL,
	}
}

// Run executes one render job and returns the signed URL of the final video.
// The job's workspace is removed before Run returns, on success, failure,
// and cancellation alike.
func (p *Pipeline) Run(ctx context.Context, job *models.RenderJob) (string, error) {
	if len(job.Scenes) == 0 {
		return "", fmt.Errorf("job %s has no scenes", job.ID)
	}

	log.Printf("[Pipeline] Job %s: stage=%s project=%s scenes=%d", job.ID, models.StageCreated, job.ProjectID, len(job.Scenes))

	workspace := filepath.Join(p.workspaceRoot, job.ProjectID)
	videosDir := filepath.Join(workspace, "videos")
	audioDir := filepath.Join(workspace, "audio")

	for _, dir := range []string{videosDir, audioDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create workspace %s: %w", dir, err)
		}
	}

	// Teardown on every exit path. A failed removal is logged but never
	// masks the pipeline's own result.
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			log.Printf("[Pipeline] Job %s: workspace cleanup failed for %s: %v", job.ID, workspace, err)
		} else {
			log.Printf("[Pipeline] Job %s: workspace %s removed", job.ID, workspace)
		}
	}()

	log.Printf("[Pipeline] Job %s: stage=%s workspace=%s", job.ID, models.StageWorkspaceReady, workspace)

	// ── Per-scene processing ───────────────────────────────────────────
	// Scenes fan out across a bounded errgroup; clip paths land in a slice
	// indexed by scene position so stitch order always matches storyboard
	// order regardless of completion order.
	log.Printf("[Pipeline] Job %s: stage=%s concurrency=%d", job.ID, models.StageProcessingScenes, p.sceneConcurrency)

	clipPaths := make([]string, len(job.Scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.sceneConcurrency)

	for i, scene := range job.Scenes {
		i, scene := i, scene
		g.Go(func() error {
			clipPath, err := p.processScene(gctx, job, i, scene, videosDir, audioDir)
			if err != nil {
				return fmt.Errorf("scene %d failed: %w", i, err)
			}
			clipPaths[i] = clipPath
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("[Pipeline] Job %s: stage=%s: %v", job.ID, models.StageFailed, err)
		return "", err
	}

	// ── Stitch ─────────────────────────────────────────────────────────
	log.Printf("[Pipeline] Job %s: stage=%s clips=%d", job.ID, models.StageStitching, len(clipPaths))

	finalPath := filepath.Join(workspace, "final_video.mp4")
	if err := p.assembler.Stitch(ctx, clipPaths, finalPath); err != nil {
		log.Printf("[Pipeline] Job %s: stage=%s: stitch failed", job.ID, models.StageFailed)
		return "", fmt.Errorf("failed to stitch clips: %w", err)
	}

	// ── Upload + signed URL ────────────────────────────────────────────
	log.Printf("[Pipeline] Job %s: stage=%s", job.ID, models.StageUploading)

	storagePath := storage.FinalVideoPath(job.ProjectID)
	if err := p.store.UploadFile(ctx, storagePath, finalPath, "video/mp4"); err != nil {
		log.Printf("[Pipeline] Job %s: stage=%s: upload failed", job.ID, models.StageFailed)
		return "", fmt.Errorf("failed to upload final video: %w", err)
	}

	signedURL, err := p.store.SignedURL(ctx, storagePath, p.signedURLTTL)
	if err != nil {
		log.Printf("[Pipeline] Job %s: stage=%s: signing failed", job.ID, models.StageFailed)
		return "", fmt.Errorf("failed to sign final video: %w", err)
	}

	// ── Notify ─────────────────────────────────────────────────────────
	// Best effort: the video exists and is stored, so a notification
	// failure never fails the job.
	log.Printf("[Pipeline] Job %s: stage=%s email=%s", job.ID, models.StageNotifying, job.Email)
	p.notifier.VideoReady(ctx, signedURL, job.ProjectID, job.Email)

	log.Printf("[Pipeline] Job %s: stage=%s", job.ID, models.StageDone)
	return signedURL, nil
}

// processScene takes one scene from still image to finished clip:
// animate the still, download the animation, narrate the script, then
// merge the two. Returns the local clip path.
func (p *Pipeline) processScene(ctx context.Context, job *models.RenderJob, index int, scene models.Scene, videosDir, audioDir string) (string, error) {
	if scene.ImageURL == "" {
		return "", fmt.Errorf("missing image URL")
	}
	if scene.Script == "" {
		return "", fmt.Errorf("missing script")
	}

	name := sceneBaseName(scene.ImageURL, index)

	log.Printf("[Pipeline] Job %s: scene %d (%s): animating...", job.ID, index, name)

	videoURL, err := p.animator.AnimateImage(ctx, scene.ImageURL, job.ProjectID)
	if err != nil {
		return "", fmt.Errorf("animation failed: %w", err)
	}

	videoData, err := p.store.DownloadURL(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("failed to download animated video: %w", err)
	}

	videoPath := filepath.Join(videosDir, name+".mp4")
	if err := os.WriteFile(videoPath, videoData, 0644); err != nil {
		return "", fmt.Errorf("failed to write video file: %w", err)
	}

	log.Printf("[Pipeline] Job %s: scene %d (%s): narrating (%d chars)...", job.ID, index, name, len(scene.Script))

	audioPath := filepath.Join(audioDir, name+".mp3")
	if err := p.tts.SynthesizeSpeech(ctx, scene.Script, audioPath); err != nil {
		return "", fmt.Errorf("narration failed: %w", err)
	}

	clipPath := filepath.Join(videosDir, name+"_clip.mp4")
	if err := p.assembler.BuildClip(ctx, videoPath, audioPath, clipPath); err != nil {
		return "", fmt.Errorf("clip assembly failed: %w", err)
	}

	log.Printf("[Pipeline] Job %s: scene %d (%s): clip ready", job.ID, index, name)
	return clipPath, nil
}

// sceneBaseName derives a stable per-scene file basename from the image URL
// (its path basename, extension stripped). Falls back to the scene index
// when the URL has no usable basename.
func sceneBaseName(imageURL string, index int) string {
	parsed, err := url.Parse(imageURL)
	if err == nil {
		base := filepath.Base(parsed.Path)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		if base != "" && base != "." && base != "/" {
			return base
		}
	}
	return fmt.Sprintf("scene_%d", index)
}
