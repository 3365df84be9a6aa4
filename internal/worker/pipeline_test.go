package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/edutoons/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Fakes for the pipeline's collaborators
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu          sync.Mutex
	uploads     []string // storage paths passed to UploadFile
	uploadErr   error
	signedURL   string
	signErr     error
	signedPaths []string
}

func (f *fakeStore) UploadFile(ctx context.Context, storagePath, localPath, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, storagePath)
	return nil
}

func (f *fakeStore) DownloadURL(ctx context.Context, url string) ([]byte, error) {
	return []byte("fake-video-bytes"), nil
}

func (f *fakeStore) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return "", f.signErr
	}
	f.signedPaths = append(f.signedPaths, path)
	return f.signedURL, nil
}

type fakeAssembler struct {
	mu          sync.Mutex
	clips       []string // output paths passed to BuildClip
	stitchedIn  []string // clip paths passed to Stitch, in order
	stitchedOut string
	buildErr    error
	stitchErr   error
}

func (f *fakeAssembler) BuildClip(ctx context.Context, videoPath, audioPath, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buildErr != nil {
		return f.buildErr
	}
	f.clips = append(f.clips, outputPath)
	return nil
}

func (f *fakeAssembler) Stitch(ctx context.Context, clipPaths []string, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stitchErr != nil {
		return f.stitchErr
	}
	f.stitchedIn = append([]string{}, clipPaths...)
	f.stitchedOut = outputPath
	return os.WriteFile(outputPath, []byte("stitched"), 0644)
}

type fakeAnimator struct {
	mu      sync.Mutex
	calls   []string
	failOn  string // imageURL that should fail
	animErr error
}

func (f *fakeAnimator) AnimateImage(ctx context.Context, imageURL, projectID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && imageURL == f.failOn {
		return "", f.animErr
	}
	f.calls = append(f.calls, imageURL)
	return "https://videos.example.com/" + filepath.Base(imageURL), nil
}

type fakeTTS struct {
	mu      sync.Mutex
	scripts []string
}

func (f *fakeTTS) SynthesizeSpeech(ctx context.Context, script, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script)
	return os.WriteFile(outputPath, []byte("fake-audio"), 0644)
}

type fakeNotifier struct {
	mu        sync.Mutex
	videoURL  string
	projectID string
	email     string
	called    bool
}

func (f *fakeNotifier) VideoReady(ctx context.Context, videoURL, projectID, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = true
	f.videoURL = videoURL
	f.projectID = projectID
	f.email = email
}

func testJob(scenes int) *models.RenderJob {
	job := &models.RenderJob{
		ID:        uuid.New(),
		ProjectID: "proj-123",
		Email:     "viewer@example.com",
	}
	for i := 0; i < scenes; i++ {
		job.Scenes = append(job.Scenes, models.Scene{
			ImageURL: fmt.Sprintf("https://cdn.example.com/proj-123/images/scene%d.png", i),
			Script:   fmt.Sprintf("Narration for scene %d", i),
		})
	}
	return job
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRunHappyPath(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{signedURL: "https://signed.example.com/final"}
	assembler := &fakeAssembler{}
	animator := &fakeAnimator{}
	tts := &fakeTTS{}
	notifier := &fakeNotifier{}

	p := NewPipeline(store, assembler, animator, tts, notifier, root, 3, time.Hour)
	job := testJob(3)

	signedURL, err := p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if signedURL != "https://signed.example.com/final" {
		t.Errorf("expected signed URL from store, got %s", signedURL)
	}

	// Final video uploaded to the project's fixed storage path
	if len(store.uploads) != 1 || store.uploads[0] != "proj-123/final_video.mp4" {
		t.Errorf("unexpected uploads: %v", store.uploads)
	}

	// All scenes narrated
	if len(tts.scripts) != 3 {
		t.Errorf("expected 3 narrations, got %d", len(tts.scripts))
	}

	// Notifier got the signed URL
	if !notifier.called {
		t.Fatal("notifier was not called")
	}
	if notifier.videoURL != signedURL || notifier.email != "viewer@example.com" {
		t.Errorf("notifier got videoURL=%s email=%s", notifier.videoURL, notifier.email)
	}

	// Workspace removed after success
	if _, err := os.Stat(filepath.Join(root, job.ProjectID)); !os.IsNotExist(err) {
		t.Errorf("workspace was not removed")
	}
}

func TestRunStitchOrderMatchesSceneOrder(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{signedURL: "https://signed.example.com/final"}
	assembler := &fakeAssembler{}
	animator := &fakeAnimator{}

	// High concurrency so scenes can finish out of order
	p := NewPipeline(store, assembler, animator, &fakeTTS{}, &fakeNotifier{}, root, 8, time.Hour)
	job := testJob(5)

	if _, err := p.Run(context.Background(), job); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(assembler.stitchedIn) != 5 {
		t.Fatalf("expected 5 clips stitched, got %d", len(assembler.stitchedIn))
	}

	for i, clipPath := range assembler.stitchedIn {
		want := fmt.Sprintf("scene%d_clip.mp4", i)
		if filepath.Base(clipPath) != want {
			t.Errorf("clip %d: expected %s, got %s", i, want, filepath.Base(clipPath))
		}
	}
}

func TestRunSceneFailure(t *testing.T) {
	root := t.TempDir()
	animator := &fakeAnimator{
		failOn:  "https://cdn.example.com/proj-123/images/scene1.png",
		animErr: errors.New("provider unavailable"),
	}
	store := &fakeStore{signedURL: "unused"}
	notifier := &fakeNotifier{}

	p := NewPipeline(store, &fakeAssembler{}, animator, &fakeTTS{}, notifier, root, 1, time.Hour)
	job := testJob(3)

	_, err := p.Run(context.Background(), job)
	if err == nil {
		t.Fatal("expected error when a scene fails")
	}
	if !strings.Contains(err.Error(), "scene 1") {
		t.Errorf("error should identify the failing scene: %v", err)
	}

	if notifier.called {
		t.Error("notifier must not be called on failure")
	}

	if _, err := os.Stat(filepath.Join(root, job.ProjectID)); !os.IsNotExist(err) {
		t.Errorf("workspace was not removed after failure")
	}
}

func TestRunUploadFailure(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{uploadErr: errors.New("storage unavailable")}
	notifier := &fakeNotifier{}

	p := NewPipeline(store, &fakeAssembler{}, &fakeAnimator{}, &fakeTTS{}, notifier, root, 1, time.Hour)
	job := testJob(2)

	_, err := p.Run(context.Background(), job)
	if err == nil {
		t.Fatal("expected error when upload fails")
	}

	if len(store.signedPaths) != 0 {
		t.Error("no signed URL should be requested after a failed upload")
	}
	if notifier.called {
		t.Error("notifier must not be called when upload fails")
	}

	if _, err := os.Stat(filepath.Join(root, job.ProjectID)); !os.IsNotExist(err) {
		t.Errorf("workspace was not removed after upload failure")
	}
}

func TestRunCancelled(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(&fakeStore{}, &fakeAssembler{}, &fakeAnimator{}, &fakeTTS{}, &fakeNotifier{}, root, 1, time.Hour)
	job := testJob(2)

	_, err := p.Run(ctx, job)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}

	if _, err := os.Stat(filepath.Join(root, job.ProjectID)); !os.IsNotExist(err) {
		t.Errorf("workspace was not removed after cancellation")
	}
}

func TestRunNoScenes(t *testing.T) {
	p := NewPipeline(&fakeStore{}, &fakeAssembler{}, &fakeAnimator{}, &fakeTTS{}, &fakeNotifier{}, t.TempDir(), 1, time.Hour)

	_, err := p.Run(context.Background(), testJob(0))
	if err == nil {
		t.Fatal("expected error for job with no scenes")
	}
}

func TestSceneBaseName(t *testing.T) {
	tests := []struct {
		url   string
		index int
		want  string
	}{
		{"https://cdn.example.com/proj/images/abc123.png", 0, "abc123"},
		{"https://cdn.example.com/proj/images/clip.final.mp4", 1, "clip.final"},
		{"https://cdn.example.com/signed/img.png?token=xyz", 2, "img"},
		{"https://cdn.example.com/", 3, "scene_3"},
		{"", 4, "scene_4"},
	}

	for _, tt := range tests {
		got := sceneBaseName(tt.url, tt.index)
		if got != tt.want {
			t.Errorf("sceneBaseName(%q, %d) = %q, want %q", tt.url, tt.index, got, tt.want)
		}
	}
}
