package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpegService
// Shells out to ffmpeg/ffprobe for clip assembly and stitching. Each scene
// clip pairs an animated video with its narration: the narration length is
// authoritative, so the video is trimmed or looped to match it.
// ---------------------------------------------------------------------------

// Output / rendering constants — 720p landscape (1280x720) at 24fps
const (
	outputWidth  = 1280
	outputHeight = 720
	videoFPS     = 24
)

type FFmpegService struct{}

func NewFFmpegService() *FFmpegService {
	return &FFmpegService{}
}

// ProbeDuration returns the duration of a media file in seconds, with
// sub-second precision.
func (s *FFmpegService) ProbeDuration(ctx context.Context, mediaPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", mediaPath, err)
	}

	duration, err := parseProbeDuration(string(output))
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration of %s: %w", mediaPath, err)
	}

	return duration, nil
}

// parseProbeDuration parses ffprobe's noprint_wrappers duration output.
func parseProbeDuration(output string) (float64, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return 0, fmt.Errorf("empty ffprobe output")
	}

	duration, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", trimmed, err)
	}

	if duration <= 0 {
		return 0, fmt.Errorf("non-positive duration %f", duration)
	}

	return duration, nil
}

// loopRepeats returns how many total plays of a video are needed to cover the
// audio duration when the video is shorter than the audio.
func loopRepeats(audioSec, videoSec float64) int {
	return int(math.Floor(audioSec/videoSec)) + 1
}

// BuildClip combines a scene's animated video with its narration audio into a
// single clip at outputPath. The video's own audio track is discarded and
// replaced by the narration. Clip length always equals the narration length:
//
//   - video >= audio: the video's leading prefix is trimmed to the audio length
//   - video < audio: the video is looped enough full plays to cover the audio,
//     then trimmed to the audio length
func (s *FFmpegService) BuildClip(ctx context.Context, videoPath, audioPath, outputPath string) error {
	videoDur, err := s.ProbeDuration(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("failed to probe video: %w", err)
	}

	audioDur, err := s.ProbeDuration(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("failed to probe audio: %w", err)
	}

	args := []string{}

	if videoDur >= audioDur {
		log.Printf("[FFmpeg] Clip: trimming video %.2fs -> %.2fs (audio length)", videoDur, audioDur)
		args = append(args, "-i", videoPath)
	} else {
		// -stream_loop counts extra plays beyond the first
		repeats := loopRepeats(audioDur, videoDur)
		log.Printf("[FFmpeg] Clip: looping video %.2fs x%d to cover %.2fs audio", videoDur, repeats, audioDur)
		args = append(args, "-stream_loop", strconv.Itoa(repeats-1), "-i", videoPath)
	}

	args = append(args,
		"-i", audioPath,
		"-map", "0:v", // Animated video stream
		"-map", "1:a", // Narration only — discard any audio baked into the video
		"-t", fmt.Sprintf("%.3f", audioDur),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-y",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg build clip failed: %w", err)
	}

	return nil
}

// buildStitchFilter constructs the -filter_complex chain that normalizes n
// clips to a common canvas and concatenates them. Each input is scaled to fit
// 1280x720 (padded, square pixels, 24fps) and its audio resampled, so concat
// never sees mismatched streams.
func buildStitchFilter(n int) string {
	var b strings.Builder

	for i := 0; i < n; i++ {
		fmt.Fprintf(&b,
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d[v%d];",
			i, outputWidth, outputHeight, outputWidth, outputHeight, videoFPS, i)
		fmt.Fprintf(&b,
			"[%d:a]aformat=sample_rates=44100:channel_layouts=stereo[a%d];",
			i, i)
	}

	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[v%d][a%d]", i, i)
	}
	fmt.Fprintf(&b, "concat=n=%d:v=1:a=1[outv][outa]", n)

	return b.String()
}

// Stitch concatenates the scene clips, in order, into the final video at
// outputPath. Clips are re-encoded through a normalizing filter graph rather
// than stream-copied, so clips with slightly different encoder settings still
// join cleanly.
func (s *FFmpegService) Stitch(ctx context.Context, clipPaths []string, outputPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to stitch")
	}

	log.Printf("[FFmpeg] Stitching %d clips -> %s", len(clipPaths), outputPath)

	args := []string{}
	for _, path := range clipPaths {
		args = append(args, "-i", path)
	}

	args = append(args,
		"-filter_complex", buildStitchFilter(len(clipPaths)),
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:a", "192k",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(videoFPS),
		"-y",
		outputPath,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg stitch failed: %w", err)
	}

	return nil
}
