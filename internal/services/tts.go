package services

import "context"

// ---------------------------------------------------------------------------
// SpeechSynthesizer — interface for text-to-speech providers
// The pipeline depends on this seam so tests can substitute a fake and a
// different provider can be dropped in without touching the worker.
// ---------------------------------------------------------------------------

// SpeechSynthesizer converts narration text into an audio file on disk.
// Voice identity and delivery parameters are fixed provider configuration,
// not caller choices.
type SpeechSynthesizer interface {
	// SynthesizeSpeech renders the script as speech and writes the audio
	// stream to outputPath. Any remote or I/O failure is returned — there is
	// no sensible in-component recovery.
	SynthesizeSpeech(ctx context.Context, script, outputPath string) error
}
