// ABOUTME: Video transcription pipeline: download, convert, segment, transcribe
// ABOUTME: Shells out to yt-dlp and ffmpeg; audio chunks go to Whisper in parallel
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkBytes is the target audio chunk size sent to Whisper, below
// the API's 25MB upload cap.
const DefaultChunkBytes = 20 * 1000 * 1000

// VideoInfo is the subset of yt-dlp's metadata JSON the pipeline uses.
type VideoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// Transcription is the /transcribe response body.
type Transcription struct {
	Transcription string `json:"transcription"`
	Summary       string `json:"summary"`
}

// Transcriber converts one audio chunk to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Summarizer condenses a full transcript into one summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// StepError reports a failed pipeline step with its subject.
type StepError struct {
	Step    string
	Subject string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Step, e.Subject, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// runner executes an external command and returns its stdout. Swappable in
// tests.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// Config configures a Pipeline.
type Config struct {
	YtdlpPath   string
	FfmpegPath  string
	TmpDir      string
	ChunkBytes  int64
	Concurrency int
}

// Pipeline downloads a video's audio, transcribes it in chunks, and
// summarizes the transcript.
type Pipeline struct {
	transcriber Transcriber
	summarizer  Summarizer
	run         runner

	ytdlp       string
	ffmpeg      string
	tmpDir      string
	chunkBytes  int64
	concurrency int
}

// NewPipeline creates a Pipeline.
func NewPipeline(transcriber Transcriber, summarizer Summarizer, cfg Config) *Pipeline {
	p := &Pipeline{
		transcriber: transcriber,
		summarizer:  summarizer,
		run:         execRunner,
		ytdlp:       cfg.YtdlpPath,
		ffmpeg:      cfg.FfmpegPath,
		tmpDir:      cfg.TmpDir,
		chunkBytes:  cfg.ChunkBytes,
		concurrency: cfg.Concurrency,
	}
	if p.ytdlp == "" {
		p.ytdlp = "yt-dlp"
	}
	if p.ffmpeg == "" {
		p.ffmpeg = "ffmpeg"
	}
	if p.tmpDir == "" {
		p.tmpDir = filepath.Join(os.TempDir(), "bible-tools", "audio")
	}
	if p.chunkBytes <= 0 {
		p.chunkBytes = DefaultChunkBytes
	}
	if p.concurrency <= 0 {
		p.concurrency = 10
	}
	return p
}

// videoID extracts the video identifier from a watch URL, falling back to
// the last path segment for short-link forms.
func videoID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "video"
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	if base := filepath.Base(u.Path); base != "" && base != "." && base != "/" {
		return base
	}
	return "video"
}

// chunkPlan computes how many segments to cut and how long each should be,
// from the audio byte size and the video duration in seconds.
func chunkPlan(byteSize int64, duration float64, chunkBytes int64) (numChunks int, segmentSeconds int) {
	numChunks = int(math.Ceil(float64(byteSize) / float64(chunkBytes)))
	if numChunks < 1 {
		numChunks = 1
	}
	segmentSeconds = int(math.Ceil(duration / float64(numChunks)))
	if segmentSeconds < 1 {
		segmentSeconds = 1
	}
	return numChunks, segmentSeconds
}

// sortChunkFiles orders segment filenames by their numeric prefix.
func sortChunkFiles(names []string) []string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Slice(sorted, func(i, j int) bool {
		return chunkIndex(sorted[i]) < chunkIndex(sorted[j])
	})
	return sorted
}

func chunkIndex(name string) int {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	n, err := strconv.Atoi(base)
	if err != nil {
		return math.MaxInt
	}
	return n
}

// SummaryTranscription downloads the audio of the video at rawURL,
// transcribes it chunk by chunk, and summarizes the joined transcript.
// All temp files are scoped to this request and best-effort removed.
func (p *Pipeline) SummaryTranscription(ctx context.Context, rawURL string) (Transcription, error) {
	scope := fmt.Sprintf("%s-%s", videoID(rawURL), uuid.New().String())
	chunkDir := filepath.Join(p.tmpDir, scope)
	audioFile := filepath.Join(p.tmpDir, scope+".m4a")
	mp3File := filepath.Join(p.tmpDir, scope+".mp3")
	infoFile := filepath.Join(p.tmpDir, scope+".json")

	if err := os.MkdirAll(p.tmpDir, 0o755); err != nil {
		return Transcription{}, &StepError{Step: "prepare tmp dir", Subject: p.tmpDir, Err: err}
	}
	defer p.cleanup(chunkDir, audioFile, mp3File, infoFile)

	info, rawInfo, err := p.fetchInfo(ctx, rawURL)
	if err != nil {
		return Transcription{}, err
	}
	if err := os.WriteFile(infoFile, rawInfo, 0o644); err != nil {
		return Transcription{}, &StepError{Step: "save metadata", Subject: infoFile, Err: err}
	}

	if _, err := p.run(ctx, p.ytdlp, "--format", "ba", "--load-info-json", infoFile, "--output", audioFile); err != nil {
		return Transcription{}, &StepError{Step: "download audio", Subject: rawURL, Err: err}
	}
	log.Printf("downloaded audio for %s", rawURL)

	if _, err := p.run(ctx, p.ffmpeg, "-i", audioFile, "-vn", "-c:a", "libmp3lame", "-q:a", "2", mp3File); err != nil {
		return Transcription{}, &StepError{Step: "convert audio", Subject: audioFile, Err: err}
	}

	stat, err := os.Stat(mp3File)
	if err != nil {
		return Transcription{}, &StepError{Step: "read converted audio", Subject: mp3File, Err: err}
	}
	numChunks, segmentSeconds := chunkPlan(stat.Size(), info.Duration, p.chunkBytes)
	log.Printf("segmenting %s (%d bytes) into %d chunks of ~%ds", mp3File, stat.Size(), numChunks, segmentSeconds)

	if err := os.MkdirAll(chunkDir, 0o755); err != nil {
		return Transcription{}, &StepError{Step: "prepare chunk dir", Subject: chunkDir, Err: err}
	}
	if _, err := p.run(ctx, p.ffmpeg, "-i", mp3File, "-f", "segment", "-segment_time", strconv.Itoa(segmentSeconds), "-c", "copy", filepath.Join(chunkDir, "%03d.mp3")); err != nil {
		return Transcription{}, &StepError{Step: "segment audio", Subject: mp3File, Err: err}
	}

	chunkFiles, err := p.listChunks(chunkDir)
	if err != nil {
		return Transcription{}, err
	}

	transcript, err := p.transcribeChunks(ctx, chunkFiles)
	if err != nil {
		return Transcription{}, err
	}
	log.Printf("transcribed %s: %d chunks", rawURL, len(chunkFiles))

	summary, err := p.summarizer.Summarize(ctx, transcript)
	if err != nil {
		return Transcription{}, &StepError{Step: "summarize transcript", Subject: rawURL, Err: err}
	}

	return Transcription{Transcription: transcript, Summary: summary}, nil
}

// fetchInfo asks yt-dlp for the video metadata without downloading.
func (p *Pipeline) fetchInfo(ctx context.Context, rawURL string) (VideoInfo, []byte, error) {
	out, err := p.run(ctx, p.ytdlp, "--format", "ba", "--dump-single-json", rawURL)
	if err != nil {
		return VideoInfo{}, nil, &StepError{Step: "fetch metadata", Subject: rawURL, Err: err}
	}
	var info VideoInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return VideoInfo{}, nil, &StepError{Step: "parse metadata", Subject: rawURL, Err: err}
	}
	return info, out, nil
}

// listChunks returns the segment files in playback order.
func (p *Pipeline) listChunks(chunkDir string) ([]string, error) {
	entries, err := os.ReadDir(chunkDir)
	if err != nil {
		return nil, &StepError{Step: "list chunks", Subject: chunkDir, Err: err}
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".mp3") {
			names = append(names, filepath.Join(chunkDir, e.Name()))
		}
	}
	if len(names) == 0 {
		return nil, &StepError{Step: "list chunks", Subject: chunkDir, Err: fmt.Errorf("no segments produced")}
	}
	return sortChunkFiles(names), nil
}

// transcribeChunks runs Whisper over every chunk concurrently and joins the
// texts in chunk order. One failed chunk fails the batch.
func (p *Pipeline) transcribeChunks(ctx context.Context, files []string) (string, error) {
	texts := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, file := range files {
		g.Go(func() error {
			audio, err := os.ReadFile(file)
			if err != nil {
				return &StepError{Step: "read chunk", Subject: file, Err: err}
			}
			text, err := p.transcriber.Transcribe(gctx, audio, filepath.Base(file))
			if err != nil {
				return &StepError{Step: "transcribe chunk", Subject: file, Err: err}
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(texts, " "), nil
}

// cleanup removes request-scoped temp files. Failures are logged, never
// escalated.
func (p *Pipeline) cleanup(chunkDir string, files ...string) {
	if err := os.RemoveAll(chunkDir); err != nil {
		log.Printf("cleanup: could not remove %s: %v", chunkDir, err)
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			log.Printf("cleanup: could not remove %s: %v", f, err)
		}
	}
}
