// Package transcoder extracts mp3 audio from a remote video through ffmpeg,
// keeping every scratch file scoped to a single call.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/smallbiznis/teleload/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DefaultFetchTimeout = 60 * time.Second
	DefaultBitrate      = "128k"
	DefaultScratchDir   = "tmp"
)

var (
	ErrTranscodeUnavailable = errors.New("transcode_unavailable")
	ErrDownloadFailed       = errors.New("download_failed")
	ErrTranscodeFailed      = errors.New("transcode_failed")
	ErrInvalidRequest       = errors.New("invalid_request")
)

var scratchIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type Request struct {
	// ID names the scratch files; callers pass the audio token id.
	ID        string
	SourceURL string
	Title     string
}

// Audio is the transcoded file handed to the deliver callback. Path is only
// valid until the callback returns.
type Audio struct {
	Path     string
	FileName string
}

// CommandRunner runs the transform binary. Tests substitute it.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, tail(stderr.String(), 512))
	}
	return nil
}

type Options struct {
	ScratchDir   string
	FFmpegPath   string
	FetchTimeout time.Duration
	Bitrate      string
	Client       *http.Client
	Runner       CommandRunner
	LookPath     func(file string) (string, error)
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
}

type Transcoder struct {
	log          *zap.Logger
	binary       string
	scratchDir   string
	fetchTimeout time.Duration
	bitrate      string
	client       *http.Client
	runner       CommandRunner
}

func New(p Params) (*Transcoder, error) {
	return NewWithOptions(p.Log, Options{
		ScratchDir:   p.Config.Pipeline.ScratchDir,
		FFmpegPath:   p.Config.Pipeline.FFmpegPath,
		FetchTimeout: p.Config.Pipeline.MediaFetchTimeout,
	})
}

// NewWithOptions probes for the ffmpeg binary once. A missing binary is not an
// error: the transcoder is built unavailable and every call fails fast.
func NewWithOptions(log *zap.Logger, opts Options) (*Transcoder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("transcoder")

	scratch := strings.TrimSpace(opts.ScratchDir)
	if scratch == "" {
		scratch = DefaultScratchDir
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	t := &Transcoder{
		log:          log,
		binary:       probe(opts.LookPath, opts.FFmpegPath),
		scratchDir:   scratch,
		fetchTimeout: opts.FetchTimeout,
		bitrate:      opts.Bitrate,
		client:       opts.Client,
		runner:       opts.Runner,
	}
	if t.fetchTimeout <= 0 {
		t.fetchTimeout = DefaultFetchTimeout
	}
	if t.bitrate == "" {
		t.bitrate = DefaultBitrate
	}
	if t.client == nil {
		t.client = &http.Client{}
	}
	if t.runner == nil {
		t.runner = execRunner{}
	}

	if t.binary == "" {
		log.Warn("ffmpeg not found, audio extraction disabled")
	} else {
		log.Info("ffmpeg available", zap.String("binary", t.binary), zap.String("scratch_dir", scratch))
	}
	return t, nil
}

func probe(lookPath func(string) (string, error), configured string) string {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if path, err := lookPath("ffmpeg"); err == nil && path != "" {
		return path
	}
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return ""
	}
	if info, err := os.Stat(configured); err == nil && !info.IsDir() {
		return configured
	}
	return ""
}

func (t *Transcoder) Available() bool {
	return t != nil && t.binary != ""
}

// ExtractAudio downloads req.SourceURL, converts it to mp3 and passes the
// result to deliver. Both scratch files are removed before it returns, on
// every path. A deliver error is returned wrapped.
func (t *Transcoder) ExtractAudio(ctx context.Context, req Request, deliver func(context.Context, Audio) error) (err error) {
	if !t.Available() {
		return ErrTranscodeUnavailable
	}
	if !scratchIDPattern.MatchString(req.ID) || strings.TrimSpace(req.SourceURL) == "" || deliver == nil {
		return ErrInvalidRequest
	}

	ctx, span := otel.Tracer("teleload/transcoder").Start(ctx, "transcoder.ExtractAudio")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, "extract audio failed")
		}
		span.End()
	}()

	input := filepath.Join(t.scratchDir, req.ID+".mp4")
	output := filepath.Join(t.scratchDir, req.ID+".mp3")
	defer t.release(input, output)

	if err := t.download(ctx, req.SourceURL, input); err != nil {
		return err
	}
	if err := t.transform(ctx, input, output); err != nil {
		return err
	}
	if err := deliver(ctx, Audio{Path: output, FileName: FileName(req.Title)}); err != nil {
		return fmt.Errorf("deliver audio: %w", err)
	}
	return nil
}

func (t *Transcoder) download(ctx context.Context, sourceURL, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, t.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	file, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		_ = file.Close()
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return nil
}

func (t *Transcoder) transform(ctx context.Context, input, output string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", t.bitrate,
		"-f", "mp3",
		output,
	}
	if err := t.runner.Run(ctx, t.binary, args...); err != nil {
		return fmt.Errorf("%w: %v", ErrTranscodeFailed, err)
	}
	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: empty output", ErrTranscodeFailed)
	}
	return nil
}

func (t *Transcoder) release(paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.log.Warn("failed to remove scratch file", zap.String("path", path), zap.Error(err))
		}
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
