// Package imaging converts remote images into small legacy-friendly raster
// formats by streaming them through an external ImageMagick process. The
// image is never buffered whole: the HTTP body feeds the process stdin and
// the process stdout is handed to the consumer, so backpressure propagates
// across both hops.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/retronews/retronews/internal/logger"
)

// Format is a supported target encoding.
type Format string

const (
	// FormatGIF is the full-color output for clients that accept image/gif.
	FormatGIF Format = "gif"
	// FormatWBMP is the 1-bit WAP bitmap for everything older.
	FormatWBMP Format = "wbmp"
)

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatWBMP {
		return "image/vnd.wap.wbmp"
	}
	return "image/gif"
}

// convertTarget returns the ImageMagick output specifier for the format.
func (f Format) convertTarget() string {
	return strings.ToUpper(string(f)) + ":-"
}

// FormatFromAccept picks the richest format the client advertises.
func FormatFromAccept(accept string) Format {
	if strings.Contains(accept, "image/gif") {
		return FormatGIF
	}
	return FormatWBMP
}

// SourceError reports that the image source fetch did not succeed. It is
// returned before any conversion process is spawned.
type SourceError struct {
	Code int
	URL  string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("image source returned status %d for %s", e.Code, e.URL)
}

// ProcessError reports that the conversion process failed. It is
// distinguishable from a successful-but-empty output stream.
type ProcessError struct {
	Err    error
	Stderr string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("convert process failed: %v", e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// defaultMaxConcurrent bounds simultaneous conversion processes when the
// configuration leaves it unset.
const defaultMaxConcurrent = 4

// Config holds the transcoder settings.
type Config struct {
	// ConvertPath is the ImageMagick convert binary.
	ConvertPath string
	// MaxConcurrent bounds how many conversion processes run at once.
	MaxConcurrent int
	// UserAgent is sent on source fetches.
	UserAgent string
}

// Transcoder fetches remote images and pipes them through convert.
type Transcoder struct {
	httpClient  *http.Client
	convertPath string
	userAgent   string
	sem         *semaphore.Weighted
	log         logger.Interface
}

// NewTranscoder creates a transcoder. The http.Client supplies the transport
// timeout; per-request deadlines come from the caller's context, which also
// bounds the process lifetime.
func NewTranscoder(httpClient *http.Client, cfg Config, log logger.Interface) *Transcoder {
	if cfg.ConvertPath == "" {
		cfg.ConvertPath = "convert"
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}

	return &Transcoder{
		httpClient:  httpClient,
		convertPath: cfg.ConvertPath,
		userAgent:   cfg.UserAgent,
		sem:         semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		log:         log.WithComponent("imaging"),
	}
}

// Transcode fetches url and returns a stream of the image resized to fit
// within width x height and re-encoded to format. The caller must consume
// the stream to completion or Close it; closing mid-stream tears down the
// source fetch and the process.
func (t *Transcoder) Transcode(ctx context.Context, url string, width, height int, format Format) (io.ReadCloser, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire transcode slot: %w", err)
	}

	body, err := t.fetchSource(ctx, url)
	if err != nil {
		t.sem.Release(1)
		return nil, err
	}

	stream, err := t.startConvert(ctx, body, width, height, format)
	if err != nil {
		_ = body.Close()
		t.sem.Release(1)
		return nil, err
	}

	t.log.Debug("Transcode started",
		"url", url, "width", width, "height", height, "format", format)

	return stream, nil
}

// fetchSource issues the image GET and validates the response before any
// process is spawned.
func (t *Transcoder) fetchSource(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &SourceError{Code: resp.StatusCode, URL: url}
	}

	return resp.Body, nil
}

// startConvert spawns the conversion process with the source body as stdin
// and returns its stdout as the consumable stream.
func (t *Transcoder) startConvert(ctx context.Context, body io.ReadCloser, width, height int, format Format) (*stream, error) {
	cmd := exec.CommandContext(ctx, t.convertPath,
		"-",
		"-resize", fmt.Sprintf("%dx%d", width, height),
		format.convertTarget(),
	)
	cmd.Stdin = body

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", t.convertPath, err)
	}

	return &stream{
		t:      t,
		cmd:    cmd,
		stdout: stdout,
		body:   body,
		stderr: &stderr,
	}, nil
}

// stream adapts the process stdout into a ReadCloser that settles the
// process exactly once, on EOF or on Close.
type stream struct {
	t      *Transcoder
	cmd    *exec.Cmd
	stdout io.ReadCloser
	body   io.ReadCloser
	stderr *bytes.Buffer

	settle  sync.Once
	waitErr error
}

// Read streams converted bytes. When the process output ends, a non-zero
// exit surfaces here instead of a clean EOF.
func (s *stream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		if finishErr := s.finish(false); finishErr != nil {
			return n, finishErr
		}
	}
	return n, err
}

// Close tears down both ends: the source body, the process, and the output
// pipe. Safe to call after EOF; mid-stream it kills the process.
func (s *stream) Close() error {
	err := s.finish(true)
	_ = s.stdout.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// finish waits for the process exactly once and releases held resources.
// kill forces termination for a consumer that stopped reading early.
func (s *stream) finish(kill bool) error {
	s.settle.Do(func() {
		if kill && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}

		// Closing the source unblocks the stdin copy if the fetch is
		// still delivering.
		_ = s.body.Close()

		waitErr := s.cmd.Wait()
		if diag := strings.TrimSpace(s.stderr.String()); diag != "" {
			s.t.log.Warn("Convert diagnostics", "stderr", diag)
		}

		if waitErr != nil && !kill {
			s.waitErr = &ProcessError{Err: waitErr, Stderr: s.stderr.String()}
		}

		s.t.sem.Release(1)
	})

	return s.waitErr
}
