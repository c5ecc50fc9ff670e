package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/johnquangdev/meetscribe/internal/capture"
)

// Redeemer consumes a one-shot capture handle
type Redeemer interface {
	Redeem(handle string) (string, bool)
}

// TabPlaceholder in the configured source is replaced by the redeemed tab id,
// e.g. "meetscribe_{tab}.monitor" for a per-tab PulseAudio sink monitor.
// Without it every tab records the same device.
const TabPlaceholder = "{tab}"

// FFmpegSource acquires audio-only streams by running ffmpeg against the
// configured input device. Each stream is one ffmpeg process writing an
// opus/webm byte stream to stdout.
type FFmpegSource struct {
	path    string
	args    []string
	handles Redeemer
	logger  *zap.Logger
}

var _ capture.CaptureSource = (*FFmpegSource)(nil)

// NewFFmpegSource creates a source reading inputFormat/source (e.g. pulse/default)
func NewFFmpegSource(path, inputFormat, source string, handles Redeemer, logger *zap.Logger) *FFmpegSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegSource{
		path: path,
		args: []string{
			"-hide_banner", "-loglevel", "error",
			"-f", inputFormat, "-i", source,
			"-vn", "-ac", "1",
			"-c:a", "libopus",
			"-f", "webm", "pipe:1",
		},
		handles: handles,
		logger:  logger,
	}
}

// Acquire redeems handle and starts ffmpeg
func (s *FFmpegSource) Acquire(ctx context.Context, handle string) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabID, ok := s.handles.Redeem(handle)
	if !ok {
		return nil, fmt.Errorf("capture handle is invalid or expired")
	}

	bin, err := exec.LookPath(s.path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	// Not bound to ctx: the process lives until Release
	cmd := exec.Command(bin, s.argsFor(tabID)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	s.logger.Info("🎙️ Audio stream acquired",
		zap.String("tab_id", tabID),
		zap.Int("pid", cmd.Process.Pid),
	)
	return &processStream{cmd: cmd, stdout: stdout, logger: s.logger}, nil
}

func (s *FFmpegSource) argsFor(tabID string) []string {
	args := make([]string, len(s.args))
	for i, arg := range s.args {
		args[i] = strings.ReplaceAll(arg, TabPlaceholder, tabID)
	}
	return args
}

type processStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	logger *zap.Logger

	once sync.Once
	err  error
}

func (p *processStream) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

// Release kills the process and reaps it
func (p *processStream) Release() error {
	p.once.Do(func() {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Debug("ffmpeg kill", zap.Error(err))
		}
		err := p.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.err = err
		}
	})
	return p.err
}
