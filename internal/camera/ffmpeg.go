package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"petscan/internal/config"
	"petscan/internal/deps"
	"petscan/internal/logging"
)

const (
	readChunkSize = 32 * 1024
	// staleFrameAge is how old the latest frame may get before the surface
	// reports nothing to sample.
	staleFrameAge = 5 * time.Second
	// exitGrace bounds how long Close waits for ffmpeg's output pipes to
	// drain after the kill.
	exitGrace = 2 * time.Second
)

// FFmpegOpener opens V4L2 devices through an ffmpeg subprocess emitting MJPEG.
type FFmpegOpener struct {
	binary       string
	startTimeout time.Duration
	logger       *slog.Logger
	access       func(path string, mode uint32) error
}

// NewFFmpegOpener builds the ffmpeg backend from configuration.
func NewFFmpegOpener(cfg *config.Config, logger *slog.Logger) *FFmpegOpener {
	o := &FFmpegOpener{
		binary:       "ffmpeg",
		startTimeout: 10 * time.Second,
		logger:       logging.NewComponentLogger(logger, "camera-ffmpeg"),
		access:       unix.Access,
	}
	if cfg != nil {
		o.binary = deps.ResolveFFmpegPath(cfg.Camera.FFmpegBinary)
		if timeout := cfg.CameraStartTimeout(); timeout > 0 {
			o.startTimeout = timeout
		}
	}
	return o
}

// Open checks the device node, launches ffmpeg and waits for the first frame.
func (o *FFmpegOpener) Open(ctx context.Context, req Request) (Stream, error) {
	if err := o.checkDevice(req.Device); err != nil {
		return nil, err
	}

	// The process outlives the start context; Close cancels it.
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, o.binary, ffmpegArgs(req)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Kill the group so children sharing the output pipes exit too.
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = exitGrace
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, unavailable(req.Device, "open ffmpeg pipe", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, unavailable(req.Device, "launch "+o.binary, err)
	}

	stream := newProcessStream(req.Device, cmd, stdout, stderr, cancel)
	go stream.run()

	o.logger.Debug("ffmpeg capture launched",
		logging.String("device", req.Device),
		logging.Int("pid", cmd.Process.Pid),
	)

	timer := time.NewTimer(o.startTimeout)
	defer timer.Stop()
	select {
	case <-stream.firstFrame:
		return stream, nil
	case <-stream.Done():
		return nil, classifyFailure(req.Device, stderr.LastLine(), stream.exitErr)
	case <-timer.C:
		_ = stream.Close()
		return nil, unavailable(req.Device, fmt.Sprintf("no frame within %s", o.startTimeout), nil)
	case <-ctx.Done():
		_ = stream.Close()
		return nil, ctx.Err()
	}
}

// CheckDevice reports whether device exists and is readable and writable by
// this process.
func CheckDevice(device string) error {
	return (&FFmpegOpener{access: unix.Access}).checkDevice(device)
}

func (o *FFmpegOpener) checkDevice(device string) error {
	if strings.TrimSpace(device) == "" {
		return unavailable("(none)", "no device configured", nil)
	}
	info, err := os.Stat(device)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return unavailable(device, "device node not found", nil)
		}
		if errors.Is(err, fs.ErrPermission) {
			return permissionDenied(device, err)
		}
		return unavailable(device, "stat device", err)
	}
	if info.IsDir() {
		return unavailable(device, "not a device node", nil)
	}
	if err := o.access(device, unix.R_OK|unix.W_OK); err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			return permissionDenied(device, err)
		}
		return unavailable(device, "access device", err)
	}
	return nil
}

func ffmpegArgs(req Request) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if req.Width > 0 && req.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", req.Width, req.Height))
	}
	if req.Framerate > 0 {
		args = append(args, "-framerate", strconv.Itoa(req.Framerate))
	}
	return append(args, "-i", req.Device, "-f", "mjpeg", "-q:v", "3", "pipe:1")
}

func classifyFailure(device, stderrLine string, exitErr error) error {
	lower := strings.ToLower(stderrLine)
	switch {
	case strings.Contains(lower, "permission denied"):
		return permissionDenied(device, errors.New(stderrLine))
	case strings.Contains(lower, "no such file"), strings.Contains(lower, "no such device"):
		return unavailable(device, "device not found", errors.New(stderrLine))
	case strings.Contains(lower, "busy"):
		return unavailable(device, "device busy", errors.New(stderrLine))
	case stderrLine != "":
		return unavailable(device, "capture failed", errors.New(stderrLine))
	default:
		return unavailable(device, "capture exited", exitErr)
	}
}

// processStream is a running ffmpeg capture.
type processStream struct {
	device string
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer
	cancel context.CancelFunc

	firstFrame chan struct{}
	firstOnce  sync.Once
	done       chan struct{}
	closeOnce  sync.Once

	mu      sync.RWMutex
	latest  []byte
	at      time.Time
	closed  bool
	err     error
	exitErr error
}

func newProcessStream(device string, cmd *exec.Cmd, stdout io.ReadCloser, stderr *tailBuffer, cancel context.CancelFunc) *processStream {
	return &processStream{
		device:     device,
		cmd:        cmd,
		stdout:     stdout,
		stderr:     stderr,
		cancel:     cancel,
		firstFrame: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (s *processStream) run() {
	pumped := make(chan struct{})
	go func() {
		defer close(pumped)
		s.pump()
	}()

	waitErr := s.cmd.Wait()
	<-pumped

	s.mu.Lock()
	s.latest = nil
	s.exitErr = waitErr
	if !s.closed {
		s.err = classifyFailure(s.device, s.stderr.LastLine(), waitErr)
	}
	s.mu.Unlock()
	close(s.done)
}

func (s *processStream) pump() {
	var splitter frameSplitter
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			frames := splitter.Feed(buf[:n])
			if len(frames) > 0 {
				s.mu.Lock()
				if !s.closed {
					s.latest = frames[len(frames)-1]
					s.at = time.Now()
				}
				s.mu.Unlock()
				s.firstOnce.Do(func() { close(s.firstFrame) })
			}
		}
		if err != nil {
			return
		}
	}
}

// LatestFrame returns a copy of the newest complete frame.
func (s *processStream) LatestFrame() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || len(s.latest) == 0 || time.Since(s.at) > staleFrameAge {
		return nil, false
	}
	out := make([]byte, len(s.latest))
	copy(out, s.latest)
	return out, true
}

func (s *processStream) Done() <-chan struct{} {
	return s.done
}

func (s *processStream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Close kills ffmpeg and waits for it to exit.
func (s *processStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.latest = nil
		s.mu.Unlock()
		s.cancel()
	})
	<-s.done
	return nil
}
