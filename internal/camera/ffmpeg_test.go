package camera

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"petscan/internal/frame"
	"petscan/internal/logging"
	"petscan/internal/testsupport"
)

func TestFrameSplitterHandlesSplitChunks(t *testing.T) {
	a := []byte{0xFF, 0xD8, 1, 2, 3, 0xFF, 0xD9}
	b := []byte{0xFF, 0xD8, 4, 5, 0xFF, 0xD9}
	stream := append(append([]byte{0x00, 0x11}, a...), b...)

	var s frameSplitter
	var got [][]byte
	for i := 0; i < len(stream); i += 3 {
		end := min(i+3, len(stream))
		got = append(got, s.Feed(stream[i:end])...)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if !bytes.Equal(got[0], a) || !bytes.Equal(got[1], b) {
		t.Fatalf("frames mismatch: %x / %x", got[0], got[1])
	}
}

func TestFrameSplitterWaitsForEndMarker(t *testing.T) {
	var s frameSplitter
	if frames := s.Feed([]byte{0xFF, 0xD8, 1, 2}); len(frames) != 0 {
		t.Fatalf("expected no frame before EOI, got %d", len(frames))
	}
	frames := s.Feed([]byte{3, 0xFF, 0xD9})
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte{0xFF, 0xD8, 1, 2, 3, 0xFF, 0xD9}) {
		t.Fatalf("unexpected frames: %x", frames)
	}
}

func TestTailBufferKeepsLastLine(t *testing.T) {
	b := newTailBuffer(16)
	_, _ = b.Write([]byte("first line\nsecond line\n"))
	if got := b.LastLine(); got != "second line" {
		t.Fatalf("unexpected last line %q", got)
	}
	if len(b.String()) > 16 {
		t.Fatalf("tail buffer exceeded limit: %d", len(b.String()))
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs(Request{Device: "/dev/video2", Width: 1280, Height: 720, Framerate: 15})
	joined := filepath.Join(args...)
	for _, want := range []string{"v4l2", "1280x720", "/dev/video2", "mjpeg", "pipe:1"} {
		if !bytes.Contains([]byte(joined), []byte(want)) {
			t.Fatalf("expected %q in args %v", want, args)
		}
	}
	minimal := ffmpegArgs(Request{Device: "/dev/video0"})
	for _, flag := range minimal {
		if flag == "-video_size" || flag == "-framerate" {
			t.Fatalf("unexpected sizing flag in %v", minimal)
		}
	}
}

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"/dev/video0: Permission denied", ErrPermissionDenied},
		{"/dev/video0: No such file or directory", ErrDeviceUnavailable},
		{"ioctl(VIDIOC_STREAMON): Device or resource busy", ErrDeviceUnavailable},
		{"", ErrDeviceUnavailable},
	}
	for _, tt := range tests {
		if err := classifyFailure("/dev/video0", tt.line, nil); !errors.Is(err, tt.want) {
			t.Errorf("classifyFailure(%q) = %v, want %v", tt.line, err, tt.want)
		}
	}
}

func TestCheckDevice(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDeviceNodes())
	o := NewFFmpegOpener(cfg, logging.NewNop())

	if err := o.checkDevice(filepath.Join(t.TempDir(), "video9")); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected unavailable for missing node, got %v", err)
	}

	o.access = func(string, uint32) error { return unix.EACCES }
	if err := o.checkDevice(cfg.Camera.BackDevice); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	o.access = func(string, uint32) error { return nil }
	if err := o.checkDevice(cfg.Camera.BackDevice); err != nil {
		t.Fatalf("expected accessible device, got %v", err)
	}
}

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func scriptOpener(t *testing.T, body string) (*FFmpegOpener, Request) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts unavailable")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithDeviceNodes())
	cfg.Camera.FFmpegBinary = writeScript(t, t.TempDir(), body)
	cfg.Camera.StartTimeoutSeconds = 5
	o := NewFFmpegOpener(cfg, logging.NewNop())
	o.access = func(string, uint32) error { return nil }
	return o, Request{Device: cfg.Camera.BackDevice, Facing: FacingBack}
}

func TestFFmpegOpenerStreamsFrames(t *testing.T) {
	framePath := testsupport.WritePhoto(t, t.TempDir(), "frame.jpg", testsupport.JPEG(t, 64, 48))
	o, req := scriptOpener(t, "while true; do cat '"+framePath+"'; sleep 0.05; done\n")

	stream, err := o.Open(context.Background(), req)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	img, err := frame.NewSampler(80).Capture(stream)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if img.Width != 64 || img.Height != 48 {
		t.Fatalf("unexpected frame size %dx%d", img.Width, img.Height)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-stream.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish after Close")
	}
	if stream.Err() != nil {
		t.Fatalf("expected nil Err after Close, got %v", stream.Err())
	}
	if _, ok := stream.LatestFrame(); ok {
		t.Fatal("expected no frame after Close")
	}
}

func TestFFmpegOpenerReportsPermissionFailure(t *testing.T) {
	o, req := scriptOpener(t, "echo \"$0: Permission denied\" >&2\nexit 1\n")

	if _, err := o.Open(context.Background(), req); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestFFmpegOpenerTimesOutWithoutFrames(t *testing.T) {
	o, req := scriptOpener(t, "sleep 5\n")
	o.startTimeout = 200 * time.Millisecond

	start := time.Now()
	if _, err := o.Open(context.Background(), req); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected unavailable after timeout, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("Open did not honour the start timeout")
	}
}

func TestFFmpegStreamCloseReapsChildHoldingPipes(t *testing.T) {
	framePath := testsupport.WritePhoto(t, t.TempDir(), "frame.jpg", testsupport.JPEG(t, 32, 32))
	o, req := scriptOpener(t, "cat '"+framePath+"'\nsleep 30 >&2 &\nsleep 30\n")

	stream, err := o.Open(context.Background(), req)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		_ = stream.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(exitGrace + 2*time.Second):
		t.Fatal("Close blocked on a child process holding the output pipes")
	}
}

func TestFFmpegStreamReportsUnexpectedExit(t *testing.T) {
	framePath := testsupport.WritePhoto(t, t.TempDir(), "frame.jpg", testsupport.JPEG(t, 32, 32))
	o, req := scriptOpener(t, "cat '"+framePath+"'\nsleep 0.2\necho 'device disconnected' >&2\nexit 1\n")

	stream, err := o.Open(context.Background(), req)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()

	select {
	case <-stream.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("expected stream to end")
	}
	if !errors.Is(stream.Err(), ErrDeviceUnavailable) {
		t.Fatalf("expected unavailable error, got %v", stream.Err())
	}
}
