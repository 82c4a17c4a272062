package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DeviceFormat is the default video stream a V4L2 node reports to ffprobe.
type DeviceFormat struct {
	Device      string  `json:"device"`
	Codec       string  `json:"codec"`
	PixelFormat string  `json:"pixel_format,omitempty"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FrameRate   float64 `json:"frame_rate,omitempty"`
}

// String renders "1280x720 mjpeg @ 30 fps".
func (f DeviceFormat) String() string {
	codec := f.Codec
	if f.PixelFormat != "" && f.PixelFormat != f.Codec {
		codec = fmt.Sprintf("%s/%s", f.Codec, f.PixelFormat)
	}
	out := fmt.Sprintf("%dx%d %s", f.Width, f.Height, codec)
	if f.FrameRate > 0 {
		out += " @ " + strconv.FormatFloat(f.FrameRate, 'f', -1, 64) + " fps"
	}
	return out
}

type probeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		CodecType  string `json:"codec_type"`
		PixFmt     string `json:"pix_fmt"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Probe asks ffprobe for the device's default capture format. It opens the
// device briefly, so it fails with ErrDeviceUnavailable while another process
// is capturing from it.
func Probe(ctx context.Context, binary, device string) (DeviceFormat, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	device = strings.TrimSpace(device)
	if device == "" {
		return DeviceFormat{}, errors.New("probe: empty device")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-f", "v4l2", "-show_streams", "-of", "json", "--", device)
	output, err := cmd.Output()
	if err != nil {
		detail := "ffprobe failed"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return DeviceFormat{}, unavailable(device, detail, err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return DeviceFormat{}, fmt.Errorf("probe %s: parse ffprobe output: %w", device, err)
	}
	for _, stream := range parsed.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		return DeviceFormat{
			Device:      device,
			Codec:       stream.CodecName,
			PixelFormat: stream.PixFmt,
			Width:       stream.Width,
			Height:      stream.Height,
			FrameRate:   parseRate(stream.RFrameRate),
		}, nil
	}
	return DeviceFormat{}, unavailable(device, "no video stream reported", nil)
}

// parseRate turns ffprobe's "30000/1001" form into frames per second.
func parseRate(value string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(value), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return float64(int(n/d*100+0.5)) / 100
}
