package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"petscan/internal/biometry"
	"petscan/internal/camera"
	"petscan/internal/deps"
)

// CheckRegistry verifies that the registry answers its health endpoint. The
// endpoint lives at the server root, outside the versioned API prefix.
func CheckRegistry(ctx context.Context, baseURL string) Result {
	const name = "Pet registry"

	healthURL, err := healthEndpoint(baseURL)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, healthURL, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeHTTPError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Version != "" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Reachable (v%s)", body.Version)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckCredentials verifies the owner token is well formed and unexpired.
func CheckCredentials(token string, now time.Time) Result {
	const name = "Owner token"
	creds := biometry.Credentials{Token: token}
	if err := creds.Check(now); err != nil {
		return Result{Name: name, Detail: err.Error(), Optional: true}
	}
	detail := "valid"
	if subject := creds.Subject(); subject != "" {
		detail = "valid for " + subject
	}
	return Result{Name: name, Passed: true, Detail: detail, Optional: true}
}

// CheckDevice verifies a camera node exists and is readable and writable.
func CheckDevice(name, device string) Result {
	if strings.TrimSpace(device) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := camera.CheckDevice(device); err != nil {
		if errors.Is(err, camera.ErrPermissionDenied) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (permission denied; add the user to the video group)", device)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (%v)", device, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", device)}
}

// CheckDeviceFormat probes the device's default capture format. It is
// optional because the probe fails while a station is capturing.
func CheckDeviceFormat(ctx context.Context, name, device, ffprobe string) Result {
	name += " format"
	if strings.TrimSpace(device) == "" {
		return Result{Name: name, Detail: "not configured", Optional: true}
	}
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	format, err := camera.Probe(probeCtx, ffprobe, device)
	if err != nil {
		return Result{Name: name, Detail: err.Error(), Optional: true}
	}
	return Result{Name: name, Passed: true, Detail: format.String(), Optional: true}
}

// CheckFFmpegBinary verifies the capture binary resolves on PATH.
func CheckFFmpegBinary(configured string) Result {
	status := deps.CheckFFmpeg(configured)
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	return Result{Name: status.Name, Passed: true, Detail: status.Command}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func healthEndpoint(baseURL string) (string, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return "", errors.New("missing api.base_url")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid api.base_url %q", base)
	}
	return (&url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/health"}).String(), nil
}

func summarizeHTTPError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (registry unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (registry unreachable)"
	}
	return err.Error()
}
