package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"petscan/internal/biometry"
	"petscan/internal/config"
	"petscan/internal/textutil"
)

const (
	userAgent       = "petscan/0.1.0"
	maxSendAttempts = 3
)

// Service defines the notification surface exposed to the scan station.
type Service interface {
	NotifyLostPetIdentified(ctx context.Context, profile *biometry.Profile, similarity float64) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		lostPet:   cfg.Notifications.LostPet,
		retryBase: 500 * time.Millisecond,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	lostPet   bool
	retryBase time.Duration
}

func (n *ntfyService) NotifyLostPetIdentified(ctx context.Context, profile *biometry.Profile, similarity float64) error {
	if !n.lostPet || profile == nil || !profile.IsLost {
		return nil
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "🐾 Lost pet identified: %s", textutil.Fallback(profile.Name, fmt.Sprintf("pet #%d", profile.ID)))
	fmt.Fprintf(&builder, " (%s", textutil.SpeciesLabel(profile.Species))
	if breed := textutil.TitleCase(profile.Breed); breed != "" {
		fmt.Fprintf(&builder, ", %s", breed)
	}
	builder.WriteString(")")
	if similarity > 0 {
		fmt.Fprintf(&builder, "\nSimilarity: %s", textutil.Percent(similarity))
	}
	if owner := strings.TrimSpace(profile.OwnerName); owner != "" {
		fmt.Fprintf(&builder, "\nOwner: %s", owner)
	}

	data := payload{
		title:    "PetScan - Lost Pet Found",
		message:  builder.String(),
		tags:     []string{"petscan", "lost", "found"},
		priority: "urgent",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "PetScan - Error",
		message:  builder.String(),
		tags:     []string{"petscan", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "PetScan - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"petscan", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	if n.retryBase > 0 {
		policy.InitialInterval = n.retryBase
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, n.post(ctx, data)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(maxSendAttempts))
	return err
}

func (n *ntfyService) post(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build ntfy request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return backoff.Permanent(fmt.Errorf("send ntfy notification: %w", err))
		}
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		statusErr := fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(statusErr)
		}
		return statusErr
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyLostPetIdentified(context.Context, *biometry.Profile, float64) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
