package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fornax/internal/config"
)

const userAgent = "Fornax-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyAssembled(ctx context.Context, identifier string) error
	NotifyTransferStarted(ctx context.Context, identifier, unitUUID string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		settings: cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	settings config.Notifications
}

func (n *ntfyService) NotifyAssembled(ctx context.Context, identifier string) error {
	if !n.settings.Assembly {
		return nil
	}
	data := payload{
		title:   "Fornax - Package Assembled",
		message: fmt.Sprintf("Zipped bag ready for transfer: %s", strings.TrimSpace(identifier)),
		tags:    []string{"fornax", "assemble", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTransferStarted(ctx context.Context, identifier, unitUUID string) error {
	if !n.settings.Transfers {
		return nil
	}
	identifier = strings.TrimSpace(identifier)
	message := fmt.Sprintf("Transfer approved: %s", identifier)
	if unitUUID = strings.TrimSpace(unitUUID); unitUUID != "" {
		message = fmt.Sprintf("%s\nUnit: %s", message, unitUUID)
	}
	data := payload{
		title:   "Fornax - Transfer Started",
		message: message,
		tags:    []string{"fornax", "transfer", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.settings.Errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Fornax - Error",
		message:  builder.String(),
		tags:     []string{"fornax", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Fornax - Test",
		message:  "Notification system test",
		tags:     []string{"fornax", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
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
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyAssembled(context.Context, string) error              { return nil }
func (noopService) NotifyTransferStarted(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }
