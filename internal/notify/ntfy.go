package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const userAgent = "leadflow/0.1.0"

type ntfySink struct {
	endpoint string
	client   *http.Client
}

// NewNtfySink posts notifications to an ntfy topic URL.
func NewNtfySink(endpoint string, timeout time.Duration) Sink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfySink{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *ntfySink) Name() string { return "ntfy" }

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

func formatMessage(n Notification) message {
	switch n.Category {
	case CategoryLevelCrossed:
		msg := message{
			title: "Leadflow - Intent Level " + string(n.NewLevel),
			body:  fmt.Sprintf("Customer #%d moved from %s to %s", n.CustomerID, n.PreviousLevel, n.NewLevel),
			tags:  []string{"leadflow", "intent", strings.ToLower(string(n.NewLevel))},
		}
		if n.NewLevel == "S" {
			msg.priority = "high"
		}
		return msg
	case CategoryTaskCompleted:
		body := fmt.Sprintf("Task #%d (%s) completed", n.TaskID, n.Payload.TaskKind)
		if n.CustomerID > 0 {
			body += " for customer #" + strconv.FormatInt(n.CustomerID, 10)
		}
		return message{
			title: "Leadflow - Task Complete",
			body:  body,
			tags:  []string{"leadflow", "task", "completed"},
		}
	default:
		return message{
			title: "Leadflow - Notification",
			body:  fmt.Sprintf("Notification #%d (%s)", n.ID, n.Category),
			tags:  []string{"leadflow"},
		}
	}
}

func (s *ntfySink) Deliver(ctx context.Context, n Notification) error {
	if s.endpoint == "" {
		return nil
	}
	data := formatMessage(n)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(data.body))
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

	resp, err := s.client.Do(req)
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

func (s *ntfySink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
