package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"inkwell/internal/interfaces"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/samber/do"
)

// WebhookNotifier posts notification events to the platform's webhook
// endpoint. Delivery is best effort with bounded retries; callers treat
// Notify as fire and forget.
type WebhookNotifier struct {
	url    string
	client *httpclient.Client
}

func NewWebhookNotifier(container *do.Injector) (interfaces.Notifier, error) {
	vs := do.MustInvokeNamed[map[string]string](container, "envs")

	backoff := heimdall.NewConstantBackoff(500*time.Millisecond, 100*time.Millisecond)
	client := httpclient.NewClient(
		httpclient.WithHTTPTimeout(5*time.Second),
		httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
		httpclient.WithRetryCount(2),
	)

	return &WebhookNotifier{
		url:    vs["NOTIFY_WEBHOOK_URL"],
		client: client,
	}, nil
}

type notifyPayload struct {
	UserID  int64          `json:"user_id"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
	SentAt  time.Time      `json:"sent_at"`
}

func (notifier *WebhookNotifier) Notify(ctx context.Context, userID int64, kind string, payload map[string]any) error {
	if notifier.url == "" {
		log.Println("notify (no webhook configured):", "user:", userID, "kind:", kind)
		return nil
	}

	body, err := json.Marshal(notifyPayload{
		UserID:  userID,
		Kind:    kind,
		Payload: payload,
		SentAt:  time.Now(),
	})
	if err != nil {
		return err
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")

	res, err := notifier.client.Post(notifier.url, bytes.NewReader(body), headers)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", res.StatusCode)
	}
	return nil
}
