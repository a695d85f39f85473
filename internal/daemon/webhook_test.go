package daemon

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"git.home.luguber.info/inful/docpublish/internal/config"
)

const webhookTestSecret = "test-webhook-secret"

// staticConfig satisfies ConfigSource without a running daemon.
type staticConfig struct {
	cfg *config.Config
}

func (s *staticConfig) GetConfig() *config.Config { return s.cfg }

func webhookTestConfig() *config.Config {
	return &config.Config{
		Version: "1.0",
		Source: config.SourceConfig{
			URL:    "https://github.com/acme/docs.git",
			Branch: "main",
		},
		Publish: config.PublishConfig{Branch: "pages"},
		Daemon: &config.DaemonConfig{
			HTTP: config.HTTPConfig{WebhookPort: 8081, AdminPort: 8082},
			Webhook: config.WebhookConfig{
				Path:     "/hooks/push",
				Secret:   webhookTestSecret,
				Provider: config.ProviderGitHub,
			},
			Queue: config.QueueConfig{Size: 4},
		},
	}
}

func githubPushPayload(ref, commit string) []byte {
	payload := map[string]any{
		"ref":   ref,
		"after": commit,
		"repository": map[string]any{
			"full_name": "acme/docs",
			"clone_url": "https://github.com/acme/docs.git",
		},
		"pusher":      map[string]any{"name": "dev"},
		"head_commit": map[string]any{"id": commit},
	}
	data, _ := json.Marshal(payload)
	return data
}

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newPushRequest(payload []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/hooks/push", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	return req
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) webhookAck {
	t.Helper()
	var ack webhookAck
	if err := json.NewDecoder(rec.Body).Decode(&ack); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	return ack
}

func TestWebhookAcceptsPushToPrimaryBranch(t *testing.T) {
	cfg := webhookTestConfig()
	queue := NewRunQueue(4, &fakeExecutor{}, nil, nil)
	handler := NewWebhookHandler(&staticConfig{cfg}, queue, nil)

	payload := githubPushPayload("refs/heads/main", "abc1234def")
	req := newPushRequest(payload, signPayload(payload, webhookTestSecret))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	ack := decodeAck(t, rec)
	if ack.Status != "accepted" {
		t.Errorf("expected status accepted, got %s", ack.Status)
	}
	if ack.RunID == "" {
		t.Error("expected run ID in ack")
	}
	if queue.Depth() != 1 {
		t.Fatalf("expected 1 queued job, got %d", queue.Depth())
	}
}

func TestWebhookIgnoresOtherBranches(t *testing.T) {
	cfg := webhookTestConfig()
	queue := NewRunQueue(4, &fakeExecutor{}, nil, nil)
	handler := NewWebhookHandler(&staticConfig{cfg}, queue, nil)

	payload := githubPushPayload("refs/heads/feature/nice-idea", "abc1234def")
	req := newPushRequest(payload, signPayload(payload, webhookTestSecret))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ack := decodeAck(t, rec)
	if ack.Status != "ignored" {
		t.Errorf("expected status ignored, got %s", ack.Status)
	}
	if queue.Depth() != 0 {
		t.Errorf("expected empty queue, got depth %d", queue.Depth())
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	cfg := webhookTestConfig()
	queue := NewRunQueue(4, &fakeExecutor{}, nil, nil)
	handler := NewWebhookHandler(&staticConfig{cfg}, queue, nil)

	payload := githubPushPayload("refs/heads/main", "abc1234def")
	req := newPushRequest(payload, signPayload(payload, "wrong-secret"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if queue.Depth() != 0 {
		t.Errorf("expected empty queue, got depth %d", queue.Depth())
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	cfg := webhookTestConfig()
	queue := NewRunQueue(4, &fakeExecutor{}, nil, nil)
	handler := NewWebhookHandler(&staticConfig{cfg}, queue, nil)

	payload := githubPushPayload("refs/heads/main", "abc1234def")
	req := newPushRequest(payload, "")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookSkipsValidationWithoutSecret(t *testing.T) {
	cfg := webhookTestConfig()
	cfg.Daemon.Webhook.Secret = ""
	queue := NewRunQueue(4, &fakeExecutor{}, nil, nil)
	handler := NewWebhookHandler(&staticConfig{cfg}, queue, nil)

	payload := githubPushPayload("refs/heads/main", "abc1234def")
	req := newPushRequest(payload, "")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookIgnoresNonPushEvents(t *testing.T) {
	cfg := webhookTestConfig()
	queue := NewRunQueue(4, &fakeExecutor{}, nil, nil)
	handler := NewWebhookHandler(&staticConfig{cfg}, queue, nil)

	req := httptest.NewRequest(http.MethodPost, "/hooks/push", bytes.NewReader([]byte("{}")))
	req.Header.Set("X-GitHub-Event", "ping")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ack := decodeAck(t, rec)
	if ack.Status != "ignored" {
		t.Errorf("expected status ignored, got %s", ack.Status)
	}
	if ack.Event != "ping" {
		t.Errorf("expected event ping, got %s", ack.Event)
	}
}

func TestWebhookIgnoresRefDeletion(t *testing.T) {
	cfg := webhookTestConfig()
	queue := NewRunQueue(4, &fakeExecutor{}, nil, nil)
	handler := NewWebhookHandler(&staticConfig{cfg}, queue, nil)

	payload := []byte(`{"ref":"refs/heads/main","after":"0000000000000000000000000000000000000000","deleted":true,"repository":{"full_name":"acme/docs"},"pusher":{"name":"dev"}}`)
	req := newPushRequest(payload, signPayload(payload, webhookTestSecret))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	ack := decodeAck(t, rec)
	if ack.Status != "ignored" {
		t.Errorf("expected status ignored, got %s", ack.Status)
	}
	if queue.Depth() != 0 {
		t.Errorf("expected empty queue, got depth %d", queue.Depth())
	}
}

func TestWebhookRejectsWhenQueueFull(t *testing.T) {
	cfg := webhookTestConfig()
	queue := NewRunQueue(2, &fakeExecutor{}, nil, nil)
	for i := range 2 {
		if err := queue.Enqueue(&RunJob{RunID: fmt.Sprintf("run-%d", i)}); err != nil {
			t.Fatalf("seed enqueue %d failed: %v", i, err)
		}
	}
	handler := NewWebhookHandler(&staticConfig{cfg}, queue, nil)

	payload := githubPushPayload("refs/heads/main", "abc1234def")
	req := newPushRequest(payload, signPayload(payload, webhookTestSecret))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	ack := decodeAck(t, rec)
	if ack.Status != "rejected" {
		t.Errorf("expected status rejected, got %s", ack.Status)
	}
}

func TestWebhookRejectsNonPost(t *testing.T) {
	cfg := webhookTestConfig()
	queue := NewRunQueue(4, &fakeExecutor{}, nil, nil)
	handler := NewWebhookHandler(&staticConfig{cfg}, queue, nil)

	req := httptest.NewRequest(http.MethodGet, "/hooks/push", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("expected Allow: POST, got %q", allow)
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	cfg := webhookTestConfig()
	cfg.Daemon.Webhook.Secret = ""
	queue := NewRunQueue(4, &fakeExecutor{}, nil, nil)
	handler := NewWebhookHandler(&staticConfig{cfg}, queue, nil)

	payload := []byte(`{"no_ref": true}`)
	req := newPushRequest(payload, "")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
