package daemon

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/forge"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/metrics"
	"git.home.luguber.info/inful/docpublish/internal/pipeline"
)

// maxWebhookBody bounds how much of a webhook payload is read.
const maxWebhookBody = 10 << 20

// webhookAck is the JSON acknowledgement returned for every webhook delivery.
type webhookAck struct {
	Status    string    `json:"status"` // accepted|ignored|rejected
	Reason    string    `json:"reason,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Event     string    `json:"event,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConfigSource yields the current configuration. Reading it per request lets
// secret or branch changes from a config reload apply without a restart.
type ConfigSource interface {
	GetConfig() *config.Config
}

// WebhookHandler turns forge push notifications into queued publish runs.
// Deliveries that do not concern the primary branch are acknowledged and
// dropped so the forge does not retry them.
type WebhookHandler struct {
	source   ConfigSource
	queue    *RunQueue
	recorder metrics.Recorder
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(source ConfigSource, queue *RunQueue, recorder metrics.Recorder) *WebhookHandler {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &WebhookHandler{
		source:   source,
		queue:    queue,
		recorder: recorder,
	}
}

// ServeHTTP handles a webhook delivery.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeAck(w, http.StatusMethodNotAllowed, webhookAck{Status: "rejected", Reason: "method not allowed"})
		return
	}

	cfg := h.source.GetConfig()
	if cfg == nil || cfg.Daemon == nil {
		h.writeAck(w, http.StatusServiceUnavailable, webhookAck{Status: "rejected", Reason: "daemon not configured"})
		return
	}

	provider, err := forge.Resolve(cfg.Daemon.Webhook.Provider, r)
	if err != nil {
		h.recorder.IncWebhookEvent("unknown", "rejected")
		slog.Warn("Webhook from unrecognized provider", logfields.Error(err))
		h.writeAck(w, http.StatusBadRequest, webhookAck{Status: "rejected", Reason: "unknown provider"})
		return
	}
	providerName := string(provider.GetType())

	eventType := provider.EventType(r.Header)
	if eventType != "push" {
		h.recorder.IncWebhookEvent(providerName, "ignored")
		slog.Debug("Ignoring non-push webhook event",
			logfields.Provider(providerName),
			logfields.Event(eventType))
		h.writeAck(w, http.StatusOK, webhookAck{Status: "ignored", Reason: "not a push event", Event: eventType})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.recorder.IncWebhookEvent(providerName, "rejected")
		slog.Warn("Failed to read webhook payload", logfields.Provider(providerName), logfields.Error(err))
		h.writeAck(w, http.StatusBadRequest, webhookAck{Status: "rejected", Reason: "unreadable payload"})
		return
	}

	if secret := cfg.Daemon.Webhook.Secret; secret != "" {
		if !provider.ValidateWebhook(payload, provider.Signature(r.Header), secret) {
			h.recorder.IncWebhookEvent(providerName, "rejected")
			slog.Warn("Webhook signature validation failed", logfields.Provider(providerName))
			h.writeAck(w, http.StatusUnauthorized, webhookAck{Status: "rejected", Reason: "invalid signature"})
			return
		}
	}

	event, err := provider.ParsePushEvent(payload)
	if err != nil {
		h.recorder.IncWebhookEvent(providerName, "rejected")
		slog.Warn("Failed to parse push event", logfields.Provider(providerName), logfields.Error(err))
		h.writeAck(w, http.StatusBadRequest, webhookAck{Status: "rejected", Reason: "invalid push payload"})
		return
	}

	if event.Deleted {
		h.recorder.IncWebhookEvent(providerName, "ignored")
		slog.Debug("Ignoring ref deletion push", logfields.Provider(providerName), logfields.Ref(event.Ref))
		h.writeAck(w, http.StatusOK, webhookAck{Status: "ignored", Reason: "ref deleted", Event: eventType})
		return
	}

	branch := cfg.Source.Branch
	if event.Branch != branch {
		h.recorder.IncWebhookEvent(providerName, "ignored")
		slog.Debug("Ignoring push to untracked ref",
			logfields.Provider(providerName),
			logfields.Ref(event.Ref),
			logfields.Branch(branch))
		h.writeAck(w, http.StatusOK, webhookAck{Status: "ignored", Reason: "branch not tracked", Event: eventType})
		return
	}

	job := &RunJob{
		RunID:      pipeline.NewRunID(),
		Trigger:    pipeline.TriggerPush,
		Repository: event.RepoName,
		Ref:        event.Ref,
		Commit:     event.Commit,
		Provider:   providerName,
		CreatedAt:  time.Now(),
	}
	if err := h.queue.Enqueue(job); err != nil {
		h.recorder.IncWebhookEvent(providerName, "rejected")
		slog.Warn("Failed to enqueue run for push",
			logfields.Provider(providerName),
			logfields.Commit(event.Commit),
			logfields.Error(err))
		h.writeAck(w, http.StatusServiceUnavailable, webhookAck{Status: "rejected", Reason: "queue full"})
		return
	}

	h.recorder.IncWebhookEvent(providerName, "accepted")
	slog.Info("Webhook push accepted",
		logfields.Provider(providerName),
		logfields.Repository(event.RepoName),
		logfields.Ref(event.Ref),
		logfields.Commit(event.Commit),
		logfields.RunID(job.RunID))
	h.writeAck(w, http.StatusAccepted, webhookAck{Status: "accepted", RunID: job.RunID, Event: eventType})
}

func (h *WebhookHandler) writeAck(w http.ResponseWriter, status int, ack webhookAck) {
	ack.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ack); err != nil {
		slog.Warn("Failed to write webhook acknowledgement", logfields.Error(err))
	}
}
