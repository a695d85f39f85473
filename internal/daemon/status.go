package daemon

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/eventstore"
	"git.home.luguber.info/inful/docpublish/internal/version"
)

// StatusPageData represents data for status page rendering.
type StatusPageData struct {
	DaemonInfo  DaemonInfo      `json:"daemon_info"`
	Queue       QueueInfo       `json:"queue"`
	ActiveRun   *RunStatusInfo  `json:"active_run,omitempty"`
	LastRun     *RunStatusInfo  `json:"last_run,omitempty"`
	RecentRuns  []RunStatusInfo `json:"recent_runs"`
	LastUpdated time.Time       `json:"last_updated"`
}

// DaemonInfo holds basic daemon information.
type DaemonInfo struct {
	Status     Status    `json:"status"`
	Version    string    `json:"version"`
	StartTime  time.Time `json:"start_time"`
	Uptime     string    `json:"uptime"`
	ConfigFile string    `json:"config_file,omitempty"`
}

// QueueInfo reports run queue load.
type QueueInfo struct {
	Depth    int `json:"depth"`
	Capacity int `json:"capacity"`
}

// RunStatusInfo is the status-page view of one run.
type RunStatusInfo struct {
	RunID           string            `json:"run_id"`
	Trigger         string            `json:"trigger,omitempty"`
	Status          string            `json:"status"`
	StartedAt       time.Time         `json:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	Duration        string            `json:"duration,omitempty"`
	StagesCompleted int               `json:"stages_completed"`
	Published       bool              `json:"published"`
	PublishedCommit string            `json:"published_commit,omitempty"`
	ErrorStage      string            `json:"error_stage,omitempty"`
	Error           string            `json:"error,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	StageDurations  map[string]string `json:"stage_durations,omitempty"`
}

// runStatusFromSummary converts a projection summary into the status-page
// shape. Error messages are truncated to keep responses compact.
func runStatusFromSummary(s *eventstore.RunSummary) RunStatusInfo {
	info := RunStatusInfo{
		RunID:           s.RunID,
		Trigger:         s.Trigger,
		Status:          s.Status,
		StartedAt:       s.StartedAt,
		CompletedAt:     s.CompletedAt,
		StagesCompleted: s.StagesCompleted,
		Published:       s.Published,
		PublishedCommit: s.PublishedCommit,
		ErrorStage:      s.ErrorStage,
	}
	if s.Duration > 0 {
		info.Duration = s.Duration.Truncate(time.Millisecond).String()
	}
	if s.ErrorMessage != "" {
		msg := s.ErrorMessage
		if len(msg) > 300 {
			msg = msg[:300] + "…"
		}
		info.Error = msg
	}
	if s.ReportData != nil {
		info.Summary = s.ReportData.Summary
		if len(s.ReportData.StageDurations) > 0 {
			stages := make(map[string]string, len(s.ReportData.StageDurations))
			for stage, ms := range s.ReportData.StageDurations {
				stages[stage] = (time.Duration(ms) * time.Millisecond).String()
			}
			info.StageDurations = stages
		}
	}
	return info
}

// GenerateStatusData collects and formats status information.
func (d *Daemon) GenerateStatusData() *StatusPageData {
	status := &StatusPageData{
		LastUpdated: time.Now(),
		RecentRuns:  []RunStatusInfo{},
	}

	status.DaemonInfo = DaemonInfo{
		Status:     d.GetStatus(),
		Version:    version.Version,
		StartTime:  d.GetStartTime(),
		Uptime:     time.Since(d.GetStartTime()).Round(time.Second).String(),
		ConfigFile: d.configFilePath,
	}

	if d.queue != nil {
		status.Queue = QueueInfo{Depth: d.queue.Depth(), Capacity: d.queue.Capacity()}
	}

	if d.runProjection != nil {
		if active := d.runProjection.GetActiveRun(); active != nil {
			info := runStatusFromSummary(active)
			status.ActiveRun = &info
		}
		if last := d.runProjection.GetLastFinishedRun(); last != nil {
			info := runStatusFromSummary(last)
			status.LastRun = &info
		}
		for _, s := range d.runProjection.GetHistory() {
			status.RecentRuns = append(status.RecentRuns, runStatusFromSummary(s))
		}
	}

	return status
}

// StatusHandler serves the status page as JSON or HTML.
func (d *Daemon) StatusHandler(w http.ResponseWriter, r *http.Request) {
	statusData := d.GenerateStatusData()

	if r.Header.Get("Accept") == "application/json" || r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statusData); err != nil {
			slog.Error("failed to encode status json", "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	t, err := template.New("status").Parse(statusPageTemplate)
	if err != nil {
		http.Error(w, fmt.Sprintf("Template error: %v", err), http.StatusInternalServerError)
		return
	}
	if err := t.Execute(w, statusData); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render template: %v", err), http.StatusInternalServerError)
		return
	}
}

// RunsHandler serves recent run history as JSON. The limit query parameter
// bounds how many runs are returned, newest first.
func (d *Daemon) RunsHandler(w http.ResponseWriter, r *http.Request) {
	runs := []RunStatusInfo{}
	if d.runProjection != nil {
		for _, s := range d.runProjection.GetHistory() {
			runs = append(runs, runStatusFromSummary(s))
		}
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit >= 0 && limit < len(runs) {
			runs = runs[:limit]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"runs":  runs,
		"count": len(runs),
	}); err != nil {
		slog.Error("failed to encode runs json", "error", err)
	}
}

const statusPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>DocPublish Daemon Status</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 20px; background: #f5f5f5; }
        .container { max-width: 1200px; margin: 0 auto; background: white; padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .header { border-bottom: 2px solid #eee; padding-bottom: 20px; margin-bottom: 30px; }
        .status { display: inline-block; padding: 4px 12px; border-radius: 20px; font-weight: bold; text-transform: uppercase; font-size: 12px; }
        .status.running { background: #d4edda; color: #155724; }
        .status.stopped { background: #f8d7da; color: #721c24; }
        .metrics { display: grid; grid-template-columns: repeat(auto-fit, minmax(250px, 1fr)); gap: 20px; margin: 30px 0; }
        .metric-card { background: #f8f9fa; padding: 15px; border-radius: 6px; border-left: 4px solid #007bff; }
        .metric-value { font-size: 24px; font-weight: bold; color: #007bff; }
        .metric-label { color: #666; font-size: 14px; margin-top: 4px; }
        .run-grid { display: grid; gap: 15px; }
        .run-card { background: #f8f9fa; padding: 15px; border-radius: 6px; border: 1px solid #dee2e6; }
        .run-header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 10px; }
        .run-status { padding: 2px 8px; border-radius: 12px; font-size: 11px; font-weight: bold; }
        .success { background: #d4edda; color: #155724; }
        .failed { background: #f8d7da; color: #721c24; }
        .canceled { background: #fff3cd; color: #856404; }
        .running { background: #cce5ff; color: #004085; }
        .queued { background: #e9ecef; color: #495057; }
        .updated { color: #666; font-size: 12px; text-align: center; margin-top: 20px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>DocPublish Daemon Status</h1>
            <p>
                <span class="status {{if eq .DaemonInfo.Status "running"}}running{{else}}stopped{{end}}">{{.DaemonInfo.Status}}</span>
                Version {{.DaemonInfo.Version}} • Uptime: {{.DaemonInfo.Uptime}}
            </p>
        </div>

        <div class="metrics">
            <div class="metric-card">
                <div class="metric-value">{{.Queue.Depth}}/{{.Queue.Capacity}}</div>
                <div class="metric-label">Queued Runs</div>
            </div>
            <div class="metric-card">
                <div class="metric-value">{{if .ActiveRun}}1{{else}}0{{end}}</div>
                <div class="metric-label">Active Runs</div>
            </div>
            <div class="metric-card">
                <div class="metric-value">{{len .RecentRuns}}</div>
                <div class="metric-label">Recorded Runs</div>
            </div>
            <div class="metric-card">
                <div class="metric-value">{{if .LastRun}}{{.LastRun.Status}}{{else}}none{{end}}</div>
                <div class="metric-label">Last Outcome</div>
            </div>
        </div>

        {{if .ActiveRun}}
        <h2>Active Run</h2>
        <div class="run-grid">
            <div class="run-card">
                <div class="run-header">
                    <strong>{{.ActiveRun.RunID}}</strong>
                    <span class="run-status {{.ActiveRun.Status}}">{{.ActiveRun.Status}}</span>
                </div>
                <div style="color: #666; font-size: 14px;">Trigger: {{.ActiveRun.Trigger}} • Started: {{.ActiveRun.StartedAt.Format "2006-01-02 15:04:05"}}</div>
            </div>
        </div>
        {{end}}

        <h2>Recent Runs</h2>
        <div class="run-grid">
            {{range .RecentRuns}}
            <div class="run-card">
                <div class="run-header">
                    <strong>{{.RunID}}</strong>
                    <span class="run-status {{.Status}}">{{.Status}}</span>
                </div>
                <div style="color: #666; font-size: 14px;">
                    Trigger: {{.Trigger}}{{if .Duration}} • Duration: {{.Duration}}{{end}}{{if .PublishedCommit}} • Published: {{.PublishedCommit}}{{end}}
                </div>
                {{if .Summary}}<div style="font-size: 13px; margin-top: 5px;">{{.Summary}}</div>{{end}}
                {{if .Error}}
                <div style="color: #dc3545; font-size: 12px; margin-top: 5px;">{{if .ErrorStage}}[{{.ErrorStage}}] {{end}}{{.Error}}</div>
                {{end}}
            </div>
            {{end}}
        </div>

        <div class="updated">Last updated: {{.LastUpdated.Format "2006-01-02 15:04:05 UTC"}}</div>
    </div>
</body>
</html>`
