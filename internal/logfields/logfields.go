package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyTrigger    = "trigger"
	KeyRunStatus  = "run_status"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyRepo       = "repository"
	KeyBranch     = "branch"
	KeyRef        = "ref"
	KeyCommit     = "commit"
	KeyPath       = "path"
	KeyDocument   = "document"
	KeyArtifact   = "artifact"
	KeyProvider   = "provider"
	KeyEvent      = "event"
	KeyWorker     = "worker"
	KeyName       = "name"
	KeyURL        = "url"
	KeyVersion    = "version"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func RunStatus(s string) slog.Attr    { return slog.String(KeyRunStatus, s) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Ref(r string) slog.Attr          { return slog.String(KeyRef, r) }
func Commit(c string) slog.Attr       { return slog.String(KeyCommit, c) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Document(d string) slog.Attr     { return slog.String(KeyDocument, d) }
func Artifact(a string) slog.Attr     { return slog.String(KeyArtifact, a) }
func Provider(p string) slog.Attr     { return slog.String(KeyProvider, p) }
func Event(e string) slog.Attr        { return slog.String(KeyEvent, e) }
func Worker(w string) slog.Attr       { return slog.String(KeyWorker, w) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
