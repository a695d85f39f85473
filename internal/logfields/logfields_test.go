package logfields

import (
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"RunID", KeyRunID, "run-123", RunID("run-123")},
		{"Trigger", KeyTrigger, "webhook", Trigger("webhook")},
		{"RunStatus", KeyRunStatus, "queued", RunStatus("queued")},
		{"Stage", KeyStage, "checkout", Stage("checkout")},
		{"Repository", KeyRepo, "org/site", Repository("org/site")},
		{"Branch", KeyBranch, "main", Branch("main")},
		{"Ref", KeyRef, "refs/heads/main", Ref("refs/heads/main")},
		{"Commit", KeyCommit, "abc1234", Commit("abc1234")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Document", KeyDocument, "basics.md", Document("basics.md")},
		{"Artifact", KeyArtifact, "examples/zoo.mvsj", Artifact("examples/zoo.mvsj")},
		{"Provider", KeyProvider, "github", Provider("github")},
		{"Event", KeyEvent, "push", Event("push")},
		{"Worker", KeyWorker, "worker-0", Worker("worker-0")},
		{"Name", KeyName, "n", Name("n")},
		{"URL", KeyURL, "http://example", URL("http://example")},
		{"Version", KeyVersion, "1.4.2", Version("1.4.2")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

// TestDurationHelper verifies the numeric helper key.
func TestDurationHelper(t *testing.T) {
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
