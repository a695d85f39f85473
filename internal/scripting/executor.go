package scripting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/config"
)

// baseEnvPassthrough names the host variables every snippet receives.
// Everything else must be listed in runtime.env_passthrough.
var baseEnvPassthrough = []string{"PATH", "HOME", "LANG"}

// stderrTailLimit bounds how much interpreter stderr is quoted in errors.
const stderrTailLimit = 2048

// Result captures one snippet execution.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Executor runs snippet bodies with the located runtime. The environment is
// an allowlist: host variables cross into snippet processes only when named.
type Executor struct {
	runtime     *Runtime
	timeout     time.Duration
	passthrough []string
}

// NewExecutor creates an executor for the located runtime.
func NewExecutor(rt *Runtime, cfg config.RuntimeConfig) *Executor {
	passthrough := make([]string, 0, len(baseEnvPassthrough)+len(cfg.EnvPassthrough))
	passthrough = append(passthrough, baseEnvPassthrough...)
	passthrough = append(passthrough, cfg.EnvPassthrough...)

	return &Executor{
		runtime:     rt,
		timeout:     cfg.Timeout(),
		passthrough: passthrough,
	}
}

// RunSnippet executes body with the interpreter, working directory workDir.
// Snippets write their artifacts relative to workDir.
func (e *Executor) RunSnippet(ctx context.Context, body string, workDir string) (*Result, error) {
	scriptPath, err := writeSnippetFile(workDir, body)
	if err != nil {
		return nil, err
	}
	defer os.Remove(scriptPath)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.runtime.Interpreter, scriptPath) // #nosec G204 - interpreter resolved by the locator
	cmd.Dir = workDir
	cmd.Env = e.buildEnv()
	// Snippets may spawn children; kill the whole group on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Duration: elapsed}

	if ctx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("snippet timed out after %s%s", e.timeout, stderrTail(stderr.Bytes()))
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return result, fmt.Errorf("snippet exited with status %d%s", exitErr.ExitCode(), stderrTail(stderr.Bytes()))
		}
		return result, fmt.Errorf("snippet execution failed: %w", runErr)
	}
	return result, nil
}

func (e *Executor) buildEnv() []string {
	env := make([]string, 0, len(e.passthrough))
	for _, name := range e.passthrough {
		if value, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+value)
		}
	}
	return env
}

func writeSnippetFile(workDir, body string) (string, error) {
	f, err := os.CreateTemp(workDir, "snippet-*")
	if err != nil {
		return "", fmt.Errorf("write snippet: %w", err)
	}
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write snippet: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write snippet: %w", err)
	}
	return f.Name(), nil
}

// stderrTail renders the tail of captured stderr for error messages, or
// nothing when the snippet was silent.
func stderrTail(stderr []byte) string {
	trimmed := strings.TrimSpace(string(stderr))
	if trimmed == "" {
		return ""
	}
	if len(trimmed) > stderrTailLimit {
		trimmed = "..." + trimmed[len(trimmed)-stderrTailLimit:]
	}
	return ": " + trimmed
}
