// Package diag runs advisory environment probes after a terminal auth
// failure and turns what it finds into a short human-readable hint. It is
// never on the critical path: the authoritative state has already moved to
// error by the time a Reporter runs, and a Reporter never fails.
package diag

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskmith/authkit/internal/logging"
)

const probeTimeout = 3 * time.Second

// Reporter probes backend reachability and client storage.
type Reporter struct {
	baseURL     string
	storagePath string
	http        *http.Client
	log         logging.Logger
}

func NewReporter(baseURL, storagePath string, log logging.Logger) *Reporter {
	if log == nil {
		log = logging.Nop()
	}
	return &Reporter{
		baseURL:     baseURL,
		storagePath: storagePath,
		http:        &http.Client{Timeout: probeTimeout},
		log:         log,
	}
}

// Hint runs the probes and composes a hint. Always returns non-empty text;
// probe failures become part of the hint rather than errors.
func (r *Reporter) Hint(ctx context.Context) string {
	var findings []string

	if msg := r.probeBackend(ctx); msg != "" {
		findings = append(findings, msg)
	}
	if msg := r.probeStorage(); msg != "" {
		findings = append(findings, msg)
	}

	if len(findings) == 0 {
		return "backend reachable and local storage writable; the failure was likely transient — try again"
	}
	hint := strings.Join(findings, "; ")
	r.log.Info(ctx, "diagnostics", "hint", hint)
	return hint
}

func (r *Reporter) probeBackend(ctx context.Context) string {
	if r.baseURL == "" {
		return "no backend URL configured"
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.baseURL, nil)
	if err != nil {
		return fmt.Sprintf("backend URL %q is malformed", r.baseURL)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Sprintf("backend %s is unreachable — check the network connection or the configured URL", r.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Sprintf("backend %s is reachable but unhealthy (%s)", r.baseURL, resp.Status)
	}
	return ""
}

// probeStorage checks that the client-state location accepts writes, the
// closest analogue of private-browsing storage blocks.
func (r *Reporter) probeStorage() string {
	if r.storagePath == "" {
		return ""
	}

	dir := filepath.Dir(r.storagePath)
	f, err := os.CreateTemp(dir, ".authkit-probe-*")
	if err != nil {
		return fmt.Sprintf("local storage at %s is not writable — guest mode persistence will not work", dir)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return ""
}
