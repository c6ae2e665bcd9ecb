package runtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"time"

	"github.com/lorekit/lorekit/internal/core/domain"
	"github.com/lorekit/lorekit/internal/logger"
)

// Installer download bounds. Any real runtime binary is tens of
// megabytes; an artifact below the floor is a truncated or error-page
// download and must never be executed.
const (
	minInstallerSize     = 1 << 20 // 1MB
	downloadAttempts     = 3
	downloadRetryDelay   = 2 * time.Second
	defaultDownloadLimit = 30 * time.Minute
)

// installer downloads and installs the Ollama runtime for the current
// platform.
type installer struct {
	client *http.Client

	// binDir is where standalone binaries are placed.
	binDir string

	// artifactURL overrides the platform URL, for tests.
	artifactURL string
}

func newInstaller(binDir string) *installer {
	return &installer{
		client: &http.Client{Timeout: defaultDownloadLimit},
		binDir: binDir,
	}
}

// platformArtifactURL returns the download URL for the current OS and
// architecture.
func (i *installer) platformArtifactURL() (string, error) {
	if i.artifactURL != "" {
		return i.artifactURL, nil
	}

	switch goruntime.GOOS {
	case "linux":
		return "https://ollama.com/download/ollama-linux-" + goruntime.GOARCH, nil
	case "darwin":
		return "https://ollama.com/download/ollama-darwin", nil
	case "windows":
		return "https://ollama.com/download/OllamaSetup.exe", nil
	default:
		return "", fmt.Errorf("no runtime installer for %s/%s", goruntime.GOOS, goruntime.GOARCH)
	}
}

// Install downloads the runtime artifact, verifies its plausibility and
// installs it. Returns the path of the installed binary.
func (i *installer) Install(ctx context.Context) (string, error) {
	url, err := i.platformArtifactURL()
	if err != nil {
		return "", err
	}

	artifact, err := i.download(ctx, url)
	if err != nil {
		return "", err
	}
	defer os.Remove(artifact)

	if goruntime.GOOS == "windows" {
		return i.runSetup(ctx, artifact)
	}
	return i.placeBinary(artifact)
}

// download fetches the artifact to a temp file with bounded retries,
// rejecting implausibly small results before anything executes them.
func (i *installer) download(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= downloadAttempts; attempt++ {
		path, err := i.downloadOnce(ctx, url)
		if err == nil {
			return path, nil
		}
		lastErr = err

		logger.Warn("Runtime download failed (attempt %d/%d): %v", attempt, downloadAttempts, err)
		if attempt == downloadAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(downloadRetryDelay):
		}
	}
	return "", fmt.Errorf("downloading runtime: %w", lastErr)
}

func (i *installer) downloadOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "lorekit-runtime-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close artifact: %w", closeErr)
	}

	if written < minInstallerSize {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("artifact is %d bytes, below %d minimum: %w",
			written, minInstallerSize, domain.ErrCorruptedDownload)
	}

	return tmp.Name(), nil
}

// placeBinary moves a standalone runtime binary into binDir and marks
// it executable.
func (i *installer) placeBinary(artifact string) (string, error) {
	if err := os.MkdirAll(i.binDir, 0o755); err != nil {
		return "", fmt.Errorf("creating bin directory: %w", err)
	}

	dest := filepath.Join(i.binDir, "ollama")

	// Stream rather than slurp: the artifact is a multi-hundred-megabyte
	// binary and may sit on a different filesystem than binDir.
	src, err := os.Open(artifact)
	if err != nil {
		return "", fmt.Errorf("opening artifact: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return "", fmt.Errorf("creating binary: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dest)
		return "", fmt.Errorf("installing binary: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("installing binary: %w", err)
	}
	// The create mode is subject to umask.
	if err := os.Chmod(dest, 0o755); err != nil {
		return "", fmt.Errorf("marking binary executable: %w", err)
	}

	logger.Info("Installed runtime binary at %s", dest)
	return dest, nil
}

// runSetup executes a verified Windows setup artifact silently and
// returns the expected binary name for PATH lookup afterwards.
func (i *installer) runSetup(ctx context.Context, artifact string) (string, error) {
	renamed := artifact + ".exe"
	if err := os.Rename(artifact, renamed); err != nil {
		return "", fmt.Errorf("preparing setup: %w", err)
	}
	defer os.Remove(renamed)

	cmd := exec.CommandContext(ctx, renamed, "/VERYSILENT", "/NORESTART")
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("running setup: %w (output: %.200s)", err, out)
	}

	return "ollama", nil
}
