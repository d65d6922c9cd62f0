package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/browser"
)

// Artifacts reports which diagnostics were actually written. A path is
// empty, not placeholder-filled, when its capture failed.
type Artifacts struct {
	ScreenshotPath string
	HTMLPath       string
}

// CaptureDiagnostics persists a screenshot and a markup snapshot of the page
// for human triage. Both captures are best-effort and isolated from each
// other, and no failure here is allowed to mask the error that triggered
// diagnostics: this function never returns an error.
func CaptureDiagnostics(ctx context.Context, page browser.Page, dir, basename string) Artifacts {
	var artifacts Artifacts
	if page == nil {
		return artifacts
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("diagnostics directory unavailable", slog.String("dir", dir), slog.Any("error", err))
		return artifacts
	}

	screenshotPath := filepath.Join(dir, fmt.Sprintf("%s.png", basename))
	if err := page.Screenshot(ctx, screenshotPath); err != nil {
		slog.Warn("screenshot capture failed", slog.String("path", screenshotPath), slog.Any("error", err))
	} else {
		artifacts.ScreenshotPath = screenshotPath
	}

	htmlPath := filepath.Join(dir, fmt.Sprintf("%s.html", basename))
	if content, err := page.Content(ctx); err != nil {
		slog.Warn("markup capture failed", slog.Any("error", err))
	} else if err := os.WriteFile(htmlPath, []byte(content), 0o644); err != nil {
		slog.Warn("markup write failed", slog.String("path", htmlPath), slog.Any("error", err))
	} else {
		artifacts.HTMLPath = htmlPath
	}

	return artifacts
}
