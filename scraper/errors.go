package scraper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/organvm-iii-ergon/public-record-data-scrapper-sub000/browser"
)

// ErrCaptcha indicates the portal presented a CAPTCHA challenge.
// Retrying cannot change the outcome.
type ErrCaptcha struct {
	Err error
}

func (e ErrCaptcha) Error() string {
	if e.Err != nil {
		return fmt.Errorf("CAPTCHA detected: %w", e.Err).Error()
	}
	return "CAPTCHA detected"
}

func (e ErrCaptcha) Unwrap() error {
	return e.Err
}

// ErrAuthRequired indicates the portal demands credentials we do not have.
type ErrAuthRequired struct {
	Err error
}

func (e ErrAuthRequired) Error() string {
	if e.Err != nil {
		return fmt.Errorf("authentication required: %w", e.Err).Error()
	}
	return "authentication required"
}

func (e ErrAuthRequired) Unwrap() error {
	return e.Err
}

// ErrPortalOffline indicates an explicit outage or maintenance notice.
type ErrPortalOffline struct {
	Err error
}

func (e ErrPortalOffline) Error() string {
	if e.Err != nil {
		return fmt.Errorf("portal offline: %w", e.Err).Error()
	}
	return "portal offline"
}

func (e ErrPortalOffline) Unwrap() error {
	return e.Err
}

// terminalError wraps a terminal indicator string into its typed error.
func terminalError(indicator string) error {
	switch indicator {
	case "captcha":
		return ErrCaptcha{}
	case "auth":
		return ErrAuthRequired{}
	case "offline":
		return ErrPortalOffline{}
	default:
		return nil
	}
}

// nonRetryableMessages are matched as a fallback for errors bubbling out of
// collaborators that do not use the typed errors above.
var nonRetryableMessages = []string{
	"captcha",
	"authentication required",
	"login required",
	"portal offline",
	"service unavailable",
}

// IsNonRetryable reports whether retrying the failed operation could
// possibly change the outcome.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}

	var captcha ErrCaptcha
	if errors.As(err, &captcha) {
		return true
	}
	var auth ErrAuthRequired
	if errors.As(err, &auth) {
		return true
	}
	var offline ErrPortalOffline
	if errors.As(err, &offline) {
		return true
	}
	if errors.Is(err, browser.ErrNotSupported) {
		return true
	}

	message := strings.ToLower(err.Error())
	for _, marker := range nonRetryableMessages {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var captcha ErrCaptcha
	if errors.As(err, &captcha) {
		return "captcha"
	}
	var auth ErrAuthRequired
	if errors.As(err, &auth) {
		return "auth_required"
	}
	var offline ErrPortalOffline
	if errors.As(err, &offline) {
		return "portal_offline"
	}
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "timeout") || strings.Contains(message, "deadline exceeded") {
		return "timeout"
	}
	if strings.Contains(message, "navigate") || strings.Contains(message, "fetch") {
		return "navigation"
	}
	return "other"
}
