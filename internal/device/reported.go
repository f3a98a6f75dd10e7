package device

import (
	"context"
	"log/slog"

	"github.com/rpggio/screenmark/internal/domain/capture"
)

// Reported answers capability and permission requests from the client report
// in the request context.
type Reported struct {
	logger *slog.Logger
}

// NewReported creates a Reported adapter.
func NewReported(logger *slog.Logger) *Reported {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reported{logger: logger}
}

// DetectCapabilities returns the reported capabilities.
func (r *Reported) DetectCapabilities(ctx context.Context) (capture.Capabilities, error) {
	report, ok := ReportFromContext(ctx)
	if !ok {
		return capture.Capabilities{}, ErrNoReport
	}
	return report.Capabilities, nil
}

// RequestPermission hands out a fresh remote device when the client granted
// capture.
func (r *Reported) RequestPermission(ctx context.Context) (capture.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report, ok := ReportFromContext(ctx)
	if !ok {
		return nil, ErrNoReport
	}
	if !report.PermissionGranted {
		return nil, ErrPermissionDenied
	}
	r.logger.Debug("capture permission granted")
	return NewRemote(), nil
}
