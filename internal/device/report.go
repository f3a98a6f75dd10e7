// Package device adapts capture primitives that live in the client to the
// coordinator's collaborator interfaces. The client reports what it can do
// with each start request; the adapters answer from that report.
package device

import (
	"context"
	"errors"

	"github.com/rpggio/screenmark/internal/domain/capture"
	"github.com/rpggio/screenmark/internal/domain/recording"
)

var (
	// ErrNoReport means the request carried no client report.
	ErrNoReport = errors.New("no client capability report")
	// ErrPermissionDenied means the user declined the capture prompt.
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrLocationUnavailable means no position is known.
	ErrLocationUnavailable = errors.New("location unavailable")
)

// Report is what the client says about its capture environment.
type Report struct {
	Capabilities      capture.Capabilities
	PermissionGranted bool
	Location          *recording.Location
}

type reportKey struct{}

// WithReport attaches a client report to ctx.
func WithReport(ctx context.Context, r Report) context.Context {
	return context.WithValue(ctx, reportKey{}, r)
}

// ReportFromContext returns the report attached to ctx, if any.
func ReportFromContext(ctx context.Context) (Report, bool) {
	r, ok := ctx.Value(reportKey{}).(Report)
	return r, ok
}
