package device

import (
	"context"
	"time"

	"github.com/rpggio/screenmark/internal/domain/recording"
)

// StaticLocator prefers the location in the client report and falls back to
// a fixed position.
type StaticLocator struct {
	Fallback *recording.Location
	Now      func() time.Time
}

// RequestLocation returns the best known position.
func (l *StaticLocator) RequestLocation(ctx context.Context) (recording.Location, error) {
	if err := ctx.Err(); err != nil {
		return recording.Location{}, err
	}
	if report, ok := ReportFromContext(ctx); ok && report.Location != nil {
		return *report.Location, nil
	}
	if l.Fallback == nil {
		return recording.Location{}, ErrLocationUnavailable
	}
	loc := *l.Fallback
	if loc.Timestamp.IsZero() {
		now := time.Now
		if l.Now != nil {
			now = l.Now
		}
		loc.Timestamp = now()
	}
	return loc, nil
}
