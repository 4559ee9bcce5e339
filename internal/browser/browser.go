// Package browser exposes headless-browser automation as a narrow
// capability: navigate, wait for the DOM to settle, snapshot the rendered
// HTML. Crawlers depend on these interfaces only.
package browser

import (
	"context"
	"time"
)

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one browser tab. Close must be called on every exit path.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitReady(ctx context.Context) error
	Wait(ctx context.Context, d time.Duration) error
	HTML(ctx context.Context) (string, error)
	Close() error
}
