// Package schedule runs the periodic report-refresh and retention
// cycles and keeps each report's published message reconciled with the
// latest document.
package schedule

import (
	"context"
	"errors"

	"github.com/agorabot/agora/internal/core/report"
)

// ErrMessageNotFound is returned by Publisher.Edit when the referenced
// external message no longer exists. It is not a failure: the
// reconciler treats it as the signal to recreate the message.
var ErrMessageNotFound = errors.New("published message not found")

// ErrRefNotFound is returned by RefStore.Get when no reference has been
// persisted for a report kind yet.
var ErrRefNotFound = errors.New("report reference not found")

// Ref records where a report kind was last published. At most one
// reference exists per kind.
type Ref struct {
	Kind          string
	DestinationID int64
	MessageID     int64
}

// Publisher is the external publish target. Send creates a new message
// and returns its id; Edit overwrites an existing message in place and
// returns ErrMessageNotFound if it vanished out-of-band.
type Publisher interface {
	Send(ctx context.Context, destinationID int64, doc report.Document) (int64, error)
	Edit(ctx context.Context, destinationID, messageID int64, doc report.Document) error
}

// RefStore persists published-report references.
type RefStore interface {
	Get(ctx context.Context, kind string) (Ref, error)
	Upsert(ctx context.Context, ref Ref) error
}

// Directory enumerates the tracked entities of a category, including
// the creation timestamps newest-first reports need.
type Directory interface {
	ListEntities(ctx context.Context, category string) ([]report.Entity, error)
}

// DirectorySyncer reconciles the directory against the platform's
// current channel listing. Implemented by the tracked-channel store.
type DirectorySyncer interface {
	Sync(ctx context.Context, category string, entities []report.Entity) error
}

// PlatformSource supplies the platform's live channel listing per
// category. Owned by the platform-integration layer; optional.
type PlatformSource interface {
	ListChannels(ctx context.Context, category string) ([]report.Entity, error)
}
