package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agorabot/agora/internal/core/report"
	"github.com/agorabot/agora/internal/metrics"
)

// Reconciler keeps exactly one live published message per report kind.
// If the previously published message vanished out-of-band, it is
// recreated and the stored reference repointed, never left dangling.
type Reconciler struct {
	refs RefStore
	pub  Publisher
	log  zerolog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(refs RefStore, pub Publisher, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		refs: refs,
		pub:  pub,
		log:  log.With().Str("component", "reconciler").Logger(),
	}
}

// PublishOrUpdate makes the external message for kind reflect doc.
//
//  1. Look up the stored reference.
//  2. If one exists, edit the message in place.
//  3. If there is no reference, or the message vanished, send a new
//     message at destinationID and upsert the reference.
func (r *Reconciler) PublishOrUpdate(ctx context.Context, kind string, destinationID int64, doc report.Document) error {
	ref, err := r.refs.Get(ctx, kind)
	switch {
	case err == nil && ref.MessageID != 0:
		editErr := r.pub.Edit(ctx, ref.DestinationID, ref.MessageID, doc)
		if editErr == nil {
			r.log.Debug().Str("kind", kind).Int64("message_id", ref.MessageID).Msg("updated published report")
			metrics.Publishes.WithLabelValues("edited").Inc()
			return nil
		}
		if !errors.Is(editErr, ErrMessageNotFound) {
			metrics.Publishes.WithLabelValues("failed").Inc()
			return fmt.Errorf("edit published report %q: %w", kind, editErr)
		}
		// Message was deleted out-of-band; fall through and recreate.
		r.log.Info().Str("kind", kind).Int64("message_id", ref.MessageID).Msg("published message vanished, recreating")

	case err == nil:
		// Reference row exists but was never published.

	case errors.Is(err, ErrRefNotFound):
		// First publish for this kind.

	default:
		return fmt.Errorf("look up report reference %q: %w", kind, err)
	}

	messageID, err := r.pub.Send(ctx, destinationID, doc)
	if err != nil {
		metrics.Publishes.WithLabelValues("failed").Inc()
		return fmt.Errorf("send report %q: %w", kind, err)
	}

	newRef := Ref{Kind: kind, DestinationID: destinationID, MessageID: messageID}
	if err := r.refs.Upsert(ctx, newRef); err != nil {
		return fmt.Errorf("persist report reference %q: %w", kind, err)
	}

	result := "created"
	if ref.MessageID != 0 {
		result = "recreated"
	}
	metrics.Publishes.WithLabelValues(result).Inc()
	r.log.Info().Str("kind", kind).Int64("message_id", messageID).Str("result", result).Msg("published report")

	return nil
}
