// Package sync reconciles the local event store against a remote calendar
// provider. All remote propagation is best-effort and local-first: local
// mutations commit before any remote call, and a remote failure never rolls
// them back — the next scheduled cycle is the retry path.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"plancal/internal/models"
	"plancal/internal/provider"
	"plancal/internal/store"
	"plancal/internal/window"
)

// Reconciler reconciles the store against one provider.
type Reconciler struct {
	logger   *slog.Logger
	store    store.Store
	provider provider.Provider
}

// NewReconciler creates a Reconciler. prov may be nil, in which case every
// cycle is a no-op and push calls degrade to local-only.
func NewReconciler(logger *slog.Logger, st store.Store, prov provider.Provider) *Reconciler {
	return &Reconciler{logger: logger, store: st, provider: prov}
}

// Connected reports whether a provider is configured.
func (r *Reconciler) Connected() bool { return r.provider != nil }

// Sync runs one reconciliation cycle over the window: a pull of all remote
// events with per-record upserts, re-pushing local records that are newer
// than their remote copy (the retry path for earlier failed pushes). A
// failing record is logged and skipped so one bad event cannot stall the
// cycle; the cycle itself fails only when the window fetch does.
func (r *Reconciler) Sync(ctx context.Context, win window.Range) error {
	if r.provider == nil {
		return nil
	}
	r.logger.Info("starting sync cycle", "source", r.provider.Name(), "start", win.Start, "end", win.End)

	remote, err := r.provider.List(ctx, win.Start, win.End)
	if err != nil {
		return &models.SyncError{Op: "pull", Err: err}
	}

	var failed int
	for _, rev := range remote {
		if err := r.reconcileRemote(ctx, rev); err != nil {
			failed++
			r.logger.Error("failed to reconcile event", "externalId", rev.ExternalID, "error", err)
		}
	}

	r.logger.Info("sync cycle finished", "remote", len(remote), "failed", failed)
	if failed > 0 {
		return &models.SyncError{Op: "pull", Err: fmt.Errorf("%d of %d events failed", failed, len(remote))}
	}
	return nil
}

// reconcileRemote settles one remote event against its local mirror.
func (r *Reconciler) reconcileRemote(ctx context.Context, rev provider.RemoteEvent) error {
	source := r.provider.Name()

	local, err := r.store.GetBySourceExternalID(ctx, source, rev.ExternalID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}

	// Absent locally: import.
	if local == nil {
		_, _, err := r.store.UpsertBySourceAndExternalID(ctx, source, rev.ExternalID, provider.ToLocal(rev))
		if err == nil {
			r.logger.Debug("imported remote event", "externalId", rev.ExternalID, "title", rev.Title)
		}
		return err
	}

	// Locally soft-deleted but still present remotely: carry the delete out.
	// Pull itself never deletes, and never resurrects a deleted mirror.
	if local.Deleted {
		return r.PushDelete(ctx, local)
	}

	incoming := provider.ToLocal(rev)
	if local.ContentEquals(incoming) {
		return nil
	}

	// Both sides diverged: the greater UpdatedAt wins. A newer local copy is
	// pushed outward (retrying any earlier failed push); otherwise the store
	// upsert lets the remote copy through.
	if local.UpdatedAt.After(incoming.UpdatedAt) {
		return r.PushUpdate(ctx, local)
	}
	_, changed, err := r.store.UpsertBySourceAndExternalID(ctx, source, rev.ExternalID, incoming)
	if err == nil && changed {
		r.logger.Debug("updated local event from remote", "externalId", rev.ExternalID)
	}
	return err
}

// MirrorCreate pushes a freshly created local event outward and, on success,
// rebinds the local record to the provider via the assigned external id. On
// failure the event simply stays local and the caller gets a SyncError to
// surface as a notice.
func (r *Reconciler) MirrorCreate(ctx context.Context, ev *models.CalendarEvent) (*models.CalendarEvent, error) {
	if r.provider == nil || ev.Remote() {
		return ev, nil
	}
	externalID, err := r.provider.Create(ctx, provider.FromLocal(ev))
	if err != nil {
		return ev, &models.SyncError{Op: "push-create", Err: err}
	}
	linked := *ev
	linked.Source = r.provider.Name()
	linked.ExternalID = externalID
	return r.store.Update(ctx, &linked, false)
}

// PushUpdate propagates a local edit of a provider-sourced event. An unknown
// external id means the remote side already dropped the event; that is
// treated as resolved.
func (r *Reconciler) PushUpdate(ctx context.Context, ev *models.CalendarEvent) error {
	if r.provider == nil || !ev.Remote() {
		return nil
	}
	err := r.provider.Update(ctx, ev.ExternalID, provider.FromLocal(ev))
	if errors.Is(err, models.ErrNotFound) {
		r.logger.Debug("remote update target gone, treating as resolved", "externalId", ev.ExternalID)
		return nil
	}
	if err != nil {
		return &models.SyncError{Op: "push-update", Err: err}
	}
	return nil
}

// PushDelete propagates a local soft delete of a provider-sourced event.
func (r *Reconciler) PushDelete(ctx context.Context, ev *models.CalendarEvent) error {
	if r.provider == nil || !ev.Remote() {
		return nil
	}
	err := r.provider.Delete(ctx, ev.ExternalID)
	if errors.Is(err, models.ErrNotFound) {
		r.logger.Debug("remote delete target gone, treating as resolved", "externalId", ev.ExternalID)
		return nil
	}
	if err != nil {
		return &models.SyncError{Op: "push-delete", Err: err}
	}
	return nil
}
