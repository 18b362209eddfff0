package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"plancal/internal/models"
	"plancal/internal/provider"
	"plancal/internal/store"
	"plancal/internal/window"
)

var testWindow = window.Resolve(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), window.ViewWeek, time.Sunday)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider is an in-memory Provider with switchable failures.
type fakeProvider struct {
	mu      sync.Mutex
	events  []provider.RemoteEvent
	nextID  int
	listErr error
	failAll bool
	gone    map[string]bool // external ids answered with ErrNotFound

	listCalls   atomic.Int32
	updateCalls atomic.Int32
	deleteCalls atomic.Int32
	// listGate, when set, blocks List until released.
	listGate chan struct{}
}

func (f *fakeProvider) Name() models.Source { return "fakecal" }

func (f *fakeProvider) List(ctx context.Context, start, end time.Time) ([]provider.RemoteEvent, error) {
	f.listCalls.Add(1)
	if f.listGate != nil {
		<-f.listGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]provider.RemoteEvent, len(f.events))
	copy(out, f.events)
	return out, nil
}

func (f *fakeProvider) Create(ctx context.Context, ev provider.RemoteEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return "", errors.New("remote says 500")
	}
	f.nextID++
	ev.ExternalID = fmt.Sprintf("ext-%d", f.nextID)
	f.events = append(f.events, ev)
	return ev.ExternalID, nil
}

func (f *fakeProvider) Update(ctx context.Context, externalID string, ev provider.RemoteEvent) error {
	f.updateCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[externalID] {
		return models.ErrNotFound
	}
	if f.failAll {
		return errors.New("remote says 500")
	}
	for i := range f.events {
		if f.events[i].ExternalID == externalID {
			ev.ExternalID = externalID
			f.events[i] = ev
			return nil
		}
	}
	return models.ErrNotFound
}

func (f *fakeProvider) Delete(ctx context.Context, externalID string) error {
	f.deleteCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[externalID] {
		return models.ErrNotFound
	}
	if f.failAll {
		return errors.New("remote says 500")
	}
	for i := range f.events {
		if f.events[i].ExternalID == externalID {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

func remoteEvent(extID, title string, start time.Time) provider.RemoteEvent {
	return provider.RemoteEvent{
		ExternalID: extID,
		Title:      title,
		Start:      start,
		End:        start.Add(time.Hour),
		Updated:    start,
	}
}

func newHarness(t *testing.T) (*store.MemoryStore, *fakeProvider, *Reconciler) {
	t.Helper()
	st := store.NewMemoryStore()
	prov := &fakeProvider{gone: map[string]bool{}}
	return st, prov, NewReconciler(testLogger(), st, prov)
}

func TestPullImportsOnceAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, prov, rec := newHarness(t)
	prov.events = []provider.RemoteEvent{
		remoteEvent("X", "standup", testWindow.Start.Add(33*time.Hour)),
		remoteEvent("Y", "retro", testWindow.Start.Add(40*time.Hour)),
	}

	if err := rec.Sync(ctx, testWindow); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	first, _ := st.Query(ctx, testWindow.Start, testWindow.End)
	if len(first) != 2 {
		t.Fatalf("imported %d events, want 2", len(first))
	}

	if err := rec.Sync(ctx, testWindow); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	second, _ := st.Query(ctx, testWindow.Start, testWindow.End)
	if len(second) != 2 {
		t.Fatalf("second pull created records: %d events", len(second))
	}
	seen := map[string]bool{}
	for i := range second {
		key := string(second[i].Source) + "/" + second[i].ExternalID
		if seen[key] {
			t.Errorf("duplicate (source, externalId) pair %s", key)
		}
		seen[key] = true
		if !second[i].UpdatedAt.Equal(first[i].UpdatedAt) {
			t.Errorf("unchanged remote payload oscillated updatedAt for %s", second[i].ExternalID)
		}
	}
}

func TestPullAppliesRemoteChange(t *testing.T) {
	ctx := context.Background()
	st, prov, rec := newHarness(t)
	start := testWindow.Start.Add(10 * time.Hour)
	prov.events = []provider.RemoteEvent{remoteEvent("X", "v1", start)}

	if err := rec.Sync(ctx, testWindow); err != nil {
		t.Fatal(err)
	}
	prov.events[0].Title = "v2"
	prov.events[0].Updated = start.Add(time.Hour)
	if err := rec.Sync(ctx, testWindow); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetBySourceExternalID(ctx, "fakecal", "X")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "v2" {
		t.Errorf("remote change not applied: %+v", got)
	}
}

func TestPullListFailureIsSyncError(t *testing.T) {
	_, prov, rec := newHarness(t)
	prov.listErr = errors.New("network down")

	err := rec.Sync(context.Background(), testWindow)
	var serr *models.SyncError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SyncError", err)
	}
}

func TestCyclePushesNewerLocalEdit(t *testing.T) {
	ctx := context.Background()
	st, prov, rec := newHarness(t)
	start := testWindow.Start.Add(10 * time.Hour)
	prov.events = []provider.RemoteEvent{remoteEvent("X", "remote title", start)}

	if err := rec.Sync(ctx, testWindow); err != nil {
		t.Fatal(err)
	}
	local, _ := st.GetBySourceExternalID(ctx, "fakecal", "X")
	local.Title = "local edit"
	if _, err := st.Update(ctx, local, true); err != nil {
		t.Fatal(err)
	}

	if err := rec.Sync(ctx, testWindow); err != nil {
		t.Fatal(err)
	}
	if prov.updateCalls.Load() == 0 {
		t.Fatal("newer local edit was not pushed outward")
	}
	prov.mu.Lock()
	remoteTitle := prov.events[0].Title
	prov.mu.Unlock()
	if remoteTitle != "local edit" {
		t.Errorf("remote title = %q, want local edit to win", remoteTitle)
	}
	kept, _ := st.GetBySourceExternalID(ctx, "fakecal", "X")
	if kept.Title != "local edit" {
		t.Errorf("local copy lost its edit: %+v", kept)
	}
}

func TestMirrorCreateLinksLocalEvent(t *testing.T) {
	ctx := context.Background()
	st, _, rec := newHarness(t)
	created, err := st.Create(ctx, &models.CalendarEvent{
		Title:     "new meeting",
		StartTime: testWindow.Start.Add(9 * time.Hour),
		EndTime:   testWindow.Start.Add(10 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	linked, err := rec.MirrorCreate(ctx, created)
	if err != nil {
		t.Fatalf("mirror create: %v", err)
	}
	if linked.Source != "fakecal" || linked.ExternalID == "" {
		t.Errorf("event not linked to provider: %+v", linked)
	}

	// A later pull must not import the mirrored event as a duplicate.
	if err := rec.Sync(ctx, testWindow); err != nil {
		t.Fatal(err)
	}
	all, _ := st.Query(ctx, testWindow.Start, testWindow.End)
	if len(all) != 1 {
		t.Fatalf("mirrored event duplicated on pull: %d records", len(all))
	}
}

func TestMirrorCreateFailureLeavesEventLocal(t *testing.T) {
	ctx := context.Background()
	st, prov, rec := newHarness(t)
	prov.failAll = true
	created, _ := st.Create(ctx, &models.CalendarEvent{
		Title:     "offline meeting",
		StartTime: testWindow.Start.Add(9 * time.Hour),
		EndTime:   testWindow.Start.Add(10 * time.Hour),
	})

	got, err := rec.MirrorCreate(ctx, created)
	var serr *models.SyncError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SyncError", err)
	}
	if got.Source != models.SourceLocal || got.ExternalID != "" {
		t.Errorf("failed mirror mutated the event: %+v", got)
	}
	kept, _ := st.GetByID(ctx, created.ID)
	if kept.Title != "offline meeting" || kept.Deleted {
		t.Errorf("local record damaged by failed push: %+v", kept)
	}
}

func TestDeletePushFailureKeepsLocalDelete(t *testing.T) {
	ctx := context.Background()
	st, prov, rec := newHarness(t)
	start := testWindow.Start.Add(10 * time.Hour)
	prov.events = []provider.RemoteEvent{remoteEvent("E", "doomed", start)}
	if err := rec.Sync(ctx, testWindow); err != nil {
		t.Fatal(err)
	}

	local, _ := st.GetBySourceExternalID(ctx, "fakecal", "E")
	if err := st.SoftDelete(ctx, local.ID); err != nil {
		t.Fatal(err)
	}

	prov.failAll = true
	err := rec.PushDelete(ctx, mustGet(t, st, local.ID))
	var serr *models.SyncError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want SyncError", err)
	}

	kept := mustGet(t, st, local.ID)
	if !kept.Deleted {
		t.Error("push failure rolled back the local soft delete")
	}

	// The next cycle retries the delete; once the remote accepts it the
	// mirror is settled and pull must not resurrect the record.
	prov.failAll = false
	if err := rec.Sync(ctx, testWindow); err != nil {
		t.Fatal(err)
	}
	if prov.deleteCalls.Load() < 2 {
		t.Error("cycle did not retry the pending remote delete")
	}
	if kept := mustGet(t, st, local.ID); !kept.Deleted {
		t.Error("pull resurrected a deleted record")
	}
}

func TestPushTargetsGoneAreResolved(t *testing.T) {
	ctx := context.Background()
	st, prov, rec := newHarness(t)
	prov.gone["Z"] = true
	ev, err := st.Create(ctx, &models.CalendarEvent{
		Title:      "orphan",
		StartTime:  testWindow.Start.Add(8 * time.Hour),
		EndTime:    testWindow.Start.Add(9 * time.Hour),
		Source:     "fakecal",
		ExternalID: "Z",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := rec.PushUpdate(ctx, ev); err != nil {
		t.Errorf("push update to gone target: %v, want nil", err)
	}
	if err := rec.PushDelete(ctx, ev); err != nil {
		t.Errorf("push delete to gone target: %v, want nil", err)
	}
}

func mustGet(t *testing.T, st store.Store, id string) *models.CalendarEvent {
	t.Helper()
	ev, err := st.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return ev
}
