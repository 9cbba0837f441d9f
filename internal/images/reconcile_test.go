package images_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"purchasedesk/internal/images"
	"purchasedesk/internal/testutils"
	"purchasedesk/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcileFixture struct {
	reconciler *images.Reconciler
	requests   *testutils.Requests
	rows       *testutils.Images
	blobs      *testutils.Blobs
}

func newReconciler(minAge time.Duration) *reconcileFixture {
	logger, _ := testutils.NewLogger()
	requests := testutils.NewRequests(testutils.NewRequest("req-1"), testutils.NewRequest("req-2"))
	rows := testutils.NewImages(nil)
	blobs := testutils.NewBlobs(nil)
	return &reconcileFixture{
		reconciler: images.NewReconciler(blobs, rows, requests, minAge, logger),
		requests:   requests,
		rows:       rows,
		blobs:      blobs,
	}
}

func TestReconcile_ReportsWithoutDeleting(t *testing.T) {
	f := newReconciler(0)

	f.rows.Seed(
		&types.ImageRecord{RequestID: "req-1", Name: "kept.jpg"},
		&types.ImageRecord{RequestID: "req-1", Name: "lost.jpg"},
	)
	f.blobs.Seed("req-1/kept.jpg", []byte("a"), "image/jpeg")
	f.blobs.Seed("req-1/orphan.jpg", []byte("b"), "image/jpeg")
	f.blobs.Seed("req-2/orphan.png", []byte("c"), "image/png")
	f.blobs.Seed("exports/2024/report.csv", []byte("d"), "text/csv")
	f.blobs.Seed("README", []byte("e"), "text/plain")

	report, err := f.reconciler.Run(context.Background(), "", false)
	require.NoError(t, err)

	assert.Equal(t, 5, report.ObjectsScanned)
	assert.Equal(t, 2, report.RowsScanned)
	assert.Equal(t, []string{"req-1/orphan.jpg", "req-2/orphan.png"}, report.OrphanedBlobs)
	assert.Equal(t, 2, report.ForeignObjects)
	require.Len(t, report.MissingBlobs, 1)
	assert.Equal(t, "lost.jpg", report.MissingBlobs[0].Name)
	assert.Zero(t, report.OrphansDeleted)

	assert.True(t, f.blobs.Has("req-1/orphan.jpg"))
}

func TestReconcile_DeletesOrphansForOneRequest(t *testing.T) {
	f := newReconciler(0)

	f.rows.Seed(&types.ImageRecord{RequestID: "req-1", Name: "kept.jpg"})
	f.blobs.Seed("req-1/kept.jpg", []byte("a"), "image/jpeg")
	f.blobs.Seed("req-1/orphan.jpg", []byte("b"), "image/jpeg")
	f.blobs.Seed("req-2/orphan.png", []byte("c"), "image/png")

	report, err := f.reconciler.Run(context.Background(), "req-1", true)
	require.NoError(t, err)

	assert.Equal(t, "req-1/", report.Prefix)
	assert.Equal(t, 2, report.ObjectsScanned)
	assert.Equal(t, 1, report.OrphansDeleted)
	assert.Empty(t, report.DeleteErrors)

	assert.Equal(t, []string{"req-1/kept.jpg", "req-2/orphan.png"}, f.blobs.Keys())

	remaining, err := f.rows.ImagesByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "rows are never deleted")
}

func TestReconcile_LeavesKeysOfUnknownRequests(t *testing.T) {
	f := newReconciler(0)

	f.blobs.Seed("req-1/orphan.jpg", []byte("a"), "image/jpeg")
	f.blobs.Seed("exports/report.csv", []byte("b"), "text/csv")
	f.blobs.Seed("backups/db.dump", []byte("c"), "application/octet-stream")

	report, err := f.reconciler.Run(context.Background(), "", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"req-1/orphan.jpg"}, report.OrphanedBlobs)
	assert.Equal(t, 2, report.ForeignObjects)
	assert.Equal(t, 1, report.OrphansDeleted)

	assert.Equal(t, []string{"backups/db.dump", "exports/report.csv"}, f.blobs.Keys())
}

func TestReconcile_KeepsOrphansInsideGracePeriod(t *testing.T) {
	f := newReconciler(time.Hour)
	ctx := context.Background()

	f.blobs.SeedAt("req-1/stale.jpg", []byte("a"), "image/jpeg", time.Now().Add(-2*time.Hour))
	f.blobs.Seed("req-1/fresh.jpg", []byte("b"), "image/jpeg")

	report, err := f.reconciler.Run(ctx, "req-1", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"req-1/fresh.jpg", "req-1/stale.jpg"}, report.OrphanedBlobs)
	assert.Equal(t, []string{"req-1/fresh.jpg"}, report.RecentOrphans)
	assert.Equal(t, 1, report.OrphansDeleted)
	assert.True(t, f.blobs.Has("req-1/fresh.jpg"))
	assert.False(t, f.blobs.Has("req-1/stale.jpg"))

	// The upload that wrote fresh.jpg now inserts its row.
	f.rows.Seed(&types.ImageRecord{RequestID: "req-1", Name: "fresh.jpg"})

	report, err = f.reconciler.Run(ctx, "req-1", false)
	require.NoError(t, err)
	assert.Empty(t, report.OrphanedBlobs)
	assert.Empty(t, report.MissingBlobs)
}

func TestReconcile_CollectsDeleteErrors(t *testing.T) {
	f := newReconciler(0)

	f.blobs.Seed("req-1/orphan.jpg", []byte("b"), "image/jpeg")
	f.blobs.DeleteErr = testutils.FailAll

	report, err := f.reconciler.Run(context.Background(), "", true)
	require.NoError(t, err)

	assert.Zero(t, report.OrphansDeleted)
	assert.Equal(t, []string{"req-1/orphan.jpg"}, report.DeleteErrors)
}

func TestReconcile_ListFailure(t *testing.T) {
	f := newReconciler(0)
	f.blobs.ListErr = testutils.ErrBlobUnavailable

	_, err := f.reconciler.Run(context.Background(), "", false)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestReconcile_RequestLookupFailureDeletesNothing(t *testing.T) {
	f := newReconciler(0)

	f.blobs.Seed("req-1/orphan.jpg", []byte("b"), "image/jpeg")
	f.requests.Err = errors.New("connection reset")

	_, err := f.reconciler.Run(context.Background(), "", true)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.True(t, f.blobs.Has("req-1/orphan.jpg"))
}
