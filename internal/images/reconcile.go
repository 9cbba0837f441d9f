package images

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"purchasedesk/pkg/types"

	"github.com/sirupsen/logrus"
)

// DefaultOrphanMinAge is how long an object without a row is left alone. An
// upload writes its blob before the row, so a young orphan may still be claimed.
const DefaultOrphanMinAge = time.Hour

type ObjectLister interface {
	ListObjects(ctx context.Context, prefix string) ([]types.ObjectSummary, error)
	DeleteObject(ctx context.Context, key string) error
}

type ImageLister interface {
	AllImages(ctx context.Context) ([]*types.ImageRecord, error)
	ImagesByRequestID(ctx context.Context, requestID string) ([]*types.ImageRecord, error)
}

// Reconciler compares image rows with the objects in the bucket. It never
// touches rows: a row without a blob is reported for a human to look at.
// Only keys under a known request are considered; anything else in the
// bucket is counted as foreign and left alone.
type Reconciler struct {
	objects  ObjectLister
	rows     ImageLister
	requests RequestFinder
	minAge   time.Duration
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewReconciler(objects ObjectLister, rows ImageLister, requests RequestFinder, minAge time.Duration, logger logrus.FieldLogger) *Reconciler {
	return &Reconciler{
		objects:  objects,
		rows:     rows,
		requests: requests,
		minAge:   minAge,
		logger:   logger.WithField("component", "reconcile"),
		now:      time.Now,
	}
}

// Run scans one request when requestID is set, otherwise the whole bucket.
// Orphaned objects older than the grace period are deleted only when
// deleteOrphans is true.
func (r *Reconciler) Run(ctx context.Context, requestID string, deleteOrphans bool) (*types.ReconcileReport, error) {
	prefix := ""
	if requestID != "" {
		prefix = requestID + "/"
	}

	objects, err := r.objects.ListObjects(ctx, prefix)
	if err != nil {
		return nil, types.StoreError(err, "list objects")
	}

	var rows []*types.ImageRecord
	if requestID != "" {
		rows, err = r.rows.ImagesByRequestID(ctx, requestID)
	} else {
		rows, err = r.rows.AllImages(ctx)
	}
	if err != nil {
		return nil, types.StoreError(err, "list image rows")
	}

	report := &types.ReconcileReport{
		Prefix:         prefix,
		ObjectsScanned: len(objects),
		RowsScanned:    len(rows),
		OrphanedBlobs:  make([]string, 0),
		MissingBlobs:   make([]*types.ImageRecord, 0),
		RecentOrphans:  make([]string, 0),
		DeleteErrors:   make([]string, 0),
	}

	known := make(map[string]struct{}, len(rows))
	requestKnown := make(map[string]bool)
	for _, row := range rows {
		known[types.ImageObjectKey(row.RequestID, row.Name)] = struct{}{}
		requestKnown[row.RequestID] = true
	}

	cutoff := r.now().Add(-r.minAge)
	deletable := make([]string, 0)

	present := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		present[obj.Key] = struct{}{}
		if _, ok := known[obj.Key]; ok {
			continue
		}

		owner, ok := imageKeyOwner(obj.Key)
		if ok {
			ok, err = r.isKnownRequest(ctx, requestKnown, owner)
			if err != nil {
				return nil, err
			}
		}
		if !ok {
			report.ForeignObjects++
			continue
		}

		report.OrphanedBlobs = append(report.OrphanedBlobs, obj.Key)
		if r.minAge > 0 && (obj.LastModified.IsZero() || obj.LastModified.After(cutoff)) {
			report.RecentOrphans = append(report.RecentOrphans, obj.Key)
			continue
		}
		deletable = append(deletable, obj.Key)
	}
	sort.Strings(report.OrphanedBlobs)
	sort.Strings(report.RecentOrphans)
	sort.Strings(deletable)

	for _, row := range rows {
		if _, ok := present[types.ImageObjectKey(row.RequestID, row.Name)]; !ok {
			report.MissingBlobs = append(report.MissingBlobs, row)
		}
	}

	logger := r.logger.WithFields(logrus.Fields{
		"prefix":          prefix,
		"objects":         report.ObjectsScanned,
		"rows":            report.RowsScanned,
		"orphans":         len(report.OrphanedBlobs),
		"recent_orphans":  len(report.RecentOrphans),
		"foreign_objects": report.ForeignObjects,
		"missing_blobs":   len(report.MissingBlobs),
	})

	if deleteOrphans {
		for _, key := range deletable {
			if err := r.objects.DeleteObject(ctx, key); err != nil {
				logger.WithError(err).WithField("object_key", key).Warn("failed to delete orphaned blob")
				report.DeleteErrors = append(report.DeleteErrors, key)
				continue
			}
			report.OrphansDeleted++
		}
	}

	logger.WithField("orphans_deleted", report.OrphansDeleted).Info("reconcile complete")

	return report, nil
}

func (r *Reconciler) isKnownRequest(ctx context.Context, cache map[string]bool, requestID string) (bool, error) {
	if known, ok := cache[requestID]; ok {
		return known, nil
	}

	_, err := r.requests.Request(ctx, requestID)
	switch {
	case err == nil:
		cache[requestID] = true
	case errors.Is(err, types.ErrNotFound):
		cache[requestID] = false
	default:
		return false, types.StoreError(err, "fetch request")
	}

	return cache[requestID], nil
}

// imageKeyOwner returns the request id of a "{requestID}/{name}" key.
func imageKeyOwner(key string) (string, bool) {
	requestID, name, ok := strings.Cut(key, "/")
	if !ok || requestID == "" || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return requestID, true
}
