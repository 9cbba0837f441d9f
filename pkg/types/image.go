package types

import "time"

// ImageRecord maps a generated file name to a request. The blob lives at
// ImageObjectKey(RequestID, Name).
type ImageRecord struct {
	ID        int64     `db:"id" json:"id"`
	RequestID string    `db:"request_id" json:"requestId"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`

	URL string `db:"-" json:"url,omitempty"`
}

// ImageObjectKey is the object store key for an image. Public URLs are built
// from it, so the layout must not change.
func ImageObjectKey(requestID, name string) string {
	return requestID + "/" + name
}

// ImageUpload is one file handed to the image store.
type ImageUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// BlobInfo is object store metadata. Every field is optional.
type BlobInfo struct {
	Key          string     `json:"key"`
	Size         *int64     `json:"size,omitempty"`
	ContentType  *string    `json:"contentType,omitempty"`
	ETag         *string    `json:"etag,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

type ImageInfo struct {
	*ImageRecord
	ObjectKey    string     `json:"objectKey"`
	Size         *int64     `json:"size,omitempty"`
	ContentType  *string    `json:"contentType,omitempty"`
	ETag         *string    `json:"etag,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

type FileError struct {
	Index    int    `json:"index"`
	FileName string `json:"fileName"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

type UploadResult struct {
	Uploaded []*ImageRecord `json:"uploaded"`
	Errors   []FileError    `json:"errors"`
}

type ReplaceResult struct {
	Image   *ImageRecord `json:"image"`
	OldName string       `json:"oldName"`
	NewName string       `json:"newName"`
	// OldBlobDeleted is false when the previous object could not be removed and
	// was left behind in the bucket.
	OldBlobDeleted bool `json:"oldBlobDeleted"`
}

type DeleteResult struct {
	ImageID     int64  `json:"imageId"`
	Name        string `json:"name"`
	BlobDeleted bool   `json:"blobDeleted"`
}

type BlobError struct {
	ImageID int64  `json:"imageId"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type DeleteAllResult struct {
	RowsDeleted  int64       `json:"rowsDeleted"`
	BlobsDeleted int64       `json:"blobsDeleted"`
	Errors       []BlobError `json:"errors"`
}

// ObjectSummary is one entry of a bucket listing.
type ObjectSummary struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"lastModified"`
}

// ReconcileReport lists the differences between image rows and objects.
// ForeignObjects counts keys that do not belong to a known request.
// RecentOrphans are younger than the grace period; an upload may still be
// about to insert their row, so they are never deleted.
type ReconcileReport struct {
	Prefix         string         `json:"prefix"`
	ObjectsScanned int            `json:"objectsScanned"`
	RowsScanned    int            `json:"rowsScanned"`
	OrphanedBlobs  []string       `json:"orphanedBlobs"`
	MissingBlobs   []*ImageRecord `json:"missingBlobs"`
	ForeignObjects int            `json:"foreignObjects"`
	RecentOrphans  []string       `json:"recentOrphans"`
	OrphansDeleted int            `json:"orphansDeleted"`
	DeleteErrors   []string       `json:"deleteErrors"`
}
