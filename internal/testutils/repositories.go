// Package testutils holds in-memory stand-ins for the Postgres repositories
// and the object store. They satisfy the interfaces the components declare
// and let tests inject failures per call.
package testutils

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"purchasedesk/pkg/types"

	"github.com/shopspring/decimal"
)

// Journal records the order of store calls across fakes.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) Record(format string, args ...any) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

type Requests struct {
	mu       sync.Mutex
	requests map[string]*types.Request

	Lookups int
	Err     error
}

func NewRequests(requests ...*types.Request) *Requests {
	r := &Requests{requests: make(map[string]*types.Request)}
	for _, req := range requests {
		r.requests[req.ID] = req
	}
	return r
}

func (r *Requests) Request(_ context.Context, requestID string) (*types.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Lookups++
	if r.Err != nil {
		return nil, r.Err
	}

	req, ok := r.requests[requestID]
	if !ok {
		return nil, types.ErrRequestNotFound
	}

	out := *req
	return &out, nil
}

func (r *Requests) UpsertRequest(_ context.Context, request *types.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}

	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now()
	}
	out := *request
	r.requests[request.ID] = &out
	return nil
}

type Statuses struct {
	mu      sync.Mutex
	records []*types.StatusRecord
	nextID  int64

	AppendErr error
}

func NewStatuses() *Statuses {
	return &Statuses{nextID: 1}
}

func (s *Statuses) AppendStatus(_ context.Context, record *types.StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AppendErr != nil {
		return s.AppendErr
	}

	record.ID = s.nextID
	s.nextID++

	out := *record
	s.records = append(s.records, &out)
	return nil
}

func (s *Statuses) history(requestID string) []*types.StatusRecord {
	out := make([]*types.StatusRecord, 0)
	for _, rec := range s.records {
		if rec.RequestID == requestID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ChangeDate.Equal(out[j].ChangeDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].ChangeDate.Before(out[j].ChangeDate)
	})
	return out
}

func (s *Statuses) LatestStatus(_ context.Context, requestID string) (*types.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.history(requestID)
	if len(history) == 0 {
		return nil, nil
	}
	return history[len(history)-1], nil
}

func (s *Statuses) StatusHistory(_ context.Context, requestID string) ([]*types.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history(requestID), nil
}

type Management struct {
	mu      sync.Mutex
	records map[string]*types.ManagementRecord

	UpsertErr            error
	UpdateCloseReasonErr error
}

func NewManagement(records ...*types.ManagementRecord) *Management {
	m := &Management{records: make(map[string]*types.ManagementRecord)}
	for _, rec := range records {
		m.records[rec.RequestID] = rec
	}
	return m
}

func (m *Management) Management(_ context.Context, requestID string) (*types.ManagementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[requestID]
	if !ok {
		return nil, nil
	}
	out := *rec
	return &out, nil
}

func (m *Management) UpsertManagement(_ context.Context, record *types.ManagementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	record.UpdatedAt = time.Now()
	out := *record
	m.records[record.RequestID] = &out
	return nil
}

func (m *Management) UpdateCloseReason(_ context.Context, requestID string, closeReason *types.CloseReason) (*types.ManagementRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateCloseReasonErr != nil {
		return nil, m.UpdateCloseReasonErr
	}

	rec, ok := m.records[requestID]
	if !ok {
		return nil, nil
	}

	rec.CloseReason = closeReason
	rec.UpdatedAt = time.Now()
	out := *rec
	return &out, nil
}

type Images struct {
	mu      sync.Mutex
	images  []*types.ImageRecord
	nextID  int64
	journal *Journal

	// CreateErr is consulted per insert; a nil func or nil result succeeds.
	CreateErr func(image *types.ImageRecord) error
	UpdateErr error
	DeleteErr error
	ListErr   error
}

func NewImages(journal *Journal) *Images {
	return &Images{nextID: 1, journal: journal}
}

// Seed inserts rows directly, bypassing failure injection.
func (s *Images) Seed(images ...*types.ImageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, image := range images {
		if image.ID == 0 {
			image.ID = s.nextID
		}
		if image.ID >= s.nextID {
			s.nextID = image.ID + 1
		}
		out := *image
		s.images = append(s.images, &out)
	}
}

func (s *Images) CreateImage(_ context.Context, image *types.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal.Record("row.insert %s", image.Name)

	if s.CreateErr != nil {
		if err := s.CreateErr(image); err != nil {
			return err
		}
	}

	image.ID = s.nextID
	s.nextID++
	image.CreatedAt = time.Now()

	out := *image
	s.images = append(s.images, &out)
	return nil
}

func (s *Images) ImageByRequestIDAndID(_ context.Context, requestID string, imageID int64) (*types.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, image := range s.images {
		if image.ID == imageID && image.RequestID == requestID {
			out := *image
			return &out, nil
		}
	}
	return nil, types.ErrImageNotFound
}

func (s *Images) ImagesByRequestID(_ context.Context, requestID string) ([]*types.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListErr != nil {
		return nil, s.ListErr
	}

	out := make([]*types.ImageRecord, 0)
	for _, image := range s.images {
		if image.RequestID == requestID {
			cp := *image
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Images) AllImages(_ context.Context) ([]*types.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ListErr != nil {
		return nil, s.ListErr
	}

	out := make([]*types.ImageRecord, 0, len(s.images))
	for _, image := range s.images {
		cp := *image
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Images) UpdateImageName(_ context.Context, requestID string, imageID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal.Record("row.update %d %s", imageID, name)

	if s.UpdateErr != nil {
		return s.UpdateErr
	}

	for _, image := range s.images {
		if image.ID == imageID && image.RequestID == requestID {
			image.Name = name
			return nil
		}
	}
	return types.ErrImageNotFound
}

func (s *Images) DeleteImage(_ context.Context, requestID string, imageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal.Record("row.delete %d", imageID)

	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	for i, image := range s.images {
		if image.ID == imageID && image.RequestID == requestID {
			s.images = append(s.images[:i], s.images[i+1:]...)
			return nil
		}
	}
	return types.ErrImageNotFound
}

func (s *Images) DeleteImagesByRequestID(_ context.Context, requestID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.journal.Record("row.delete_all %s", requestID)

	if s.DeleteErr != nil {
		return 0, s.DeleteErr
	}

	kept := s.images[:0]
	var deleted int64
	for _, image := range s.images {
		if image.RequestID == requestID {
			deleted++
			continue
		}
		kept = append(kept, image)
	}
	s.images = kept
	return deleted, nil
}

type Offers struct {
	mu     sync.Mutex
	offers map[string]*types.OfferRecord

	Err error
}

func NewOffers() *Offers {
	return &Offers{offers: make(map[string]*types.OfferRecord)}
}

func (o *Offers) CreateOffer(_ context.Context, offer *types.OfferRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return o.Err
	}

	out := *offer
	o.offers[offer.ID] = &out
	return nil
}

// UpdateOffer applies the column map the way the SQL UPDATE would.
func (o *Offers) UpdateOffer(_ context.Context, offerID string, columns map[string]any) (*types.OfferRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return nil, o.Err
	}

	offer, ok := o.offers[offerID]
	if !ok {
		return nil, types.ErrOfferNotFound
	}

	for column, value := range columns {
		switch column {
		case "description":
			offer.Description = value.(string)
		case "price":
			offer.Price = value.(decimal.Decimal)
		case "offer_date":
			offer.OfferDate = value.(time.Time)
		default:
			return nil, fmt.Errorf("unknown column %q", column)
		}
	}

	out := *offer
	return &out, nil
}

func (o *Offers) DeleteOffer(_ context.Context, offerID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return o.Err
	}

	if _, ok := o.offers[offerID]; !ok {
		return types.ErrOfferNotFound
	}
	delete(o.offers, offerID)
	return nil
}

func (o *Offers) OffersByRequestID(_ context.Context, requestID string) ([]*types.OfferRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return nil, o.Err
	}

	out := make([]*types.OfferRecord, 0)
	for _, offer := range o.offers {
		if offer.RequestID == requestID {
			cp := *offer
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OfferDate.Equal(out[j].OfferDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].OfferDate.After(out[j].OfferDate)
	})
	return out, nil
}
