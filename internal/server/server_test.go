package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"purchasedesk/internal/images"
	"purchasedesk/internal/management"
	"purchasedesk/internal/offers"
	"purchasedesk/internal/status"
	"purchasedesk/internal/testutils"
	"purchasedesk/pkg/types"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reqID = "req-1"

var (
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00fake jpeg body")
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake png body")
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(context.Context) error {
	return p.err
}

type fixture struct {
	handler    http.Handler
	hook       *test.Hook
	pinger     *fakePinger
	management *testutils.Management
	rows       *testutils.Images
	blobs      *testutils.Blobs
	offers     *testutils.Offers
}

func newFixture(records ...*types.ManagementRecord) *fixture {
	logger, hook := testutils.NewLogger()

	config := &types.Config{
		ServerPort:                8080,
		UploadMaxFileBytes:        1024,
		UploadMaxImagesPerRequest: 3,
		UploadAllowedContentTypes: []string{"image/jpeg", "image/png"},
	}

	f := &fixture{
		hook:       hook,
		pinger:     &fakePinger{},
		management: testutils.NewManagement(records...),
		rows:       testutils.NewImages(nil),
		blobs:      testutils.NewBlobs(nil),
		offers:     testutils.NewOffers(),
	}

	requests := testutils.NewRequests(testutils.NewRequest(reqID))
	resolver := management.NewResolver(requests, f.management, logger)
	engine := status.NewEngine(requests, testutils.NewStatuses(), resolver, logger)
	assets := images.NewAssetStore(requests, f.rows, f.blobs, logger)
	ledger := offers.NewLedger(requests, f.offers, logger)

	f.handler = New(config, logger, f.pinger, engine, resolver, assets, ledger).Handler()

	return f
}

func (f *fixture) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doJSON(method, target, body string) *httptest.ResponseRecorder {
	return f.do(method, target, strings.NewReader(body), "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertEnvelope(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorBody {
	t.Helper()

	require.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[errorBody](t, rec)
	assert.Equal(t, code, body.Error.Code)
	assert.NotEmpty(t, body.Error.Message)
	return body
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, field string, parts ...filePart) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, p.name))
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))

	f.pinger.err = errors.New("connection refused")
	rec = f.do(http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, map[string]string{"status": "unavailable"}, decode[map[string]string](t, rec))
}

func TestStatusCodes(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/status/codes", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	cat := decode[types.StatusCatalogue](t, rec)
	assert.Len(t, cat.Statuses, 4)
	assert.Len(t, cat.CloseReasons, 6)
}

func TestPutStatus_FinalOutcomeUpdatesManagement(t *testing.T) {
	f := newFixture(&types.ManagementRecord{RequestID: reqID, Notes: "prefers mornings"})

	rec := f.doJSON(http.MethodPut, "/request/req-1/status", `{"status":40,"finalOutcome":30,"closeReason":30}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[types.StatusChangeResult](t, rec)
	assert.Equal(t, types.StatusFinalOutcome, result.Record.Status)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, []types.AutomaticAction{types.ActionNotifyCustomerNoPickup, types.ActionReleaseDealerSlot}, result.RequiredActions)

	stored, err := f.management.Management(context.Background(), reqID)
	require.NoError(t, err)
	require.NotNil(t, stored.CloseReason)
	assert.Equal(t, types.CloseReasonDealerDoesNotCollect, *stored.CloseReason)
	assert.Equal(t, "prefers mornings", stored.Notes)
}

func TestPutStatus_ManagementFailureIsAWarning(t *testing.T) {
	f := newFixture(&types.ManagementRecord{RequestID: reqID})
	f.management.UpdateCloseReasonErr = errors.New("deadlock detected")

	rec := f.doJSON(http.MethodPut, "/request/req-1/status", `{"status":40,"closeReason":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[types.StatusChangeResult](t, rec)
	assert.Len(t, result.Warnings, 1)
}

func TestPutStatus_FormEncoded(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPut, "/request/req-1/status",
		strings.NewReader("status=20&notes=called+back"), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[types.StatusChangeResult](t, rec)
	assert.Equal(t, types.StatusInProgress, result.Record.Status)
	require.NotNil(t, result.Record.Notes)
	assert.Equal(t, "called back", *result.Record.Notes)
}

func TestPutStatus_Errors(t *testing.T) {
	f := newFixture()

	assertEnvelope(t, f.doJSON(http.MethodPut, "/request/req-1/status", `{"status":99}`), http.StatusBadRequest, codeInvalidInput)
	assertEnvelope(t, f.doJSON(http.MethodPut, "/request/req-1/status", `{}`), http.StatusBadRequest, codeInvalidInput)
	assertEnvelope(t, f.doJSON(http.MethodPut, "/request/req-1/status", `{"status":10,"bogus":1}`), http.StatusBadRequest, codeInvalidInput)
	assertEnvelope(t, f.doJSON(http.MethodPut, "/request/req-1/status", `not json`), http.StatusBadRequest, codeInvalidInput)
	assertEnvelope(t, f.doJSON(http.MethodPut, "/request/nope/status", `{"status":10}`), http.StatusNotFound, codeNotFound)
}

func TestGetRequest_Composite(t *testing.T) {
	f := newFixture()

	rec := f.doJSON(http.MethodPost, "/request/req-1/offers", `{"description":"Autohaus Nord","price":"2750.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/request/req-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	detail := decode[types.RequestDetail](t, rec)
	assert.Equal(t, reqID, detail.Request.ID)
	assert.Equal(t, types.StatusAwaitingCall, detail.CurrentStatus.Status)
	assert.True(t, detail.CurrentStatus.Synthesized)
	assert.Empty(t, detail.StatusHistory)
	assert.Equal(t, reqID, detail.Management.RequestID)
	assert.True(t, detail.Management.RangeMax.IsZero())
	require.Len(t, detail.Offers, 1)
	assert.True(t, detail.Offers[0].Price.Equal(decimal.RequireFromString("2750.50")))

	assertEnvelope(t, f.do(http.MethodGet, "/request/nope", nil, ""), http.StatusNotFound, codeNotFound)
}

func TestManagement_PutReplacesPatchOverlays(t *testing.T) {
	f := newFixture()

	rec := f.doJSON(http.MethodPut, "/request/req-1/management", `{"notes":"wants cash","rangeMax":"5000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.doJSON(http.MethodPatch, "/request/req-1/management", `{"transportCost":120}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	patched := decode[types.ManagementRecord](t, rec)
	assert.Equal(t, "wants cash", patched.Notes)
	assert.True(t, patched.RangeMax.Equal(decimal.NewFromInt(5000)))
	assert.True(t, patched.TransportCost.Equal(decimal.NewFromInt(120)))

	rec = f.doJSON(http.MethodPut, "/request/req-1/management", `{"salePrice":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	replaced := decode[types.ManagementRecord](t, rec)
	assert.Empty(t, replaced.Notes, "a PUT resets fields it does not carry")
	assert.True(t, replaced.TransportCost.IsZero())

	assertEnvelope(t, f.doJSON(http.MethodPatch, "/request/req-1/management", `{}`), http.StatusBadRequest, codeInvalidInput)
	assertEnvelope(t, f.doJSON(http.MethodPatch, "/request/nope/management", `{"notes":"x"}`), http.StatusNotFound, codeNotFound)
}

func TestOffers_Lifecycle(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/request/req-1/offers",
		strings.NewReader("description=Scrap+yard&price=300&offer_date=2024-06-01"), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[types.OfferRecord](t, rec)
	assert.Equal(t, "Scrap yard", created.Description)
	assert.Equal(t, 2024, created.OfferDate.Year())

	rec = f.doJSON(http.MethodPatch, "/offers/"+created.ID, `{"price":"350"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[types.OfferRecord](t, rec)
	assert.Equal(t, "Scrap yard", updated.Description)
	assert.True(t, updated.Price.Equal(decimal.NewFromInt(350)))

	rec = f.do(http.MethodGet, "/request/req-1/offers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.OfferRecord](t, rec), 1)

	rec = f.do(http.MethodDelete, "/offers/"+created.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"deleted": created.ID}, decode[map[string]string](t, rec))

	assertEnvelope(t, f.do(http.MethodDelete, "/offers/"+created.ID, nil, ""), http.StatusNotFound, codeNotFound)
	assertEnvelope(t, f.doJSON(http.MethodPost, "/request/req-1/offers", `{"price":"10"}`), http.StatusBadRequest, codeInvalidInput)
}

func TestStoreFailureIsLoggedAndReported(t *testing.T) {
	f := newFixture()
	f.offers.Err = errors.New("pool closed")

	assertEnvelope(t, f.do(http.MethodGet, "/request/req-1/offers", nil, ""), http.StatusInternalServerError, codeStoreUnavailable)

	var logged bool
	for _, entry := range f.hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Message == "store operation failed" {
			logged = true
		}
	}
	assert.True(t, logged)
}

func TestPostImages_PartialFailure(t *testing.T) {
	f := newFixture()
	f.blobs.PutErr = testutils.FailKeys(func(key string) bool { return strings.HasSuffix(key, ".png") })

	body, contentType := multipartBody(t, "images",
		filePart{name: "front.jpg", contentType: "image/jpeg", data: jpegData},
		filePart{name: "side.png", contentType: "image/png", data: pngData},
		filePart{name: "rear.jpg", contentType: "image/jpeg", data: jpegData},
	)

	rec := f.do(http.MethodPost, "/request/req-1/images", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	result := decode[types.UploadResult](t, rec)
	require.Len(t, result.Uploaded, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, "side.png", result.Errors[0].FileName)
	assert.Equal(t, images.CodeBlobWriteFailed, result.Errors[0].Code)

	for _, image := range result.Uploaded {
		assert.True(t, f.blobs.Has(types.ImageObjectKey(reqID, image.Name)))
		assert.Equal(t, "https://images.test/"+types.ImageObjectKey(reqID, image.Name), image.URL)
	}
}

func TestPostImages_ValidationIsPerFile(t *testing.T) {
	f := newFixture()

	body, contentType := multipartBody(t, "images",
		filePart{name: "huge.jpg", contentType: "image/jpeg", data: bytes.Repeat([]byte{0xff}, 2048)},
		filePart{name: "notes.txt", contentType: "text/plain", data: []byte("hello")},
		filePart{name: "sniffed.jpg", contentType: "application/octet-stream", data: jpegData},
	)

	rec := f.do(http.MethodPost, "/request/req-1/images", body, contentType)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	result := decode[types.UploadResult](t, rec)
	require.Len(t, result.Uploaded, 1)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, codeFileTooLarge, result.Errors[0].Code)
	assert.Equal(t, 0, result.Errors[0].Index)
	assert.Equal(t, codeUnsupportedType, result.Errors[1].Code)
	assert.Equal(t, 1, result.Errors[1].Index)
}

func TestPostImages_LimitReached(t *testing.T) {
	f := newFixture()
	f.rows.Seed(
		&types.ImageRecord{RequestID: reqID, Name: "a.jpg"},
		&types.ImageRecord{RequestID: reqID, Name: "b.jpg"},
		&types.ImageRecord{RequestID: reqID, Name: "c.jpg"},
	)

	body, contentType := multipartBody(t, "images", filePart{name: "d.jpg", contentType: "image/jpeg", data: jpegData})

	rec := f.do(http.MethodPost, "/request/req-1/images", body, contentType)
	assertEnvelope(t, rec, http.StatusBadRequest, codeInvalidInput)

	var envelope struct {
		Error struct {
			Details types.UploadResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Error.Details.Errors, 1)
	assert.Equal(t, codeImageLimit, envelope.Error.Details.Errors[0].Code)
	assert.Empty(t, f.blobs.Keys())
}

func TestPostImages_Errors(t *testing.T) {
	f := newFixture()

	body, contentType := multipartBody(t, "images", filePart{name: "a.jpg", contentType: "image/jpeg", data: jpegData})
	assertEnvelope(t, f.do(http.MethodPost, "/request/nope/images", body, contentType), http.StatusNotFound, codeNotFound)

	body, contentType = multipartBody(t, "wrong", filePart{name: "a.jpg", contentType: "image/jpeg", data: jpegData})
	assertEnvelope(t, f.do(http.MethodPost, "/request/req-1/images", body, contentType), http.StatusBadRequest, codeInvalidInput)

	assertEnvelope(t, f.doJSON(http.MethodPost, "/request/req-1/images", `{}`), http.StatusBadRequest, codeInvalidInput)
}

func TestImageInfoAndDelete(t *testing.T) {
	f := newFixture()
	f.rows.Seed(&types.ImageRecord{RequestID: reqID, Name: "front.jpg"})
	f.blobs.Seed("req-1/front.jpg", jpegData, "image/jpeg")

	rec := f.do(http.MethodGet, "/request/req-1/images/1/info", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	info := decode[map[string]any](t, rec)
	assert.Equal(t, "front.jpg", info["name"])
	assert.Equal(t, "req-1/front.jpg", info["objectKey"])
	assert.Equal(t, "image/jpeg", info["contentType"])

	assertEnvelope(t, f.do(http.MethodGet, "/request/req-1/images/abc/info", nil, ""), http.StatusBadRequest, codeInvalidInput)
	assertEnvelope(t, f.do(http.MethodGet, "/request/req-2/images/1/info", nil, ""), http.StatusNotFound, codeNotFound)

	f.blobs.DeleteErr = testutils.FailAll

	rec = f.do(http.MethodDelete, "/request/req-1/images/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[types.DeleteResult](t, rec)
	assert.False(t, result.BlobDeleted)
	assert.Equal(t, "front.jpg", result.Name)

	remaining, err := f.rows.ImagesByRequestID(context.Background(), reqID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestReplaceImage(t *testing.T) {
	f := newFixture()
	f.rows.Seed(&types.ImageRecord{RequestID: reqID, Name: "front.jpg"})
	f.blobs.Seed("req-1/front.jpg", jpegData, "image/jpeg")

	body, contentType := multipartBody(t, "image", filePart{name: "Front.PNG", contentType: "image/png", data: pngData})

	rec := f.do(http.MethodPut, "/request/req-1/images/1/replace", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[types.ReplaceResult](t, rec)
	assert.Equal(t, "front.jpg", result.OldName)
	assert.True(t, strings.HasSuffix(result.NewName, ".png"))
	assert.True(t, result.OldBlobDeleted)
	assert.False(t, f.blobs.Has("req-1/front.jpg"))
	assert.True(t, f.blobs.Has("req-1/"+result.NewName))

	body, contentType = multipartBody(t, "image", filePart{name: "notes.txt", contentType: "text/plain", data: []byte("x")})
	assertEnvelope(t, f.do(http.MethodPut, "/request/req-1/images/1/replace", body, contentType), http.StatusBadRequest, codeInvalidInput)

	body, contentType = multipartBody(t, "image",
		filePart{name: "a.png", contentType: "image/png", data: pngData},
		filePart{name: "b.png", contentType: "image/png", data: pngData},
	)
	assertEnvelope(t, f.do(http.MethodPut, "/request/req-1/images/1/replace", body, contentType), http.StatusBadRequest, codeInvalidInput)
}

func TestDeleteAllImages(t *testing.T) {
	f := newFixture()
	f.rows.Seed(
		&types.ImageRecord{RequestID: reqID, Name: "a.jpg"},
		&types.ImageRecord{RequestID: reqID, Name: "b.jpg"},
	)
	f.blobs.Seed("req-1/a.jpg", jpegData, "image/jpeg")
	f.blobs.Seed("req-1/b.jpg", jpegData, "image/jpeg")
	f.blobs.DeleteErr = testutils.FailKeys(func(key string) bool { return key == "req-1/b.jpg" })

	rec := f.do(http.MethodDelete, "/request/req-1/images", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[types.DeleteAllResult](t, rec)
	assert.Equal(t, int64(2), result.RowsDeleted)
	assert.Equal(t, int64(1), result.BlobsDeleted)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "b.jpg", result.Errors[0].Name)

	rec = f.do(http.MethodGet, "/request/req-1/images", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]types.ImageRecord](t, rec))
}

func TestRouting(t *testing.T) {
	f := newFixture()

	assertEnvelope(t, f.do(http.MethodGet, "/nowhere", nil, ""), http.StatusNotFound, codeNotFound)
	assertEnvelope(t, f.do(http.MethodPost, "/status/codes", nil, ""), http.StatusMethodNotAllowed, codeMethodNotAllowed)

	rec := f.do(http.MethodGet, "/status/codes/", nil, "")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/status/codes", rec.Header().Get("Location"))

	rec = f.doJSON(http.MethodPut, "/request/req-1/status/", `{"status":20}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/healthz":                          "/healthz",
		"/request/abc123":                   "/request/:id",
		"/request/abc123/status":            "/request/:id/status",
		"/request/abc123/images/42/info":    "/request/:id/images/:imageID/info",
		"/request/abc123/images/42/replace": "/request/:id/images/:imageID/replace",
		"/offers/xyz":                       "/offers/:offerID",
	}

	for path, want := range cases {
		assert.Equal(t, want, routeLabel(path), path)
	}
}
