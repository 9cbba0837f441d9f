package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"purchasedesk/internal/images"
	"purchasedesk/internal/management"
	"purchasedesk/internal/offers"
	"purchasedesk/internal/status"
	"purchasedesk/internal/utils"
	"purchasedesk/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var decoder = newFormDecoder()

var validate = utils.NewValidator()

// Pinger reports whether the relational store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Service struct {
	logger *logrus.Logger
	config *types.Config

	db         Pinger
	statuses   *status.Engine
	management *management.Resolver
	images     *images.AssetStore
	offers     *offers.Ledger

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	db Pinger,
	statuses *status.Engine,
	management *management.Resolver,
	images *images.AssetStore,
	offers *offers.Ledger,
) *Service {
	mux := flow.New()

	s := &Service{
		logger:     logger,
		config:     config,
		db:         db,
		statuses:   statuses,
		management: management,
		images:     images,
		offers:     offers,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	// Routes match exactly, so the slash has to go before routing.
	s.server.Handler = s.StripTrailingSlash(mux)

	return s
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Service) Handler() http.Handler {
	return s.server.Handler
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)
	r.Handle("/metrics", promhttp.Handler(), http.MethodGet)
	r.HandleFunc("/status/codes", s.handleStatusCodes, http.MethodGet)

	r.HandleFunc("/request/:id", s.handleGetRequest, http.MethodGet)
	r.HandleFunc("/request/:id/status", s.handlePutStatus, http.MethodPut)

	r.HandleFunc("/request/:id/management", s.handlePutManagement, http.MethodPut)
	r.HandleFunc("/request/:id/management", s.handlePatchManagement, http.MethodPatch)

	r.HandleFunc("/request/:id/images", s.handlePostImages, http.MethodPost)
	r.HandleFunc("/request/:id/images", s.handleGetImages, http.MethodGet)
	r.HandleFunc("/request/:id/images", s.handleDeleteImages, http.MethodDelete)
	r.HandleFunc("/request/:id/images/:imageID/info", s.handleGetImageInfo, http.MethodGet)
	r.HandleFunc("/request/:id/images/:imageID/replace", s.handleReplaceImage, http.MethodPut)
	r.HandleFunc("/request/:id/images/:imageID", s.handleDeleteImage, http.MethodDelete)

	r.HandleFunc("/request/:id/offers", s.handleGetOffers, http.MethodGet)
	r.HandleFunc("/request/:id/offers", s.handlePostOffer, http.MethodPost)
	r.HandleFunc("/offers/:offerID", s.handlePatchOffer, http.MethodPatch)
	r.HandleFunc("/offers/:offerID", s.handleDeleteOffer, http.MethodDelete)

	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})
}

func newFormDecoder() *form.Decoder {
	d := form.NewDecoder()

	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		return decimal.NewFromString(vals[0])
	}, decimal.Decimal{})

	d.RegisterCustomTypeFunc(func(vals []string) (interface{}, error) {
		if t, err := time.Parse(time.RFC3339, vals[0]); err == nil {
			return t, nil
		}
		return time.Parse(time.DateOnly, vals[0])
	}, time.Time{})

	return d
}
