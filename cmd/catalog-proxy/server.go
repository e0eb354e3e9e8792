package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/catalog-cache/pkg/cache"
	"github.com/Sternrassler/catalog-cache/pkg/client"
	"github.com/Sternrassler/catalog-cache/pkg/metrics"
	"github.com/Sternrassler/catalog-cache/pkg/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"
)

// handlerTimeout bounds a single proxy request including upstream loads.
const handlerTimeout = 30 * time.Second

// ErrorResponse is the JSON body of failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ItemsResponse is the JSON body of /items.
type ItemsResponse struct {
	From  int          `json:"from"`
	To    int          `json:"to"`
	Items []cache.Item `json:"items"`
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	service.Status
	AnyLoading bool `json:"any_loading"`
}

// readyCheck reports whether dependencies are reachable.
type readyCheck func(ctx context.Context) error

type server struct {
	svc    *service.Service
	ready  readyCheck
	logger zerolog.Logger
}

func newRouter(svc *service.Service, ready readyCheck, logger zerolog.Logger) http.Handler {
	s := &server{svc: svc, ready: ready, logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/health", healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/status", s.statusHandler)

	r.Route("/items", func(r chi.Router) {
		r.Get("/", s.itemsHandler)
		r.Get("/{index}", s.itemHandler)
		r.Get("/{index}/thumbnail", s.thumbnailHandler)
		r.Get("/{index}/medium", s.mediumHandler)
	})

	return r
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.PlainText(w, r, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			render.Status(r, http.StatusServiceUnavailable)
			render.PlainText(w, r, "NOT READY")
			return
		}
	}
	render.Status(r, http.StatusOK)
	render.PlainText(w, r, "OK")
}

func (s *server) statusHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, StatusResponse{
		Status:     s.svc.Status(),
		AnyLoading: s.svc.AnyLoading(),
	})
}

func (s *server) itemsHandler(w http.ResponseWriter, r *http.Request) {
	from, err := strconv.Atoi(r.URL.Query().Get("from"))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, errors.New("from must be an integer"))
		return
	}
	to, err := strconv.Atoi(r.URL.Query().Get("to"))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, errors.New("to must be an integer"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	if err := s.svc.LoadRange(ctx, from, to); err != nil {
		s.renderError(w, r, statusFor(err), err)
		return
	}

	items := make([]cache.Item, 0, to-from+1)
	for i := from; i <= to; i++ {
		item, ok := s.svc.Item(i)
		if !ok {
			// Past the end of the catalog
			break
		}
		items = append(items, item)
	}

	render.JSON(w, r, ItemsResponse{From: from, To: to, Items: items})
}

// loadIndex parses {index} and makes its page resident.
func (s *server) loadIndex(w http.ResponseWriter, r *http.Request) (int, context.Context, context.CancelFunc, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, errors.New("index must be an integer"))
		return 0, nil, nil, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	if err := s.svc.LoadRange(ctx, index, index); err != nil {
		cancel()
		s.renderError(w, r, statusFor(err), err)
		return 0, nil, nil, false
	}
	return index, ctx, cancel, true
}

func (s *server) itemHandler(w http.ResponseWriter, r *http.Request) {
	index, _, cancel, ok := s.loadIndex(w, r)
	if !ok {
		return
	}
	defer cancel()

	item, found := s.svc.Item(index)
	if !found {
		s.renderError(w, r, http.StatusNotFound, service.ErrItemNotFound)
		return
	}
	render.JSON(w, r, item)
}

func (s *server) thumbnailHandler(w http.ResponseWriter, r *http.Request) {
	index, _, cancel, ok := s.loadIndex(w, r)
	if !ok {
		return
	}
	defer cancel()

	img, found := s.svc.Thumbnail(index)
	if !found {
		s.renderError(w, r, http.StatusNotFound, errors.New("thumbnail not available"))
		return
	}
	writeImage(w, img)
}

func (s *server) mediumHandler(w http.ResponseWriter, r *http.Request) {
	index, ctx, cancel, ok := s.loadIndex(w, r)
	if !ok {
		return
	}
	defer cancel()

	img, err := s.svc.MediumImage(ctx, index)
	if err != nil {
		s.renderError(w, r, statusFor(err), err)
		return
	}
	writeImage(w, img)
}

func writeImage(w http.ResponseWriter, img *cache.Image) {
	w.Header().Set("Content-Type", img.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

func (s *server) renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var httpErr *client.HTTPError
	switch {
	case errors.Is(err, service.ErrInvalidRange), errors.Is(err, service.ErrRangeTooWide):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrPageURLUnknown),
		errors.Is(err, service.ErrPageNotLoaded),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrImageURLEmpty):
		return http.StatusNotFound
	case errors.Is(err, service.ErrOverloaded),
		errors.Is(err, service.ErrQuotaExhausted),
		errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrMalformedPage), errors.Is(err, cache.ErrImageDecode):
		return http.StatusBadGateway
	case errors.As(err, &httpErr):
		if httpErr.Class == client.ErrorClassNetwork {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
