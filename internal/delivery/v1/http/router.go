package http

import (
	"net/http"

	_ "github.com/DRSN-tech/visual-search/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

var endpoints = []string{
	"GET /",
	"POST /index",
	"DELETE /index/{product_id}",
	"POST /search",
	"POST /batch-index",
	"GET /stats",
	"POST /reconcile",
}

// handlerOptions общие настройки обработчиков.
type handlerOptions struct {
	maxBodyBytes int64
	withDetails  bool
	service      string
	version      string
}

// UseCases набор usecase, которые обслуживает HTTP API.
type UseCases struct {
	Index     usecase.IndexUC
	Search    usecase.SearchUC
	Stats     usecase.StatsUC
	Reconcile usecase.ReconcileUC
}

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(ucs *UseCases, appCfg *cfg.AppCfg, httpCfg *cfg.HTTPConfig) {
	opts := &handlerOptions{
		maxBodyBytes: httpCfg.MaxBodyBytes,
		withDetails:  !appCfg.IsProduction(),
		service:      appCfg.Name,
		version:      appCfg.Version,
	}

	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RealIP)
	r.router.Use(cors)
	r.router.Use(middleware.Recoverer)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // ссылка на JSON
	))

	indexHandler := NewIndexHandler(ucs.Index, r.logger, opts)
	searchHandler := NewSearchHandler(ucs.Search, r.logger, opts)
	serviceHandler := NewServiceHandler(ucs.Stats, ucs.Reconcile, r.logger, opts)

	r.router.Get("/", serviceHandler.root)
	r.router.Get("/stats", serviceHandler.stats)

	// Пакетные операции могут идти дольше таймаута одиночных запросов
	r.router.Post("/batch-index", indexHandler.batchIndex)
	r.router.Post("/reconcile", serviceHandler.reconcile)

	r.router.Group(func(g chi.Router) {
		if httpCfg.RequestTimeout > 0 {
			g.Use(middleware.Timeout(httpCfg.RequestTimeout))
		}
		registerIndexRoutes(g, indexHandler)
		g.Post("/search", searchHandler.search)
	})

	r.router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		WriteSuccess(w, http.StatusNotFound, NewErrorResponse("Not found", ""))
	})
	r.router.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		WriteSuccess(w, http.StatusMethodNotAllowed, NewErrorResponse("Method not allowed", ""))
	})
}

func registerIndexRoutes(router chi.Router, h *IndexHandler) {
	router.Route("/index", func(ir chi.Router) {
		ir.Post("/", h.indexProduct)
		ir.Delete("/{product_id}", h.deleteProduct)
	})
}

// cors разрешает запросы с любых источников. Заголовки ставятся до обработчика,
// поэтому присутствуют и в ответах с ошибкой.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func logFailure(log logger.Logger, r *http.Request, code int, err error) {
	if code >= http.StatusInternalServerError {
		log.Errorf(err, "%s %s -> %d (request_id=%s)", r.Method, r.URL.Path, code, middleware.GetReqID(r.Context()))
		return
	}

	log.Warnf("%s %s -> %d: %v", r.Method, r.URL.Path, code, err)
}
