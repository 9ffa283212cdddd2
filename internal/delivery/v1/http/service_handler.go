package http

import (
	"net/http"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

// ServiceHandler обслуживающие эндпоинты: discovery, статистика и сверка.
type ServiceHandler struct {
	statsUsecase     usecase.StatsUC
	reconcileUsecase usecase.ReconcileUC
	logger           logger.Logger
	opts             *handlerOptions
}

func NewServiceHandler(statsUsecase usecase.StatsUC, reconcileUsecase usecase.ReconcileUC, logger logger.Logger, opts *handlerOptions) *ServiceHandler {
	return &ServiceHandler{
		statsUsecase:     statsUsecase,
		reconcileUsecase: reconcileUsecase,
		logger:           logger,
		opts:             opts,
	}
}

// root
//
//	@Summary	Discovery
//	@Tags		service
//	@Produce	json
//	@Success	200	{object}	RootResponse
//	@Router		/ [get]
func (h *ServiceHandler) root(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, &RootResponse{
		Status:    "ok",
		Service:   h.opts.service,
		Version:   h.opts.version,
		Endpoints: endpoints,
	})
}

// stats
//
//	@Summary	Статистика индекса
//	@Tags		service
//	@Produce	json
//	@Success	200	{object}	StatsResponse
//	@Failure	500	{object}	ErrorResponse
//	@Router		/stats [get]
func (h *ServiceHandler) stats(w http.ResponseWriter, r *http.Request) {
	res, err := h.statsUsecase.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newStatsResponse(res))
}

// reconcile
//
//	@Summary		Сверка индекса и метаданных
//	@Description	Удаляет векторы без метаданных и метаданные без векторов
//	@Tags			service
//	@Produce		json
//	@Success		200	{object}	ReconcileResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/reconcile [post]
func (h *ServiceHandler) reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcileUsecase.Reconcile(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newReconcileResponse(report))
}

func (h *ServiceHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := WriteError(w, err, h.opts.withDetails)
	logFailure(h.logger, r, code, err)
}
