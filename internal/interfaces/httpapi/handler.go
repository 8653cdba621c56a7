package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/prediction-settlement/internal/platform/logging"
	"github.com/riskibarqy/prediction-settlement/internal/usecase"
)

// SettlementRunner triggers and reports settlement cycles.
// *usecase.SettlementService satisfies it.
type SettlementRunner interface {
	RunCycle(ctx context.Context, input usecase.SyncInput) (usecase.SyncSummary, error)
	LastSummary() (usecase.SyncSummary, bool)
}

type Handler struct {
	settlement SettlementRunner
	logger     *logging.Logger
	validator  *validator.Validate
}

func NewHandler(settlement SettlementRunner, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		settlement: settlement,
		logger:     logger,
		validator:  validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}
