package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/prediction-settlement/internal/usecase"
)

type settlementSyncRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) RunSettlementSync(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunSettlementSync")
	defer span.End()

	if h.settlement == nil {
		writeError(ctx, w, fmt.Errorf("%w: settlement service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	req, err := decodeSettlementSyncRequest(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	summary, err := h.settlement.RunCycle(ctx, usecase.SyncInput{Date: req.Date})
	if err != nil {
		h.logger.WarnContext(ctx, "run settlement sync failed", "date", req.Date, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, summary)
}

func (h *Handler) LastSettlementSync(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LastSettlementSync")
	defer span.End()

	if h.settlement == nil {
		writeError(ctx, w, fmt.Errorf("%w: settlement service is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	summary, ok := h.settlement.LastSummary()
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: no settlement cycle has finished yet", usecase.ErrNotFound))
		return
	}

	writeSuccess(ctx, w, http.StatusOK, summary)
}

const maxJobRequestBytes = 1 << 16

var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

func decodeSettlementSyncRequest(r *http.Request) (settlementSyncRequest, error) {
	var req settlementSyncRequest
	if r.Body == nil {
		return req, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxJobRequestBytes))
	if err != nil {
		return req, fmt.Errorf("%w: read request body: %v", usecase.ErrInvalidInput, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if err := strictJSON.Unmarshal(body, &req); err != nil {
		return settlementSyncRequest{}, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}

	return req, nil
}
