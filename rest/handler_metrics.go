package rest

import (
	"errors"
	"net/http"

	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/metrics"
	"github.com/JacLight/mintflow-sub008/model"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *Server) HandleUsageMetrics(w http.ResponseWriter, r *http.Request) {
	tenantId := r.URL.Query().Get("tenantId")
	if tenantId == "" {
		respondWithError(w, http.StatusBadRequest, "tenantId is required", "")
		return
	}

	data, err := s.metricsService.GetUsageMetrics(tenantId)
	if err != nil {
		logger.Error("error fetching usage metrics", zap.String("tenantId", tenantId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error fetching usage metrics", err.Error())
		return
	}
	totals, err := s.metricsService.UsageTotals(tenantId)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "error fetching usage metrics", err.Error())
		return
	}
	if data == nil {
		data = []*model.UsageMetric{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"tenantId":        tenantId,
		"totalRequests":   totals.TotalRequests,
		"totalTokens":     totals.TotalTokens,
		"requestsByModel": totals.RequestsByModel,
		"tokensByModel":   totals.TokensByModel,
		"data":            data,
	})
}

func (s *Server) HandleUsageMetricsByPeriod(w http.ResponseWriter, r *http.Request) {
	tenantId := r.URL.Query().Get("tenantId")
	period := mux.Vars(r)["period"]
	if tenantId == "" {
		respondWithError(w, http.StatusBadRequest, "tenantId is required", "")
		return
	}

	data, err := s.metricsService.GetUsageMetricsByPeriod(tenantId, period)
	var invalid metrics.ErrInvalidPeriod
	switch {
	case err == nil:
		if data == nil {
			data = []*model.UsageMetric{}
		}
		respondWithJSON(w, http.StatusOK, map[string]any{"tenantId": tenantId, "period": period, "data": data})
	case errors.As(err, &invalid):
		respondWithError(w, http.StatusBadRequest, "invalid period", period)
	default:
		logger.Error("error fetching usage metrics", zap.String("tenantId", tenantId), zap.String("period", period), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error fetching usage metrics", err.Error())
	}
}

func (s *Server) HandleCostMetrics(w http.ResponseWriter, r *http.Request) {
	tenantId := r.URL.Query().Get("tenantId")
	if tenantId == "" {
		respondWithError(w, http.StatusBadRequest, "tenantId is required", "")
		return
	}

	data, err := s.metricsService.GetCostMetrics(tenantId)
	if err != nil {
		logger.Error("error fetching cost metrics", zap.String("tenantId", tenantId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error fetching cost metrics", err.Error())
		return
	}
	totals, err := s.metricsService.CostTotals(tenantId)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "error fetching cost metrics", err.Error())
		return
	}
	if data == nil {
		data = []*model.CostMetric{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"tenantId":        tenantId,
		"totalCost":       totals.TotalCost,
		"costByModel":     totals.CostByModel,
		"costByWorkspace": totals.CostByWorkspace,
		"data":            data,
	})
}

func (s *Server) HandleCostMetricsByPeriod(w http.ResponseWriter, r *http.Request) {
	tenantId := r.URL.Query().Get("tenantId")
	period := mux.Vars(r)["period"]
	if tenantId == "" {
		respondWithError(w, http.StatusBadRequest, "tenantId is required", "")
		return
	}

	data, err := s.metricsService.GetCostMetricsByPeriod(tenantId, period)
	var invalid metrics.ErrInvalidPeriod
	switch {
	case err == nil:
		if data == nil {
			data = []*model.CostMetric{}
		}
		respondWithJSON(w, http.StatusOK, map[string]any{"tenantId": tenantId, "period": period, "data": data})
	case errors.As(err, &invalid):
		respondWithError(w, http.StatusBadRequest, "invalid period", period)
	default:
		logger.Error("error fetching cost metrics", zap.String("tenantId", tenantId), zap.String("period", period), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error fetching cost metrics", err.Error())
	}
}
