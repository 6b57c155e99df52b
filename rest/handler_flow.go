package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JacLight/mintflow-sub008/engine"
	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *Server) HandleRunFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantId := vars["tenantId"]
	flowId := vars["flowId"]

	var runReq model.FlowRunRequest
	if r.Body != nil {
		// an empty body is a run with the definition's own input
		_ = json.NewDecoder(r.Body).Decode(&runReq)
		defer r.Body.Close()
	}

	err := s.flowEngine.RunFlowWithInput(tenantId, flowId, runReq.Input)
	switch {
	case err == nil:
		respondOK(w, map[string]any{"tenantId": tenantId, "flowId": flowId, "status": string(model.FLOW_STATUS_RUNNING)})
	case errors.Is(err, persistence.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "flow definition not found", model.FlowKey(tenantId, flowId))
	case errors.Is(err, engine.ErrFlowConflict):
		respondWithError(w, http.StatusConflict, "flow is already running", model.FlowKey(tenantId, flowId))
	default:
		logger.Error("error running flow", zap.String("tenantId", tenantId), zap.String("flowId", flowId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error running flow", err.Error())
	}
}

func (s *Server) HandleResumeNode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantId := vars["tenantId"]
	flowId := vars["flowId"]

	var resumeReq model.ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&resumeReq); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	defer r.Body.Close()
	if resumeReq.NodeId == "" {
		respondWithError(w, http.StatusBadRequest, "nodeId is required", "")
		return
	}

	err := s.flowEngine.ResumeNode(tenantId, flowId, resumeReq.NodeId, resumeReq.Output)
	switch {
	case err == nil:
		respondOK(w, map[string]any{"tenantId": tenantId, "flowId": flowId, "nodeId": resumeReq.NodeId})
	case errors.Is(err, persistence.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "flow not found", model.FlowKey(tenantId, flowId))
	case errors.Is(err, engine.ErrNodeNotResumable):
		respondWithError(w, http.StatusBadRequest, "node is not waiting for resumption", resumeReq.NodeId)
	default:
		logger.Error("error resuming node", zap.String("tenantId", tenantId), zap.String("flowId", flowId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error resuming node", err.Error())
	}
}

func (s *Server) HandleCancelFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantId := vars["tenantId"]
	flowId := vars["flowId"]

	err := s.flowEngine.CancelFlow(tenantId, flowId)
	switch {
	case err == nil:
		respondOK(w, map[string]any{"tenantId": tenantId, "flowId": flowId})
	case errors.Is(err, persistence.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "flow not found", model.FlowKey(tenantId, flowId))
	default:
		logger.Error("error cancelling flow", zap.String("tenantId", tenantId), zap.String("flowId", flowId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error cancelling flow", err.Error())
	}
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantId := vars["tenantId"]
	flowId := vars["flowId"]

	record, err := s.flowEngine.GetFlow(tenantId, flowId)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, record)
	case errors.Is(err, persistence.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "flow not found", model.FlowKey(tenantId, flowId))
	default:
		logger.Error("error getting flow", zap.String("tenantId", tenantId), zap.String("flowId", flowId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error getting flow", err.Error())
	}
}

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	tenantId := mux.Vars(r)["tenantId"]

	records, err := s.flowEngine.ListFlows(tenantId)
	if err != nil {
		logger.Error("error listing flows", zap.String("tenantId", tenantId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error listing flows", err.Error())
		return
	}
	if records == nil {
		records = []*model.FlowRecord{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"tenantId": tenantId, "flows": records})
}
