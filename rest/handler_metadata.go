package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/model"
	"github.com/JacLight/mintflow-sub008/persistence"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *Server) HandleSaveDefinition(w http.ResponseWriter, r *http.Request) {
	var def model.FlowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid flow definition", err.Error())
		return
	}
	defer r.Body.Close()

	if err := s.metadataService.SaveFlowDefinition(def); err != nil {
		logger.Error("error saving flow definition", zap.String("tenantId", def.TenantId), zap.String("flowId", def.FlowId), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, "invalid flow definition", err.Error())
		return
	}
	respondOK(w, map[string]any{"tenantId": def.TenantId, "flowId": def.FlowId})
}

func (s *Server) HandleGetDefinition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantId := vars["tenantId"]
	flowId := vars["flowId"]

	def, err := s.metadataService.GetFlowDefinition(tenantId, flowId)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, def)
	case errors.Is(err, persistence.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "flow definition not found", model.FlowKey(tenantId, flowId))
	default:
		logger.Error("error getting flow definition", zap.String("tenantId", tenantId), zap.String("flowId", flowId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error getting flow definition", err.Error())
	}
}

func (s *Server) HandleListDefinitions(w http.ResponseWriter, r *http.Request) {
	tenantId := mux.Vars(r)["tenantId"]

	defs, err := s.metadataService.ListFlowDefinitions(tenantId)
	if err != nil {
		logger.Error("error listing flow definitions", zap.String("tenantId", tenantId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error listing flow definitions", err.Error())
		return
	}
	if defs == nil {
		defs = []*model.FlowDefinition{}
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"tenantId": tenantId, "definitions": defs})
}
