package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JacLight/mintflow-sub008/broadcast"
	"github.com/JacLight/mintflow-sub008/engine"
	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/JacLight/mintflow-sub008/metadata"
	"github.com/JacLight/mintflow-sub008/metrics"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port            int
	flowEngine      *engine.FlowEngine
	metadataService metadata.Service
	metricsService  *metrics.Service
	hub             *broadcast.Hub
	workspaces      *broadcast.Workspaces
}

func NewServer(httpPort int, flowEngine *engine.FlowEngine, metadataService metadata.Service, metricsService *metrics.Service, hub *broadcast.Hub, workspaces *broadcast.Workspaces) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		Port:            httpPort,
		flowEngine:      flowEngine,
		metadataService: metadataService,
		metricsService:  metricsService,
		hub:             hub,
		workspaces:      workspaces,
	}
	s.Handler = s.Router()
	return s, nil
}

// Router builds the full route table. Exposed separately so tests can drive
// handlers through httptest without binding a port.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/flow/{tenantId}/{flowId}/run", s.HandleRunFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{tenantId}/{flowId}/resume", s.HandleResumeNode).Methods(http.MethodPost)
	router.HandleFunc("/flow/{tenantId}/{flowId}/cancel", s.HandleCancelFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{tenantId}/{flowId}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flows/{tenantId}", s.HandleListFlows).Methods(http.MethodGet)

	router.HandleFunc("/definition", s.HandleSaveDefinition).Methods(http.MethodPost)
	router.HandleFunc("/definition/{tenantId}/{flowId}", s.HandleGetDefinition).Methods(http.MethodGet)
	router.HandleFunc("/definitions/{tenantId}", s.HandleListDefinitions).Methods(http.MethodGet)

	router.HandleFunc("/metrics/usage", s.HandleUsageMetrics).Methods(http.MethodGet)
	router.HandleFunc("/metrics/usage/{period}", s.HandleUsageMetricsByPeriod).Methods(http.MethodGet)
	router.HandleFunc("/metrics/cost", s.HandleCostMetrics).Methods(http.MethodGet)
	router.HandleFunc("/metrics/cost/{period}", s.HandleCostMetricsByPeriod).Methods(http.MethodGet)

	router.HandleFunc("/ws/flow", s.HandleFlowSocket).Methods(http.MethodGet)
	router.HandleFunc("/ws/workspace", s.HandleWorkspaceSocket).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	return router
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.Method + " " + r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondWithError(w http.ResponseWriter, code int, message string, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	respondWithJSON(w, code, body)
}
