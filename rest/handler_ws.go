package rest

import (
	"encoding/json"
	"net/http"

	"github.com/JacLight/mintflow-sub008/broadcast"
	"github.com/JacLight/mintflow-sub008/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleFlowSocket streams a flow room over a websocket: the join-time
// snapshot first, then every state delta. Inbound frames are ignored; the
// read loop only detects disconnects.
func (s *Server) HandleFlowSocket(w http.ResponseWriter, r *http.Request) {
	tenantId := r.URL.Query().Get("tenantId")
	flowId := r.URL.Query().Get("flowId")
	if tenantId == "" || flowId == "" {
		respondWithError(w, http.StatusBadRequest, "tenantId and flowId are required", "")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	roomKey := broadcast.FlowRoom(tenantId, flowId)
	observerId := uuid.NewString()
	observer := s.hub.Join(roomKey, observerId)

	go writePump(conn, observer)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.Leave(roomKey, observerId)
	conn.Close()
}

type workspaceInbound struct {
	Type  string         `json:"type"`
	State map[string]any `json:"state"`
	Merge bool           `json:"merge"`
}

// HandleWorkspaceSocket joins a collaborative workspace session. The
// connection receives the session snapshot plus room events, and may send
// {type: "update", state, merge} frames to mutate shared state.
func (s *Server) HandleWorkspaceSocket(w http.ResponseWriter, r *http.Request) {
	workspaceId := r.URL.Query().Get("workspaceId")
	if workspaceId == "" {
		respondWithError(w, http.StatusBadRequest, "workspaceId is required", "")
		return
	}
	userId := r.URL.Query().Get("userId")
	userName := r.URL.Query().Get("userName")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	connectionId := uuid.NewString()
	roomKey := broadcast.WorkspaceRoom(workspaceId)
	observer := s.hub.Join(roomKey, connectionId)
	s.workspaces.Join(workspaceId, userId, userName, connectionId)

	go writePump(conn, observer)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var inbound workspaceInbound
		if err := json.Unmarshal(payload, &inbound); err != nil {
			logger.Debug("dropping malformed workspace frame", zap.String("workspaceId", workspaceId), zap.Error(err))
			continue
		}
		if inbound.Type == "update" {
			s.workspaces.Update(workspaceId, inbound.State, inbound.Merge, userId)
		}
	}
	s.workspaces.Leave(workspaceId, connectionId)
	s.hub.Leave(roomKey, connectionId)
	conn.Close()
}

// writePump forwards room messages until the observer's channel is closed by
// Hub.Leave. A write error closes the socket; the read loop then unwinds the
// room membership.
func writePump(conn *websocket.Conn, observer *broadcast.Observer) {
	for msg := range observer.C() {
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			return
		}
	}
}
