package broadcast

import (
	"sync"
	"time"

	"github.com/JacLight/mintflow-sub008/logger"
	"go.uber.org/zap"
)

type WorkspaceUser struct {
	UserId       string    `json:"userId"`
	UserName     string    `json:"userName"`
	ConnectionId string    `json:"connectionId"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// WorkspaceSnapshot is the externally visible view of a session.
type WorkspaceSnapshot struct {
	Id        string          `json:"id"`
	Users     []WorkspaceUser `json:"users"`
	State     map[string]any  `json:"state"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type workspaceSession struct {
	id        string
	users     []WorkspaceUser
	state     map[string]any
	createdAt time.Time
	updatedAt time.Time
}

// Workspaces owns the ephemeral collaboration sessions. Sessions live only
// in memory: a process restart drops them, which is accepted for presence
// state. A session is created on first join and removed by key when the
// member count reaches zero.
type Workspaces struct {
	mu       sync.Mutex
	sessions map[string]*workspaceSession
	hub      *Hub
}

func NewWorkspaces(hub *Hub) *Workspaces {
	return &Workspaces{
		sessions: make(map[string]*workspaceSession),
		hub:      hub,
	}
}

func (w *Workspaces) Join(workspaceId string, userId string, userName string, connectionId string) WorkspaceSnapshot {
	if userName == "" {
		userName = "Anonymous"
	}
	if userId == "" {
		userId = connectionId
	}
	user := WorkspaceUser{
		UserId:       userId,
		UserName:     userName,
		ConnectionId: connectionId,
		JoinedAt:     time.Now(),
	}

	w.mu.Lock()
	session, ok := w.sessions[workspaceId]
	if !ok {
		now := time.Now()
		session = &workspaceSession{
			id:        workspaceId,
			state:     make(map[string]any),
			createdAt: now,
			updatedAt: now,
		}
		w.sessions[workspaceId] = session
	}
	session.users = append(session.users, user)
	session.updatedAt = time.Now()
	snapshot := session.snapshot()
	w.mu.Unlock()

	w.hub.PublishAs(WorkspaceRoom(workspaceId), map[string]any{"event": "user_joined", "user": user}, userId)
	logger.Info("user joined workspace", zap.String("workspaceId", workspaceId), zap.String("userId", userId))
	return snapshot
}

func (w *Workspaces) Leave(workspaceId string, connectionId string) {
	w.mu.Lock()
	session, ok := w.sessions[workspaceId]
	if !ok {
		w.mu.Unlock()
		return
	}
	var left *WorkspaceUser
	users := session.users[:0]
	for _, u := range session.users {
		if u.ConnectionId == connectionId && left == nil {
			removed := u
			left = &removed
			continue
		}
		users = append(users, u)
	}
	session.users = users
	session.updatedAt = time.Now()
	empty := len(session.users) == 0
	if empty {
		delete(w.sessions, workspaceId)
	}
	w.mu.Unlock()

	if left != nil {
		w.hub.PublishAs(WorkspaceRoom(workspaceId), map[string]any{"event": "user_left", "user": *left}, left.UserId)
		logger.Info("user left workspace", zap.String("workspaceId", workspaceId), zap.String("userId", left.UserId))
	}
	if empty {
		logger.Info("workspace removed, no users", zap.String("workspaceId", workspaceId))
	}
}

// Update applies shared-state changes. merge=true shallow-merges keys into
// the existing state; merge=false replaces it wholesale. Last write wins on
// concurrent updates to the same key.
func (w *Workspaces) Update(workspaceId string, state map[string]any, merge bool, updatedBy string) bool {
	w.mu.Lock()
	session, ok := w.sessions[workspaceId]
	if !ok {
		w.mu.Unlock()
		return false
	}
	if merge {
		for k, v := range state {
			session.state[k] = v
		}
	} else {
		session.state = make(map[string]any, len(state))
		for k, v := range state {
			session.state[k] = v
		}
	}
	session.updatedAt = time.Now()
	snapshot := session.snapshot()
	w.mu.Unlock()

	w.hub.PublishAs(WorkspaceRoom(workspaceId), map[string]any{"event": "workspace_updated", "state": snapshot.State}, updatedBy)
	return true
}

// Snapshot serves the hub's join-time full-state push for workspace rooms.
func (w *Workspaces) Snapshot(workspaceId string) (WorkspaceSnapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	session, ok := w.sessions[workspaceId]
	if !ok {
		return WorkspaceSnapshot{}, false
	}
	return session.snapshot(), true
}

func (w *Workspaces) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

func (s *workspaceSession) snapshot() WorkspaceSnapshot {
	users := make([]WorkspaceUser, len(s.users))
	copy(users, s.users)
	state := make(map[string]any, len(s.state))
	for k, v := range s.state {
		state[k] = v
	}
	return WorkspaceSnapshot{
		Id:        s.id,
		Users:     users,
		State:     state,
		UpdatedAt: s.updatedAt,
	}
}
