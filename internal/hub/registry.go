package hub

import (
	"strings"
	"sync"
	"time"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/models"
)

// Registry is the in-memory directory of active chat sessions. Each session
// is reachable through two case-insensitive keys, the transport connection id
// and the logical username, and at most one session may hold a given value of
// either key. Check-and-mutate sequences run under one mutex so concurrent
// connects cannot both pass the existence checks.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*models.UserSession
	byUser map[string]*models.UserSession
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*models.UserSession),
		byUser: make(map[string]*models.UserSession),
	}
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Exists reports whether a session holds the given key. Case-insensitive.
func (r *Registry) Exists(key string, keyType models.UserSessionKeyType) bool {
	return r.Find(key, keyType) != nil
}

// IsActive reports whether the connection id belongs to a live session.
func (r *Registry) IsActive(connectionID string) bool {
	return r.Exists(connectionID, models.KeyConnectionID)
}

// Find returns a copy of the matching session, or nil when absent.
func (r *Registry) Find(key string, keyType models.UserSessionKeyType) *models.UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLocked(key, keyType)
}

func (r *Registry) findLocked(key string, keyType models.UserSessionKeyType) *models.UserSession {
	var se *models.UserSession
	switch keyType {
	case models.KeyUsername:
		se = r.byUser[normalizeKey(key)]
	case models.KeyConnectionID:
		se = r.byConn[normalizeKey(key)]
	}
	if se == nil {
		return nil
	}
	cp := *se
	return &cp
}

// FindUsername resolves the logical username for a connection id, returning
// an empty string when the connection has no registered session.
func (r *Registry) FindUsername(connectionID string) string {
	if se := r.Find(connectionID, models.KeyConnectionID); se != nil {
		return se.Username
	}
	return ""
}

// FindConnectionID resolves the connection id for a username.
func (r *Registry) FindConnectionID(username string) string {
	if se := r.Find(username, models.KeyUsername); se != nil {
		return se.ConnectionID
	}
	return ""
}

// Add registers a new session. Without force, a collision on either key
// fails the whole operation and leaves the registry untouched. With force,
// the conflicting session(s) are evicted first and the insert always
// succeeds. Never panics; the result envelope reports the outcome.
func (r *Registry) Add(connectionID, username string, force bool) models.ResponseBase {
	r.mu.Lock()
	defer r.mu.Unlock()

	connKey := normalizeKey(connectionID)
	userKey := normalizeKey(username)

	if force {
		if old := r.byConn[connKey]; old != nil {
			r.removeLocked(old)
		}
		if old := r.byUser[userKey]; old != nil {
			r.removeLocked(old)
		}
	} else {
		if r.byConn[connKey] != nil {
			return models.ResponseBase{IsSuccess: false, Message: "Connection ID already exists"}
		}
		if r.byUser[userKey] != nil {
			return models.ResponseBase{IsSuccess: false, Message: "Username already exists"}
		}
	}

	se := &models.UserSession{
		Username:     username,
		ConnectionID: connectionID,
		StartTime:    time.Now(),
	}
	r.byConn[connKey] = se
	r.byUser[userKey] = se

	return models.ResponseBase{IsSuccess: true, Message: username + ":" + connectionID + " added"}
}

// Remove deletes the matching session. Removing an absent key is a no-op.
func (r *Registry) Remove(key string, keyType models.UserSessionKeyType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var se *models.UserSession
	switch keyType {
	case models.KeyUsername:
		se = r.byUser[normalizeKey(key)]
	case models.KeyConnectionID:
		se = r.byConn[normalizeKey(key)]
	}
	if se != nil {
		r.removeLocked(se)
	}
}

func (r *Registry) removeLocked(se *models.UserSession) {
	delete(r.byConn, normalizeKey(se.ConnectionID))
	delete(r.byUser, normalizeKey(se.Username))
}

// CountAll returns the number of active sessions.
func (r *Registry) CountAll() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// ListAllActive snapshots every active session.
func (r *Registry) ListAllActive() []models.UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.UserSession, 0, len(r.byConn))
	for _, se := range r.byConn {
		list = append(list, *se)
	}
	return list
}
