package api

import (
	"net/http"
	"strings"

	"github.com/attachdrop/backend/internal/filetype"
	"github.com/attachdrop/backend/internal/models"
	"github.com/attachdrop/backend/internal/session"
	"github.com/attachdrop/backend/internal/storage"
	"github.com/attachdrop/backend/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const (
	// SessionCookie carries the widget session ID.
	SessionCookie = "attachdrop_session"

	// HeaderUserName is set by a fronting proxy to name the current user.
	HeaderUserName = "X-User-Name"
)

// NewIngestorFactory builds per-session ingestors whose accepted files land
// in store. The store is the host side of the emit callback.
func NewIngestorFactory(store storage.Store, policy *filetype.Policy, source upload.FileSource, metrics *upload.Metrics) session.IngestorFactory {
	return func(sessionID string, events *upload.Broker) *upload.Ingestor {
		emit := func(files []models.FileDescriptor) {
			for _, d := range files {
				a, err := store.Add(d)
				if err != nil {
					log.Errorf("[Session %s] Failed to store %s: %v", sessionID[:8], d.Name, err)
					continue
				}
				log.Debugf("[Session %s] Stored attachment %s as %s", sessionID[:8], d.Name, a.ID)
			}
		}
		return upload.NewIngestor(policy, source, emit,
			upload.WithPublisher(events),
			upload.WithMetrics(metrics),
		)
	}
}

// sessionResolver maps a request to its widget session.
type sessionResolver struct {
	sessions    SessionManager
	defaultUser string
}

func (r *sessionResolver) currentUser(c echo.Context) models.User {
	name := strings.TrimSpace(c.Request().Header.Get(HeaderUserName))
	if name == "" {
		name = r.defaultUser
	}
	return models.User{Name: name}
}

// lookup finds or creates the session without touching the response.
func (r *sessionResolver) lookup(c echo.Context) (*session.Session, bool) {
	id := ""
	if ck, err := c.Cookie(SessionCookie); err == nil {
		id = ck.Value
	}
	return r.sessions.GetOrCreate(id, r.currentUser(c))
}

// resolve finds or creates the session and sets the cookie for new ones.
func (r *sessionResolver) resolve(c echo.Context) *session.Session {
	sess, created := r.lookup(c)
	if created {
		c.SetCookie(sessionCookie(sess.ID))
	}
	return sess
}

func sessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
