package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName   = "microstore-session"
	rememberFor   = 30 * 24 * 60 * 60 // seconds
	keyUserID     = "user_id"
	keyAuthorized = "authenticated"
)

// Sessions keeps the logged-in user in a signed cookie.
type Sessions struct {
	store *sessions.CookieStore
}

func NewSessions(key []byte, secure bool) *Sessions {
	store := sessions.NewCookieStore(key)
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Path = "/"
	return &Sessions{store: store}
}

// Login marks the session as belonging to userID. With remember set the
// cookie outlives the browser session.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, userID int64, remember bool) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values[keyAuthorized] = true
	sess.Values[keyUserID] = userID
	sess.Options.MaxAge = 0
	if remember {
		sess.Options.MaxAge = rememberFor
	}
	return sess.Save(r, w)
}

func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// UserID returns the user bound to the request's session, if any.
func (s *Sessions) UserID(r *http.Request) (int64, bool) {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return 0, false
	}
	if ok, _ := sess.Values[keyAuthorized].(bool); !ok {
		return 0, false
	}
	id, ok := sess.Values[keyUserID].(int64)
	return id, ok && id > 0
}
