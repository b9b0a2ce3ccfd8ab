package session

import (
	"sync"
	"time"

	"procurement/internal/workflow"

	"github.com/golang-jwt/jwt/v5"
)

// Store holds the signed-in user's token and permission codes.
// The token is only read, never verified: the API is the authority.
type Store struct {
	mu      sync.RWMutex
	token   string
	claims  jwt.RegisteredClaims
	perms   workflow.PermissionSet
	now     func() time.Time
	onClear []func()
}

func NewStore() *Store {
	return &Store{perms: workflow.NewPermissionSet(), now: time.Now}
}

// SetToken replaces the session token. A token that cannot be decoded is stored
// but reported as absent by Token.
func (s *Store) SetToken(token string) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		claims = jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Unix(0, 0))}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.claims = claims
}

func (s *Store) SetPermissions(codes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms = workflow.NewPermissionSet(codes...)
}

// Token returns the session token, or "" when there is none or it has expired.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return ""
	}
	if exp := s.claims.ExpiresAt; exp != nil && !s.now().Before(exp.Time) {
		return ""
	}
	return s.token
}

// UserID is the subject of the current token.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims.Subject
}

// Permissions returns a copy of the held permission codes.
func (s *Store) Permissions() workflow.PermissionSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return workflow.NewPermissionSet(s.perms.Codes()...)
}

// Clear drops the token and permissions and runs the OnClear hooks.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.claims = jwt.RegisteredClaims{}
	s.perms = workflow.NewPermissionSet()
	hooks := append([]func(){}, s.onClear...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// OnClear registers fn to run after the session is cleared, e.g. to show the login screen.
func (s *Store) OnClear(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClear = append(s.onClear, fn)
}
