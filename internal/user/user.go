// Package user provides the minimal user store the session runtime
// needs: every session belongs to a user, but with AUTH_TYPE=noop the
// only authentication mode this server implements, there is exactly
// one caller identity to provision.
package user

import (
	"sync"
	"time"

	"github.com/turnstream/turnstream/internal/ids"
	"github.com/turnstream/turnstream/internal/storage"
	"github.com/turnstream/turnstream/pkg/types"
)

// NoopSub is the external subject id the noop auth mode provisions
// its single user under.
const NoopSub = "noop"

// Store holds provisioned users.
type Store struct {
	mu   sync.Mutex
	docs *storage.Collection[types.User]
}

// NewStore returns an empty user store.
func NewStore() *Store {
	return &Store{docs: storage.NewCollection[types.User]("users")}
}

// Create persists a new user.
func (s *Store) Create(sub, name string, email *string) types.User {
	u := types.User{
		ID:        types.UserId(ids.New()),
		Sub:       sub,
		Name:      name,
		Email:     email,
		CreatedAt: time.Now(),
	}
	s.docs.InsertOne(u)
	return u
}

// Get returns the user with id, or ok=false.
func (s *Store) Get(id types.UserId) (types.User, bool) {
	return s.docs.FindOne(func(u types.User) bool { return u.ID == id })
}

// GetBySub returns the user with external subject sub, or ok=false.
func (s *Store) GetBySub(sub string) (types.User, bool) {
	return s.docs.FindOne(func(u types.User) bool { return u.Sub == sub })
}

// EnsureNoopUser returns the stable noop user, creating it on first
// call. It is the caller identity every request authenticates as
// under AUTH_TYPE=noop.
func (s *Store) EnsureNoopUser() types.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.GetBySub(NoopSub); ok {
		return u
	}
	return s.Create(NoopSub, "Guest", nil)
}
