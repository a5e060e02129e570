package users

import (
	"context"
	"sort"
	"sync"

	"callcenter-backend/internal/auth"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

func (r *MemoryRepo) Create(ctx context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return User{}, ErrEmailTaken
		}
	}
	if len(r.users) == 0 {
		u.Role = auth.RoleAdmin
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryRepo) ByID(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) ByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) ByPhoneNumber(ctx context.Context, number string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *User
	for _, u := range r.users {
		u := u
		if u.PhoneNumber == number {
			if found == nil || u.CreatedAt.Before(found.CreatedAt) {
				found = &u
			}
		}
	}
	if found == nil {
		return User{}, ErrNotFound
	}
	return *found, nil
}

func (r *MemoryRepo) SetRefreshToken(ctx context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.RefreshToken = token
	r.users[id] = u
	return nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
