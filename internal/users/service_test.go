package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"callcenter-backend/internal/auth"
	"callcenter-backend/internal/config"
)

func newTestService(t *testing.T) (*Service, *MemoryRepo) {
	t.Helper()
	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	repo := NewMemoryRepo()
	svc := NewService(repo, m)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return svc, repo
}

func TestRegister_FirstUserIsAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw", PhoneNumber: "+15550001111"})
	if err != nil {
		t.Fatalf("register first: %v", err)
	}
	if first.Role != auth.RoleAdmin {
		t.Fatalf("expected first registrant to be admin, got %q", first.Role)
	}

	second, err := svc.Register(ctx, RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "pw", PhoneNumber: "+15550002222"})
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if second.Role != auth.RoleAgent {
		t.Fatalf("expected second registrant to be agent, got %q", second.Role)
	}
}

func TestRegister_ConcurrentRegistrationsMintOneAdmin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(ctx, RegisterRequest{
				Username:    fmt.Sprintf("agent%d", i),
				Email:       fmt.Sprintf("agent%d@example.com", i),
				Password:    "pw",
				PhoneNumber: fmt.Sprintf("+1555000%04d", i),
			})
			if err != nil {
				t.Errorf("register %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	list, err := svc.ListAgents(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	admins := 0
	for _, u := range list {
		if u.Role == auth.RoleAdmin {
			admins++
		}
	}
	if admins != 1 {
		t.Fatalf("expected exactly one admin, got %d of %d accounts", admins, len(list))
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{Username: "a", Email: "dup@example.com", Password: "pw", PhoneNumber: "+1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.Register(ctx, RegisterRequest{Username: "b", Email: "dup@example.com", Password: "pw", PhoneNumber: "+2"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Register(context.Background(), RegisterRequest{Username: "a", Email: "", Password: "pw", PhoneNumber: "+1"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLogin_StoresLatestRefreshToken(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw", PhoneNumber: "+15550001111"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := svc.Login(ctx, "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatalf("expected token pair")
	}

	stored, _ := repo.ByID(ctx, u.ID)
	if stored.RefreshToken != res.Tokens.RefreshToken {
		t.Fatalf("expected refresh slot to hold latest token")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw", PhoneNumber: "+1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "missing@example.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRefresh_SingleSlotInvalidatesPrior(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw", PhoneNumber: "+1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Clock must advance between issues or the rotated pair is byte-identical.
	base := time.Unix(1700000000, 0).UTC()
	step := 0
	svc.clock = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	first, err := svc.Login(ctx, "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := svc.Refresh(ctx, first.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == first.Tokens.RefreshToken {
		t.Fatalf("expected rotation to mint a new refresh token")
	}

	// The old token no longer matches the slot.
	if _, err := svc.Refresh(ctx, first.Tokens.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected ErrInvalidRefresh for superseded token, got %v", err)
	}
}

func TestLogout_ClearsRefreshSlot(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	u, _ := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw", PhoneNumber: "+1"})
	res, err := svc.Login(ctx, "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := svc.Logout(ctx, u.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	stored, _ := repo.ByID(ctx, u.ID)
	if stored.RefreshToken != "" {
		t.Fatalf("expected cleared refresh slot")
	}
	if _, err := svc.Refresh(ctx, res.Tokens.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("expected refresh rejection after logout, got %v", err)
	}
}

func TestByPhoneNumber(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, _ := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "pw", PhoneNumber: "+15550001111"})
	got, err := svc.ByPhoneNumber(ctx, "+15550001111")
	if err != nil {
		t.Fatalf("by phone: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("resolved wrong user")
	}
	if _, err := svc.ByPhoneNumber(ctx, "+19999999999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
