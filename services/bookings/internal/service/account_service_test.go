package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diagnosis/hotel-bookings/pkg/auth"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
)

func newAccountService(store *memStore) AccountService {
	cfg := testConfig()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenTTL = time.Hour
	return NewAccountService(store, cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	store := newMemStore()
	svc := newAccountService(store)
	ctx := context.Background()

	user, err := svc.Register(ctx, &domain.RegisterRequest{
		Email: " Jane@Example.com ", Password: "correct-horse", FirstName: "Jane",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Email != "jane@example.com" || user.Role != domain.RoleUser || user.PasswordHash == "correct-horse" {
		t.Errorf("unexpected user %+v", user)
	}

	if _, err := svc.Register(ctx, &domain.RegisterRequest{Email: "jane@example.com", Password: "another-pass"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("duplicate register error = %v", err)
	}
	if _, err := svc.Register(ctx, &domain.RegisterRequest{Email: "x@y.z", Password: "short"}); !domain.IsValidation(err) {
		t.Errorf("short password error = %v", err)
	}

	resp, err := svc.Login(ctx, &domain.LoginRequest{Email: "jane@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	claims, err := auth.Parse(resp.AccessToken, "test-secret")
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.Sub != user.ID || claims.Role != "user" || resp.ExpiresIn != 3600 {
		t.Errorf("claims = %+v expires_in = %d", claims, resp.ExpiresIn)
	}

	if _, err := svc.Login(ctx, &domain.LoginRequest{Email: "jane@example.com", Password: "wrong-horse"}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("wrong password error = %v", err)
	}
	if _, err := svc.Login(ctx, &domain.LoginRequest{Email: "nobody@example.com", Password: "whatever"}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("unknown email error = %v", err)
	}
}

func TestLoginRejectsDeactivatedUser(t *testing.T) {
	store := newMemStore()
	svc := newAccountService(store)
	ctx := context.Background()
	user, _ := svc.Register(ctx, &domain.RegisterRequest{Email: "a@example.com", Password: "password1"})
	store.Users().SetActive(ctx, user.ID, false)

	if _, err := svc.Login(ctx, &domain.LoginRequest{Email: "a@example.com", Password: "password1"}); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
	id, err := svc.Identity(ctx, user.ID)
	if err != nil {
		t.Fatalf("Identity() error = %v", err)
	}
	if id.Can(domain.CapBook) {
		t.Error("deactivated identity must not hold capabilities")
	}
}

func TestManageUsers(t *testing.T) {
	store := newMemStore()
	svc := newAccountService(store)
	ctx := context.Background()
	admin := store.addUser("admin@example.com", domain.RoleAdmin)
	staff := store.addUser("staff@example.com", domain.RoleStaff)
	user := store.addUser("user@example.com", domain.RoleUser)

	if err := svc.SetRole(ctx, staff, user.UserID, domain.RoleStaff); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("staff SetRole error = %v", err)
	}
	if err := svc.SetRole(ctx, admin, admin.UserID, domain.RoleUser); !domain.IsValidation(err) {
		t.Errorf("self SetRole error = %v", err)
	}
	if err := svc.SetRole(ctx, admin, user.UserID, "wizard"); !domain.IsValidation(err) {
		t.Errorf("unknown role error = %v", err)
	}
	if err := svc.SetRole(ctx, admin, user.UserID, " Staff "); err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	id, _ := svc.Identity(ctx, user.UserID)
	if id.Role != domain.RoleStaff || !id.Can(domain.CapModerate) || id.Can(domain.CapBook) {
		t.Errorf("identity after role change = %+v", id)
	}

	if err := svc.SetActive(ctx, admin, 9999, false); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing user error = %v", err)
	}
	users, err := svc.ListUsers(ctx, admin, 10, 0)
	if err != nil || len(users) != 3 {
		t.Errorf("ListUsers() = %d users, %v", len(users), err)
	}

	if _, err := svc.Identity(ctx, 9999); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("unknown identity error = %v", err)
	}
}
