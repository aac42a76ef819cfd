package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fakeHash(password string) (string, error) { return "hashed:" + password, nil }

func TestUserService_CreateUser(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)
	valid := UserInput{Email: " Grandma@Example.com ", DisplayName: " Grandma ", Password: "long-enough"}

	t.Run("requires administrator privileges", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newMemoryStore(), fakeHash, sequenceGenerator("u1"), func() time.Time { return now })
		_, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: Principal{UserID: "member"}, Input: valid})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates email, display name and password together", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newMemoryStore(), fakeHash, sequenceGenerator("u1"), func() time.Time { return now })
		_, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: admin, Input: UserInput{Email: "not-an-email", Password: "short"}})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "display_name", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %#v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("persists normalized users for administrators", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		svc := NewUserService(store, fakeHash, sequenceGenerator("u1"), func() time.Time { return now })
		user, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: admin, Input: valid})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if user.ID != "u1" || user.Email != "grandma@example.com" || user.DisplayName != "Grandma" {
			t.Fatalf("unexpected user: %#v", user)
		}
		if !user.CreatedAt.Equal(now) {
			t.Fatalf("expected CreatedAt %s, got %s", now, user.CreatedAt)
		}
	})

	t.Run("maps duplicate emails to a field error", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		store.users["existing"] = User{ID: "existing", Email: "grandma@example.com"}
		svc := NewUserService(store, fakeHash, sequenceGenerator("u1"), func() time.Time { return now })
		_, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: admin, Input: valid})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["email"]; !ok {
			t.Fatalf("expected email error, got %#v", vErr.FieldErrors)
		}
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	t.Parallel()

	t.Run("requires administrator privileges", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newMemoryStore(), fakeHash, nil, nil)
		if err := svc.DeleteUser(context.Background(), Principal{UserID: "member"}, "other"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("refuses to delete the caller", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newMemoryStore(), fakeHash, nil, nil)
		err := svc.DeleteUser(context.Background(), admin, "admin")
		if ErrorKind(err) != "validation" {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("reports members who still own reservations", func(t *testing.T) {
		t.Parallel()
		store := newMemoryStore()
		store.users["u1"] = User{ID: "u1"}
		store.reservations["r1"] = Reservation{ID: "r1", OwnerUserID: "u1"}
		svc := NewUserService(store, fakeHash, nil, nil)
		if err := svc.DeleteUser(context.Background(), admin, "u1"); !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("propagates ErrNotFound", func(t *testing.T) {
		t.Parallel()
		svc := NewUserService(newMemoryStore(), fakeHash, nil, nil)
		if err := svc.DeleteUser(context.Background(), admin, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUserService_ListUsers(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.users["a"] = User{ID: "a", DisplayName: "zoe"}
	store.users["b"] = User{ID: "b", DisplayName: "Adam"}
	store.users["c"] = User{ID: "c", DisplayName: "bea"}
	svc := NewUserService(store, fakeHash, nil, nil)

	if _, err := svc.ListUsers(context.Background(), Principal{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for anonymous callers, got %v", err)
	}

	users, err := svc.ListUsers(context.Background(), Principal{UserID: "b"})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	got := []string{users[0].ID, users[1].ID, users[2].ID}
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}
