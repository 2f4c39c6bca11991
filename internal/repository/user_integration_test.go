//go:build integration

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tagtrail/tagtrail/internal/model"
	"github.com/tagtrail/tagtrail/internal/repository"
	"github.com/tagtrail/tagtrail/internal/testutil"
)

// setupRepo connects to the test database, serializes against other DB
// tests, and resets the users schema.
func setupRepo(t *testing.T) *repository.Repository {
	t.Helper()

	databaseURL := testutil.RequireEnv(t, "DATABASE_URL")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		if err := unlock(); err != nil {
			t.Errorf("release db lock: %v", err)
		}
	})

	if err := testutil.ResetUsersSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	repo, err := repository.New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	return repo
}

func TestRepository_CreateAndGetUser(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	user := &model.User{Username: "alice", Credential: "$argon2id$3$Y3JlZGVudGlhbA"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("CreateUser should assign an ID")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("CreateUser should assign timestamps")
	}

	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Username != "alice" || got.Credential != user.Credential {
		t.Errorf("got %+v, want username alice with the stored credential", got)
	}
}

func TestRepository_CreateUser_Duplicate(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	first := &model.User{Username: "alice", Credential: "$argon2id$3$b25l"}
	if err := repo.CreateUser(ctx, first); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	dup := &model.User{Username: "alice", Credential: "$argon2id$3$dHdv"}
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, repository.ErrUsernameExists) {
		t.Errorf("duplicate username error = %v, want repository.ErrUsernameExists", err)
	}
}

func TestRepository_GetUserByCredentials(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	user := &model.User{Username: "alice", Credential: "$argon2id$3$Y3JlZGVudGlhbA"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := repo.GetUserByCredentials(ctx, "alice", user.Credential)
	if err != nil {
		t.Fatalf("GetUserByCredentials failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("got ID %s, want %s", got.ID, user.ID)
	}

	// The lookup is an exact pair match.
	if _, err := repo.GetUserByCredentials(ctx, "alice", "$argon2id$3$c3RhbGU"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("stale credential error = %v, want repository.ErrUserNotFound", err)
	}
	if _, err := repo.GetUserByCredentials(ctx, "bob", user.Credential); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("wrong username error = %v, want repository.ErrUserNotFound", err)
	}
}

func TestRepository_UpdateUser(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	user := &model.User{Username: "alice", Credential: "$argon2id$3$b2xk"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	oldCredential := user.Credential

	user.Credential = "$argon2id$3$bmV3"
	if err := repo.UpdateUser(ctx, user); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}

	if _, err := repo.GetUserByCredentials(ctx, "alice", oldCredential); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("old credential should not match after update, got: %v", err)
	}
	got, err := repo.GetUserByCredentials(ctx, "alice", user.Credential)
	if err != nil {
		t.Fatalf("new credential should match: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("got ID %s, want %s", got.ID, user.ID)
	}

	missing := &model.User{ID: "01J0MISSING", Username: "ghost", Credential: "$argon2id$3$eA"}
	if err := repo.UpdateUser(ctx, missing); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("updating a missing user error = %v, want repository.ErrUserNotFound", err)
	}
}

func TestRepository_DeleteUser(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	user := &model.User{Username: "alice", Credential: "$argon2id$3$eA"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := repo.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := repo.GetUserByID(ctx, user.ID); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("deleted user lookup error = %v, want repository.ErrUserNotFound", err)
	}
	if err := repo.DeleteUser(ctx, user.ID); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("double delete error = %v, want repository.ErrUserNotFound", err)
	}
}

func TestRepository_CountUsers(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	count, err := repo.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("fresh schema count = %d, want 0", count)
	}

	for _, username := range []string{"alice", "bob"} {
		user := &model.User{Username: username, Credential: "$argon2id$3$" + username}
		if err := repo.CreateUser(ctx, user); err != nil {
			t.Fatalf("CreateUser %s failed: %v", username, err)
		}
	}

	count, err = repo.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
