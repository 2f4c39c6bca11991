//go:build e2e

// Package e2e drives a running instance end to end over HTTP. It needs
// DATABASE_URL and AUTH_SECRET to mint a seed account directly, the same
// way an operator would with the provision-user script.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tagtrail/tagtrail/internal/auth"
	"github.com/tagtrail/tagtrail/internal/model"
	"github.com/tagtrail/tagtrail/internal/repository"
	"github.com/tagtrail/tagtrail/internal/service"
)

type tokenResponse struct {
	Token string `json:"token"`
}

func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("TAGTRAIL_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required for e2e tests")
	}
	secretMaterial := os.Getenv("AUTH_SECRET")
	if secretMaterial == "" {
		t.Fatal("AUTH_SECRET is required for e2e tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	secret, err := auth.NewSecret([]byte(secretMaterial))
	if err != nil {
		t.Fatalf("parse secret: %v", err)
	}

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect database: %v", err)
	}
	defer repo.Close()

	users := service.NewUserService(repo, secret, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Seed an account directly; it drives the rest of the flow over HTTP.
	seed, err := users.Create(ctx, "e2e-seed-"+ulid.Make().String(), "e2e-password")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	defer func() {
		_ = users.Delete(context.Background(), seed.ID)
	}()

	seedToken, err := users.Token(seed)
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	t.Run("health is open", func(t *testing.T) {
		resp := do(t, client, "GET", baseURL+"/health", "", nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /health = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("anonymous is rejected elsewhere", func(t *testing.T) {
		resp := do(t, client, "POST", baseURL+"/users", "", map[string]string{"username": "x", "password": "x"})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("unauthenticated POST /users = %d, want 401", resp.StatusCode)
		}
	})

	var friend *model.User
	var friendToken string

	t.Run("create user", func(t *testing.T) {
		username := "e2e-friend-" + ulid.Make().String()
		resp := do(t, client, "POST", baseURL+"/users", seedToken, map[string]string{
			"username": username,
			"password": "friend-password",
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("POST /users = %d, want 201", resp.StatusCode)
		}

		friendToken = decodeToken(t, resp.Body)

		friend, err = users.Resolve(ctx, friendToken)
		if err != nil {
			t.Fatalf("issued token should resolve: %v", err)
		}
		if friend.Username != username {
			t.Fatalf("resolved username = %s, want %s", friend.Username, username)
		}
	})

	t.Run("validate token over http", func(t *testing.T) {
		resp := do(t, client, "GET", baseURL+"/users/token/"+friendToken, friendToken, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET /users/token/{token} = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("rotate credential", func(t *testing.T) {
		resp := do(t, client, "PUT", baseURL+"/users/"+friend.ID, friendToken, map[string]string{
			"username": friend.Username,
			"password": "rotated-password",
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("PUT /users/{id} = %d, want 200", resp.StatusCode)
		}

		oldToken := friendToken
		friendToken = decodeToken(t, resp.Body)

		stale := do(t, client, "GET", baseURL+"/users/token/"+oldToken, oldToken, nil)
		defer stale.Body.Close()
		if stale.StatusCode != http.StatusUnauthorized {
			t.Fatalf("request with pre-rotation token = %d, want 401", stale.StatusCode)
		}
	})

	t.Run("other accounts cannot rotate", func(t *testing.T) {
		resp := do(t, client, "PUT", baseURL+"/users/"+friend.ID, seedToken, map[string]string{
			"username": friend.Username,
			"password": "hijacked",
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("cross-account PUT /users/{id} = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("delete user", func(t *testing.T) {
		resp := do(t, client, "DELETE", baseURL+"/users/"+friend.ID, friendToken, nil)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("DELETE /users/{id} = %d, want 204", resp.StatusCode)
		}

		gone := do(t, client, "GET", baseURL+"/users/token/"+friendToken, friendToken, nil)
		defer gone.Body.Close()
		if gone.StatusCode != http.StatusUnauthorized {
			t.Fatalf("deleted account's token = %d, want 401", gone.StatusCode)
		}
	})
}

func do(t *testing.T, client *http.Client, method, url, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeToken(t *testing.T, body io.Reader) string {
	t.Helper()

	var resp tokenResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("token response should not be empty")
	}
	return resp.Token
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
