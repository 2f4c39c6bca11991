// Command provision-user creates a user directly in the database and prints
// its bearer token. With -rotate it overwrites the credential of an existing
// user instead, which invalidates every previously issued token.
//
// Useful for seeding environments and for recovering access to the bootstrap
// admin account.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tagtrail/tagtrail/internal/auth"
	"github.com/tagtrail/tagtrail/internal/model"
	"github.com/tagtrail/tagtrail/internal/repository"
	"github.com/tagtrail/tagtrail/internal/service"
)

type output struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		authSecret  = flag.String("auth-secret", os.Getenv("AUTH_SECRET"), "Token secret material (at least 48 bytes)")
		username    = flag.String("username", "", "Username to provision")
		password    = flag.String("password", "", "Password for the account")
		rotate      = flag.Bool("rotate", false, "Rotate the credential if the user already exists")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fatal("DATABASE_URL is required")
	}
	if *authSecret == "" {
		fatal("AUTH_SECRET is required")
	}
	if *username == "" || *password == "" {
		fatal("-username and -password are required")
	}

	secret, err := auth.NewSecret([]byte(*authSecret))
	if err != nil {
		fatal(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fatal("connect database: " + err.Error())
	}
	defer repo.Close()

	users := service.NewUserService(repo, secret, slog.New(slog.NewTextHandler(io.Discard, nil)))

	user, err := provision(ctx, repo, users, *username, *password, *rotate)
	if err != nil {
		fatal(err.Error())
	}

	token, err := users.Token(user)
	if err != nil {
		fatal("issue token: " + err.Error())
	}

	out := output{
		UserID:   user.ID,
		Username: user.Username,
		Token:    token,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Token)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fatal("invalid format; use plain or json")
	}
}

func provision(ctx context.Context, repo *repository.Repository, users *service.UserService, username, password string, rotate bool) (*model.User, error) {
	user, err := users.Create(ctx, username, password)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUsernameExists) {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if !rotate {
		return nil, fmt.Errorf("user %s already exists; pass -rotate to overwrite the credential", username)
	}

	existing, err := repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("look up existing user: %w", err)
	}

	user, err = users.Rotate(ctx, existing.ID, username, password)
	if err != nil {
		return nil, fmt.Errorf("rotate credential: %w", err)
	}
	return user, nil
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
