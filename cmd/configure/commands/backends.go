package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benvon/smart-forms/internal/config"
	"github.com/benvon/smart-forms/internal/database"
	"github.com/benvon/smart-forms/internal/handlers"
	"github.com/benvon/smart-forms/internal/middleware"
	"github.com/benvon/smart-forms/internal/password"
	"github.com/benvon/smart-forms/internal/revocation"
)

// revocationStore is the deny-list plus the ability to lift a revocation
type revocationStore interface {
	revocation.Denylist
	Clear(ctx context.Context, subjectID string) error
}

// backends are the stores an admin command works against
type backends struct {
	users    database.UserRepositoryInterface
	denylist revocationStore
	hasher   handlers.PasswordHasher
	close    func()
}

// openBackends connects to Postgres and Redis using the server's configuration.
// Tests replace it with in-memory stores.
var openBackends = func(ctx context.Context) (*backends, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	redisClient, err := middleware.NewRedisRateLimiter(cfg.RedisURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	hasher, err := password.NewHasher(password.DefaultParams())
	if err != nil {
		_ = db.Close()
		_ = redisClient.Close()
		return nil, err
	}

	return &backends{
		users:    database.NewUserRepository(db),
		denylist: revocation.NewRedisDenylist(redisClient.Client()),
		hasher:   hasher,
		close: func() {
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
			if err := redisClient.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close redis: %v\n", err)
			}
		},
	}, nil
}

// readPassword returns flagValue, or the first line of in when fromStdin is set
func readPassword(flagValue string, fromStdin bool, in io.Reader) (string, error) {
	if !fromStdin {
		if flagValue == "" {
			return "", fmt.Errorf("--password or --password-stdin is required")
		}
		return flagValue, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("no password on stdin")
	}
	return line, nil
}
