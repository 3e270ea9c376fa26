// Command seed creates user accounts and follow edges in the configured store
// and prints a bearer token for each account when a JWT secret is set.
//
//	seed --users alice,bob,carol --follow alice:bob,carol:alice
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	"devconsole/infrastructure/config"
	"devconsole/infrastructure/di"
	"devconsole/pkg/auth"
	pkgerrors "devconsole/pkg/errors"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		usernames []string
		follows   []string
		tokenTTL  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed users and follow edges",
		Long: `Seed creates the named accounts if they do not exist yet, then applies
each actor:target follow pair that is not already in place.

The store, event bus and JWT secret come from the same configuration as the
API server (CONFIG_FILE and environment variables).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), usernames, follows, tokenTTL)
		},
	}

	cmd.Flags().StringSliceVar(&usernames, "users", []string{"alice", "bob", "carol"}, "Usernames to create")
	cmd.Flags().StringSliceVar(&follows, "follow", nil, "actor:target follow pairs")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "Lifetime of the printed tokens")

	return cmd
}

func run(ctx context.Context, usernames, follows []string, tokenTTL time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize container: %w", err)
	}
	defer cleanup()
	logger := container.Logger
	defer func() { _ = logger.Sync() }()

	if cfg.StoreBackend == config.StoreMemory {
		logger.Warn("STORE_BACKEND is memory; seeded data disappears when this process exits")
	}

	var generator *auth.JWTGenerator
	if cfg.JWTSecret != "" {
		generator, err = auth.NewJWTGenerator(auth.JWTConfig{SecretKey: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: tokenTTL})
		if err != nil {
			return err
		}
	}

	seeded := make(map[string]*entities.User)
	for _, name := range usernames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		user, err := ensureUser(ctx, container, name)
		if err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		seeded[name] = user

		line := fmt.Sprintf("%s\t%s", user.Username, user.ID)
		if generator != nil {
			token, err := generator.GenerateToken(user.ID.String(), user.Username)
			if err != nil {
				return err
			}
			line += "\t" + token
		}
		fmt.Println(line)
	}

	for _, pair := range follows {
		actorName, targetName, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("follow pair %q is not actor:target", pair)
		}
		if seeded[actorName] == nil || seeded[targetName] == nil {
			return fmt.Errorf("follow pair %q names a user not in --users", pair)
		}

		// reload: an earlier pair may have changed the actor's Following set
		actor, err := container.Stores.Users.GetByID(ctx, seeded[actorName].ID)
		if err != nil {
			return err
		}
		target := seeded[targetName]
		if actor.IsFollowing(target.ID) {
			continue
		}

		if _, err := container.Services.Relationships.ToggleFollow(ctx, actor.ID, target.ID); err != nil {
			return fmt.Errorf("follow %s: %w", pair, err)
		}
		logger.Info("Followed", zap.String("actor", actorName), zap.String("target", targetName))
	}
	return nil
}

// ensureUser returns the existing account for name or creates it
func ensureUser(ctx context.Context, c *di.Container, name string) (*entities.User, error) {
	existing, err := c.Stores.Users.GetByUsername(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	user := &entities.User{
		ID:        valueobjects.NewUserID(),
		Username:  name,
		FullName:  strings.ToUpper(name[:1]) + name[1:],
		Email:     name + "@example.com",
		Followers: valueobjects.UserIDSet{},
		Following: valueobjects.UserIDSet{},
		CreatedAt: time.Now().UTC(),
	}
	if err := c.Stores.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
