// Command devtoken mints an access token for local testing and, when session
// checks are enabled, registers its session in Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "devtoken"})

	_ = godotenv.Load()

	rawUser := flag.String("user", "", "user id (uuid); a random one is generated when empty")
	rawRole := flag.String("role", string(enums.AccountRoleCustomer), "account role: customer|staff")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	if cfg.App.IsProd() {
		fmt.Fprintln(os.Stderr, "devtoken is disabled in production")
		os.Exit(1)
	}

	userID := uuid.New()
	if *rawUser != "" {
		userID, err = uuid.Parse(*rawUser)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -user: %v\n", err)
			os.Exit(1)
		}
	}
	role, err := enums.ParseAccountRole(*rawRole)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -role: %v\n", err)
		os.Exit(1)
	}

	accessID := uuid.NewString()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    accessID,
	})
	requireResource(ctx, logg, "token", err)

	if cfg.JWT.CheckSessions {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer redisClient.Close()

		manager, err := session.NewManager(redisClient, cfg.JWT)
		requireResource(ctx, logg, "session manager", err)
		requireResource(ctx, logg, "session", manager.Open(ctx, accessID, userID.String()))
	}

	fmt.Println(token)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
