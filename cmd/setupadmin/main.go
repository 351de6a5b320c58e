// Copyright (c) 2026 PU Connect. All rights reserved.

// Command setupadmin bootstraps the designated platform administrator.
//
// It registers (or signs in) the admin account at the auth authority, ensures
// a profile row exists, and promotes it to super_admin directly through the
// profile store. The promotion bypasses the auth authority on purpose: role
// escalation is blocked at that layer, so this tool requires direct database
// access and is meant to be run once, by an operator, at deployment time.
//
// Usage:
//
//	setupadmin -email system.admin@example.edu -name "System Admin"
//
// The password is read from the ADMIN_PASSWORD environment variable.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/puconnect/core/internal/identity"
	"github.com/puconnect/core/internal/platform/apperr"
	"github.com/puconnect/core/internal/platform/config"
	"github.com/puconnect/core/internal/platform/constants"
	pgstore "github.com/puconnect/core/internal/platform/postgres"
	"github.com/puconnect/core/internal/profile"
)

func main() {
	email := flag.String("email", "", "email address of the admin account (required)")
	name := flag.String("name", "System Admin", "display name for the admin profile")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With(slog.String("app", constants.AppName+"-setupadmin"))

	password := os.Getenv("ADMIN_PASSWORD")
	if *email == "" || password == "" {
		log.Error("email flag and ADMIN_PASSWORD are required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	must(log, err, "load configuration")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer pool.Close()

	authClient := identity.NewHTTPClient(cfg.AuthURL, cfg.AuthAnonKey, log)
	defer authClient.Close()

	store := profile.NewPostgresStore(pool)

	// 1. Register the account. An existing registration is fine: fall
	// through to sign-in to prove the operator holds the credential.
	admin, _, err := authClient.SignUp(ctx, *email, password, identity.Metadata{FullName: *name})
	if err != nil {
		if appErr := apperr.As(err); appErr == nil || appErr.Code != "CONFLICT" {
			must(log, err, "sign up admin account")
		}
		log.Info("admin_account_exists", slog.String("email", *email))

		admin, _, err = authClient.SignInWithPassword(ctx, *email, password)
		must(log, err, "sign in admin account")
	} else {
		log.Info("admin_account_created", slog.String("identity_id", admin.ID))
	}

	// 2. Ensure the profile row exists before touching its role.
	if _, err := store.GetByID(ctx, admin.ID); err != nil {
		seeded := profile.NewFromIdentity(admin, time.Now())
		if _, err := store.Insert(ctx, seeded); err != nil {
			must(log, err, "insert admin profile")
		}
		log.Info("admin_profile_created", slog.String("identity_id", admin.ID))
	}

	// 3. Promote.
	must(log, store.UpdateRole(ctx, admin.ID, profile.RoleSuperAdmin), "promote to super_admin")

	log.Info("admin_promoted",
		slog.String("identity_id", admin.ID),
		slog.String("role", string(profile.RoleSuperAdmin)),
	)
}

// must logs a structured fatal error and terminates the process if err is non-nil.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("setup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
