package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for a generated
// bootstrap password.
const seedPasswordBytes = 16

// SeedAdmin creates the initial admin account on first boot if no
// operators exist. The username and password come from the bootstrap
// config; when the password is empty a random one is generated and
// logged — it must be changed immediately.
// Returns the password used (empty string if seeding was skipped).
func SeedAdmin(ctx context.Context, repo OperatorRepository, username, password string, logger *slog.Logger) (string, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking operator count: %w", err)
	}

	if count > 0 {
		logger.Info("operators exist, skipping admin seed")
		return "", nil
	}

	if username == "" {
		username = "admin"
	}

	generated := false
	if password == "" {
		passwordBytes := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(passwordBytes)
		generated = true
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &Operator{
		Username:     username,
		DisplayName:  "System Admin",
		PasswordHash: hash,
		Role:         RoleAdmin,
		IsActive:     true,
	}

	if err := repo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	if generated {
		logger.Warn("seed admin account created with generated password",
			"username", username,
			"password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed admin account created", "username", username)
	}

	return password, nil
}
