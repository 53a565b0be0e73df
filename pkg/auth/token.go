package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// TokenPrefix identifies GrantCue API tokens
	TokenPrefix = "gcue_"
	// TokenLength is the number of random bytes per token
	TokenLength = 32
)

// ErrInvalidToken is returned for unknown, revoked or expired tokens
var ErrInvalidToken = errors.New("invalid or expired token")

// GenerateToken creates a new API token.
// Format: gcue_<base64url(32 random bytes)>. The caller stores only the
// SHA-256 hash; the raw token is shown to the user once.
func GenerateToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	token = TokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	return token, HashToken(token), nil
}

// HashToken computes the SHA-256 hash of a token for storage and lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks prefix and encoding without touching storage
func ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// TokenManager validates bearer tokens against the api_tokens table
type TokenManager struct {
	db *sql.DB
}

// NewTokenManager creates a new token manager
func NewTokenManager(db *sql.DB) *TokenManager {
	return &TokenManager{db: db}
}

// ValidateToken resolves a bearer token to its user. Returns
// ErrInvalidToken for malformed, unknown, revoked or expired tokens.
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*User, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	query := `
		SELECT u.id, u.email, u.full_name, u.is_platform_admin, u.is_active, u.created_at
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
		  AND t.revoked_at IS NULL
		  AND (t.expires_at IS NULL OR t.expires_at > $2)
	`

	var user User
	err := tm.db.QueryRowContext(ctx, query, HashToken(token), time.Now()).Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.IsPlatformAdmin,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInvalidToken
	}

	// Best effort; a stale last_used_at is acceptable
	_, _ = tm.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = $1 WHERE token_hash = $2`,
		time.Now(), HashToken(token))

	return &user, nil
}

// GetOrganization loads an organization by ID
func (tm *TokenManager) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	query := `
		SELECT id, name, slug, is_active, created_at
		FROM organizations
		WHERE id = $1
	`

	var org Organization
	err := tm.db.QueryRowContext(ctx, query, orgID).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.IsActive,
		&org.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("organization not found: %s", orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}
