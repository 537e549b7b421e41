package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/user/cryptodemo/backend/internal/models"
)

const issuer = "cryptodemo"

// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims defines the structure of the JWT payload
type Claims struct {
	AccountID string             `json:"account_id"`
	Kind      models.AccountKind `json:"kind"`
	Username  string             `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates HS256 tokens for demo and registered accounts.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. ttl applies to registered tokens only;
// demo tokens expire together with their account.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock returns a copy of the issuer that uses now instead of time.Now.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	clone := *t
	clone.now = now
	return &clone
}

// IssueDemo creates a token for a demo account, valid until the account expires.
func (t *TokenIssuer) IssueDemo(account *models.Account) (string, error) {
	if account == nil || account.ExpiresAt == nil {
		return "", fmt.Errorf("demo account without expiry")
	}
	return t.sign(account.ID, models.AccountKindDemo, account.Username, *account.ExpiresAt)
}

// IssueRegistered creates a token for a registered user.
func (t *TokenIssuer) IssueRegistered(userID uuid.UUID, username string) (string, error) {
	return t.sign(userID.String(), models.AccountKindRegistered, username, t.now().Add(t.ttl))
}

func (t *TokenIssuer) sign(accountID string, kind models.AccountKind, username string, expiresAt time.Time) (string, error) {
	claims := &Claims{
		AccountID: accountID,
		Kind:      kind,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(t.now()),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token for %s: %w", accountID, err)
	}
	return signed, nil
}

// Validate validates a JWT string and returns the claims if valid.
func (t *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Ensure the signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithTimeFunc(t.now),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.AccountID == "" {
		return nil, ErrInvalidToken
	}

	switch claims.Kind {
	case models.AccountKindDemo, models.AccountKindRegistered:
	default:
		return nil, fmt.Errorf("%w: unknown account kind %q", ErrInvalidToken, claims.Kind)
	}
	return claims, nil
}
