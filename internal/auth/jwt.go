package auth

import (
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/google/uuid"
)

// ErrInvalidToken is returned for malformed, expired, forged or revoked credentials.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the user id as the JWT subject and a unique token id.
type Claims struct {
    jwt.RegisteredClaims
}

// UserID returns the subject of the credential.
func (c Claims) UserID() string { return c.Subject }

// Token is a freshly issued access credential.
type Token struct {
    AccessToken string    `json:"token"`
    ID          string    `json:"-"`
    ExpiresAt   time.Time `json:"expires_at"`
    ExpiresIn   int64     `json:"expires_in"`
}

// Issuer signs and verifies HS256 access credentials.
type Issuer struct {
    secret []byte
    ttl    time.Duration
    now    func() time.Time
}

// NewIssuer builds an issuer from an injected signing key and lifetime.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
    if secret == "" {
        return nil, errors.New("signing secret is required")
    }
    if ttl <= 0 {
        return nil, errors.New("token ttl must be positive")
    }
    return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue creates a signed credential for the user.
func (i *Issuer) Issue(userID string) (Token, error) {
    now := i.now()
    exp := now.Add(i.ttl)
    jti := uuid.NewString()
    token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
        RegisteredClaims: jwt.RegisteredClaims{
            ID:        jti,
            Subject:   userID,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    })
    signed, err := token.SignedString(i.secret)
    if err != nil {
        return Token{}, fmt.Errorf("sign token: %w", err)
    }
    return Token{AccessToken: signed, ID: jti, ExpiresAt: exp, ExpiresIn: int64(i.ttl.Seconds())}, nil
}

// Parse verifies the signature and expiry and returns the claims.
func (i *Issuer) Parse(tokenString string) (Claims, error) {
    claims := Claims{}
    token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
        return i.secret, nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
    if err != nil {
        return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
    }
    if !token.Valid || claims.Subject == "" {
        return Claims{}, ErrInvalidToken
    }
    return claims, nil
}
