package auth

import (
    "context"
    "fmt"
)

// Service issues credentials and validates presented ones against the revocation list.
type Service struct {
    issuer  *Issuer
    revoker Revoker
}

// NewService wires an issuer with a revocation store.
func NewService(issuer *Issuer, revoker Revoker) *Service {
    if revoker == nil {
        revoker = NewMemoryRevoker()
    }
    return &Service{issuer: issuer, revoker: revoker}
}

// Issue creates a credential for the user.
func (s *Service) Issue(userID string) (Token, error) {
    return s.issuer.Issue(userID)
}

// Authenticate verifies a bearer credential and rejects revoked ones.
func (s *Service) Authenticate(ctx context.Context, token string) (Claims, error) {
    claims, err := s.issuer.Parse(token)
    if err != nil {
        return Claims{}, err
    }
    revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
    if err != nil {
        return Claims{}, fmt.Errorf("check revocation: %w", err)
    }
    if revoked {
        return Claims{}, fmt.Errorf("%w: revoked", ErrInvalidToken)
    }
    return claims, nil
}

// Revoke invalidates the credential described by claims until it would have expired.
func (s *Service) Revoke(ctx context.Context, claims Claims) error {
    if claims.ID == "" || claims.ExpiresAt == nil {
        return nil
    }
    return s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
