package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/liquidintel/taplist/pkg/config"
	"github.com/liquidintel/taplist/pkg/fault"
	"github.com/liquidintel/taplist/pkg/observability"
)

// Principal is the authenticated subject of a bearer token
type Principal struct {
	ObjectID string
	UPN      string
	Name     string
}

// Claims are the token claims taplist cares about
type Claims struct {
	ObjectID          string   `json:"oid"`
	UPN               string   `json:"upn"`
	PreferredUsername string   `json:"preferred_username"`
	Name              string   `json:"name"`
	Audience          []string `json:"-"`
}

// TokenValidator validates a raw bearer token and extracts its claims
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*Claims, error)
}

// AdminChecker decides whether a directory subject is an administrator
type AdminChecker interface {
	IsAdmin(ctx context.Context, subject string) (bool, error)
}

// oidcValidator validates tokens against the directory's OIDC metadata
type oidcValidator struct {
	verifier  *oidc.IDTokenVerifier
	audiences []string
}

// NewOIDCValidator discovers the directory issuer and builds a validator
// that checks signature, issuer and audience.
func NewOIDCValidator(ctx context.Context, cfg config.DirectoryConfig) (TokenValidator, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover directory issuer: %w", err)
	}

	// Audience membership is checked against the configured list below,
	// since the directory issues tokens for more than one app id URI.
	verifier := provider.Verifier(&oidc.Config{
		SkipClientIDCheck: true,
	})

	return &oidcValidator{
		verifier:  verifier,
		audiences: cfg.Audiences,
	}, nil
}

func (v *oidcValidator) Validate(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	if len(v.audiences) > 0 && !audienceMatches(idToken.Audience, v.audiences) {
		return nil, fmt.Errorf("token audience %v is not accepted", idToken.Audience)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}
	claims.Audience = idToken.Audience

	return &claims, nil
}

func audienceMatches(tokenAudiences, accepted []string) bool {
	for _, aud := range tokenAudiences {
		for _, want := range accepted {
			if aud == want {
				return true
			}
		}
	}
	return false
}

// BearerVerifier authenticates bearer tokens and requires the subject to be
// an administrator. All verification failures, including directory errors,
// surface as Unauthorized.
type BearerVerifier struct {
	validator TokenValidator
	admins    AdminChecker
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewBearerVerifier creates a bearer verifier from its collaborators
func NewBearerVerifier(validator TokenValidator, admins AdminChecker, logger *observability.Logger, metrics *observability.Metrics) *BearerVerifier {
	return &BearerVerifier{
		validator: validator,
		admins:    admins,
		logger:    logger.WithField("component", "bearer-verifier"),
		metrics:   metrics,
	}
}

// Verify validates the token and the subject's admin membership, returning
// the authenticated principal on success.
func (v *BearerVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	principal, err := v.verify(ctx, rawToken)
	if v.metrics != nil {
		v.metrics.RecordAuthAttempt("bearer", err == nil)
	}
	return principal, err
}

func (v *BearerVerifier) verify(ctx context.Context, rawToken string) (*Principal, error) {
	if rawToken == "" {
		return nil, fault.Unauthorized("missing bearer token")
	}

	claims, err := v.validator.Validate(ctx, rawToken)
	if err != nil {
		v.logger.WithError(err).Warn("bearer token rejected")
		return nil, fault.Unauthorized("invalid bearer token")
	}

	if claims.ObjectID == "" {
		return nil, fault.Unauthorized("token has no subject object id")
	}

	isAdmin, err := v.admins.IsAdmin(ctx, claims.ObjectID)
	if err != nil {
		v.logger.WithError(err).Warn("admin membership check failed")
		return nil, fault.Unauthorized("membership check failed")
	}
	if !isAdmin {
		return nil, fault.Unauthorized("subject is not an administrator")
	}

	upn := claims.UPN
	if upn == "" {
		upn = claims.PreferredUsername
	}

	return &Principal{
		ObjectID: claims.ObjectID,
		UPN:      upn,
		Name:     claims.Name,
	}, nil
}
