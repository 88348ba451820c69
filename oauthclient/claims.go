package oauthclient

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-broker/internal/utils"
)

// AccessTokenClaims are the access token fields shown on the entry page.
type AccessTokenClaims struct {
	Subject   string
	Email     string
	Roles     []string
	Scope     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// DecodeAccessTokenClaims reads the payload of a JWT access token without
// verifying it. The token was received directly from the token endpoint over
// the back channel and is only decoded for display. ok is false for opaque
// tokens.
func DecodeAccessTokenClaims(raw string) (claims *AccessTokenClaims, ok bool) {
	if strings.Count(raw, ".") != 2 {
		return nil, false
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mapClaims); err != nil {
		return nil, false
	}

	claims = &AccessTokenClaims{}
	claims.Subject, _ = mapClaims.GetSubject()
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	// Hydra nests consent session claims under "ext".
	if ext, ok := mapClaims["ext"].(map[string]any); ok {
		if email, ok := ext["email"].(string); ok {
			claims.Email = email
		}
		if traits, ok := ext["traits"].(map[string]any); ok {
			if email, ok := traits["email"].(string); ok && claims.Email == "" {
				claims.Email = email
			}
			claims.Roles = utils.StringList(traits["roles"])
		}
	}

	claims.Scope = utils.StringList(mapClaims["scp"])
	if claims.Scope == nil {
		claims.Scope = utils.StringList(mapClaims["scope"])
	}
	return claims, true
}
