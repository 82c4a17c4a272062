package biometry

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"petscan/internal/services"
)

// Credentials carries the owner bearer token for enrollment calls.
type Credentials struct {
	Token string
}

// Check rejects missing, malformed, or expired tokens before any request is
// made. The signature is not verified; the registry does that.
func (c Credentials) Check(now time.Time) error {
	token := strings.TrimSpace(c.Token)
	if token == "" {
		return services.Wrap(services.ErrConfiguration, "biometry", "credentials", "owner token required; set api.auth_token or PETSCAN_API_TOKEN", nil)
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return services.Wrap(services.ErrConfiguration, "biometry", "credentials", "owner token is not a valid JWT", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "biometry", "credentials", "owner token has an invalid exp claim", err)
	}
	if exp != nil && !exp.After(now) {
		return services.Wrap(services.ErrConfiguration, "biometry", "credentials",
			"owner token expired at "+exp.UTC().Format(time.RFC3339)+"; log in again", nil)
	}
	return nil
}

// Subject returns the token's sub claim, or "" when absent.
func (c Credentials) Subject() string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(c.Token), claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

func (c Credentials) header() string {
	return "Bearer " + strings.TrimSpace(c.Token)
}
