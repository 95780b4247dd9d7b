package mockapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/helpdesk/internal/resources"
	"github.com/tyemirov/helpdesk/pkg/sessionvalidator"
)

var errEmptySubject = errors.New("mockapi.token.empty_subject")

// MintAccessToken creates a signed HS256 access token for user.
func MintAccessToken(user resources.User, issuer string, signingKey []byte, ttl time.Duration) (string, time.Time, error) {
	if user.ID <= 0 {
		return "", time.Time{}, errEmptySubject
	}
	issuedAt := currentClock().Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionvalidator.Claims{
		UserID:    user.ID,
		UserEmail: user.Email,
		UserName:  user.Name,
		UserRole:  user.Role.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(signingKey)
	return signed, expiresAt, err
}
