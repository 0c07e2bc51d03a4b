package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/comanda-app/backend-comanda/internal/common"
)

// staffTokenValidator checks that an access token was minted by this API for
// the staff audience: pinned algorithm, issuer, audience, and expiry within
// the allowed clock skew.
type staffTokenValidator struct {
	issuer    string
	audience  string
	clockSkew time.Duration
	algorithm jwa.SignatureAlgorithm
}

func (v staffTokenValidator) validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if v.algorithm != "" && algorithm != v.algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if v.clockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.clockSkew))
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	return jwt.Validate(tok, options...)
}

// staffClaimsFromToken extracts the staff identity after validation. Every
// staff token carries a role; the establishment claim is absent only on
// master tokens, which operate across tenants.
func staffClaimsFromToken(tok jwt.Token) (common.StaffClaims, error) {
	userID, err := uuid.Parse(tok.Subject())
	if err != nil {
		return common.StaffClaims{}, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	claims := common.StaffClaims{UserID: userID.String()}

	if v, ok := tok.Get(claimRole); ok {
		if role, ok := v.(string); ok {
			claims.Role = role
		}
	}
	switch claims.Role {
	case RoleMaster, RoleOwner, RoleStaff:
	default:
		return common.StaffClaims{}, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, errors.New("auth: token missing or unknown role"))
	}

	if v, ok := tok.Get(claimEstablishment); ok {
		if raw, ok := v.(string); ok && raw != "" {
			estID, err := uuid.Parse(raw)
			if err != nil {
				return common.StaffClaims{}, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
			}
			claims.EstablishmentID = estID.String()
		}
	}
	return claims, nil
}
