package auth

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core/user"
)

const audience = "Academia"

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrRefreshExpired = errors.New("refresh has expired")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsStudent    bool     `json:"is_student,omitempty"`
	IsTeacher    bool     `json:"is_teacher,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// User rebuilds the user the claims were issued for.
func (c *Claims) User() user.User {
	id, _ := strconv.Atoi(c.Subject)
	return user.User{ID: id, Username: c.Username, Email: c.Email, IsActive: true, Roles: c.Roles}
}

// Issuer signs and verifies HS256 tokens. The mock API server uses it to mint session tokens.
type Issuer struct {
	secret         []byte
	issuer         string
	expiration     time.Duration
	refreshTimeout time.Duration
	now            func() time.Time
}

func NewIssuer(secret, appName string, expiration time.Duration) *Issuer {
	return &Issuer{
		secret:         []byte(secret),
		issuer:         appName,
		expiration:     expiration,
		refreshTimeout: 4 * expiration,
		now:            time.Now,
	}
}

// Secret is the signing key, for JWT middlewares.
func (iss *Issuer) Secret() []byte {
	return iss.secret
}

// Expiration is the lifetime of the tokens iss signs.
func (iss *Issuer) Expiration() time.Duration {
	return iss.expiration
}

// Claims returns the claims of a new token for usr. origIat keeps the original issue time across refreshes.
func (iss *Issuer) Claims(usr user.User, origIat ...int64) *Claims {
	now := iss.now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 && origIat[0] > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    iss.issuer,
			Subject:   strconv.Itoa(usr.ID),
			Audience:  audience,
			ExpiresAt: now.Add(iss.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		IsStudent:    usr.IsStudent(),
		IsTeacher:    usr.IsTeacher(),
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
}

// Sign generates a signed JWT token string representing claims.
func (iss *Issuer) Sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(iss.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Issue signs a new token for usr.
func (iss *Issuer) Issue(usr user.User, origIat ...int64) (string, error) {
	return iss.Sign(iss.Claims(usr, origIat...))
}

// Verify parses a token signed by iss.
func (iss *Issuer) Verify(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return iss.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Refresh issues a new token from a valid one, as long as the original login is recent enough.
func (iss *Issuer) Refresh(tokenStr string) (string, *Claims, error) {
	claims, err := iss.Verify(tokenStr)
	if err != nil {
		return "", nil, err
	}
	if iss.now().After(time.Unix(claims.OrigIssuedAt, 0).Add(iss.refreshTimeout)) {
		return "", nil, ErrRefreshExpired
	}
	newClaims := iss.Claims(claims.User(), claims.OrigIssuedAt)
	token, err := iss.Sign(newClaims)
	return token, newClaims, err
}

// ParseUnverified reads the claims of a token without checking its signature.
// Clients use it to learn the token expiry; only the server can verify it.
func ParseUnverified(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	if _, _, err := new(jwt.Parser).ParseUnverified(tokenStr, claims); err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	return claims, nil
}

// ParseExpiry returns the expiry of a token, zero when the token carries none.
func ParseExpiry(tokenStr string) (time.Time, error) {
	claims, err := ParseUnverified(tokenStr)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == 0 {
		return time.Time{}, nil
	}
	return time.Unix(claims.ExpiresAt, 0), nil
}
