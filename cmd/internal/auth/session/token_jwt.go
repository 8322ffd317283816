package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minJWTSecretBytes = 32

// jwtAccessClaims is the JWT body: registered claims plus username and device id.
type jwtAccessClaims struct {
	Username string `json:"username"`
	DeviceID string `json:"did"`
	jwt.RegisteredClaims
}

type jwtManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
	secret    []byte
}

// NewJWTManager builds an AccessTokenManager issuing HS256 JWTs.
func NewJWTManager(cfg Config) (AccessTokenManager, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrSigningKeyMissing
	}
	if len(cfg.JWTSecret) < minJWTSecretBytes {
		return nil, ErrConfig
	}
	return &jwtManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.AccessTokenTTL,
		clockSkew: cfg.ClockSkew,
		secret:    []byte(cfg.JWTSecret),
	}, nil
}

func (m *jwtManager) Format() TokenFormat { return FormatJWT }

func (m *jwtManager) Issue(sub Subject, now time.Time) (string, time.Time, error) {
	jti, err := newTokenID()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := now.Add(m.ttl)
	claims := jwtAccessClaims{
		Username: sub.Username,
		DeviceID: sub.DeviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   sub.UserID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *jwtManager) Verify(token string, now time.Time) (AccessClaims, error) {
	var claims jwtAccessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(m.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return AccessClaims{}, ErrInvalidToken
	}

	c := AccessClaims{
		Subject: Subject{
			UserID:   claims.Subject,
			Username: claims.Username,
			DeviceID: claims.DeviceID,
		},
		TokenID: claims.ID,
		Issuer:  claims.Issuer,
	}
	if claims.IssuedAt != nil {
		c.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Time
	}
	if !c.valid() {
		return AccessClaims{}, ErrInvalidToken
	}
	return c, nil
}
