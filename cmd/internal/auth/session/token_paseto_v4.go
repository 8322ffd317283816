package session

import (
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

type pasetoV4PublicManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4PublicManager builds an AccessTokenManager based on PASETO v4.public (Ed25519).
func NewPasetoV4PublicManager(cfg Config) (AccessTokenManager, error) {
	if cfg.PasetoV4SecretKeyHex == "" {
		return nil, ErrSigningKeyMissing
	}
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}
	return &pasetoV4PublicManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.AccessTokenTTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

// GeneratePasetoV4SecretKeyHex returns a fresh Ed25519 secret key for dev mode.
func GeneratePasetoV4SecretKeyHex() string {
	return paseto.NewV4AsymmetricSecretKey().ExportHex()
}

func (m *pasetoV4PublicManager) Format() TokenFormat { return FormatPaseto }

func (m *pasetoV4PublicManager) Issue(sub Subject, now time.Time) (string, time.Time, error) {
	jti, err := newTokenID()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := now.Add(m.ttl)

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	tok.SetJti(jti)
	_ = tok.Set("uid", sub.UserID)
	_ = tok.Set("username", sub.Username)
	_ = tok.Set("did", sub.DeviceID)

	return tok.V4Sign(m.secret, nil), exp, nil
}

func (m *pasetoV4PublicManager) Verify(token string, now time.Time) (AccessClaims, error) {
	// A fresh parser per call so rules don't accumulate. ValidAt checks iat, nbf and exp
	// against the skewed time.
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(m.issuer))
	p.AddRule(paseto.ValidAt(now.Add(m.clockSkew)))
	p.AddRule(notExpiredAt(now))

	parsed, err := p.ParseV4Public(m.public, token, nil)
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}

	var c AccessClaims
	c.Issuer, _ = parsed.GetIssuer()
	c.ExpiresAt, _ = parsed.GetExpiration()
	c.IssuedAt, _ = parsed.GetIssuedAt()
	c.TokenID, _ = parsed.GetJti()
	c.UserID, _ = parsed.GetString("uid")
	c.Username, _ = parsed.GetString("username")
	c.DeviceID, _ = parsed.GetString("did")
	if !c.valid() {
		return AccessClaims{}, ErrInvalidToken
	}
	return c, nil
}

// notExpiredAt is paseto.NotExpired against an injected clock.
func notExpiredAt(now time.Time) paseto.Rule {
	return func(t paseto.Token) error {
		exp, err := t.GetExpiration()
		if err != nil {
			return err
		}
		if !now.Before(exp) {
			return ErrInvalidToken
		}
		return nil
	}
}
