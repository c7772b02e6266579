package session

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	// MinSecretLength is the minimum signing secret length accepted in production
	MinSecretLength = 32

	// developmentSecret is only used when no secret is configured outside production
	developmentSecret = "smart-forms-development-secret-do-not-use-in-production"

	claimEmail   = "email"
	claimName    = "name"
	claimPicture = "picture"
)

// signingAlgorithm is the only algorithm accepted; tokens carrying any other alg header fail verification
var signingAlgorithm = jwa.HS256

// Codec signs and verifies session claims with a symmetric secret
type Codec struct {
	key              []byte
	usingDevFallback bool
}

// NewCodec creates a codec. In production an absent or short secret is a ConfigurationError.
func NewCodec(secret []byte, production bool) (*Codec, error) {
	if production {
		if len(secret) == 0 {
			return nil, &ConfigurationError{Setting: "SESSION_SECRET", Reason: "a signing secret is required in production"}
		}
		if len(secret) < MinSecretLength {
			return nil, &ConfigurationError{
				Setting: "SESSION_SECRET",
				Reason:  fmt.Sprintf("secret must be at least %d bytes in production, got %d", MinSecretLength, len(secret)),
			}
		}
		return &Codec{key: append([]byte(nil), secret...)}, nil
	}

	if len(secret) == 0 {
		return &Codec{key: []byte(developmentSecret), usingDevFallback: true}, nil
	}
	return &Codec{key: append([]byte(nil), secret...)}, nil
}

// UsingDevelopmentSecret reports whether the built-in development secret is in use
func (c *Codec) UsingDevelopmentSecret() bool {
	return c.usingDevFallback
}

// Sign encodes claims into a signed token
func (c *Codec) Sign(claims *Claims) (string, error) {
	if err := claims.Validate(); err != nil {
		return "", fmt.Errorf("refusing to sign claims: %w", err)
	}

	builder := jwt.NewBuilder().
		Subject(claims.SubjectID).
		IssuedAt(time.Unix(claims.IssuedAt, 0)).
		Expiration(time.Unix(claims.ExpiresAt, 0)).
		Claim(claimEmail, claims.Email)
	if claims.DisplayName != nil {
		builder = builder.Claim(claimName, *claims.DisplayName)
	}
	if claims.AvatarRef != nil {
		builder = builder.Claim(claimPicture, *claims.AvatarRef)
	}

	tok, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(signingAlgorithm, c.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// Verify checks the signature and structure of token and returns its claims.
// Expiry is not checked here: an authentic expired token decodes successfully.
func (c *Codec) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(signingAlgorithm, c.key),
		jwt.WithValidate(false),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, err := claimsFromToken(tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if err := claims.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}

func claimsFromToken(tok jwt.Token) (*Claims, error) {
	claims := &Claims{
		SubjectID: tok.Subject(),
		IssuedAt:  unixOrZero(tok.IssuedAt()),
		ExpiresAt: unixOrZero(tok.Expiration()),
	}

	email, err := stringClaim(tok, claimEmail)
	if err != nil {
		return nil, err
	}
	if email != nil {
		claims.Email = *email
	}
	if claims.DisplayName, err = stringClaim(tok, claimName); err != nil {
		return nil, err
	}
	if claims.AvatarRef, err = stringClaim(tok, claimPicture); err != nil {
		return nil, err
	}
	return claims, nil
}

func stringClaim(tok jwt.Token, name string) (*string, error) {
	raw, ok := tok.Get(name)
	if !ok {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("claim %q has type %T, want string", name, raw)
	}
	return &s, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
