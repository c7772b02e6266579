package session

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func strPtr(s string) *string { return &s }

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, true)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return codec
}

func TestNewCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		secret        []byte
		production    bool
		wantConfigErr bool
		wantFallback  bool
	}{
		{name: "production with strong secret", secret: testSecret, production: true},
		{name: "production without secret", secret: nil, production: true, wantConfigErr: true},
		{name: "production with short secret", secret: []byte("too-short"), production: true, wantConfigErr: true},
		{name: "development without secret uses fallback", secret: nil, production: false, wantFallback: true},
		{name: "development with short secret", secret: []byte("short"), production: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			codec, err := NewCodec(tt.secret, tt.production)
			if tt.wantConfigErr {
				if !IsConfigurationError(err) {
					t.Fatalf("Expected ConfigurationError, got %v", err)
				}
				if codec != nil {
					t.Error("Expected nil codec on configuration error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if codec.UsingDevelopmentSecret() != tt.wantFallback {
				t.Errorf("UsingDevelopmentSecret() = %v, want %v", codec.UsingDevelopmentSecret(), tt.wantFallback)
			}
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name   string
		claims *Claims
	}{
		{
			name: "all fields",
			claims: NewClaims(Identity{
				SubjectID:   "4b0f4a0e-5d0c-4c1e-9a57-3f5b2f1f9d11",
				Email:       "ada@example.com",
				DisplayName: strPtr("Ada Lovelace"),
				AvatarRef:   strPtr("https://cdn.example.com/a.png"),
			}, now, Lifetime),
		},
		{
			name:   "optional fields absent",
			claims: NewClaims(Identity{SubjectID: "user-2", Email: "grace@example.com"}, now, Lifetime),
		},
		{
			name:   "empty display name is kept",
			claims: NewClaims(Identity{SubjectID: "user-3", Email: "x@example.com", DisplayName: strPtr("")}, now, time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := codec.Sign(tt.claims)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			got, err := codec.Verify(token)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			assertClaimsEqual(t, got, tt.claims)
		})
	}
}

func assertClaimsEqual(t *testing.T, got, want *Claims) {
	t.Helper()
	if got.SubjectID != want.SubjectID || got.Email != want.Email ||
		got.IssuedAt != want.IssuedAt || got.ExpiresAt != want.ExpiresAt {
		t.Errorf("claims = %+v, want %+v", got, want)
	}
	if !equalStringPtr(got.DisplayName, want.DisplayName) {
		t.Errorf("DisplayName = %v, want %v", got.DisplayName, want.DisplayName)
	}
	if !equalStringPtr(got.AvatarRef, want.AvatarRef) {
		t.Errorf("AvatarRef = %v, want %v", got.AvatarRef, want.AvatarRef)
	}
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestCodec_SignIsDeterministic(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	claims := NewClaims(Identity{SubjectID: "user-1", Email: "a@example.com"}, time.Unix(1_700_000_000, 0), Lifetime)

	first, err := codec.Sign(claims)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	second, err := codec.Sign(claims)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if first != second {
		t.Errorf("Sign() produced different tokens for identical claims")
	}
}

func TestCodec_SignRejectsInvalidClaims(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	tests := []struct {
		name   string
		claims *Claims
	}{
		{name: "missing subject", claims: &Claims{Email: "a@example.com", IssuedAt: 10, ExpiresAt: 20}},
		{name: "missing email", claims: &Claims{SubjectID: "u", IssuedAt: 10, ExpiresAt: 20}},
		{name: "expiry before issue", claims: &Claims{SubjectID: "u", Email: "a@example.com", IssuedAt: 20, ExpiresAt: 10}},
		{name: "missing timestamps", claims: &Claims{SubjectID: "u", Email: "a@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := codec.Sign(tt.claims); err == nil {
				t.Error("Expected Sign() to fail")
			}
		})
	}
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// flipByte changes position i so that a data bit of the decoded segment changes
func flipByte(token string, i int) string {
	b := []byte(token)
	idx := strings.IndexByte(base64URLAlphabet, b[i])
	if idx < 0 {
		b[i] = 'A'
	} else {
		b[i] = base64URLAlphabet[idx^16]
	}
	return string(b)
}

func TestCodec_TamperDetection(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	claims := NewClaims(Identity{SubjectID: "user-1", Email: "a@example.com", DisplayName: strPtr("A")}, time.Now(), Lifetime)
	token, err := codec.Sign(claims)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	for i := range token {
		tampered := flipByte(token, i)
		if _, err := codec.Verify(tampered); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Verify() with byte %d flipped: error = %v, want ErrTokenInvalid", i, err)
		}
	}
}

func TestCodec_RejectsOtherSecret(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	other, err := NewCodec([]byte("ffffffffffffffffffffffffffffffff"), true)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	token, err := other.Sign(NewClaims(Identity{SubjectID: "u", Email: "a@example.com"}, time.Now(), Lifetime))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}

func TestCodec_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Subject("user-1").
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Claim(claimEmail, "a@example.com").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	hs512, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, codec.key))
	if err != nil {
		t.Fatalf("Sign(HS512) error = %v", err)
	}
	if _, err := codec.Verify(string(hs512)); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify(HS512 token) error = %v, want ErrTokenInvalid", err)
	}

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"user-1","email":"a@example.com","iat":1700000000,"exp":4102444800}`))
	unsigned := header + "." + payload + "."
	if _, err := codec.Verify(unsigned); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify(alg=none token) error = %v, want ErrTokenInvalid", err)
	}
}

func TestCodec_RejectsStructurallyInvalidClaims(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	now := time.Now()

	tests := []struct {
		name  string
		build func() (jwt.Token, error)
	}{
		{
			name: "email is not a string",
			build: func() (jwt.Token, error) {
				return jwt.NewBuilder().Subject("u").IssuedAt(now).Expiration(now.Add(time.Hour)).Claim(claimEmail, 42).Build()
			},
		},
		{
			name: "missing email",
			build: func() (jwt.Token, error) {
				return jwt.NewBuilder().Subject("u").IssuedAt(now).Expiration(now.Add(time.Hour)).Build()
			},
		},
		{
			name: "missing subject",
			build: func() (jwt.Token, error) {
				return jwt.NewBuilder().IssuedAt(now).Expiration(now.Add(time.Hour)).Claim(claimEmail, "a@example.com").Build()
			},
		},
		{
			name: "missing expiry",
			build: func() (jwt.Token, error) {
				return jwt.NewBuilder().Subject("u").IssuedAt(now).Claim(claimEmail, "a@example.com").Build()
			},
		},
		{
			name: "name is not a string",
			build: func() (jwt.Token, error) {
				return jwt.NewBuilder().Subject("u").IssuedAt(now).Expiration(now.Add(time.Hour)).
					Claim(claimEmail, "a@example.com").Claim(claimName, []string{"x"}).Build()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tok, err := tt.build()
			if err != nil {
				t.Fatalf("build error = %v", err)
			}
			signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, codec.key))
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			if _, err := codec.Verify(string(signed)); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("Verify() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestCodec_ExpiredTokenStillDecodes(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	issued := time.Now().Add(-31 * 24 * time.Hour)
	claims := NewClaims(Identity{SubjectID: "u", Email: "a@example.com"}, issued, Lifetime)

	token, err := codec.Sign(claims)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	got, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v, want nil for authentic expired token", err)
	}
	if !got.Expired(time.Now()) {
		t.Error("Expected decoded claims to be expired")
	}
}

func TestCodec_MalformedTokens(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	for _, token := range []string{"", "not-a-token", "a.b.c", "....", "eyJhbGciOiJIUzI1NiJ9.e30"} {
		if _, err := codec.Verify(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("Verify(%q) error = %v, want ErrTokenInvalid", token, err)
		}
	}
}
