package validation

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestLoginRequestValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     LoginRequest
		wantErr bool
		wantMsg string
	}{
		{"valid", LoginRequest{Email: "alice@example.com", Password: "x"}, false, ""},
		{"missing email", LoginRequest{Password: "secret123"}, true, "email is required"},
		{"bad email", LoginRequest{Email: "alice", Password: "secret123"}, true, "email must be a valid email address"},
		{"missing password", LoginRequest{Email: "alice@example.com"}, true, "password is required"},
		{"oversized password", LoginRequest{Email: "alice@example.com", Password: strings.Repeat("p", 1025)}, true, "password is too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate.Struct(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate.Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got := Describe(err); got != tt.wantMsg {
					t.Errorf("Describe() = %q, want %q", got, tt.wantMsg)
				}
			}
		})
	}
}

func TestSignupRequestValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     SignupRequest
		wantErr bool
		wantMsg string
	}{
		{"valid", SignupRequest{Email: "bob@example.com", Password: "correct horse"}, false, ""},
		{"valid with name", SignupRequest{Email: "bob@example.com", Password: "12345678", Name: strPtr("Bob")}, false, ""},
		{"short password", SignupRequest{Email: "bob@example.com", Password: "1234567"}, true, "password must be at least 8 characters"},
		{"multibyte password counts runes", SignupRequest{Email: "bob@example.com", Password: "ééééééé"}, true, "password must be at least 8 characters"},
		{"name too long", SignupRequest{Email: "bob@example.com", Password: "12345678", Name: strPtr(strings.Repeat("n", 201))}, true, "name is too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Validate.Struct(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate.Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got := Describe(err); got != tt.wantMsg {
					t.Errorf("Describe() = %q, want %q", got, tt.wantMsg)
				}
			}
		})
	}
}

func TestProfileUpdateValidation(t *testing.T) {
	t.Parallel()

	if err := Validate.Struct(ProfileUpdate{ImageURL: strPtr("https://cdn.example.com/a.png")}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := Validate.Struct(ProfileUpdate{ImageURL: strPtr("not a url")})
	if err == nil {
		t.Fatal("expected error for invalid image url")
	}
	if got := Describe(err); got != "imageurl must be a valid URL" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestSignupRequest_Normalize(t *testing.T) {
	t.Parallel()

	req := SignupRequest{Email: "  bob@example.com ", Name: strPtr(" Bob\x00 ")}
	req.Normalize()
	if req.Email != "bob@example.com" {
		t.Errorf("Email = %q", req.Email)
	}
	if req.Name == nil || *req.Name != "Bob" {
		t.Errorf("Name = %v", req.Name)
	}

	blank := SignupRequest{Name: strPtr("   ")}
	blank.Normalize()
	if blank.Name != nil {
		t.Errorf("blank name should become nil, got %q", *blank.Name)
	}
}

func TestDescribe_NonValidationError(t *testing.T) {
	t.Parallel()

	if got := Describe(nil); got != "Invalid request" {
		t.Errorf("Describe(nil) = %q", got)
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"a\x07b", "ab"},
		{"line1\nline2\tend", "line1\nline2\tend"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeText(tt.in); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
