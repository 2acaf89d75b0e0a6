package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func violations(t *testing.T, err error) []Violation {
	t.Helper()
	var verr *Error
	require.True(t, errors.As(err, &verr), "expected *validation.Error, got %T", err)
	return verr.Violations
}

func TestContact_Valid(t *testing.T) {
	in, err := Contact(map[string]any{
		"name":    "  Ada Lovelace ",
		"email":   "ada@example.com",
		"message": "Hello, I would like to know more.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", in.Name)
	assert.Equal(t, "ada@example.com", in.Email)
	assert.Equal(t, "Hello, I would like to know more.", in.Message)
}

func TestContact_UnknownFieldsDropped(t *testing.T) {
	clean, err := ContactSchema.Validate(map[string]any{
		"name":    "Ada",
		"email":   "ada@example.com",
		"message": "long enough message",
		"admin":   true,
	})
	require.NoError(t, err)
	assert.NotContains(t, clean, "admin")
	assert.Len(t, clean, 3)
}

func TestContact_ShortMessage(t *testing.T) {
	_, err := Contact(map[string]any{
		"name":    "Ada",
		"email":   "ada@example.com",
		"message": "short",
	})
	require.Error(t, err)
	assert.Equal(t, "Message must be at least 10 characters long", err.Error())
}

func TestContact_AllMissing(t *testing.T) {
	_, err := Contact(map[string]any{})
	require.Error(t, err)
	assert.Equal(t, "Name is required, Email is required, Message is required", err.Error())
	assert.Len(t, violations(t, err), 3)
}

func TestContact_WhitespaceOnlyIsRequired(t *testing.T) {
	_, err := Contact(map[string]any{
		"name":    "   ",
		"email":   "ada@example.com",
		"message": "long enough message",
	})
	require.Error(t, err)
	assert.Equal(t, "Name is required", err.Error())
}

func TestContact_BlankEmailIsRequired(t *testing.T) {
	for _, email := range []string{"", "   "} {
		_, err := Contact(map[string]any{
			"name":    "Ada",
			"email":   email,
			"message": "long enough message",
		})
		require.Error(t, err, "email %q", email)
		assert.Equal(t, "Email is required", err.Error(), "email %q", email)
	}
}

func TestContact_ReportsEveryFieldInOrder(t *testing.T) {
	_, err := Contact(map[string]any{
		"message": strings.Repeat("x", 5001),
		"email":   "not-an-email",
		"name":    "A",
	})
	require.Error(t, err)
	vs := violations(t, err)
	require.Len(t, vs, 3)
	assert.Equal(t, "name", vs[0].Field)
	assert.Equal(t, RuleMin, vs[0].Rule)
	assert.Equal(t, "email", vs[1].Field)
	assert.Equal(t, RuleFormat, vs[1].Rule)
	assert.Equal(t, "message", vs[2].Field)
	assert.Equal(t, RuleMax, vs[2].Rule)
	assert.Equal(t,
		"Name must be at least 2 characters long, Email must be a valid email address, Message must not exceed 5000 characters",
		err.Error())
}

func TestContact_WrongType(t *testing.T) {
	_, err := Contact(map[string]any{
		"name":    42.0,
		"email":   "ada@example.com",
		"message": "long enough message",
	})
	require.Error(t, err)
	assert.Equal(t, "Name must be a string", err.Error())
}

func TestContact_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		wantErr bool
	}{
		{
			name:  "name at minimum",
			input: map[string]any{"name": "Al", "email": "a@b.co", "message": "0123456789"},
		},
		{
			name:  "name at maximum",
			input: map[string]any{"name": strings.Repeat("n", 255), "email": "a@b.co", "message": "0123456789"},
		},
		{
			name:    "name over maximum",
			input:   map[string]any{"name": strings.Repeat("n", 256), "email": "a@b.co", "message": "0123456789"},
			wantErr: true,
		},
		{
			name:    "message one under minimum",
			input:   map[string]any{"name": "Al", "email": "a@b.co", "message": "012345678"},
			wantErr: true,
		},
		{
			name:  "message at maximum",
			input: map[string]any{"name": "Al", "email": "a@b.co", "message": strings.Repeat("m", 5000)},
		},
		{
			name:  "subdomain address",
			input: map[string]any{"name": "Al", "email": "first.last+tag@mail.example.org", "message": "0123456789"},
		},
		{
			name:    "display name form",
			input:   map[string]any{"name": "Al", "email": "Jo <a@b.com>", "message": "0123456789"},
			wantErr: true,
		},
		{
			name:    "angle brackets only",
			input:   map[string]any{"name": "Al", "email": "<a@b.com>", "message": "0123456789"},
			wantErr: true,
		},
		{
			name:    "undotted domain",
			input:   map[string]any{"name": "Al", "email": "a@b", "message": "0123456789"},
			wantErr: true,
		},
		{
			name:    "quoted local part",
			input:   map[string]any{"name": "Al", "email": `"weird"@x`, "message": "0123456789"},
			wantErr: true,
		},
		{
			name:    "numeric top-level label",
			input:   map[string]any{"name": "Al", "email": "a@b.123", "message": "0123456789"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Contact(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestContact_DisplayNameAddressRejected(t *testing.T) {
	_, err := Contact(map[string]any{
		"name":    "Ada",
		"email":   "Jo <a@b.com>",
		"message": "long enough message",
	})
	require.Error(t, err)
	assert.Equal(t, "Email must be a valid email address", err.Error())
}
