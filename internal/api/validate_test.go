package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=6"`
	Confirm  string `json:"confirmPassword,omitempty" validate:"omitempty,eqfield=Password"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      signup
		wantErr string
	}{
		{
			name: "valid",
			in:   signup{Username: "ada", Password: "secret1"},
		},
		{
			name:    "missing required uses json names",
			in:      signup{Password: "secret1"},
			wantErr: "username is required",
		},
		{
			name:    "bad email",
			in:      signup{Username: "ada", Password: "secret1", Email: "nope"},
			wantErr: "email must be a valid email address",
		},
		{
			name:    "short password",
			in:      signup{Username: "ada", Password: "abc"},
			wantErr: "password must be at least 6 characters",
		},
		{
			name:    "confirmation mismatch",
			in:      signup{Username: "ada", Password: "secret1", Confirm: "secret2"},
			wantErr: "confirmPassword must match Password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantErr, ve.Message)
		})
	}
}
