package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GenerateAndValidate(t *testing.T) {
	m := NewManager("test-secret-key", time.Hour)

	tests := []struct {
		name   string
		userID uuid.UUID
		role   string
	}{
		{name: "Customer", userID: uuid.New(), role: "customer"},
		{name: "Admin", userID: uuid.New(), role: "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := m.Generate(tt.userID, tt.role)
			require.NoError(t, err)
			require.NotEmpty(t, token)

			claims, err := m.Validate(token)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.UserID)
			assert.Equal(t, tt.role, claims.Role)
			assert.Equal(t, tt.userID.String(), claims.Subject)
		})
	}
}

func TestManager_Validate(t *testing.T) {
	userID := uuid.New()

	t.Run("Wrong secret", func(t *testing.T) {
		token, err := NewManager("secret-1", time.Hour).Generate(userID, "customer")
		require.NoError(t, err)

		_, err = NewManager("secret-2", time.Hour).Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := NewManager("secret", time.Hour).Validate("invalid.token.string")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := NewManager("secret", time.Hour).Validate("")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		m := NewManager("secret", time.Minute)
		issued := time.Now().Add(-time.Hour)
		m.now = func() time.Time { return issued }

		token, err := m.Generate(userID, "customer")
		require.NoError(t, err)

		m.now = time.Now
		_, err = m.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("None algorithm", func(t *testing.T) {
		_, err := NewManager("secret", time.Hour).Validate("eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJ1c2VyX2lkIjoxMjM0NX0.")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func BenchmarkManager_Validate(b *testing.B) {
	m := NewManager("test-secret-key", time.Hour)
	token, _ := m.Generate(uuid.New(), "customer")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Validate(token)
	}
}
