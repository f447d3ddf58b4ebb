package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/aurashield/mentions-bot/internal/models"
)

func TestTrackError(t *testing.T) {
	subject := &models.Subject{Type: models.SubjectKeyword, Value: "Acme"}

	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "Unique violation becomes ErrAlreadyTracked",
			err:      gorm.ErrDuplicatedKey,
			expected: ErrAlreadyTracked,
		},
		{
			name:     "Wrapped unique violation is still recognized",
			err:      fmt.Errorf("create failed: %w", gorm.ErrDuplicatedKey),
			expected: ErrAlreadyTracked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, trackError(subject, tt.err), tt.expected)
		})
	}

	t.Run("Other errors are wrapped, not translated", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := trackError(subject, cause)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrAlreadyTracked)
	})
}
