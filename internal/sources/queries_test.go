package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aurashield/mentions-bot/internal/models"
)

func TestQueryVariants(t *testing.T) {
	tests := []struct {
		name     string
		subject  models.Subject
		expected []string
	}{
		{
			name:     "Handle gets mention-or-bare form first",
			subject:  models.Subject{Type: models.SubjectHandle, Value: "acmecorp"},
			expected: []string{"@acmecorp OR acmecorp", `"acmecorp"`},
		},
		{
			name:     "Single-word keyword is just quoted",
			subject:  models.Subject{Type: models.SubjectKeyword, Value: "AuraShield"},
			expected: []string{`"AuraShield"`},
		},
		{
			name:    "Corporate suffix gets stripped variant",
			subject: models.Subject{Type: models.SubjectKeyword, Value: "Acme Inc"},
			expected: []string{
				`"Acme Inc"`,
				`"Acme"`,
				"Acme-Inc",
			},
		},
		{
			name:    "Multi-word name gets hyphenated variant",
			subject: models.Subject{Type: models.SubjectKeyword, Value: "deep mind"},
			expected: []string{
				`"deep mind"`,
				"deep-mind",
			},
		},
		{
			name:     "Empty value yields nothing",
			subject:  models.Subject{Type: models.SubjectKeyword, Value: "   "},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, queryVariants(tt.subject))
		})
	}
}
