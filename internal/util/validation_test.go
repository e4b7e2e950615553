package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUUID(t *testing.T) {
	t.Run("accepts valid UUID", func(t *testing.T) {
		assert.True(t, IsValidUUID("123e4567-e89b-12d3-a456-426614174000"))
	})

	t.Run("rejects empty string", func(t *testing.T) {
		assert.False(t, IsValidUUID(""))
	})

	t.Run("rejects uppercase", func(t *testing.T) {
		assert.False(t, IsValidUUID("123E4567-E89B-12D3-A456-426614174000"))
	})

	t.Run("rejects malformed strings", func(t *testing.T) {
		assert.False(t, IsValidUUID("not-a-uuid"))
		assert.False(t, IsValidUUID("123e4567e89b12d3a456426614174000"))
	})
}

func TestNormalizeCode(t *testing.T) {
	t.Run("uppercases input", func(t *testing.T) {
		assert.Equal(t, "AB3K9QZ", NormalizeCode("ab3k9qz"))
	})

	t.Run("trims whitespace", func(t *testing.T) {
		assert.Equal(t, "AB3K9QZ", NormalizeCode("  ab3k9Qz "))
	})
}

func TestIsValidCode(t *testing.T) {
	t.Run("accepts normalized 7-character codes", func(t *testing.T) {
		assert.True(t, IsValidCode("AB3K9QZ"))
		assert.True(t, IsValidCode("0000000"))
		assert.True(t, IsValidCode("ZZZZZZZ"))
	})

	t.Run("rejects wrong lengths", func(t *testing.T) {
		assert.False(t, IsValidCode(""))
		assert.False(t, IsValidCode("AB3K9Q"))
		assert.False(t, IsValidCode("AB3K9QZX"))
	})

	t.Run("rejects lowercase and symbols", func(t *testing.T) {
		assert.False(t, IsValidCode("ab3k9qz"))
		assert.False(t, IsValidCode("AB3K9Q!"))
		assert.False(t, IsValidCode("AB3 9QZ"))
	})
}
