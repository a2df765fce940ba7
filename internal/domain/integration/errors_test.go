package integration

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(ErrSourceNameRequired))
	assert.True(t, IsValidationError(fmt.Errorf("trigger: %w", ErrInvalidSyncType)))

	assert.False(t, IsValidationError(nil))
	assert.False(t, IsValidationError(ErrSourceNotFound))
	assert.False(t, IsValidationError(ErrAdapterUnavailable))
	assert.False(t, IsValidationError(errors.New("integration: source name is required")))
}
