package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOperationError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		messages []string
		want     string
	}{
		{"joins messages", []string{"Username taken", "Email taken"}, "Username taken, Email taken"},
		{"skips blanks", []string{" ", "Post not found", ""}, "Post not found"},
		{"empty list", nil, "Operation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewOperationError(tt.messages)
			assert.Equal(t, CodeOperation, err.Code)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestAppError_Wrapping(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := fmt.Errorf("saving session: %w", NewInternalError(cause))

	assert.True(t, IsCode(err, CodeInternal))
	assert.False(t, IsCode(err, CodeValidation))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "Internal error: disk full")
}

func TestUser_ProfilePicture(t *testing.T) {
	t.Parallel()

	var nilUser *User
	assert.Equal(t, "", nilUser.ProfilePicture())
	assert.Equal(t, "", (&User{}).ProfilePicture())
	assert.Equal(t, "/media/a.png", (&User{Profile: &Profile{ProfilePicture: "/media/a.png"}}).ProfilePicture())
}
