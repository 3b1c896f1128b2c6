package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := Wrap(ErrCollaboratorFailure, "Failed to generate image", cause)

	assert.ErrorIs(t, err, ErrCollaboratorFailure)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to generate image: quota exceeded", Message(err))

	wrapped := fmt.Errorf("edit: %w", err)
	assert.ErrorIs(t, wrapped, ErrCollaboratorFailure)
	assert.Equal(t, "Failed to generate image: quota exceeded", Message(wrapped))
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"user text wins", New(ErrEmptyInstruction, "Please describe the person."), "Please describe the person."},
		{"busy", fmt.Errorf("generate: %w", ErrBusy), "A generation is already in progress."},
		{"malformed", ErrMalformedImage, "Failed to process the generated image. Please try again."},
		{"invalid input", ErrInvalidInput, "Please upload an image file."},
		{"unknown", errors.New("boom"), "An unknown error occurred."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, Status(nil))
	assert.Equal(t, http.StatusNotFound, Status(ErrSessionNotFound))
	assert.Equal(t, http.StatusConflict, Status(ErrBusy))
	assert.Equal(t, http.StatusBadRequest, Status(New(ErrEmptyInstruction, "x")))
	assert.Equal(t, http.StatusBadRequest, Status(ErrAspectRatioLocked))
	assert.Equal(t, http.StatusServiceUnavailable, Status(ErrConfiguration))
	assert.Equal(t, http.StatusBadGateway, Status(Wrap(ErrCollaboratorFailure, "x", errors.New("y"))))
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("boom")))
}
