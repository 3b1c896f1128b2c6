package apperr

import (
	"errors"
	"net/http"
	"strings"
)

// 에러 분류 - 세션 경계에서 사용자 메시지로 변환됨
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrEmptyInstruction    = errors.New("empty instruction")
	ErrMalformedImage      = errors.New("malformed image")
	ErrConfiguration       = errors.New("configuration error")
	ErrCollaboratorFailure = errors.New("collaborator failure")
	ErrBusy                = errors.New("session is busy")
	ErrAspectRatioLocked   = errors.New("aspect ratio is locked")
	ErrSessionNotFound     = errors.New("session not found")
)

// UserError - 사용자에게 그대로 보여줄 메시지를 가진 에러
type UserError struct {
	Kind error
	Text string
	Err  error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Text + ": " + e.Err.Error()
	}
	return e.Text
}

func (e *UserError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// New - kind 분류와 사용자 메시지로 에러 생성
func New(kind error, text string) error {
	return &UserError{Kind: kind, Text: text}
}

// Wrap - 원인 에러를 보존하면서 사용자 메시지 부여
func Wrap(kind error, text string, cause error) error {
	return &UserError{Kind: kind, Text: text, Err: cause}
}

// Message - 에러를 사용자 메시지로 변환
func Message(err error) string {
	if err == nil {
		return ""
	}

	var ue *UserError
	if errors.As(err, &ue) {
		if errors.Is(ue.Kind, ErrCollaboratorFailure) && ue.Err != nil {
			return ue.Text + ": " + strings.TrimSpace(ue.Err.Error())
		}
		return ue.Text
	}

	switch {
	case errors.Is(err, ErrBusy):
		return "A generation is already in progress."
	case errors.Is(err, ErrAspectRatioLocked):
		return "Aspect ratio cannot be changed while remixing an image."
	case errors.Is(err, ErrSessionNotFound):
		return "Session not found."
	case errors.Is(err, ErrMalformedImage):
		return "Failed to process the generated image. Please try again."
	case errors.Is(err, ErrInvalidInput):
		return "Please upload an image file."
	}
	return "An unknown error occurred."
}

// Status - 에러 분류에 맞는 HTTP 상태 코드
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrEmptyInstruction),
		errors.Is(err, ErrMalformedImage),
		errors.Is(err, ErrAspectRatioLocked):
		return http.StatusBadRequest
	case errors.Is(err, ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrCollaboratorFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
