package remix

import (
	"persona-remixer-server/modules/preset"
	"persona-remixer-server/modules/session"
)

// PromoteRequest - 표시 중인 이미지를 원본으로 승격
type PromoteRequest struct {
	Image string `json:"image"` // data URL
}

// SessionResponse - 세션 상태 + 현재 선택값으로 만든 모드 안내
type SessionResponse struct {
	Session session.State `json:"session"`
	Mode    string        `json:"mode"` // generate | edit
}

// ErrorResponse - 실패 응답 (세션이 있으면 현재 상태 포함)
type ErrorResponse struct {
	Error   string         `json:"error"`
	Session *session.State `json:"session,omitempty"`
}

// PresetsResponse - 화면에 그릴 프리셋 목록
type PresetsResponse struct {
	Presets    map[preset.Field][]preset.Preset `json:"presets"`
	DefaultAge string                           `json:"defaultAge"`
}

// Event - WebSocket 으로 보내는 상태 변경 알림
type Event struct {
	Type      string         `json:"type"` // session_updated | session_deleted
	SessionID string         `json:"sessionId"`
	Session   *session.State `json:"session,omitempty"`
}

const (
	EventSessionUpdated = "session_updated"
	EventSessionDeleted = "session_deleted"
)
