package prompt

import (
	"fmt"
	"strings"

	"persona-remixer-server/modules/common/apperr"
	"persona-remixer-server/modules/common/model"
)

// Mode - 프롬프트 종류
type Mode string

const (
	ModeGenerate Mode = "generate" // 원본 이미지 없음 → 새로 생성
	ModeEdit     Mode = "edit"     // 원본 이미지 있음 → 리믹스
)

// 사용자에게 보여줄 검증 메시지
const (
	EditEmptyMessage     = "For remixing, please provide identity, style/pose, background, or view instructions."
	GenerateEmptyMessage = "Please provide some description (identity, pose, hair, clothing) to generate an image."
)

// Input - 프롬프트 조립에 필요한 선택값
type Input struct {
	Identity         model.Identity
	Style            model.Style
	Background       string
	View             string
	HasOriginalImage bool
}

// Prompt - 조립 결과
type Prompt struct {
	Mode Mode   `json:"mode"`
	Text string `json:"text"`
}

// Compose - 선택값을 검증하고 모드에 맞는 지시문 생성
func Compose(in Input) (Prompt, error) {
	identity := IdentityPhrase(in.Identity)
	style := StylePhrase(in.Style)

	if in.HasOriginalImage {
		if blank(identity) && blank(style) && blank(in.View) && blank(in.Background) {
			return Prompt{}, apperr.New(apperr.ErrEmptyInstruction, EditEmptyMessage)
		}
		return Prompt{Mode: ModeEdit, Text: EditPrompt(in)}, nil
	}

	if blank(identity) && blank(style) {
		return Prompt{}, apperr.New(apperr.ErrEmptyInstruction, GenerateEmptyMessage)
	}
	return Prompt{Mode: ModeGenerate, Text: GeneratePrompt(in)}, nil
}

// IdentityPhrase - "<age> years old", 국적, 성별 순서로 비어있지 않은 값만 연결
func IdentityPhrase(id model.Identity) string {
	age := ""
	if id.Age != "" {
		age = id.Age + " years old"
	}
	return joinNonEmpty(", ", age, id.Nationality, id.Gender)
}

// StylePhrase - 포즈, 헤어, 상의, 하의, 신발 순서로 연결
func StylePhrase(s model.Style) string {
	return joinNonEmpty(", ", s.Pose, s.Hair, s.Top, s.Bottom, s.Shoe)
}

// BackgroundClause - "Background: <값>." 또는 빈 문자열
func BackgroundClause(background string) string {
	if background == "" {
		return ""
	}
	return fmt.Sprintf("Background: %s.", background)
}

// ViewClause - "View: <값>." 또는 빈 문자열
func ViewClause(view string) string {
	if view == "" {
		return ""
	}
	return fmt.Sprintf("View: %s.", view)
}

// EditPrompt - 리믹스용 지시문 (빈 구간은 생략)
func EditPrompt(in Input) string {
	identity := IdentityPhrase(in.Identity)
	style := StylePhrase(in.Style)

	var identitySegment, styleSegment string
	if identity != "" {
		identitySegment = fmt.Sprintf("Identity: %s.", identity)
	}
	if style != "" {
		styleSegment = fmt.Sprintf("Style and Pose: %s.", style)
	}
	return joinNonEmpty(" ", identitySegment, styleSegment, BackgroundClause(in.Background), ViewClause(in.View))
}

// GeneratePrompt - 신규 생성용 고정 템플릿
// 빈 구간도 생략하지 않음 (", , ." 가 그대로 남음)
func GeneratePrompt(in Input) string {
	return fmt.Sprintf("A person, %s, %s. %s %s",
		IdentityPhrase(in.Identity),
		StylePhrase(in.Style),
		BackgroundClause(in.Background),
		ViewClause(in.View),
	)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
