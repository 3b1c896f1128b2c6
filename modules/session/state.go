package session

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"persona-remixer-server/modules/common/apperr"
	"persona-remixer-server/modules/common/model"
	"persona-remixer-server/modules/common/utils"
	"persona-remixer-server/modules/preset"
)

// State - 세션 하나의 전체 상태
// 전이 함수는 항상 새 State 를 반환하고 기존 값은 건드리지 않음
type State struct {
	ID string `json:"id"`

	OriginalImage      *model.ImageRef `json:"originalImage,omitempty"`
	InitialResultImage string          `json:"initialResultImage,omitempty"`
	RemixHistory       []string        `json:"remixHistory"` // 시간순, 추가만 가능

	Identity    model.Identity `json:"identity"`
	Style       model.Style    `json:"style"`
	Background  string         `json:"background"`
	View        string         `json:"view"`
	AspectRatio string         `json:"aspectRatio"`

	IsBusy    bool   `json:"isBusy"`
	LastError string `json:"lastError,omitempty"`
	LastText  string `json:"lastText,omitempty"` // 모델이 이미지와 함께 돌려준 텍스트

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New - 화면 기본값으로 초기화된 세션
func New(id string, now time.Time) State {
	return State{
		ID:           id,
		RemixHistory: []string{},
		Identity: model.Identity{
			Gender:      preset.Default(preset.FieldGender),
			Nationality: preset.Default(preset.FieldNationality),
			Age:         preset.DefaultAge,
		},
		Style: model.Style{
			Pose: preset.Default(preset.FieldPose),
		},
		View:        preset.Default(preset.FieldView),
		AspectRatio: preset.Default(preset.FieldAspectRatio),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasOriginal - 편집 기준 이미지가 있는지
func (s State) HasOriginal() bool {
	return s.OriginalImage != nil && !s.OriginalImage.IsZero()
}

// Upload - 새로 올린 이미지를 원본으로 설정 (히스토리/최초 이미지/에러 초기화)
func (s State) Upload(ref model.ImageRef) State {
	next := s.clone()
	next.OriginalImage = &ref
	next.InitialResultImage = ""
	next.RemixHistory = []string{}
	next.LastError = ""
	next.LastText = ""
	return next
}

// Promote - 표시용 이미지를 원본으로 승격 (히스토리는 유지)
func (s State) Promote(dataURL string) (State, error) {
	ref, err := refFromDataURL(dataURL)
	if err != nil {
		return s, err
	}
	next := s.clone()
	next.OriginalImage = &ref
	next.LastError = ""
	return next, nil
}

// Begin - 생성 요청 시작 (이미 진행 중이면 ErrBusy)
func (s State) Begin() (State, error) {
	if s.IsBusy {
		return s, apperr.ErrBusy
	}
	next := s.clone()
	next.IsBusy = true
	next.LastError = ""
	return next, nil
}

// CompleteEdit - 리믹스 결과를 히스토리 끝에 추가
func (s State) CompleteEdit(res model.Result) State {
	next := s.clone()
	next.RemixHistory = append(next.RemixHistory, res.Image)
	next.LastText = res.Text
	next.IsBusy = false
	return next
}

// CompleteGenerate - 신규 생성 결과를 최초 이미지이자 원본으로 설정
func (s State) CompleteGenerate(res model.Result) (State, error) {
	ref, err := refFromDataURL(res.Image)
	if err != nil {
		return s, err
	}
	next := s.clone()
	next.InitialResultImage = res.Image
	next.RemixHistory = []string{}
	next.OriginalImage = &ref
	next.LastText = res.Text
	next.LastError = ""
	next.IsBusy = false
	return next, nil
}

// Fail - 실패 메시지 기록 후 대기 상태로 복귀
func (s State) Fail(message string) State {
	next := s.clone()
	next.LastError = message
	next.IsBusy = false
	return next
}

// Image - 내보내기용 이미지 조회 ("initial", "original", 히스토리 인덱스)
func (s State) Image(ref string) (string, bool) {
	switch ref {
	case "initial":
		return s.InitialResultImage, s.InitialResultImage != ""
	case "original":
		if s.OriginalImage == nil {
			return "", false
		}
		return s.OriginalImage.DataURL, true
	}
	idx, err := strconv.Atoi(ref)
	if err != nil || idx < 0 || idx >= len(s.RemixHistory) {
		return "", false
	}
	return s.RemixHistory[idx], true
}

func (s State) clone() State {
	next := s
	next.RemixHistory = slices.Clone(s.RemixHistory)
	if next.RemixHistory == nil {
		next.RemixHistory = []string{}
	}
	if s.OriginalImage != nil {
		ref := *s.OriginalImage
		next.OriginalImage = &ref
	}
	return next
}

func refFromDataURL(dataURL string) (model.ImageRef, error) {
	mimeType, payload, err := utils.ParseDataURL(dataURL)
	if err != nil {
		return model.ImageRef{}, apperr.Wrap(apperr.ErrMalformedImage,
			"Failed to process the generated image. Please try again.", err)
	}
	return model.ImageRef{Payload: payload, MimeType: mimeType, DataURL: dataURL}, nil
}

// String - 로그용 요약
func (s State) String() string {
	return fmt.Sprintf("session=%s original=%v initial=%v history=%d busy=%v",
		s.ID, s.HasOriginal(), s.InitialResultImage != "", len(s.RemixHistory), s.IsBusy)
}
