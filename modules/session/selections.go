package session

import (
	"fmt"
	"strings"

	"persona-remixer-server/modules/common/apperr"
	"persona-remixer-server/modules/preset"
)

// IdentityPatch - 인물 정보 부분 수정 (nil 은 변경 없음)
type IdentityPatch struct {
	Gender      *string `json:"gender,omitempty"`
	Nationality *string `json:"nationality,omitempty"`
	Age         *string `json:"age,omitempty"`
}

// StylePatch - 스타일 부분 수정
type StylePatch struct {
	Pose   *string `json:"pose,omitempty"`
	Hair   *string `json:"hair,omitempty"`
	Top    *string `json:"top,omitempty"`
	Bottom *string `json:"bottom,omitempty"`
	Shoe   *string `json:"shoe,omitempty"`
}

// Patch - 선택값 부분 수정 요청
type Patch struct {
	Identity    *IdentityPatch `json:"identity,omitempty"`
	Style       *StylePatch    `json:"style,omitempty"`
	Background  *string        `json:"background,omitempty"`
	View        *string        `json:"view,omitempty"`
	AspectRatio *string        `json:"aspectRatio,omitempty"`
}

// ApplySelections - 선택값 반영 (검증 실패 시 아무것도 바꾸지 않음)
func (s State) ApplySelections(p Patch) (State, error) {
	if p.AspectRatio != nil && *p.AspectRatio != s.AspectRatio {
		// 원본 이미지가 생긴 뒤에는 비율 고정
		if s.HasOriginal() {
			return s, apperr.ErrAspectRatioLocked
		}
		if !preset.IsAspectRatio(*p.AspectRatio) {
			return s, apperr.New(apperr.ErrInvalidInput,
				fmt.Sprintf("Unsupported aspect ratio: %s (allowed: %s)",
					*p.AspectRatio, strings.Join(preset.AspectRatios(), ", ")))
		}
	}

	next := s.clone()
	if id := p.Identity; id != nil {
		set(&next.Identity.Gender, id.Gender)
		set(&next.Identity.Nationality, id.Nationality)
		set(&next.Identity.Age, id.Age)
	}
	if st := p.Style; st != nil {
		set(&next.Style.Pose, st.Pose)
		set(&next.Style.Hair, st.Hair)
		set(&next.Style.Top, st.Top)
		set(&next.Style.Bottom, st.Bottom)
		set(&next.Style.Shoe, st.Shoe)
	}
	set(&next.Background, p.Background)
	set(&next.View, p.View)
	set(&next.AspectRatio, p.AspectRatio)
	return next, nil
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
