package model

// ImageRef - 편집 기준 이미지 (생성 후 변경하지 않음)
type ImageRef struct {
	Payload  string `json:"payload"`  // base64 인코딩된 이미지 데이터
	MimeType string `json:"mimeType"` // image/jpeg, image/png 등
	DataURL  string `json:"dataUrl"`  // 화면 표시용 data URL
}

// IsZero - 비어있는 참조인지 확인
func (r ImageRef) IsZero() bool {
	return r.Payload == "" && r.MimeType == "" && r.DataURL == ""
}

// Identity - 인물 정보 선택값
type Identity struct {
	Gender      string `json:"gender"`
	Nationality string `json:"nationality"`
	Age         string `json:"age"`
}

// Style - 포즈/헤어/의상 선택값
type Style struct {
	Pose   string `json:"pose"`
	Hair   string `json:"hair"`
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
	Shoe   string `json:"shoe"`
}

// Result - 외부 생성 API 응답 (Image 는 data URL, 없을 수 있음)
type Result struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}
