package ingest

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"persona-remixer-server/modules/common/apperr"
	"persona-remixer-server/modules/common/model"
	"persona-remixer-server/modules/common/utils"
)

// Source - 이미지가 들어온 경로
type Source string

const (
	SourcePicker Source = "picker" // 파일 선택 (이미지가 아니면 에러 표시)
	SourcePaste  Source = "paste"  // 클립보드 붙여넣기 (이미지가 아니면 무시)
	SourceDrop   Source = "drop"   // 드래그 앤 드롭 (이미지가 아니면 무시)
)

// ParseSource - 요청 값으로 Source 결정 (빈 값은 picker)
func ParseSource(raw string) (Source, error) {
	switch s := Source(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return SourcePicker, nil
	case SourcePicker, SourcePaste, SourceDrop:
		return s, nil
	}
	return "", apperr.New(apperr.ErrInvalidInput, fmt.Sprintf("Unknown upload source: %s", raw))
}

// File - 업로드된 파일 (선언된 Content-Type 기준으로 판단)
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Info - 디코딩된 이미지 메타 정보
type Info struct {
	Format string
	Width  int
	Height int
}

// Ingest - 파일을 ImageRef 로 변환
func Ingest(file File) (model.ImageRef, error) {
	mimeType := normalizeContentType(file.ContentType)
	if !strings.HasPrefix(mimeType, "image/") {
		return model.ImageRef{}, apperr.New(apperr.ErrInvalidInput, "Please upload an image file.")
	}
	if len(file.Data) == 0 {
		return model.ImageRef{}, apperr.New(apperr.ErrInvalidInput, "The uploaded image is empty.")
	}

	payload := utils.ConvertImageToBase64(file.Data)
	return model.ImageRef{
		Payload:  payload,
		MimeType: mimeType,
		DataURL:  utils.BuildDataURL(mimeType, payload),
	}, nil
}

// IngestFrom - 경로별 정책 적용
// paste/drop 의 비이미지 입력은 ok=false, err=nil 로 조용히 무시
func IngestFrom(source Source, file File) (ref model.ImageRef, ok bool, err error) {
	ref, err = Ingest(file)
	if err == nil {
		log.Info().Msgf("📷 Image ingested from %s: %s, %d bytes", source, ref.MimeType, len(file.Data))
		return ref, true, nil
	}

	switch source {
	case SourcePaste, SourceDrop:
		log.Debug().Msgf("🙈 Ignoring non-image %s content (%s)", source, file.ContentType)
		return model.ImageRef{}, false, nil
	default:
		return model.ImageRef{}, false, err
	}
}

// Inspect - 이미지 크기 확인 (로그용, 실패해도 업로드는 유효)
func Inspect(file File) (Info, error) {
	img, format, err := utils.DecodeImage(normalizeContentType(file.ContentType), file.Data)
	if err != nil {
		return Info{}, err
	}
	b := img.Bounds()
	return Info{Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

// "image/png; charset=binary" 같은 파라미터 제거
func normalizeContentType(contentType string) string {
	mimeType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}
