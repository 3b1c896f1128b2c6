package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // GIF 디코더 등록
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록
	"regexp"
	"strings"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/rs/zerolog/log"

	"persona-remixer-server/modules/common/apperr"
)

// DefaultMimeType - data URL 헤더에서 MIME 을 찾지 못했을 때 사용
const DefaultMimeType = "image/png"

var dataURLHeader = regexp.MustCompile(`data:(.*);base64`)

// ConvertImageToBase64 - 이미지 바이너리를 base64로 변환
func ConvertImageToBase64(imageData []byte) string {
	base64Str := base64.StdEncoding.EncodeToString(imageData)
	log.Debug().Msgf("🔄 Image converted to base64: %d chars (preview: %s...)",
		len(base64Str),
		base64Str[:min(50, len(base64Str))])
	return base64Str
}

// BuildDataURL - MIME 과 base64 payload 로 표시용 data URL 생성
func BuildDataURL(mimeType, payload string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, payload)
}

// ParseDataURL - data URL 을 MIME 과 base64 payload 로 분리
// 쉼표 구분자가 없거나 헤더/payload 가 비어있으면 ErrMalformedImage
func ParseDataURL(dataURL string) (mimeType string, payload string, err error) {
	parts := strings.Split(dataURL, ",")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: missing data URL delimiter", apperr.ErrMalformedImage)
	}

	mimeType = DefaultMimeType
	if m := dataURLHeader.FindStringSubmatch(parts[0]); m != nil {
		mimeType = m[1]
	}
	return mimeType, parts[1], nil
}

// DecodeDataURL - data URL 을 MIME 과 원본 바이너리로 복원
func DecodeDataURL(dataURL string) (string, []byte, error) {
	mimeType, payload, err := ParseDataURL(dataURL)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid base64 payload: %v", apperr.ErrMalformedImage, err)
	}
	return mimeType, data, nil
}

// DecodeImage - MIME 에 맞춰 이미지 디코딩 (WebP 는 go-webp 사용)
func DecodeImage(mimeType string, data []byte) (image.Image, string, error) {
	if mimeType == "image/webp" {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode WebP: %w", err)
		}
		return img, "webp", nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// ConvertToWebP - PNG/JPEG/GIF/WebP 바이너리를 손실 WebP 로 변환
func ConvertToWebP(mimeType string, data []byte, quality float32) ([]byte, error) {
	log.Debug().Msgf("🔄 Converting %s to WebP (quality: %.1f)", mimeType, quality)

	img, _, err := DecodeImage(mimeType, data)
	if err != nil {
		return nil, err
	}

	// WebP 인코딩
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	webpData := webpBuffer.Bytes()
	log.Debug().Msgf("✅ %s converted to WebP: %d bytes → %d bytes", mimeType, len(data), len(webpData))

	return webpData, nil
}
