package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"persona-remixer-server/modules/common/apperr"
	"persona-remixer-server/modules/common/config"
	"persona-remixer-server/modules/common/model"
	"persona-remixer-server/modules/common/utils"
)

const (
	NoImageMessage      = "The AI did not return an image. Please try a different prompt."
	FailedRemoteMessage = "Failed to generate image"

	editInstructionTemplate = "Please create a new image of the person from the original photo with the following changes: %s. It is crucial to maintain the person's facial features and identity from the original image."
)

// modelAPI - genai.Models 중 실제로 쓰는 부분 (테스트에서 교체)
type modelAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// Client - 이미지 편집(Gemini) / 신규 생성(Imagen) 호출 핸들
// main 에서 한 번 만들어서 주입
type Client struct {
	models      modelAPI
	editModel   string
	imagenModel string
	limiter     *rate.Limiter
}

// Options - Client 생성 옵션
type Options struct {
	APIKey      string
	EditModel   string
	ImagenModel string
	MinInterval time.Duration // 호출 간 최소 간격 (0 이면 제한 없음)
}

// NewClient - API 키 확인 후 genai 클라이언트 생성
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if err := config.ValidateAPIKey(opts.APIKey); err != nil {
		return nil, err
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(opts.APIKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrConfiguration, "Failed to create Gemini client", err)
	}

	log.Info().Msgf("✅ Gemini client initialized (edit=%s, imagen=%s)", opts.EditModel, opts.ImagenModel)
	return newClient(genaiClient.Models, opts), nil
}

func newClient(models modelAPI, opts Options) *Client {
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Client{
		models:      models,
		editModel:   opts.EditModel,
		imagenModel: opts.ImagenModel,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// Edit - 원본 이미지 + 변경 지시로 새 이미지 생성
func (c *Client) Edit(ctx context.Context, image model.ImageRef, instruction string) (model.Result, error) {
	if image.IsZero() {
		return model.Result{}, apperr.New(apperr.ErrMalformedImage,
			"Failed to process the original image. Please upload it again.")
	}
	imageData, err := base64.StdEncoding.DecodeString(image.Payload)
	if err != nil {
		return model.Result{}, apperr.Wrap(apperr.ErrMalformedImage,
			"Failed to process the original image. Please upload it again.", err)
	}

	if err := c.wait(ctx); err != nil {
		return model.Result{}, err
	}

	log.Info().Msgf("🎨 [Gemini] Edit - model: %s, image: %s %d bytes, prompt: %s",
		c.editModel, image.MimeType, len(imageData), truncate(instruction, 80))

	content := &genai.Content{
		Parts: []*genai.Part{
			genai.NewPartFromBytes(imageData, image.MimeType),
			genai.NewPartFromText(fmt.Sprintf(editInstructionTemplate, instruction)),
		},
	}

	start := time.Now()
	result, err := c.models.GenerateContent(ctx, c.editModel, []*genai.Content{content},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		})
	if err != nil {
		return model.Result{}, remoteError("Edit", err)
	}

	res, err := parseContentResponse(result)
	if err != nil {
		log.Warn().Msgf("⚠️  [Gemini] Edit returned no image (%s)", time.Since(start))
		return model.Result{}, err
	}
	log.Info().Msgf("✅ [Gemini] Edit finished in %s", time.Since(start))
	return res, nil
}

// Generate - 텍스트 지시만으로 Imagen 이미지 생성
func (c *Client) Generate(ctx context.Context, instruction, aspectRatio string) (model.Result, error) {
	if err := c.wait(ctx); err != nil {
		return model.Result{}, err
	}

	log.Info().Msgf("🎨 [Imagen] Generate - model: %s, ratio: %s, prompt: %s",
		c.imagenModel, aspectRatio, truncate(instruction, 80))

	start := time.Now()
	result, err := c.models.GenerateImages(ctx, c.imagenModel, instruction, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: utils.DefaultMimeType,
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		return model.Result{}, remoteError("Generate", err)
	}

	res, err := parseImagesResponse(result)
	if err != nil {
		log.Warn().Msgf("⚠️  [Imagen] Generate returned no image (%s)", time.Since(start))
		return model.Result{}, err
	}
	log.Info().Msgf("✅ [Imagen] Generate finished in %s", time.Since(start))
	return res, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperr.Wrap(apperr.ErrCollaboratorFailure, FailedRemoteMessage, err)
	}
	return nil
}

// parseContentResponse - 첫 번째 후보에서 이미지/텍스트 추출
func parseContentResponse(result *genai.GenerateContentResponse) (model.Result, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return model.Result{}, apperr.New(apperr.ErrCollaboratorFailure, NoImageMessage)
	}

	var res model.Result
	var texts []string
	for _, part := range result.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 && res.Image == "" {
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = utils.DefaultMimeType
			}
			res.Image = utils.BuildDataURL(mimeType, base64.StdEncoding.EncodeToString(part.InlineData.Data))
			continue
		}
		if text := strings.TrimSpace(part.Text); text != "" && !part.Thought {
			texts = append(texts, text)
		}
	}
	res.Text = strings.Join(texts, "\n")

	if res.Image == "" {
		return model.Result{}, apperr.New(apperr.ErrCollaboratorFailure, NoImageMessage)
	}
	return res, nil
}

// parseImagesResponse - Imagen 응답의 첫 번째 이미지 (텍스트 없음)
func parseImagesResponse(result *genai.GenerateImagesResponse) (model.Result, error) {
	if result == nil || len(result.GeneratedImages) == 0 {
		return model.Result{}, apperr.New(apperr.ErrCollaboratorFailure, NoImageMessage)
	}
	generated := result.GeneratedImages[0]
	if generated == nil || generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		return model.Result{}, apperr.New(apperr.ErrCollaboratorFailure, NoImageMessage)
	}

	mimeType := generated.Image.MIMEType
	if mimeType == "" {
		mimeType = utils.DefaultMimeType
	}
	return model.Result{
		Image: utils.BuildDataURL(mimeType, base64.StdEncoding.EncodeToString(generated.Image.ImageBytes)),
	}, nil
}

func remoteError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		log.Warn().Msgf("⚠️  [Gemini] %s canceled by client", op)
	} else if isRateLimited(err) {
		log.Warn().Msgf("⚠️  [Gemini] %s hit rate limit (429): %v", op, err)
	} else {
		log.Error().Msgf("❌ [Gemini] %s failed: %v", op, err)
	}
	return apperr.Wrap(apperr.ErrCollaboratorFailure, FailedRemoteMessage, err)
}

// isRateLimited - 429 Rate Limit 에러인지 확인
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
