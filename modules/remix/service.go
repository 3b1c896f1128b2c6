package remix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"persona-remixer-server/modules/common/apperr"
	"persona-remixer-server/modules/common/model"
	"persona-remixer-server/modules/common/utils"
	"persona-remixer-server/modules/ingest"
	"persona-remixer-server/modules/prompt"
	"persona-remixer-server/modules/session"
)

// Collaborator - 외부 이미지 생성/편집 API
type Collaborator interface {
	Edit(ctx context.Context, image model.ImageRef, instruction string) (model.Result, error)
	Generate(ctx context.Context, instruction, aspectRatio string) (model.Result, error)
}

// Broadcaster - 상태가 바뀔 때마다 구독자에게 알림
type Broadcaster interface {
	Publish(event Event)
}

const noImageMessage = "The AI did not return an image. Please try a different prompt."

type noopBroadcaster struct{}

func (noopBroadcaster) Publish(Event) {}

// Service - 세션 상태 전이와 생성 요청 오케스트레이션
type Service struct {
	store        session.Store
	collaborator Collaborator
	broadcaster  Broadcaster
	locks        *keyedMutex
	webpQuality  float32
	lockRefresh  time.Duration

	now   func() time.Time
	newID func() string
}

// NewService - store 와 collaborator 는 필수, broadcaster 는 nil 이면 무시
func NewService(store session.Store, collaborator Collaborator, broadcaster Broadcaster, webpQuality float32) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if collaborator == nil {
		return nil, fmt.Errorf("collaborator is required")
	}
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}
	return &Service{
		store:        store,
		collaborator: collaborator,
		broadcaster:  broadcaster,
		locks:        newKeyedMutex(),
		webpQuality:  webpQuality,
		lockRefresh:  session.BusyLockTTL / 3,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}, nil
}

// Create - 기본값으로 새 세션 생성
func (s *Service) Create(ctx context.Context) (session.State, error) {
	st := session.New(s.newID(), s.now())
	if err := s.store.Save(ctx, st); err != nil {
		return session.State{}, err
	}
	log.Info().Msgf("✅ Session created: %s", st.ID)
	return st, nil
}

// Get - 세션 조회
func (s *Service) Get(ctx context.Context, id string) (session.State, error) {
	return s.store.Load(ctx, id)
}

// Delete - 세션 삭제 (구독자에게도 알림)
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.store.Load(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.broadcaster.Publish(Event{Type: EventSessionDeleted, SessionID: id})
	log.Info().Msgf("🗑️  Session deleted: %s", id)
	return nil
}

// Upload - 새 원본 이미지 설정
// paste/drop 의 비이미지 입력은 상태 변경 없이 그대로 반환
func (s *Service) Upload(ctx context.Context, id string, source ingest.Source, file ingest.File) (session.State, error) {
	ref, ok, err := ingest.IngestFrom(source, file)
	if err != nil {
		return s.snapshot(ctx, id, err)
	}

	if !ok {
		return s.store.Load(ctx, id)
	}

	if info, err := ingest.Inspect(file); err == nil {
		log.Debug().Msgf("📐 Uploaded image %s: %dx%d (%s)", file.Name, info.Width, info.Height, info.Format)
	} else {
		log.Debug().Msgf("⚠️  Could not inspect uploaded image %s: %v", file.Name, err)
	}

	return s.mutate(ctx, id, func(st session.State) (session.State, error) {
		if st.IsBusy {
			return st, apperr.ErrBusy
		}
		return st.Upload(ref), nil
	})
}

// UpdateSelections - 선택값 부분 수정 (생성 중에도 가능)
func (s *Service) UpdateSelections(ctx context.Context, id string, patch session.Patch) (session.State, error) {
	return s.mutate(ctx, id, func(st session.State) (session.State, error) {
		return st.ApplySelections(patch)
	})
}

// Promote - 결과 이미지를 원본으로 승격 (히스토리 유지)
func (s *Service) Promote(ctx context.Context, id, dataURL string) (session.State, error) {
	return s.mutate(ctx, id, func(st session.State) (session.State, error) {
		if st.IsBusy {
			return st, apperr.ErrBusy
		}
		return st.Promote(dataURL)
	})
}

// Generate - 원본이 있으면 편집, 없으면 신규 생성
// 진행 중인 요청이 있으면 ErrBusy 와 함께 현재 상태를 그대로 반환
func (s *Service) Generate(ctx context.Context, id string) (session.State, error) {
	st, p, err := s.begin(ctx, id)
	if err != nil {
		return st, err
	}

	// 요청이 시작되면 클라이언트가 끊겨도 끝까지 진행
	callCtx := context.WithoutCancel(ctx)
	start := s.now()

	stopRefresh := s.keepLock(callCtx, id)

	var res model.Result
	switch p.Mode {
	case prompt.ModeEdit:
		log.Info().Msgf("🎨 [Remix] Editing session %s: %s", id, p.Text)
		res, err = s.collaborator.Edit(callCtx, *st.OriginalImage, p.Text)
	default:
		log.Info().Msgf("🎨 [Remix] Generating session %s (%s): %s", id, st.AspectRatio, p.Text)
		res, err = s.collaborator.Generate(callCtx, p.Text, st.AspectRatio)
	}
	stopRefresh()
	if err == nil && res.Image == "" {
		err = apperr.New(apperr.ErrCollaboratorFailure, noImageMessage)
	}

	return s.complete(callCtx, id, p.Mode, res, err, s.now().Sub(start))
}

// keepLock - 호출이 끝날 때까지 Busy 잠금 TTL 을 주기적으로 연장
func (s *Service) keepLock(ctx context.Context, id string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(s.lockRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := s.store.Refresh(ctx, id); err != nil {
					log.Error().Msgf("❌ Failed to refresh busy lock for %s: %v", id, err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

// begin - 잠금 획득, 프롬프트 검증, Busy 상태 저장
func (s *Service) begin(ctx context.Context, id string) (session.State, prompt.Prompt, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	st, err := s.store.Load(ctx, id)
	if err != nil {
		return session.State{}, prompt.Prompt{}, err
	}

	acquired, err := s.store.Acquire(ctx, id)
	if err != nil {
		return st, prompt.Prompt{}, err
	}
	if !acquired {
		log.Warn().Msgf("⏳ [Remix] Session %s is busy, ignoring request", id)
		return st, prompt.Prompt{}, apperr.ErrBusy
	}
	if st.IsBusy {
		// 진행 중인 호출은 잠금을 계속 연장하므로, 잠금이 없으면 플래그만 남은 것 (이전 프로세스 종료 등)
		log.Warn().Msgf("⚠️  [Remix] Clearing stale busy flag for session %s", id)
		st.IsBusy = false
	}

	p, err := prompt.Compose(prompt.Input{
		Identity:         st.Identity,
		Style:            st.Style,
		Background:       st.Background,
		View:             st.View,
		HasOriginalImage: st.HasOriginal(),
	})
	if err != nil {
		s.release(ctx, id)
		failed, saveErr := s.save(ctx, st.Fail(apperr.Message(err)))
		if saveErr != nil {
			return st, prompt.Prompt{}, saveErr
		}
		return failed, prompt.Prompt{}, err
	}

	busy, err := st.Begin()
	if err != nil {
		s.release(ctx, id)
		return st, prompt.Prompt{}, err
	}
	busy, err = s.save(ctx, busy)
	if err != nil {
		s.release(ctx, id)
		return st, prompt.Prompt{}, err
	}
	return busy, p, nil
}

// complete - 호출 결과를 최신 상태에 반영하고 잠금 해제
func (s *Service) complete(ctx context.Context, id string, mode prompt.Mode, res model.Result, callErr error, took time.Duration) (session.State, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	defer s.release(ctx, id)

	// 호출 중 선택값이 바뀌었을 수 있으므로 다시 읽음
	st, err := s.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrSessionNotFound) {
			log.Warn().Msgf("⚠️  [Remix] Session %s was deleted during generation", id)
		}
		return session.State{}, err
	}

	next, err := s.apply(st, mode, res, callErr)
	if err != nil {
		log.Error().Msgf("❌ [Remix] Session %s failed after %s: %v", id, took, err)
	} else {
		log.Info().Msgf("✅ [Remix] Session %s %s finished in %s (history: %d)", id, mode, took, len(next.RemixHistory))
	}

	saved, saveErr := s.save(ctx, next)
	if saveErr != nil {
		return st, saveErr
	}
	return saved, err
}

func (s *Service) apply(st session.State, mode prompt.Mode, res model.Result, callErr error) (session.State, error) {
	if callErr != nil {
		return st.Fail(apperr.Message(callErr)), callErr
	}
	if mode == prompt.ModeEdit {
		return st.CompleteEdit(res), nil
	}
	next, err := st.CompleteGenerate(res)
	if err != nil {
		return st.Fail(apperr.Message(err)), err
	}
	return next, nil
}

// Export - 세션 이미지를 바이너리로 (format=webp 면 변환)
func (s *Service) Export(ctx context.Context, id, ref, format string) ([]byte, string, error) {
	st, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, "", err
	}

	dataURL, ok := st.Image(ref)
	if !ok {
		return nil, "", apperr.New(apperr.ErrSessionNotFound, fmt.Sprintf("Image not found: %s", ref))
	}

	mimeType, data, err := utils.DecodeDataURL(dataURL)
	if err != nil {
		return nil, "", err
	}

	switch format {
	case "", "original":
		return data, mimeType, nil
	case "webp":
		if mimeType == "image/webp" {
			return data, mimeType, nil
		}
		converted, err := utils.ConvertToWebP(mimeType, data, s.webpQuality)
		if err != nil {
			return nil, "", fmt.Errorf("failed to convert %s to WebP: %w", ref, err)
		}
		return converted, "image/webp", nil
	}
	return nil, "", apperr.New(apperr.ErrInvalidInput, fmt.Sprintf("Unsupported export format: %s", format))
}

// mutate - 세션 잠금 안에서 전이 함수 적용
// 전이 실패 시 저장하지 않고 기존 상태와 에러를 반환
func (s *Service) mutate(ctx context.Context, id string, fn func(session.State) (session.State, error)) (session.State, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	st, err := s.store.Load(ctx, id)
	if err != nil {
		return session.State{}, err
	}

	next, err := fn(st)
	if err != nil {
		return st, err
	}
	saved, err := s.save(ctx, next)
	if err != nil {
		return st, err
	}
	return saved, nil
}

// snapshot - 에러와 함께 현재 상태를 돌려줌 (세션이 없으면 빈 상태)
func (s *Service) snapshot(ctx context.Context, id string, cause error) (session.State, error) {
	st, err := s.store.Load(ctx, id)
	if err != nil {
		return session.State{}, err
	}
	return st, cause
}

// save - 저장한 상태 그대로를 반환하고 구독자에게 알림
func (s *Service) save(ctx context.Context, st session.State) (session.State, error) {
	st.UpdatedAt = s.now()
	if err := s.store.Save(ctx, st); err != nil {
		log.Error().Msgf("❌ Failed to save session %s: %v", st.ID, err)
		return session.State{}, err
	}
	published := st
	s.broadcaster.Publish(Event{Type: EventSessionUpdated, SessionID: st.ID, Session: &published})
	return st, nil
}

func (s *Service) release(ctx context.Context, id string) {
	if err := s.store.Release(ctx, id); err != nil {
		log.Error().Msgf("❌ Failed to release busy lock for %s: %v", id, err)
	}
}
