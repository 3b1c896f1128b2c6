package remix

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"persona-remixer-server/modules/common/apperr"
	"persona-remixer-server/modules/ingest"
	"persona-remixer-server/modules/preset"
	"persona-remixer-server/modules/prompt"
	"persona-remixer-server/modules/session"
)

type Handler struct {
	service        *Service
	maxUploadBytes int64
}

func NewHandler(service *Service, maxUploadBytes int64) *Handler {
	return &Handler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes - 라우터에 세션/리믹스 엔드포인트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/presets", h.GetPresets).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/sessions", h.CreateSession).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}", h.GetSession).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}", h.DeleteSession).Methods("DELETE")
	r.HandleFunc("/api/sessions/{id}/image", h.UploadImage).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/selections", h.UpdateSelections).Methods("PATCH", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/generate", h.Generate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/promote", h.Promote).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/sessions/{id}/images/{ref}", h.ExportImage).Methods("GET", "OPTIONS")
	log.Info().Msg("✅ Remix routes registered: /api/presets, /api/sessions/...")
}

// GetPresets - 프리셋 목록
func (h *Handler) GetPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PresetsResponse{
		Presets:    preset.All(),
		DefaultAge: preset.DefaultAge,
	})
}

// CreateSession - 새 세션
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Create(r.Context())
	if err != nil {
		log.Error().Msgf("❌ Failed to create session: %v", err)
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(st))
}

// GetSession - 세션 상태 조회
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(st))
}

// DeleteSession - 세션 삭제
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage - multipart 업로드 (image 파일 + source 필드)
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		log.Warn().Msgf("⚠️  Failed to parse upload for session %s: %v", id, err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "The uploaded image is too large."})
			return
		}
		writeError(w, apperr.Wrap(apperr.ErrInvalidInput, "Invalid upload request", err), nil)
		return
	}

	source, err := ingest.ParseSource(r.FormValue("source"))
	if err != nil {
		writeError(w, err, nil)
		return
	}

	file, err := readUpload(r)
	if err != nil {
		log.Warn().Msgf("⚠️  Upload for session %s has no readable image: %v", id, err)
	}

	st, err := h.service.Upload(r.Context(), id, source, file)
	if err != nil {
		writeError(w, err, sessionOrNil(st))
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(st))
}

// UpdateSelections - 선택값 부분 수정
func (h *Handler) UpdateSelections(w http.ResponseWriter, r *http.Request) {
	var patch session.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Warn().Msgf("❌ Failed to parse selections: %v", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}

	st, err := h.service.UpdateSelections(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, err, sessionOrNil(st))
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(st))
}

// Generate - 생성/리믹스 실행 (완료될 때까지 대기)
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Generate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, sessionOrNil(st))
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(st))
}

// Promote - 결과 이미지로 계속 편집
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}

	st, err := h.service.Promote(r.Context(), mux.Vars(r)["id"], req.Image)
	if err != nil {
		writeError(w, err, sessionOrNil(st))
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(st))
}

// ExportImage - 이미지 다운로드 (?format=webp 지원)
func (h *Handler) ExportImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data, mimeType, err := h.service.Export(r.Context(), vars["id"], vars["ref"], r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err, nil)
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Warn().Msgf("⚠️  Failed to write image %s/%s: %v", vars["id"], vars["ref"], err)
	}
}

func readUpload(r *http.Request) (ingest.File, error) {
	f, header, err := r.FormFile("image")
	if err != nil {
		return ingest.File{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ingest.File{}, err
	}
	return ingest.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func newSessionResponse(st session.State) SessionResponse {
	mode := prompt.ModeGenerate
	if st.HasOriginal() {
		mode = prompt.ModeEdit
	}
	return SessionResponse{Session: st, Mode: string(mode)}
}

func sessionOrNil(st session.State) *session.State {
	if st.ID == "" {
		return nil
	}
	return &st
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Msgf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error, st *session.State) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		log.Error().Msgf("❌ Request failed: %v", err)
	}
	writeJSON(w, status, ErrorResponse{Error: apperr.Message(err), Session: st})
}
