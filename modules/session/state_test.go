package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-remixer-server/modules/common/apperr"
	"persona-remixer-server/modules/common/model"
)

var uploaded = model.ImageRef{Payload: "BBBB", MimeType: "image/jpeg", DataURL: "data:image/jpeg;base64,BBBB"}

func strPtr(s string) *string { return &s }

func TestNewDefaults(t *testing.T) {
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	st := New("abc", now)

	assert.Equal(t, "abc", st.ID)
	assert.Equal(t, model.Identity{Age: "25"}, st.Identity)
	assert.Equal(t, model.Style{Pose: "in a confident standing pose"}, st.Style)
	assert.Equal(t, "a selfie", st.View)
	assert.Equal(t, "", st.Background)
	assert.Equal(t, "1:1", st.AspectRatio)
	assert.NotNil(t, st.RemixHistory)
	assert.Empty(t, st.RemixHistory)
	assert.False(t, st.HasOriginal())
	assert.Equal(t, now, st.CreatedAt)
}

func TestUploadResetsHistoryAndError(t *testing.T) {
	st := New("s", time.Now())
	st.InitialResultImage = "data:image/png;base64,INIT"
	st.RemixHistory = []string{"data:image/png;base64,H1", "data:image/png;base64,H2"}
	st.LastError = "previous failure"

	next := st.Upload(uploaded)

	require.True(t, next.HasOriginal())
	assert.Equal(t, uploaded, *next.OriginalImage)
	assert.Empty(t, next.RemixHistory)
	assert.Equal(t, "", next.InitialResultImage)
	assert.Equal(t, "", next.LastError)

	// 이전 값은 그대로
	assert.Len(t, st.RemixHistory, 2)
	assert.Equal(t, "previous failure", st.LastError)
}

func TestPromote(t *testing.T) {
	st := New("s", time.Now())
	st.RemixHistory = []string{"data:image/png;base64,H1"}
	st.LastError = "oops"

	next, err := st.Promote("data:image/png;base64,AAAA")
	require.NoError(t, err)
	require.NotNil(t, next.OriginalImage)
	assert.Equal(t, "image/png", next.OriginalImage.MimeType)
	assert.Equal(t, "AAAA", next.OriginalImage.Payload)
	assert.Equal(t, "data:image/png;base64,AAAA", next.OriginalImage.DataURL)
	assert.Equal(t, []string{"data:image/png;base64,H1"}, next.RemixHistory)
	assert.Equal(t, "", next.LastError)
}

func TestPromoteMalformedLeavesStateUntouched(t *testing.T) {
	st := New("s", time.Now()).Upload(uploaded)
	st.LastError = "keep me"

	next, err := st.Promote("data:image/png;base64AAAA")
	assert.ErrorIs(t, err, apperr.ErrMalformedImage)
	assert.Equal(t, st, next)
	assert.Equal(t, uploaded, *next.OriginalImage)
}

func TestBeginRefusesWhenBusy(t *testing.T) {
	st := New("s", time.Now())
	st.LastError = "old"

	busy, err := st.Begin()
	require.NoError(t, err)
	assert.True(t, busy.IsBusy)
	assert.Equal(t, "", busy.LastError)

	again, err := busy.Begin()
	assert.ErrorIs(t, err, apperr.ErrBusy)
	assert.Equal(t, busy, again)
}

func TestCompleteEditAppends(t *testing.T) {
	st := New("s", time.Now()).Upload(uploaded)
	st, _ = st.Begin()

	first := st.CompleteEdit(model.Result{Image: "data:image/png;base64,E1", Text: "done"})
	second := first.CompleteEdit(model.Result{Image: "data:image/png;base64,E2"})

	assert.Equal(t, []string{"data:image/png;base64,E1"}, first.RemixHistory)
	assert.Equal(t, []string{"data:image/png;base64,E1", "data:image/png;base64,E2"}, second.RemixHistory)
	assert.Equal(t, uploaded, *second.OriginalImage)
	assert.False(t, second.IsBusy)
	assert.Equal(t, "done", first.LastText)
}

func TestCompleteGeneratePromotesResult(t *testing.T) {
	st := New("s", time.Now())
	st.RemixHistory = []string{"data:image/png;base64,OLD"}
	st, _ = st.Begin()

	next, err := st.CompleteGenerate(model.Result{Image: "data:image/png;base64,GEN"})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,GEN", next.InitialResultImage)
	assert.Empty(t, next.RemixHistory)
	require.NotNil(t, next.OriginalImage)
	assert.Equal(t, "GEN", next.OriginalImage.Payload)
	assert.False(t, next.IsBusy)

	_, err = st.CompleteGenerate(model.Result{Image: "garbage"})
	assert.ErrorIs(t, err, apperr.ErrMalformedImage)
}

func TestFail(t *testing.T) {
	st, _ := New("s", time.Now()).Begin()
	failed := st.Fail("Failed to generate image: boom")
	assert.False(t, failed.IsBusy)
	assert.Equal(t, "Failed to generate image: boom", failed.LastError)
}

func TestImageLookup(t *testing.T) {
	st := New("s", time.Now()).Upload(uploaded)
	st.InitialResultImage = "data:image/png;base64,INIT"
	st.RemixHistory = []string{"data:image/png;base64,H0", "data:image/png;base64,H1"}

	for ref, want := range map[string]string{
		"initial":  "data:image/png;base64,INIT",
		"original": uploaded.DataURL,
		"0":        "data:image/png;base64,H0",
		"1":        "data:image/png;base64,H1",
	} {
		got, ok := st.Image(ref)
		assert.True(t, ok, ref)
		assert.Equal(t, want, got, ref)
	}

	for _, ref := range []string{"2", "-1", "latest"} {
		_, ok := st.Image(ref)
		assert.False(t, ok, ref)
	}

	_, ok := New("empty", time.Now()).Image("original")
	assert.False(t, ok)
}

func TestApplySelections(t *testing.T) {
	st := New("s", time.Now())

	next, err := st.ApplySelections(Patch{
		Identity:    &IdentityPatch{Gender: strPtr("female"), Age: strPtr("")},
		Style:       &StylePatch{Hair: strPtr("with a high ponytail")},
		Background:  strPtr("inside a modern subway car"),
		View:        strPtr(""),
		AspectRatio: strPtr("9:16"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.Identity{Gender: "female"}, next.Identity)
	assert.Equal(t, "in a confident standing pose", next.Style.Pose)
	assert.Equal(t, "with a high ponytail", next.Style.Hair)
	assert.Equal(t, "inside a modern subway car", next.Background)
	assert.Equal(t, "", next.View)
	assert.Equal(t, "9:16", next.AspectRatio)
}

func TestApplySelectionsAspectRatioRules(t *testing.T) {
	st := New("s", time.Now())

	_, err := st.ApplySelections(Patch{AspectRatio: strPtr("21:9")})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, "Unsupported aspect ratio: 21:9 (allowed: 1:1, 16:9, 9:16, 4:3, 3:4)", apperr.Message(err))

	// 빈 참조는 원본으로 보지 않음
	empty := st
	empty.OriginalImage = &model.ImageRef{}
	assert.False(t, empty.HasOriginal())

	withImage := st.Upload(uploaded)
	unchanged, err := withImage.ApplySelections(Patch{
		Background:  strPtr("beach"),
		AspectRatio: strPtr("16:9"),
	})
	assert.ErrorIs(t, err, apperr.ErrAspectRatioLocked)
	assert.Equal(t, withImage, unchanged)

	// 같은 값을 다시 보내는 것은 허용
	same, err := withImage.ApplySelections(Patch{Background: strPtr("beach"), AspectRatio: strPtr("1:1")})
	require.NoError(t, err)
	assert.Equal(t, "beach", same.Background)
}
