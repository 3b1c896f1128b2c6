package ingest

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-remixer-server/modules/common/apperr"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestIngest(t *testing.T) {
	data := pngBytes(t, 2, 2)

	ref, err := Ingest(File{Name: "me.png", ContentType: "image/png", Data: data})
	require.NoError(t, err)

	payload := base64.StdEncoding.EncodeToString(data)
	assert.Equal(t, "image/png", ref.MimeType)
	assert.Equal(t, payload, ref.Payload)
	assert.Equal(t, "data:image/png;base64,"+payload, ref.DataURL)
}

func TestIngestNormalizesContentType(t *testing.T) {
	ref, err := Ingest(File{ContentType: "Image/JPEG; charset=binary", Data: []byte{0xff, 0xd8}})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ref.MimeType)
}

func TestIngestRejectsNonImage(t *testing.T) {
	_, err := Ingest(File{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hello")})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	assert.Equal(t, "Please upload an image file.", apperr.Message(err))

	_, err = Ingest(File{ContentType: "image/png"})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestIngestFromSourcePolicy(t *testing.T) {
	text := File{ContentType: "text/plain", Data: []byte("hello")}

	_, ok, err := IngestFrom(SourcePicker, text)
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	for _, src := range []Source{SourcePaste, SourceDrop} {
		_, ok, err := IngestFrom(src, text)
		assert.False(t, ok, "source %s", src)
		assert.NoError(t, err, "source %s", src)
	}

	ref, ok, err := IngestFrom(SourcePaste, File{ContentType: "image/png", Data: pngBytes(t, 1, 1)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "image/png", ref.MimeType)
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource("")
	require.NoError(t, err)
	assert.Equal(t, SourcePicker, src)

	src, err = ParseSource(" Drop ")
	require.NoError(t, err)
	assert.Equal(t, SourceDrop, src)

	_, err = ParseSource("camera")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestInspect(t *testing.T) {
	info, err := Inspect(File{ContentType: "image/png", Data: pngBytes(t, 5, 7)})
	require.NoError(t, err)
	assert.Equal(t, Info{Format: "png", Width: 5, Height: 7}, info)

	_, err = Inspect(File{ContentType: "image/png", Data: []byte("garbage")})
	assert.Error(t, err)
}
