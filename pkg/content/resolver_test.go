package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_PlainString(t *testing.T) {
	r := Resolve("text", "hola mundo")
	assert.Equal(t, "hola mundo", r.Preview)
	assert.Equal(t, KindText, r.MediaKind)
}

func TestResolve_TextField(t *testing.T) {
	r := Resolve("text", `{"text":"  مرحبا  "}`)
	assert.Equal(t, "مرحبا", r.Preview)
	assert.Equal(t, KindText, r.MediaKind)
}

func TestResolve_BlankTextFallsThrough(t *testing.T) {
	// {"text":""} is the historical defect class: it must not render
	// as an empty bubble.
	r := Resolve("text", `{"text":""}`)
	assert.Equal(t, LabelUnsupported, r.Preview)
	assert.Equal(t, KindUnsupported, r.MediaKind)
}

func TestResolve_BlankCaptionWithMime(t *testing.T) {
	r := Resolve("image", `{"caption":"","mimetype":"image/jpeg"}`)
	assert.Equal(t, LabelImage, r.Preview)
	assert.Equal(t, KindImage, r.MediaKind)
}

func TestResolve_CaptionWins(t *testing.T) {
	r := Resolve("image", `{"caption":"vacation pic","mimetype":"image/jpeg"}`)
	assert.Equal(t, "vacation pic", r.Preview)
	assert.Equal(t, KindImage, r.MediaKind)
}

func TestResolve_NestedEnvelopeCaption(t *testing.T) {
	r := Resolve("image", `{"imageMessage":{"caption":"from the beach","url":"x"}}`)
	assert.Equal(t, "from the beach", r.Preview)
	assert.Equal(t, KindImage, r.MediaKind)

	r = Resolve("video", `{"videoMessage":{"url":"x"}}`)
	assert.Equal(t, LabelVideo, r.Preview)
	assert.Equal(t, KindVideo, r.MediaKind)
}

func TestResolve_MediaPlaceholders(t *testing.T) {
	cases := []struct {
		raw   string
		label string
		kind  MediaKind
	}{
		{`{"mimetype":"video/mp4"}`, LabelVideo, KindVideo},
		{`{"mimetype":"audio/ogg"}`, LabelAudio, KindAudio},
		{`{"mimetype":"application/pdf"}`, LabelDocument, KindDocument},
		{`{"mimetype":"application/zip"}`, LabelDocument, KindDocument},
	}
	for _, c := range cases {
		r := Resolve("", c.raw)
		assert.Equal(t, c.label, r.Preview, "raw=%s", c.raw)
		assert.Equal(t, c.kind, r.MediaKind, "raw=%s", c.raw)
	}
}

func TestResolve_SystemEnvelope(t *testing.T) {
	r := Resolve("text", `{"protocolMessage":{"type":"REVOKE"}}`)
	assert.Equal(t, LabelSystem, r.Preview)
	assert.Equal(t, KindSystem, r.MediaKind)
}

func TestResolve_FallbackFields(t *testing.T) {
	r := Resolve("text", `{"body":"via body"}`)
	assert.Equal(t, "via body", r.Preview)

	r = Resolve("text", `{"message":"via message"}`)
	assert.Equal(t, "via message", r.Preview)

	r = Resolve("text", `{"messageType":"audio"}`)
	assert.Equal(t, LabelAudio, r.Preview)
	assert.Equal(t, KindAudio, r.MediaKind)
}

func TestResolve_UnrecognizedObject(t *testing.T) {
	r := Resolve("text", `{"foo":"bar"}`)
	assert.Equal(t, LabelUnsupported, r.Preview)
	assert.Equal(t, KindUnsupported, r.MediaKind)
}

func TestResolve_EmptyObject(t *testing.T) {
	// {} must never match a text search.
	r := Resolve("text", `{}`)
	assert.Equal(t, "", r.Preview)

	// With a declared media type the placeholder still applies.
	r = Resolve("image", `{}`)
	assert.Equal(t, LabelImage, r.Preview)
}

func TestResolve_ScalarJSON(t *testing.T) {
	r := Resolve("text", `"quoted text"`)
	assert.Equal(t, "quoted text", r.Preview)

	r = Resolve("text", `42`)
	assert.Equal(t, "42", r.Preview)
}

func TestResolve_NeverPanics(t *testing.T) {
	for _, raw := range []string{"", "   ", "{", "null", `{"text":null}`, `[1,2,3]`} {
		assert.NotPanics(t, func() { Resolve("text", raw) }, "raw=%q", raw)
	}
}
