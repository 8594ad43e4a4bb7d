// Package content turns the many historical payload shapes a message
// may carry (plain string, JSON object, nested protocol envelope)
// into one displayable preview and a coarse media kind. Resolution
// happens once at ingestion time; nothing downstream re-interprets
// raw payloads.
package content

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"
)

// MediaKind is the coarse classification of a resolved payload.
type MediaKind string

const (
	KindText        MediaKind = "text"
	KindImage       MediaKind = "image"
	KindVideo       MediaKind = "video"
	KindAudio       MediaKind = "audio"
	KindDocument    MediaKind = "document"
	KindSystem      MediaKind = "system"
	KindUnsupported MediaKind = "unsupported"
)

// Fixed placeholder labels for payloads without usable text.
const (
	LabelImage       = "[Image]"
	LabelVideo       = "[Video]"
	LabelAudio       = "[Audio]"
	LabelDocument    = "[Document]"
	LabelSystem      = "[System message]"
	LabelUnsupported = "[Unsupported message]"
)

// Resolved is the single source of truth for message display/search.
type Resolved struct {
	Preview   string    `json:"preview"`
	MediaKind MediaKind `json:"media_kind"`
}

// Field names that may carry usable text, probed in order.
var textFields = []string{"text", "caption", "body", "message"}

// Keys marking a nested system/protocol envelope.
var systemMarkers = []string{
	"protocolMessage", "senderKeyDistributionMessage",
	"messageStubType", "stub", "reactionMessage",
}

// Keys marking a nested media envelope, mapped to their kind.
var mediaEnvelopes = map[string]MediaKind{
	"imageMessage":    KindImage,
	"videoMessage":    KindVideo,
	"audioMessage":    KindAudio,
	"documentMessage": KindDocument,
	"stickerMessage":  KindImage,
}

// Resolve converts a stored payload into a preview string and media
// kind. It never fails and never panics; the worst case is an empty
// preview. kind is the declared message type ("text", "image", ...)
// and only decides the placeholder when the payload itself carries
// no classification.
func Resolve(kind, rawContent string) Resolved {
	raw := strings.TrimSpace(rawContent)
	if raw == "" {
		return Resolved{Preview: "", MediaKind: kindFromType(kind)}
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		// Unparsable payloads are already-resolved plain text.
		return Resolved{Preview: raw, MediaKind: KindText}
	}

	switch v := parsed.(type) {
	case map[string]any:
		return resolveObject(kind, v)
	case nil:
		return Resolved{Preview: "", MediaKind: kindFromType(kind)}
	default:
		// Scalar JSON values (quoted string, number, bool).
		s := strings.TrimSpace(cast.ToString(v))
		if s == "" {
			return placeholderFor(kindFromType(kind))
		}
		return Resolved{Preview: s, MediaKind: KindText}
	}
}

func resolveObject(kind string, obj map[string]any) Resolved {
	mediaKind, hasMedia := detectMedia(obj)

	// 1-2. Direct text or caption fields. Blank values model a real
	// defect class ({"text":""}) and count as absent.
	if s := nonBlankString(obj, "text"); s != "" {
		return Resolved{Preview: s, MediaKind: KindText}
	}
	if s := nonBlankString(obj, "caption"); s != "" {
		k := KindText
		if hasMedia {
			k = mediaKind
		}
		return Resolved{Preview: s, MediaKind: k}
	}

	// 3. Media envelope: prefer a caption buried inside it.
	if hasMedia {
		if s := nestedCaption(obj); s != "" {
			return Resolved{Preview: s, MediaKind: mediaKind}
		}
		return placeholderFor(mediaKind)
	}

	// 4. System/protocol envelope.
	for _, marker := range systemMarkers {
		if _, ok := obj[marker]; ok {
			return Resolved{Preview: LabelSystem, MediaKind: KindSystem}
		}
	}

	// Fallback chain before giving up on the object.
	for _, f := range textFields {
		if s := nonBlankString(obj, f); s != "" {
			return Resolved{Preview: s, MediaKind: KindText}
		}
	}
	if s := nonBlankString(obj, "messageType"); s != "" {
		return placeholderFor(kindFromType(s))
	}

	// 5. Non-empty object with nothing recognizable.
	if len(obj) > 0 {
		return Resolved{Preview: LabelUnsupported, MediaKind: KindUnsupported}
	}

	// 6. Empty object: degrade to the declared type's placeholder,
	// else an empty preview.
	if k := kindFromType(kind); k != KindText && k != KindUnsupported {
		return placeholderFor(k)
	}
	return Resolved{Preview: "", MediaKind: kindFromType(kind)}
}

func detectMedia(obj map[string]any) (MediaKind, bool) {
	for key, k := range mediaEnvelopes {
		if _, ok := obj[key]; ok {
			return k, true
		}
	}
	if mt := nonBlankString(obj, "mimetype"); mt != "" {
		switch {
		case strings.HasPrefix(mt, "image/"):
			return KindImage, true
		case strings.HasPrefix(mt, "video/"):
			return KindVideo, true
		case strings.HasPrefix(mt, "audio/"):
			return KindAudio, true
		case mt == "application/pdf":
			return KindDocument, true
		case strings.HasPrefix(mt, "application/"):
			return KindDocument, true
		}
	}
	return KindText, false
}

// nestedCaption digs into a media envelope for a non-blank caption.
func nestedCaption(obj map[string]any) string {
	for key := range mediaEnvelopes {
		inner, ok := obj[key].(map[string]any)
		if !ok {
			continue
		}
		if s := nonBlankString(inner, "caption"); s != "" {
			return s
		}
	}
	return ""
}

func nonBlankString(obj map[string]any, field string) string {
	v, ok := obj[field]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func placeholderFor(k MediaKind) Resolved {
	switch k {
	case KindImage:
		return Resolved{Preview: LabelImage, MediaKind: KindImage}
	case KindVideo:
		return Resolved{Preview: LabelVideo, MediaKind: KindVideo}
	case KindAudio:
		return Resolved{Preview: LabelAudio, MediaKind: KindAudio}
	case KindDocument:
		return Resolved{Preview: LabelDocument, MediaKind: KindDocument}
	case KindSystem:
		return Resolved{Preview: LabelSystem, MediaKind: KindSystem}
	default:
		return Resolved{Preview: LabelUnsupported, MediaKind: KindUnsupported}
	}
}

func kindFromType(kind string) MediaKind {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "image", "sticker":
		return KindImage
	case "video":
		return KindVideo
	case "audio", "ptt", "voice":
		return KindAudio
	case "document", "pdf", "file":
		return KindDocument
	case "system", "protocol":
		return KindSystem
	case "", "text", "chat", "conversation", "extendedtextmessage":
		return KindText
	default:
		return KindUnsupported
	}
}
