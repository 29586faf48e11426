package media

import (
	"fmt"

	"github.com/s33g/omni-probe/internal/llm"
)

// Part builds the content part that carries url for the given kind
func Part(kind Kind, url string) (llm.ContentPart, error) {
	ref := &llm.MediaURL{URL: url}
	switch kind {
	case KindAudio:
		return llm.ContentPart{Type: llm.PartAudio, AudioURL: ref}, nil
	case KindImage:
		return llm.ContentPart{Type: llm.PartImage, ImageURL: ref}, nil
	case KindVideo:
		return llm.ContentPart{Type: llm.PartVideo, VideoURL: ref}, nil
	default:
		return llm.ContentPart{}, fmt.Errorf("unsupported media kind %q", kind)
	}
}

// AssetPart loads a local asset and wraps it in a content part
func AssetPart(p string) (llm.ContentPart, error) {
	asset, err := Load(p)
	if err != nil {
		return llm.ContentPart{}, err
	}
	kind, err := asset.Kind()
	if err != nil {
		return llm.ContentPart{}, fmt.Errorf("%s: %w", p, err)
	}
	return Part(kind, asset.DataURL())
}

// BuildUserMessage builds a single user message: the media part first, then the prompt.
// An empty prompt yields a media-only message.
func BuildUserMessage(assetPath, prompt string) (llm.Message, error) {
	part, err := AssetPart(assetPath)
	if err != nil {
		return llm.Message{}, err
	}

	parts := []llm.ContentPart{part}
	if prompt != "" {
		parts = append(parts, llm.TextPart(prompt))
	}
	return llm.Message{Role: llm.RoleUser, Content: parts}, nil
}

// BuildImageMessage builds a user message for an image that may be local or remote.
// Pixel bounds are forwarded when non-zero.
func BuildImageMessage(ref, prompt string, minPixels, maxPixels int) (llm.Message, error) {
	url := ref
	if !IsRemote(ref) {
		asset, err := Load(ref)
		if err != nil {
			return llm.Message{}, err
		}
		if kind, _ := asset.Kind(); kind != KindImage {
			return llm.Message{}, fmt.Errorf("%s is not an image (%s)", ref, asset.MIME)
		}
		url = asset.DataURL()
	}

	part, _ := Part(KindImage, url)
	part.MinPixels = minPixels
	part.MaxPixels = maxPixels

	return llm.Message{
		Role:    llm.RoleUser,
		Content: []llm.ContentPart{part, llm.TextPart(prompt)},
	}, nil
}
