package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/s33g/omni-probe/internal/llm"
)

// Task is a ready-to-send multimodal request
type Task struct {
	Name        string
	Messages    []llm.Message
	Temperature float64
	MaxTokens   int
}

// Sampling settings used by the omni cookbook scripts
const (
	OmniTemperature = 0.1
	OmniMaxTokens   = 8192
	OCRMaxTokens    = 4096
)

// Qwen-VL pixel bounds used for grounding
const (
	GroundingMinPixels = 64 * 32 * 32
	GroundingMaxPixels = 9800 * 32 * 32
)

// DefaultCaptionPrompt is the prompt used when none is given
const DefaultCaptionPrompt = "Give the detailed description of the audio."

// AudioCaption describes an audio clip
func AudioCaption(audioPath, prompt string) (*Task, error) {
	if prompt == "" {
		prompt = DefaultCaptionPrompt
	}
	msg, err := BuildUserMessage(audioPath, prompt)
	if err != nil {
		return nil, err
	}
	return &Task{
		Name:        "caption",
		Messages:    []llm.Message{msg},
		Temperature: OmniTemperature,
		MaxTokens:   OmniMaxTokens,
	}, nil
}

// Ask poses a free-form question about any local asset (image math, audio QA, ...)
func Ask(assetPath, question string) (*Task, error) {
	if question == "" {
		return nil, fmt.Errorf("a question is required")
	}
	msg, err := BuildUserMessage(assetPath, question)
	if err != nil {
		return nil, err
	}
	return &Task{
		Name:        "ask",
		Messages:    []llm.Message{msg},
		Temperature: OmniTemperature,
		MaxTokens:   OmniMaxTokens,
	}, nil
}

// OCR prompts
const (
	OCRFullPage     = "Read all the text in the image."
	OCRLineLevel    = "Spotting all the text in the image with line-level, and output in JSON format as [{'bbox_2d': [x1, y1, x2, y2], 'text_content': 'text'}, ...]."
	OCRWordLevel    = "Spotting all the text in the image with word-level, and output in JSON format as [{'bbox_2d': [x1, y1, x2, y2], 'text_content': 'text'}, ...]."
	ocrSystemPrompt = "You are a helpful assistant."
)

// OCR reads text from an image. An empty prompt reads the whole page.
func OCR(imageRef, prompt string) (*Task, error) {
	if prompt == "" {
		prompt = OCRFullPage
	}
	msg, err := BuildImageMessage(imageRef, prompt, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Task{
		Name: "ocr",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: ocrSystemPrompt},
			msg,
		},
		Temperature: OmniTemperature,
		MaxTokens:   OCRMaxTokens,
	}, nil
}

// KeyInformationPrompt asks for the given keys as a JSON object
func KeyInformationPrompt(keys []string) string {
	return fmt.Sprintf("Extract the key-value information in the format:%s", keyTemplate(keys))
}

func keyTemplate(keys []string) string {
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = fmt.Sprintf("%q: \"\"", k)
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

// GroundingPrompt asks for bounding boxes of the named targets
func GroundingPrompt(targets string) string {
	return fmt.Sprintf("Locate every instance that belongs to the following categories: %q. Report bbox coordinates in JSON format.", targets)
}

// Ground asks for 2D bounding boxes of targets in an image
func Ground(imageRef, targets string) (*Task, error) {
	if targets == "" {
		return nil, fmt.Errorf("at least one target is required")
	}
	msg, err := BuildImageMessage(imageRef, GroundingPrompt(targets), GroundingMinPixels, GroundingMaxPixels)
	if err != nil {
		return nil, err
	}
	return &Task{
		Name:        "ground",
		Messages:    []llm.Message{msg},
		Temperature: OmniTemperature,
		MaxTokens:   OmniMaxTokens,
	}, nil
}

// functionCallSystem lists the tools the audio function-call demo exposes
const functionCallSystem = `You may call one or more functions to assist with the user query.

You are provided with function signatures within <tools></tools> XML tags:
<tools>
{'type': 'function', 'function': {'name': 'web_search', 'description': 'Utilize the web search engine to retrieve relevant information based on multiple queries.', 'parameters': {'type': 'object', 'properties': {'queries': {'type': 'array', 'items': {'type': 'string', 'description': 'The search query.'}, 'description': 'The list of search queries.'}}, 'required': ['queries']}}}
{'type': 'function', 'function': {'name': 'car_ac_control', 'description': "Control the vehicle's air conditioning system to turn it on/off and set the target temperature", 'parameters': {'type': 'object', 'properties': {'temperature': {'type': 'number', 'description': 'Target set temperature in Celsius degrees'}, 'ac_on': {'type': 'boolean', 'description': 'Air conditioning status (true=on, false=off)'}}, 'required': ['temperature', 'ac_on']}}}
</tools>

For each function call, return a json object with function name and arguments within <invoke></invoke> XML tags:
<invoke>
{"name": <function-name>, "arguments": <args-json-object>}
</invoke>`

// AudioFunctionCall sends a spoken request together with a tool listing
func AudioFunctionCall(audioPath string) (*Task, error) {
	msg, err := BuildUserMessage(audioPath, "")
	if err != nil {
		return nil, err
	}
	return &Task{
		Name: "funcall",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: functionCallSystem},
			msg,
		},
		Temperature: OmniTemperature,
		MaxTokens:   OmniMaxTokens,
	}, nil
}

// VideoDescription describes a video. Local servers rarely accept video parts,
// so unless inline is set the request names the file in text only.
func VideoDescription(videoPath, prompt string, inline bool) (*Task, error) {
	if prompt == "" {
		prompt = "Describe the video."
	}

	var msg llm.Message
	if inline {
		var err error
		if msg, err = BuildUserMessage(videoPath, prompt); err != nil {
			return nil, err
		}
	} else {
		if _, err := Load(videoPath); err != nil {
			return nil, err
		}
		text := fmt.Sprintf("Video file: %s. %s Please provide a description based on what the video shows.", filepath.Base(videoPath), prompt)
		msg = llm.Message{Role: llm.RoleUser, Content: []llm.ContentPart{llm.TextPart(text)}}
	}

	return &Task{
		Name:        "describe-video",
		Messages:    []llm.Message{msg},
		Temperature: OmniTemperature,
		MaxTokens:   OmniMaxTokens,
	}, nil
}
