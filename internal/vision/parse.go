package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
)

// ErrNoJSON is returned when a reply contains no JSON value
var ErrNoJSON = errors.New("no JSON found in reply")

// Models report coordinates on a 0-1000 grid regardless of image size
const normalizedScale = 1000.0

// Detection is one grounded object
type Detection struct {
	Label string      `json:"label"`
	BBox  [4]float64  `json:"bbox_2d"`
	Point *[2]float64 `json:"point_2d,omitempty"`
	Text  string      `json:"text_content,omitempty"`
}

// StripFence removes a ```json ... ``` fence around a reply
func StripFence(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "```json" {
			continue
		}
		body := strings.Join(lines[i+1:], "\n")
		body, _, _ = strings.Cut(body, "```")
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(text)
}

// ExtractJSON returns the outermost JSON array or object embedded in text
func ExtractJSON(text string) (string, error) {
	text = StripFence(text)

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// ParseDetections decodes bbox_2d / point_2d items from a grounding or OCR reply.
// A single object is accepted as a one-element list.
func ParseDetections(text string) ([]Detection, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		cut, ok := closeTruncated(text)
		if !ok {
			return nil, err
		}
		raw = cut
	}

	var items []map[string]any
	if strings.HasPrefix(raw, "{") {
		var one map[string]any
		if err := json.Unmarshal([]byte(raw), &one); err != nil {
			return nil, fmt.Errorf("failed to parse detections: %w", err)
		}
		items = append(items, one)
	} else if err := json.Unmarshal([]byte(raw), &items); err != nil {
		// A reply cut off by max_tokens still holds its complete leading items
		cut, ok := closeTruncated(text)
		if !ok || json.Unmarshal([]byte(cut), &items) != nil {
			return nil, fmt.Errorf("failed to parse detections: %w", err)
		}
	}

	dets := make([]Detection, 0, len(items))
	for _, item := range items {
		var d Detection
		d.Label, _ = item["label"].(string)
		d.Text, _ = item["text_content"].(string)

		box, ok := numbers(item["bbox_2d"])
		hasBox := ok && len(box) == 4
		if hasBox {
			copy(d.BBox[:], box)
		}
		point, hasPoint := numbers(item["point_2d"])
		if hasPoint && len(point) == 2 {
			d.Point = &[2]float64{point[0], point[1]}
		}
		if !hasBox && d.Point == nil {
			continue
		}
		dets = append(dets, d)
	}
	return dets, nil
}

// closeTruncated keeps an unterminated array up to its last complete object
func closeTruncated(text string) (string, bool) {
	text = StripFence(text)
	start := strings.IndexAny(text, "[{")
	end := strings.LastIndex(text, "}")
	if start < 0 || text[start] != '[' || end < start {
		return "", false
	}
	return text[start:end+1] + "]", true
}

func numbers(v any) ([]float64, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(list))
	for _, x := range list {
		f, ok := x.(float64)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// ScaleToImage converts normalized coordinates into pixels for a width x height image.
// Boxes are reordered so x1<=x2 and y1<=y2.
func ScaleToImage(dets []Detection, width, height int) []Detection {
	sx := float64(width) / normalizedScale
	sy := float64(height) / normalizedScale

	out := make([]Detection, len(dets))
	for i, d := range dets {
		x1, y1, x2, y2 := d.BBox[0]*sx, d.BBox[1]*sy, d.BBox[2]*sx, d.BBox[3]*sy
		if x1 > x2 {
			x1, x2 = x2, x1
		}
		if y1 > y2 {
			y1, y2 = y2, y1
		}
		d.BBox = [4]float64{x1, y1, x2, y2}
		if d.Point != nil {
			d.Point = &[2]float64{d.Point[0] * sx, d.Point[1] * sy}
		}
		out[i] = d
	}
	return out
}

// ImageSize reads the dimensions of a local image without decoding pixels
func ImageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
