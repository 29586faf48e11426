package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrAssetNotFound is returned when a local asset does not exist
var ErrAssetNotFound = errors.New("asset not found")

// Kind is the broad media category of an asset
type Kind string

const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// mimeTypes maps extensions to the MIME types the cookbook server accepts
var mimeTypes = map[string]string{
	".mp3":  "audio/mp3",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
}

// Asset is an encoded local file
type Asset struct {
	Path string
	MIME string
	Data []byte
}

// Kind returns the media category derived from the MIME type
func (a *Asset) Kind() (Kind, error) {
	return KindOf(a.MIME)
}

// DataURL returns the asset as data:<mime>;base64,<payload>
func (a *Asset) DataURL() string {
	return DataURL(a.MIME, a.Data)
}

// DataURL encodes data as a base64 data URL
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// KindOf maps a MIME type to its media kind
func KindOf(mime string) (Kind, error) {
	major, _, _ := strings.Cut(mime, "/")
	switch Kind(major) {
	case KindAudio, KindImage, KindVideo:
		return Kind(major), nil
	default:
		return "", fmt.Errorf("unsupported media type %q", mime)
	}
}

// DetectMIME returns the MIME type for a file name, sniffing data when the extension is unknown
func DetectMIME(name string, data []byte) string {
	if mime, ok := mimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}
	mime, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return mime
}

// Load reads a local asset and detects its MIME type
func Load(p string) (*Asset, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, p)
		}
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}

	return &Asset{Path: p, MIME: DetectMIME(p, data), Data: data}, nil
}

// LoadDataURL reads a local asset and returns it as a data URL
func LoadDataURL(p string) (string, error) {
	asset, err := Load(p)
	if err != nil {
		return "", err
	}
	return asset.DataURL(), nil
}

// ResolveAsset maps a cookbook URL or bare file name to a path inside dir.
// Existing local paths are returned unchanged.
func ResolveAsset(dir, ref string) string {
	if _, err := os.Stat(ref); err == nil {
		return ref
	}
	name := ref
	if strings.Contains(ref, "://") {
		name = path.Base(strings.SplitN(ref, "?", 2)[0])
	} else {
		name = filepath.Base(ref)
	}
	return filepath.Join(dir, name)
}

// IsRemote reports whether ref is an http(s) URL the server can fetch itself
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
