// Package upload loads local files and checks them against the portal's
// type and size limits before anything is sent over the network.
package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/khrees2412/jobportal/internal/apperr"
)

// Limits enforced before upload.
const (
	MaxCVSize    = 5 << 20
	MaxPhotoSize = 2 << 20
)

var (
	CVTypes = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
	PhotoTypes = []string{"image/jpeg", "image/jpg", "image/png"}
)

// File is a selected file with its metadata.
type File struct {
	Name     string
	Size     int64
	MIMEType string
	Data     []byte
}

// Load reads path and sniffs its MIME type from content, falling back to the
// extension when the content is not recognised.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return File{
		Name:     filepath.Base(path),
		Size:     int64(len(data)),
		MIMEType: DetectType(filepath.Base(path), data),
		Data:     data,
	}, nil
}

// extension fallbacks that mime.TypeByExtension only knows on some hosts
var documentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// DetectType returns the media type of data without parameters. Generic
// containers (plain bytes, text, zip, OLE) defer to the file extension.
func DetectType(name string, data []byte) string {
	detected := mimetype.Detect(data)
	mt := strings.TrimSpace(strings.Split(detected.String(), ";")[0])
	switch mt {
	case "application/octet-stream", "text/plain", "application/zip", "application/x-ole-storage":
	default:
		return mt
	}
	ext := strings.ToLower(filepath.Ext(name))
	if known, ok := documentTypes[ext]; ok {
		return known
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return strings.TrimSpace(strings.Split(byExt, ";")[0])
	}
	return mt
}

// ValidateCV accepts PDF and Word documents up to MaxCVSize.
func ValidateCV(f File) error {
	if !slices.Contains(CVTypes, f.MIMEType) {
		return apperr.NewValidation("cv", "Please upload a PDF or Word document")
	}
	return checkSize("cv", f.Size, MaxCVSize)
}

// ValidatePhoto accepts JPEG and PNG images up to MaxPhotoSize.
func ValidatePhoto(f File) error {
	if !slices.Contains(PhotoTypes, f.MIMEType) {
		return apperr.NewValidation("photo", "Please upload a JPG or PNG image")
	}
	return checkSize("photo", f.Size, MaxPhotoSize)
}

func checkSize(field string, size, limit int64) error {
	if size <= 0 {
		return apperr.NewValidation(field, "File is empty")
	}
	if size > limit {
		return apperr.NewValidation(field, fmt.Sprintf("File size must be less than %dMB", limit>>20))
	}
	return nil
}

// DataURL encodes the file as a base64 data URL.
func (f File) DataURL() string {
	return EncodeDataURL(f.MIMEType, f.Data)
}

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var errBadDataURL = errors.New("invalid data URL")

// ParseDataURL splits a base64 data URL into its media type and payload.
func ParseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errBadDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errBadDataURL
	}
	mt, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: not base64", errBadDataURL)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errBadDataURL, err)
	}
	return mt, data, nil
}
