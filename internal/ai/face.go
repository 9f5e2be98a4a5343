package ai

import (
	"context"

	"github.com/khrees2412/jobportal/internal/apiclient"
)

const (
	SetReferencePath   = "/api/set-reference"
	VerifyPresencePath = "/api/verify-presence"
)

var setReferenceSchema = apiclient.MustCompileSchema("set-reference", map[string]any{
	"type":     "object",
	"required": []string{"success"},
	"properties": map[string]any{
		"success": map[string]any{"type": "boolean"},
		"message": map[string]any{"type": "string"},
	},
})

var verifyPresenceSchema = apiclient.MustCompileSchema("verify-presence", map[string]any{
	"type":     "object",
	"required": []string{"user_present", "confidence"},
	"properties": map[string]any{
		"user_present":    map[string]any{"type": "boolean"},
		"confidence":      unitInterval,
		"message":         map[string]any{"type": "string"},
		"stability_score": map[string]any{"type": "number"},
		"eyes_detected":   map[string]any{"type": "boolean"},
	},
})

// Verification is the outcome of registering a reference face.
type Verification struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Presence is the outcome of checking a live frame against the reference.
type Presence struct {
	UserPresent    bool    `json:"user_present"`
	Confidence     float64 `json:"confidence"`
	Message        string  `json:"message"`
	StabilityScore float64 `json:"stability_score"`
	EyesDetected   *bool   `json:"eyes_detected,omitempty"`
}

type imageRequest struct {
	Image string `json:"image"`
}

// FaceVerifier talks to the face detection service.
type FaceVerifier struct {
	api *apiclient.Client
}

func NewFaceVerifier(api *apiclient.Client) *FaceVerifier {
	return &FaceVerifier{api: api}
}

// SetReference registers dataURL as the reference face. A rejected image is
// not an error: it comes back with Success=false and the service's reason.
func (f *FaceVerifier) SetReference(ctx context.Context, dataURL string) (*Verification, error) {
	var v Verification
	if err := f.api.PostJSON(ctx, SetReferencePath, imageRequest{Image: dataURL}, setReferenceSchema, &v); err != nil {
		return nil, err
	}
	if !v.Success && v.Message == "" {
		v.Message = "Face verification failed"
	}
	return &v, nil
}

// VerifyPresence checks a live frame against the stored reference.
func (f *FaceVerifier) VerifyPresence(ctx context.Context, dataURL string) (*Presence, error) {
	var p Presence
	if err := f.api.PostJSON(ctx, VerifyPresencePath, imageRequest{Image: dataURL}, verifyPresenceSchema, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
