// internal/types/ids.go
package types

import "github.com/google/uuid"

// CaptureID identifies one audio capture session. A new one is minted each
// time transcription starts, so a restarted session never reuses handles.
type CaptureID string

func NewCaptureID() CaptureID {
	return CaptureID(uuid.New().String())
}
