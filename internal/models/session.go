package models

import "time"

// SessionStatus represents the status of a cleaning session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusConverting SessionStatus = "converting"
	SessionStatusReady      SessionStatus = "ready"
	SessionStatusCleaning   SessionStatus = "cleaning"
	SessionStatusRemuxing   SessionStatus = "remuxing"
	SessionStatusRendering  SessionStatus = "rendering"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
)

// Busy reports whether a background run owns the session.
func (s SessionStatus) Busy() bool {
	switch s {
	case SessionStatusPending, SessionStatusConverting, SessionStatusCleaning,
		SessionStatusRemuxing, SessionStatusRendering:
		return true
	}
	return false
}

// Download names offered to the browser.
const (
	CleanedAudioName = "cleaned_audio.wav"
	CleanedVideoName = "cleaned_output.mp4"
)

// CleanSession represents one upload moving through convert, clean and
// (for video) remux.
type CleanSession struct {
	ID              string        `json:"id"`
	FileID          string        `json:"fileId"`
	FileName        string        `json:"fileName"`
	Kind            MediaKind     `json:"kind"`
	Status          SessionStatus `json:"status"`
	Stage           string        `json:"stage,omitempty"`
	Progress        float64       `json:"progress"` // 0-100
	Enhancer        string        `json:"enhancer,omitempty"`
	Container       string        `json:"container,omitempty"`
	AudioCodec      string        `json:"audioCodec,omitempty"`
	SampleRate      int           `json:"sampleRate,omitempty"`
	Channels        int           `json:"channels,omitempty"`
	DurationSeconds float64       `json:"durationSeconds,omitempty"`
	ConvertTimeMs   int64         `json:"convertTimeMs,omitempty"`
	CleanTimeMs     int64         `json:"cleanTimeMs,omitempty"`
	DownloadName    string        `json:"downloadName,omitempty"`
	DownloadMime    string        `json:"downloadMime,omitempty"`
	ResultSize      int64         `json:"resultSize,omitempty"`
	Levels          *AudioLevels  `json:"levels,omitempty"`
	Error           string        `json:"error,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
}

// AudioLevels compares the loudness of the original and cleaned audio.
// Values are linear, full scale is 1.
type AudioLevels struct {
	OriginalPeak float64 `json:"originalPeak"`
	OriginalRMS  float64 `json:"originalRms"`
	CleanedPeak  float64 `json:"cleanedPeak"`
	CleanedRMS   float64 `json:"cleanedRms"`
}

// NewCleanSession creates a new CleanSession in pending status.
func NewCleanSession(id, fileID, fileName string, kind MediaKind) *CleanSession {
	return &CleanSession{
		ID:        id,
		FileID:    fileID,
		FileName:  fileName,
		Kind:      kind,
		Status:    SessionStatusPending,
		CreatedAt: time.Now(),
	}
}

// ProgressEvent is pushed to SSE and websocket subscribers.
type ProgressEvent struct {
	SessionID string        `json:"sessionId" msgpack:"sessionId"`
	Status    SessionStatus `json:"status" msgpack:"status"`
	Stage     string        `json:"stage,omitempty" msgpack:"stage"`
	Progress  float64       `json:"progress" msgpack:"progress"`
	Error     string        `json:"error,omitempty" msgpack:"error"`
}
