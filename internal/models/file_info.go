// Package models contains transport types for the audio cleaner.
package models

import "time"

// FileInfo represents metadata about an uploaded file.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Kind       MediaKind `json:"kind"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "cleaning", "cleaned", "error"
}

// MediaKind distinguishes audio-only uploads from video uploads whose audio
// track gets replaced.
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)
