package models

import "time"

// HistoryEntry is one finished cleaning run as kept in the history ledger.
type HistoryEntry struct {
	SessionID       string        `json:"sessionId"`
	FileName        string        `json:"fileName"`
	Kind            MediaKind     `json:"kind"`
	Enhancer        string        `json:"enhancer"`
	Status          SessionStatus `json:"status"`
	DurationSeconds float64       `json:"durationSeconds"`
	InputSize       int64         `json:"inputSize"`
	ResultSize      int64         `json:"resultSize"`
	ConvertTimeMs   int64         `json:"convertTimeMs"`
	CleanTimeMs     int64         `json:"cleanTimeMs"`
	Error           string        `json:"error,omitempty"`
	FinishedAt      time.Time     `json:"finishedAt"`
}

// HistoryStats aggregates the ledger.
type HistoryStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	Videos         int     `json:"videos"`
	AudioSeconds   float64 `json:"audioSeconds"`
	AvgCleanTimeMs float64 `json:"avgCleanTimeMs"`
}
