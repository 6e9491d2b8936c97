// Package model defines shared data structures.
package model

// Scores holds the three 0-100 quality scores attached to a pass.
type Scores struct {
	Clarity     int
	Correctness int
	Structure   int
}

// Pass is one pre-authored snapshot in a problem's refinement sequence.
type Pass struct {
	Output   string
	Critique string
	Scores   Scores
	Errors   int
}

// Problem is an ordered, immutable sequence of passes.
type Problem struct {
	Key         string
	Title       string
	Description string
	Passes      []Pass
}

// Metrics are the display values derived from a single pass.
type Metrics struct {
	Clarity     int `json:"clarity"`
	Correctness int `json:"correctness"`
	Structure   int `json:"structure"`
	Errors      int `json:"errors"`
	Average     int `json:"average"`
}

// Series holds per-metric values in visiting order.
type Series struct {
	Clarity     []int `json:"clarity"`
	Correctness []int `json:"correctness"`
	Structure   []int `json:"structure"`
	Errors      []int `json:"errors,omitempty"`
}

// Len returns the number of points in the series.
func (s Series) Len() int {
	return len(s.Clarity)
}

// Config defines playback settings.
type Config struct {
	Problem string
	Passes  int
	Speed   float64
	PauseMs int
}

// ServerConfig defines settings for the HTTP server.
type ServerConfig struct {
	Addr    string
	PauseMs int
}
