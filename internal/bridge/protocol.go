// ABOUTME: Bridge message type definitions
// ABOUTME: Requests, responses, pushed events and error codes
package bridge

import "encoding/json"

// Methods understood by the bridge
const (
	MethodStartMetronome     = "startMetronome"
	MethodStopMetronome      = "stopMetronome"
	MethodSetMetronomeBPM    = "setMetronomeBPM"
	MethodSetMetronomeVolume = "setMetronomeVolume"
	MethodPlay               = "play"
	MethodPause              = "pause"
	MethodResume             = "resume"
	MethodStop               = "stop"
	MethodStatus             = "status"
)

// Error codes carried in responses
const (
	CodeInvalidArgument = "invalid_argument"
	CodeDeviceFault     = "device_fault"
	CodeUnknownMethod   = "unknown_method"
	CodeBadRequest      = "bad_request"
	CodePlaybackError   = "playback_error"
	CodeInternal        = "internal_error"
)

// Events pushed by the bridge
const (
	EventHello = "hello"
	EventBeat  = "beat"
)

// Request is a call from a client
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers exactly one request
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error describes a failed request
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is pushed to every client without a request
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// StartParams are the params of startMetronome
type StartParams struct {
	BPM    *float64 `json:"bpm"`
	Volume *float64 `json:"volume"`
}

// BPMParams are the params of setMetronomeBPM
type BPMParams struct {
	BPM *float64 `json:"bpm"`
}

// VolumeParams are the params of setMetronomeVolume
type VolumeParams struct {
	Volume *float64 `json:"volume"`
}

// PlayParams are the params of play
type PlayParams struct {
	URI        string `json:"uri"`
	IsResource bool   `json:"isResource"`
}

// Hello is sent once when a client connects
type Hello struct {
	ServerID     string `json:"server_id"`
	ClientID     string `json:"client_id"`
	Name         string `json:"name"`
	Product      string `json:"product"`
	Manufacturer string `json:"manufacturer"`
	Version      string `json:"version"`
}

// BeatEvent reports one emitted click
type BeatEvent struct {
	Index uint64 `json:"index"`
	Role  string `json:"role"`
	// At is unix milliseconds
	At int64 `json:"at"`
}

// Status is the result of the status method
type Status struct {
	Running      bool    `json:"running"`
	BPM          float64 `json:"bpm"`
	Volume       float64 `json:"volume"`
	BeatIndex    uint64  `json:"beat_index"`
	BeatsEmitted uint64  `json:"beats_emitted"`
	Recoveries   uint64  `json:"recoveries"`
	Underruns    int64   `json:"underruns"`
	Session      string  `json:"session,omitempty"`
	Media        string  `json:"media,omitempty"`
}

// ok is the result of calls that return nothing
type ok struct {
	OK bool `json:"ok"`
}
