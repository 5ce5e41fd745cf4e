// ABOUTME: Package bridge documentation
// ABOUTME: Remote control of the metronome over WebSocket
// Package bridge lets another process drive the metronome and the media
// player over a WebSocket at /metronome.
//
// Clients send {"id","method","params"} and get back {"id","result"} or
// {"id","error":{"code","message"}}. Every client also receives a hello
// event on connect and a beat event for each click. A play request is
// answered when the sound finishes, fails or is interrupted, while other
// requests on the same connection keep being served.
//
// The bridge can advertise itself over mDNS as _metronome._tcp.
package bridge
