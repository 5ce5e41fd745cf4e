// ABOUTME: Package media documentation
// ABOUTME: Plays short sounds alongside the metronome
// Package media plays one sound at a time next to a running metronome.
//
// Sounds are bundled assets looked up by name, http(s) URLs downloaded
// through a TTL cache, or plain file paths. Whatever the source, the bytes
// are decoded, converted to the device format and handed to their own oto
// player on the shared context, so they mix with the clicks instead of
// replacing them.
package media
