// ABOUTME: Decoder interface and whole-file decoding entry point
// ABOUTME: Picks a codec from magic bytes or extension and decodes to PCM
package decode

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
)

// Decoder decodes chunks of raw audio to PCM int32 samples
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) ([]int32, error)

	// Close releases decoder resources
	Close() error
}

// Codecs understood by File
const (
	CodecMP3  = "mp3"
	CodecFLAC = "flac"
	CodecWAV  = "wav"
)

// sniffLen is how many leading bytes Detect needs
const sniffLen = 12

// Detect returns the codec of a file from its leading bytes, falling back
// to the extension of name. Returns "" when neither is recognized.
func Detect(name string, head []byte) string {
	switch {
	case len(head) >= 4 && string(head[:4]) == "fLaC":
		return CodecFLAC
	case len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WAVE":
		return CodecWAV
	case len(head) >= 3 && string(head[:3]) == "ID3":
		return CodecMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return CodecMP3
	}

	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "mp3":
		return CodecMP3
	case "flac":
		return CodecFLAC
	case "wav", "wave":
		return CodecWAV
	}
	return ""
}

// File decodes a complete encoded file. name is only used for codec detection.
func File(name string, data []byte) (audio.Buffer, error) {
	codec := Detect(name, data[:min(len(data), sniffLen)])

	var (
		buf audio.Buffer
		err error
	)
	switch codec {
	case CodecMP3:
		buf, err = DecodeMP3(bytes.NewReader(data))
	case CodecFLAC:
		buf, err = DecodeFLAC(bytes.NewReader(data))
	case CodecWAV:
		buf, err = DecodeWAV(bytes.NewReader(data))
	default:
		return audio.Buffer{}, fmt.Errorf("unsupported audio format: %s", name)
	}
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("decoding %s as %s: %w", name, codec, err)
	}
	return buf, nil
}

// readAll drains r, treating a truncated tail as the end of the stream
func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err == io.ErrUnexpectedEOF {
		return data, nil
	}
	return data, err
}
