// ABOUTME: WAV container parser
// ABOUTME: Reads RIFF chunks and hands the PCM payload to PCMDecoder
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
)

const wavFormatPCM = 1

var errNotWAV = errors.New("not a RIFF/WAVE file")

// DecodeWAV decodes an uncompressed PCM WAV file
func DecodeWAV(r io.Reader) (audio.Buffer, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return audio.Buffer{}, errNotWAV
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return audio.Buffer{}, errNotWAV
	}

	var format audio.Format
	haveFormat := false

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return audio.Buffer{}, fmt.Errorf("wav: no data chunk")
		}
		id := string(chunk[:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:]))

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil || size < 16 {
				return audio.Buffer{}, fmt.Errorf("wav: short fmt chunk")
			}
			if tag := binary.LittleEndian.Uint16(body[0:]); tag != wavFormatPCM {
				return audio.Buffer{}, fmt.Errorf("wav: unsupported encoding %d (PCM only)", tag)
			}
			format = audio.Format{
				Codec:      CodecWAV,
				Channels:   int(binary.LittleEndian.Uint16(body[2:])),
				SampleRate: int(binary.LittleEndian.Uint32(body[4:])),
				BitDepth:   int(binary.LittleEndian.Uint16(body[14:])),
			}
			haveFormat = true

		case "data":
			if !haveFormat {
				return audio.Buffer{}, fmt.Errorf("wav: data chunk before fmt chunk")
			}
			payload, err := readAll(io.LimitReader(r, size))
			if err != nil {
				return audio.Buffer{}, fmt.Errorf("wav: reading data: %w", err)
			}
			return decodeWAVPayload(format, payload)

		default:
			// Chunks are word aligned
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return audio.Buffer{}, fmt.Errorf("wav: no data chunk")
			}
		}
	}
}

func decodeWAVPayload(format audio.Format, payload []byte) (audio.Buffer, error) {
	if format.Channels < 1 || format.SampleRate < 1 {
		return audio.Buffer{}, fmt.Errorf("wav: invalid format %+v", format)
	}

	decoder, err := NewPCM(format)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("wav: %w", err)
	}
	defer decoder.Close()

	samples, err := decoder.Decode(payload)
	if err != nil {
		return audio.Buffer{}, err
	}

	// Drop a trailing partial frame
	samples = samples[:len(samples)-len(samples)%format.Channels]
	return audio.Buffer{Samples: samples, Format: format}, nil
}
