// ABOUTME: WAV container writer
// ABOUTME: Wraps interleaved PCM bytes in a canonical 44-byte RIFF header
package encode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
)

const (
	wavHeaderLen = 44
	wavFormatPCM = 1
)

// WriteWAV writes pcm, already encoded at format.BitDepth, as a WAV file
func WriteWAV(w io.Writer, format audio.Format, pcm []byte) error {
	if format.BitDepth != 16 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16)", format.BitDepth)
	}
	if format.Channels < 1 || format.SampleRate < 1 {
		return fmt.Errorf("invalid WAV format: %d channels at %dHz", format.Channels, format.SampleRate)
	}
	if len(pcm)%format.FrameSize() != 0 {
		return fmt.Errorf("pcm length %d is not a whole number of %d-byte frames", len(pcm), format.FrameSize())
	}

	header := make([]byte, wavHeaderLen)
	blockAlign := format.FrameSize()

	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(wavHeaderLen-8+len(pcm)))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:], uint16(format.Channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(format.SampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(format.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:], uint16(format.BitDepth))
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(len(pcm)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
