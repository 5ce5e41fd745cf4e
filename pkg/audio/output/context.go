// ABOUTME: Process-wide oto context shared by all oto-backed players
// ABOUTME: oto permits a single context per process, so the device format is fixed
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// DeviceFormat is the format of the shared oto context
var DeviceFormat = audio.Format{
	Codec:      "pcm",
	SampleRate: 44100,
	Channels:   2,
	BitDepth:   16,
}

// deviceBufferSize is the oto driver buffer; smaller means lower click latency
const deviceBufferSize = 20 * time.Millisecond

var (
	sharedOnce sync.Once
	sharedCtx  *oto.Context
	sharedErr  error
)

// SharedContext returns the process-wide oto context, creating it on first use
func SharedContext() (*oto.Context, error) {
	sharedOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   DeviceFormat.SampleRate,
			ChannelCount: DeviceFormat.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   deviceBufferSize,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			sharedErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}

		<-readyChan
		sharedCtx = ctx

		log.Printf("Audio device initialized: %dHz, %d channels",
			DeviceFormat.SampleRate, DeviceFormat.Channels)
	})
	return sharedCtx, sharedErr
}
