// Package wavout writes rendered audio to WAV files and imports WAV files
// as ADPCM-B samples.
package wavout

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/user-none/emopl/adpcm"
)

// ErrInvalidWAV is returned when a file is not a readable PCM WAV.
var ErrInvalidWAV = errors.New("wavout: not a valid wav file")

const wavFormatPCM = 1

// Writer streams interleaved 16-bit stereo frames to a WAV file.
type Writer struct {
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	frames int
}

// NewWriter starts a 16-bit stereo WAV at rate Hz. The header is
// finalized by Close.
func NewWriter(w io.WriteSeeker, rate int) *Writer {
	return &Writer{
		enc: wav.NewEncoder(w, rate, 16, 2, wavFormatPCM),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}
}

// WriteFrames appends interleaved left/right samples.
func (w *Writer) WriteFrames(stereo []int16) error {
	if len(stereo) == 0 {
		return nil
	}
	data := w.buf.Data[:0]
	for _, s := range stereo {
		data = append(data, int(s))
	}
	w.buf.Data = data
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wavout: %w", err)
	}
	w.frames += len(stereo) / 2
	return nil
}

// Frames returns the number of stereo frames written.
func (w *Writer) Frames() int {
	return w.frames
}

// Close writes the final chunk sizes. It does not close the underlying
// writer.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("wavout: %w", err)
	}
	return nil
}

// Sample is a WAV file converted for the ADPCM channel.
type Sample struct {
	Data []byte // ADPCM-B
	Rate int
	PCM  []int16 // First channel at 16 bits
}

// ReadSample decodes a PCM WAV, keeps its first channel and encodes it as
// ADPCM-B.
func ReadSample(r io.ReadSeeker) (*Sample, error) {
	dec := wav.NewDecoder(r)
	if dec == nil || !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavout: %w", err)
	}
	chans := int(dec.NumChans)
	if chans < 1 {
		return nil, ErrInvalidWAV
	}

	shift := int(dec.BitDepth) - 16
	pcm := make([]int16, 0, len(buf.Data)/chans)
	for i := 0; i < len(buf.Data); i += chans {
		v := buf.Data[i]
		switch {
		case dec.BitDepth == 8:
			// 8-bit WAV is unsigned.
			v = (v - 128) << 8
		case shift > 0:
			v >>= shift
		}
		pcm = append(pcm, int16(max(min(v, 32767), -32768)))
	}
	return &Sample{
		Data: adpcm.Encode(pcm),
		Rate: int(dec.SampleRate),
		PCM:  pcm,
	}, nil
}
