package piper

import (
	"bytes"
	"encoding/binary"
)

// audioFormat describes raw PCM as announced by audio-start.
type audioFormat struct {
	rate     int
	width    int // bytes per sample
	channels int
}

var defaultFormat = audioFormat{rate: 22050, width: 2, channels: 1}

// wav wraps raw PCM in a 44-byte RIFF header.
func (f audioFormat) wav(pcm []byte) []byte {
	header := struct {
		Riff          [4]byte
		Size          uint32
		Wave          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		Format        uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		Riff:          [4]byte{'R', 'I', 'F', 'F'},
		Size:          uint32(36 + len(pcm)),
		Wave:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		Format:        1, // PCM
		Channels:      uint16(f.channels),
		SampleRate:    uint32(f.rate),
		ByteRate:      uint32(f.rate * f.channels * f.width),
		BlockAlign:    uint16(f.channels * f.width),
		BitsPerSample: uint16(f.width * 8),
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(pcm)),
	}

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	_ = binary.Write(&buf, binary.LittleEndian, header)
	buf.Write(pcm)
	return buf.Bytes()
}
