package stt

import (
	"bytes"
	"encoding/binary"
)

// WAV format code for G.711 mu-law.
const formatMulaw = 7

// wavFromMulaw wraps raw 8 kHz mono mu-law samples in a WAV container.
// Whisper endpoints reject headerless audio, and mu-law is a first-class
// WAV format, so no transcoding is needed.
func wavFromMulaw(samples []byte) []byte {
	const (
		sampleRate    = 8000
		channels      = 1
		bitsPerSample = 8
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(samples)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(formatMulaw))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(samples)))
	buf.Write(samples)

	return buf.Bytes()
}
