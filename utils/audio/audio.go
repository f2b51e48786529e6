// Package audio converts captured audio between the encodings the pipeline
// touches: G.711 µ-law/A-law from telephony-style clients, 16-bit PCM, and
// the WAV container the transcription API expects.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zaf/g711"

	"pocketsocrates/core"
)

// PCMBytesToULaw converts PCM bytes to µ-law.
func PCMBytesToULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM byte slice length must be even (16-bit samples)")
	}
	return g711.EncodeUlaw(pcm), nil
}

// ULawBytesToPCM converts µ-law bytes to PCM bytes.
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// PCMBytesToALaw converts PCM bytes to A-law.
func PCMBytesToALaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM byte slice length must be even (16-bit samples)")
	}
	return g711.EncodeAlaw(pcm), nil
}

// ALawBytesToPCM converts A-law bytes to PCM bytes.
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// ToPCM converts a chunk to 16-bit PCM, decoding G.711 variants as needed.
func ToPCM(chunk core.AudioChunk) (core.AudioChunk, error) {
	switch chunk.Encoding {
	case core.EncodingLinear16, "":
		chunk.Encoding = core.EncodingLinear16
		return chunk, nil
	case core.EncodingMulaw:
		return core.AudioChunk{
			Data:       ULawBytesToPCM(chunk.Data),
			Encoding:   core.EncodingLinear16,
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
		}, nil
	case core.EncodingAlaw:
		return core.AudioChunk{
			Data:       ALawBytesToPCM(chunk.Data),
			Encoding:   core.EncodingLinear16,
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
		}, nil
	default:
		return core.AudioChunk{}, fmt.Errorf("unsupported encoding for PCM conversion: %s", chunk.Encoding)
	}
}

// Concat joins recorded chunks into one blob. All chunks must share the
// first chunk's format.
func Concat(chunks []core.AudioChunk) (core.AudioChunk, error) {
	if len(chunks) == 0 {
		return core.AudioChunk{}, errors.New("no audio chunks to concatenate")
	}
	out := core.AudioChunk{
		Encoding:   chunks[0].Encoding,
		SampleRate: chunks[0].SampleRate,
		Channels:   chunks[0].Channels,
	}
	total := 0
	for _, c := range chunks {
		if c.Encoding != out.Encoding || c.SampleRate != out.SampleRate || c.Channels != out.Channels {
			return core.AudioChunk{}, errors.New("audio chunks have mismatched formats")
		}
		total += len(c.Data)
	}
	out.Data = make([]byte, 0, total)
	for _, c := range chunks {
		out.Data = append(out.Data, c.Data...)
	}
	return out, nil
}

// WrapWAV converts a chunk to PCM and wraps it in a WAV container for the
// transcription request.
func WrapWAV(chunk core.AudioChunk) ([]byte, error) {
	pcm, err := ToPCM(chunk)
	if err != nil {
		return nil, err
	}
	channels := pcm.Channels
	if channels == 0 {
		channels = 1
	}
	sampleRate := pcm.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return PCMBytesToWavBytes(pcm.Data, channels, sampleRate)
}

// PCMBytesToWavBytes wraps PCM []byte into WAV []byte (16-bit little
// endian), mono or stereo.
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("PCM data is empty")
	}
	if numChannels <= 0 || numChannels > 2 {
		return nil, errors.New("only mono (1) or stereo (2) channels supported")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return nil, errors.New("PCM data length doesn't match channel count")
	}

	const (
		bitsPerSample  = 16
		audioFormatPCM = 1
		subchunk1Size  = 16
	)

	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign
	dataSize := len(pcm)
	fileSize := 36 + dataSize

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(fileSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(pcm)

	return buf.Bytes(), nil
}
