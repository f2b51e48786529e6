package core

// AudioEncoding identifies the codec of raw audio bytes.
type AudioEncoding string

const (
	EncodingLinear16 AudioEncoding = "linear16"
	EncodingMulaw    AudioEncoding = "mulaw"
	EncodingAlaw     AudioEncoding = "alaw"
	EncodingMP3      AudioEncoding = "mp3"
)

// AudioChunk is a slice of raw audio with its format metadata.
type AudioChunk struct {
	Data       []byte
	Encoding   AudioEncoding
	SampleRate int
	Channels   int
}
