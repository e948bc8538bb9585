package chat

import (
	"context"
	"io"
	"log"

	"github.com/companionlabs/backend/internal/service/speech"
)

// chunksPerFrame is how many provider chunks are packed into one delivered
// audio frame.
const chunksPerFrame = 10

// AudioFrame is one ordered slice of a reply's synthesized audio. A Seq of -1
// with an empty Chunk is the terminal sentinel; consumers reassemble frames by
// ascending Seq and stop at the sentinel.
type AudioFrame struct {
	RequestID string `json:"uuid"`
	Chunk     []byte `json:"chunk"`
	Seq       int    `json:"count"`
}

// frameBatcher lazily folds a chunk stream into frames of up to
// chunksPerFrame chunks each, numbering them from zero.
type frameBatcher struct {
	src speech.ChunkStream
	seq int
	eof bool
}

func newFrameBatcher(src speech.ChunkStream) *frameBatcher {
	return &frameBatcher{src: src}
}

// next returns the next frame, or io.EOF once the source is drained. A short
// final frame is normal; an empty source yields io.EOF immediately.
func (b *frameBatcher) next() ([]byte, int, error) {
	if b.eof {
		return nil, 0, io.EOF
	}

	var frame []byte
	for i := 0; i < chunksPerFrame; i++ {
		chunk, err := b.src.Next()
		if err == io.EOF {
			b.eof = true
			break
		}
		if err != nil {
			return nil, 0, err
		}
		frame = append(frame, chunk...)
	}

	if len(frame) == 0 {
		return nil, 0, io.EOF
	}
	seq := b.seq
	b.seq++
	return frame, seq, nil
}

// streamVoice synthesizes the reply text and broadcasts it as ordered audio
// frames. The sentinel frame is always delivered, including on a failed or
// empty stream, so clients can stop waiting for audio. The reply text has
// already been broadcast by the time this runs.
func (s *Service) streamVoice(ctx context.Context, conversationID, requestID, text, voice string) {
	defer s.hub.Broadcast(conversationID, "audio", AudioFrame{RequestID: requestID, Seq: -1})

	stream, err := s.tts.Synthesize(ctx, text, voice)
	if err != nil {
		log.Printf("[chat] speech synthesis failed conversation=%s: %v", conversationID, err)
		return
	}
	defer stream.Close()

	batcher := newFrameBatcher(stream)
	for {
		frame, seq, err := batcher.next()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Printf("[chat] audio stream aborted conversation=%s seq=%d: %v", conversationID, batcher.seq, err)
			return
		}
		s.hub.Broadcast(conversationID, "audio", AudioFrame{RequestID: requestID, Chunk: frame, Seq: seq})
	}
}
