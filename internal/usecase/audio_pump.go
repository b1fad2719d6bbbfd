package usecase

import (
	"errors"
	"fmt"
	"io"
	"time"

	"cuecard/internal/ports"
)

const minChunkSize = 256

// chunkSink receives one captured chunk. It may drop the chunk.
type chunkSink func(chunk []byte) error

// chunkSizeFor returns the byte size of one interval of raw PCM.
func chunkSizeFor(sampleRate int, channels int, interval time.Duration) int {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	size := int(int64(sampleRate*channels*2) * int64(interval) / int64(time.Second))
	if size < minChunkSize {
		size = minChunkSize
	}
	return size
}

// pumpAudioChunks forwards captured audio to sink until the capture ends.
// Fixed mode waits for whole chunks, which keeps raw PCM at a steady cadence;
// container streams are forwarded as the encoder emits them.
// A clean end of capture returns nil.
func pumpAudioChunks(audio ports.AudioSession, sink chunkSink, chunkSize int, fixed bool) error {
	if chunkSize < minChunkSize {
		chunkSize = 8000
	}

	buf := make([]byte, chunkSize)
	for {
		var (
			n   int
			err error
		)
		if fixed {
			n, err = io.ReadFull(audio, buf)
		} else {
			n, err = audio.Read(buf)
		}
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if sendErr := sink(chunk); sendErr != nil {
				return fmt.Errorf("failed to stream audio: %w", sendErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("audio capture error: %w", err)
		}
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
