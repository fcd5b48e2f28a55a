package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/tracebridge-backend/pkg/enums"
)

var errEmptyPayload = errors.New("payload missing")

// Decoder turns an envelope's data into a typed payload.
type Decoder func(data json.RawMessage) (any, error)

// Typed decodes into a fresh *T.
func Typed[T any]() Decoder {
	return func(data json.RawMessage) (any, error) {
		return decodeInto(new(T), data)
	}
}

func decodeInto(dst any, data json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errEmptyPayload
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return dst, nil
}

type version struct {
	eventType enums.OutboxEventType
	n         int
}

// DecoderRegistry holds decoders keyed by event type and envelope version.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[version]Decoder
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[version]Decoder)}
}

// Register replaces any decoder already set for eventType at v.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, v int, decoder Decoder) {
	r.mu.Lock()
	r.decoders[version{eventType, v}] = decoder
	r.mu.Unlock()
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, v int, data json.RawMessage) (any, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[version{eventType, v}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder for %s@v%d", eventType, v)
	}
	return decoder(data)
}
