package clock

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenBytes is the entropy behind invitation tokens. Encoded with unpadded
// base64url it yields 43 characters.
const TokenBytes = 32

// Clock supplies time, row ids and secret tokens to the workflow services.
type Clock interface {
	Now() time.Time
	NewID() uuid.UUID
	NewToken() (string, error)
}

// System is the production Clock.
type System struct{}

// New returns the production Clock.
func New() System {
	return System{}
}

func (System) Now() time.Time {
	return time.Now().UTC()
}

func (System) NewID() uuid.UUID {
	return uuid.New()
}

func (System) NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fixed is a Clock frozen at At. Ids and tokens are still random.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time {
	return f.At
}

func (Fixed) NewID() uuid.UUID {
	return uuid.New()
}

func (Fixed) NewToken() (string, error) {
	return System{}.NewToken()
}
