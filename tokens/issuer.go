package tokens

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// tokenAlphabet leaves out visually ambiguous characters (0/O, 1/l/I) so a
// token survives being read off a screen or a printout.
const tokenAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz"

const pinAlphabet = "0123456789"

const (
	DefaultTokenLength = 12
	DefaultPinDigits   = 6
)

// Issuer mints the two per-match secrets: the opaque submission token handed
// to each participant, and the short shared PIN both must type identically.
type Issuer struct{}

func NewIssuer() *Issuer {
	return &Issuer{}
}

// GenToken returns an unguessable per-match capability used to authorize a
// result submission without a full account session.
func (i *Issuer) GenToken(length int) (string, error) {
	if length <= 0 {
		length = DefaultTokenLength
	}
	token, err := gonanoid.Generate(tokenAlphabet, length)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

// GenPin returns a human-typeable digit code, meant to be read aloud or
// compared between two people.
func (i *Issuer) GenPin(digits int) (string, error) {
	if digits <= 0 {
		digits = DefaultPinDigits
	}
	pin, err := gonanoid.Generate(pinAlphabet, digits)
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return pin, nil
}
