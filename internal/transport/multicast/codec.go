package multicast

import (
	"encoding/base64"
	"fmt"
	"unicode/utf8"
)

// Encode turns text into the datagram bytes sent on the wire.
func Encode(text string) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(text)))
	base64.StdEncoding.Encode(out, []byte(text))
	return out
}

// Decode reverses Encode. Payloads that are not base64 or not UTF-8 are rejected.
func Decode(datagram []byte) (string, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(datagram)))
	n, err := base64.StdEncoding.Decode(raw, datagram)
	if err != nil {
		return "", fmt.Errorf("decode datagram: %w", err)
	}
	raw = raw[:n]
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("decode datagram: payload is not utf-8")
	}
	return string(raw), nil
}
