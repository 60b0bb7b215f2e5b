package jwt

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenLength is returned when a token is outside the accepted length range.
	ErrTokenLength = errors.New("token length out of range")
	// ErrTokenSegments is returned when a token does not have exactly three segments.
	ErrTokenSegments = errors.New("token must have three segments")
	// ErrTokenEncoding is returned when a segment is not unpadded base64url.
	ErrTokenEncoding = errors.New("token segment is not base64url")
)

// ShapeRule bounds the accepted token length. Both bounds are exclusive.
type ShapeRule struct {
	MinLength int
	MaxLength int
}

// CheckShape verifies that token looks like a compact JWS: three non-empty
// dot-separated base64url segments and MinLength < len(token) < MaxLength.
// It does not verify the signature.
func CheckShape(token string, rule ShapeRule) error {
	if len(token) <= rule.MinLength || len(token) >= rule.MaxLength {
		return ErrTokenLength
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrTokenSegments
	}

	parser := jwt.NewParser()
	for _, part := range parts {
		if part == "" {
			return ErrTokenEncoding
		}
		if _, err := parser.DecodeSegment(part); err != nil {
			return ErrTokenEncoding
		}
	}

	return nil
}
