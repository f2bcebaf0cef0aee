package auth

import (
	"encoding/base64"
	"regexp"
	"strings"
)

// Format is the structural family a trust token belongs to.
type Format string

const (
	FormatJWT    Format = "jwt"
	FormatUUID   Format = "uuid"
	FormatBase64 Format = "base64"
	FormatCustom Format = "custom"
	FormatNone   Format = "none"
)

// Reason explains a format validation outcome.
type Reason string

const (
	ReasonOK                   Reason = "ok"
	ReasonMissingOrInvalidType Reason = "missing_or_invalid_type"
	ReasonTooShort             Reason = "too_short"
	ReasonTooLong              Reason = "too_long"
	ReasonInvalidCharacters    Reason = "invalid_characters"
	ReasonInvalidJWTFormat     Reason = "invalid_jwt_format"
	ReasonInvalidBase64        Reason = "invalid_base64"
)

// Token length bounds. The upper bound keeps oversized input away from
// hashing and logging.
const (
	MinTokenLength = 8
	MaxTokenLength = 2048
)

var (
	tokenCharset   = regexp.MustCompile(`^[A-Za-z0-9._\-+/=]+$`)
	uuidPattern    = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	base64Alphabet = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
)

// Validation is the structural verdict on a token. It says nothing about
// whether the token is trusted; that is the backend's call.
type Validation struct {
	Valid  bool   `json:"valid"`
	Format Format `json:"format"`
	Reason Reason `json:"reason"`
}

// ValidateFormat checks a raw token. The empty string is treated as absent.
// It is pure and cheap enough to run on every request.
func ValidateFormat(token string) Validation {
	if token == "" {
		return invalid(FormatNone, ReasonMissingOrInvalidType)
	}
	if len(token) < MinTokenLength {
		return invalid(FormatNone, ReasonTooShort)
	}
	if len(token) > MaxTokenLength {
		return invalid(FormatNone, ReasonTooLong)
	}
	if !tokenCharset.MatchString(token) {
		return invalid(FormatNone, ReasonInvalidCharacters)
	}

	format := DetectFormat(token)
	switch format {
	case FormatJWT:
		if strings.Count(token, ".") != 2 {
			return invalid(format, ReasonInvalidJWTFormat)
		}
	case FormatBase64:
		if !decodesAsBase64(token) {
			return invalid(format, ReasonInvalidBase64)
		}
	}

	return Validation{Valid: true, Format: format, Reason: ReasonOK}
}

// DetectFormat classifies a token without validating it.
func DetectFormat(token string) Format {
	switch {
	case token == "":
		return FormatNone
	case strings.Contains(token, "."):
		return FormatJWT
	case uuidPattern.MatchString(token):
		return FormatUUID
	case len(token) > 20 && base64Alphabet.MatchString(token):
		return FormatBase64
	default:
		return FormatCustom
	}
}

func invalid(format Format, reason Reason) Validation {
	return Validation{Valid: false, Format: format, Reason: reason}
}

// decodesAsBase64 accepts standard and URL-safe alphabets. Padding, when
// present, must bring the length to a multiple of four.
func decodesAsBase64(token string) bool {
	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(token)
	enc := base64.RawStdEncoding
	if strings.HasSuffix(normalized, "=") {
		if len(normalized)%4 != 0 {
			return false
		}
		enc = base64.StdEncoding
	}
	_, err := enc.DecodeString(normalized)
	return err == nil
}
