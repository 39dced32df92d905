package paywall

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// TokenPrefix marks access tokens minted by the Issuer
	TokenPrefix = "tok_"
	// PaymentIDPrefix marks correlation ids carried in payment descriptors
	PaymentIDPrefix = "api_"

	tokenEntropyBytes = 32
)

// GenerateToken mints an unguessable access token
func GenerateToken() (AccessToken, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return AccessToken(TokenPrefix + base64.RawURLEncoding.EncodeToString(buf)), nil
}

// NewPaymentID returns a fresh time-ordered correlation id. It carries no authority.
func NewPaymentID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return PaymentIDPrefix + id.String()
}

// ParseCredential extracts the bare token from an Authorization header value.
// Any "<scheme> <value>" form yields the trimmed value, whatever the scheme;
// a value without a scheme is returned trimmed. A lone "Bearer" and absent
// input yield "".
func ParseCredential(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if _, rest, found := strings.Cut(header, " "); found {
		return strings.TrimSpace(rest)
	}
	if strings.EqualFold(header, "Bearer") {
		return ""
	}
	return header
}
