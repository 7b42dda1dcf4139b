package blob

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPayload is the binding carried opaquely through the provider's
// client-upload token. The provider echoes it back verbatim in the
// upload-completed callback; it is the only link between the issued upload
// slot and the asylum record the artifact belongs to.
type TokenPayload struct {
	AsylumID     string `json:"asylum_id"`
	ArtifactID   string `json:"artifact_id"`
	ArtifactType string `json:"artifact_type"`
	ArtifactName string `json:"artifact_name,omitempty"`
}

// TokenOptions constrain what the issued credential permits.
type TokenOptions struct {
	MaxSizeBytes        int64
	AllowedContentTypes []string
	TTL                 time.Duration
}

// CompletedBlob is the blob reference delivered by the provider's
// upload-completed callback.
type CompletedBlob struct {
	URL      string `json:"url"`
	Pathname string `json:"pathname"`
}

type clientTokenClaims struct {
	jwt.RegisteredClaims
	Payload             TokenPayload `json:"payload"`
	MaxSizeBytes        int64        `json:"max_size_bytes,omitempty"`
	AllowedContentTypes []string     `json:"allowed_content_types,omitempty"`
}

// IssueClientToken signs a compact token binding payload to one upload slot.
func (c *Client) IssueClientToken(payload TokenPayload, opts TokenOptions) (string, error) {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	now := time.Now().UTC()

	claims := clientTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.ArtifactID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Payload:             payload,
		MaxSizeBytes:        opts.MaxSizeBytes,
		AllowedContentTypes: opts.AllowedContentTypes,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign client token: %w", err)
	}
	return token, nil
}

// VerifyClientToken validates a token from the completion callback and
// returns the binding it carries. Expired, malformed, or foreign-signed
// tokens are rejected.
func (c *Client) VerifyClientToken(token string) (*TokenPayload, error) {
	var claims clientTokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid client token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid client token")
	}
	if claims.Payload.AsylumID == "" || claims.Payload.ArtifactID == "" {
		return nil, fmt.Errorf("client token missing binding")
	}
	return &claims.Payload, nil
}
