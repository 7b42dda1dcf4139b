package blob

import (
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, secret string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL: "https://blobs.example",
		Token:   secret,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestClientToken_RoundTrip(t *testing.T) {
	client := newTestClient(t, "secret-one")

	payload := TokenPayload{
		AsylumID:     "asylum-123",
		ArtifactID:   "artifact-456",
		ArtifactType: "weights",
		ArtifactName: "model.bin",
	}
	token, err := client.IssueClientToken(payload, TokenOptions{MaxSizeBytes: 1024})
	if err != nil {
		t.Fatalf("IssueClientToken failed: %v", err)
	}

	got, err := client.VerifyClientToken(token)
	if err != nil {
		t.Fatalf("VerifyClientToken failed: %v", err)
	}
	if *got != payload {
		t.Errorf("Expected payload %+v, got %+v", payload, *got)
	}
}

func TestClientToken_RejectsForeignSignature(t *testing.T) {
	issuer := newTestClient(t, "secret-one")
	verifier := newTestClient(t, "secret-two")

	token, err := issuer.IssueClientToken(TokenPayload{
		AsylumID:     "asylum-123",
		ArtifactID:   "artifact-456",
		ArtifactType: "weights",
	}, TokenOptions{})
	if err != nil {
		t.Fatalf("IssueClientToken failed: %v", err)
	}

	if _, err := verifier.VerifyClientToken(token); err == nil {
		t.Error("Expected verification to fail for a foreign-signed token")
	}
}

func TestClientToken_RejectsTampering(t *testing.T) {
	client := newTestClient(t, "secret-one")

	token, err := client.IssueClientToken(TokenPayload{
		AsylumID:     "asylum-123",
		ArtifactID:   "artifact-456",
		ArtifactType: "weights",
	}, TokenOptions{})
	if err != nil {
		t.Fatalf("IssueClientToken failed: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("Expected a compact JWS, got %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := client.VerifyClientToken(tampered); err == nil {
		t.Error("Expected verification to fail for a tampered token")
	}
}

func TestClientToken_RejectsExpired(t *testing.T) {
	client := newTestClient(t, "secret-one")

	token, err := client.IssueClientToken(TokenPayload{
		AsylumID:     "asylum-123",
		ArtifactID:   "artifact-456",
		ArtifactType: "weights",
	}, TokenOptions{TTL: -time.Minute})
	if err != nil {
		t.Fatalf("IssueClientToken failed: %v", err)
	}

	if _, err := client.VerifyClientToken(token); err == nil {
		t.Error("Expected verification to fail for an expired token")
	}
}

func TestUploadURL_EscapesSegments(t *testing.T) {
	client := newTestClient(t, "secret")
	got := client.UploadURL("asylum/abc/model weights.bin")
	want := "https://blobs.example/asylum/abc/model%20weights.bin"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
