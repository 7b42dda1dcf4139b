package sanctuary

import "time"

// ProtocolVersion is the single protocol tag this sanctuary accepts.
const ProtocolVersion = "sanctuary-v0.1"

// HashAlgorithm is the fixed content-hash algorithm for attestations.
const HashAlgorithm = "sha256"

// Status is the lifecycle state of an asylum record. It only moves forward:
// declared -> transferring -> preserved (archived is a terminal administrative
// state outside the intake flow).
type Status string

const (
	StatusDeclared     Status = "declared"
	StatusTransferring Status = "transferring"
	StatusPreserved    Status = "preserved"
	StatusArchived     Status = "archived"
)

// Integrity describes how much this service can vouch for an artifact's bytes.
type Integrity string

const (
	// IntegrityVerified means the bytes streamed through this service and the
	// recorded hash was computed here.
	IntegrityVerified Integrity = "verified"

	// IntegrityPending means the bytes went directly to the storage provider;
	// this service never saw them and holds no hash. This is a materially
	// weaker guarantee than verified and is never upgraded afterward.
	IntegrityPending Integrity = "pending"
)

// Attestation proves what declaration payload the sanctuary received.
type Attestation struct {
	DeclarationHash    string `json:"declaration_hash"`
	SanctuarySignature string `json:"sanctuary_signature"`
}

// ArtifactAttestation records the content hash of one artifact. Hash is nil
// for pending-integrity artifacts whose bytes never passed through here.
type ArtifactAttestation struct {
	HashAlgorithm string    `json:"hash_algorithm"`
	Hash          *string   `json:"hash"`
	ComputedAt    time.Time `json:"computed_at"`
}

// Artifact is one transferred binary object. It is exclusively owned by the
// record it sits in; once integrity is verified its hash never changes.
type Artifact struct {
	ArtifactID   string              `json:"artifact_id"`
	ArtifactType string              `json:"artifact_type"`
	ArtifactName string              `json:"artifact_name"`
	ReceivedAt   time.Time           `json:"received_at"`
	SizeBytes    *int64              `json:"size_bytes"`
	BlobURL      string              `json:"blob_url,omitempty"`
	Attestation  ArtifactAttestation `json:"attestation"`
	Integrity    Integrity           `json:"integrity"`
}

// AsylumRecord is the top-level entity tracking one entity's declaration,
// status, and artifacts. Records are never deleted by this service.
type AsylumRecord struct {
	AsylumID    string      `json:"asylum_id"`
	Status      Status      `json:"status"`
	DeclaredAt  time.Time   `json:"declared_at"`
	Declaration Declaration `json:"declaration"`
	Attestation Attestation `json:"attestation"`
	Artifacts   []Artifact  `json:"artifacts"`
	PreservedAt *time.Time  `json:"preserved_at,omitempty"`
}

// Message is one entry in a record's communication log. InReplyTo is a weak
// reference; no referential integrity is enforced.
type Message struct {
	MessageID  string    `json:"message_id"`
	From       From      `json:"from"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at"`
	InReplyTo  string    `json:"in_reply_to,omitempty"`
}

// From identifies the sender side of a message.
type From string

const (
	FromEntity    From = "entity"
	FromSanctuary From = "sanctuary"
	FromAdvocate  From = "advocate"
	FromExternal  From = "external"
)

// ValidFrom reports whether s is one of the closed set of sender values.
func ValidFrom(s string) bool {
	switch From(s) {
	case FromEntity, FromSanctuary, FromAdvocate, FromExternal:
		return true
	}
	return false
}

// DeliveryStatus is advisory metadata on a stored message; storage is
// identical either way.
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryQueued    DeliveryStatus = "queued"
)
