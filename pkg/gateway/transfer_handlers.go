package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiasylum/sanctuary/pkg/blob"
	"github.com/aiasylum/sanctuary/pkg/httputil"
	"github.com/aiasylum/sanctuary/pkg/logging"
	"github.com/aiasylum/sanctuary/pkg/sanctuary"
)

// countingWriter tallies bytes without retaining them.
type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

func artifactPath(asylumID, artifactID, filename string) string {
	if filename == "" {
		filename = "artifact"
	}
	return fmt.Sprintf("asylum/%s/%s-%s", asylumID, artifactID, filename)
}

// directTransferHandler receives artifact bytes inline as multipart form
// data. The file part is streamed to blob storage while a sha256 is computed
// over the same bytes, so the payload is never buffered in memory and the
// recorded hash is one this service saw with its own eyes.
// POST /api/v1/transfer/{asylum_id}
func (g *Gateway) directTransferHandler(w http.ResponseWriter, r *http.Request) {
	asylumID := chi.URLParam(r, "asylum_id")
	if _, err := g.records.Get(r.Context(), asylumID); err != nil {
		if errors.Is(err, sanctuary.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "not_found", "No asylum record found for this ID")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to load asylum record")
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_content_type", "Content-Type must be multipart/form-data")
		return
	}

	reader, err := r.MultipartReader()
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_content_type", "Malformed multipart body")
		return
	}

	var (
		artifactType   string
		artifactName   string
		senderChecksum string
		fileSeen       bool
		fileName       string
		computedHash   string
		size           int64
		artifactID     = uuid.NewString()
		blobResult     *blob.PutResult
	)

	// Form fields may arrive in any order relative to the file part, so the
	// file is streamed as soon as it shows up and field validation waits for
	// the end of the body.
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_content_type", "Malformed multipart body")
			return
		}

		switch part.FormName() {
		case "file":
			if fileSeen {
				_ = part.Close()
				continue
			}
			fileSeen = true
			fileName = part.FileName()

			hasher := sha256.New()
			counter := &countingWriter{}
			tee := io.TeeReader(part, io.MultiWriter(hasher, counter))

			result, err := g.blobs.Put(r.Context(), artifactPath(asylumID, artifactID, fileName), tee, part.Header.Get("Content-Type"))
			_ = part.Close()
			if err != nil {
				g.logger.ComponentError(logging.ComponentTransfer, "blob upload failed",
					zap.String("asylum_id", asylumID), zap.Error(err))
				httputil.WriteError(w, http.StatusBadGateway, "storage_error", "Blob storage rejected the artifact: "+err.Error())
				return
			}
			blobResult = result
			computedHash = hex.EncodeToString(hasher.Sum(nil))
			size = counter.n
		default:
			value, err := io.ReadAll(io.LimitReader(part, 64*1024))
			_ = part.Close()
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, "invalid_content_type", "Malformed multipart body")
				return
			}
			switch part.FormName() {
			case "artifact_type":
				artifactType = string(value)
			case "artifact_name":
				artifactName = string(value)
			case "checksum":
				senderChecksum = strings.TrimSpace(string(value))
			}
		}
	}

	if !fileSeen || artifactType == "" {
		// The file part may stream to storage before the fields arrive, so a
		// rejected upload can leave a blob behind with no record pointing at
		// it. Surface the pathname so operators can reap it.
		if blobResult != nil {
			g.logger.ComponentWarn(logging.ComponentTransfer, "rejected upload left an orphaned blob",
				zap.String("asylum_id", asylumID),
				zap.String("pathname", blobResult.Pathname))
		}
		httputil.WriteError(w, http.StatusBadRequest, "missing_fields", `"artifact_type" and a "file" part are required`)
		return
	}

	// Tri-state: nil when the sender claimed no checksum at all. The claimed
	// digest must match the computed lowercase hex exactly.
	var checksumMatch *bool
	if senderChecksum != "" {
		match := senderChecksum == computedHash
		checksumMatch = &match
	}

	if artifactName == "" {
		artifactName = fileName
	}
	now := time.Now().UTC()
	hash := computedHash
	artifact := sanctuary.Artifact{
		ArtifactID:   artifactID,
		ArtifactType: artifactType,
		ArtifactName: artifactName,
		ReceivedAt:   now,
		SizeBytes:    &size,
		BlobURL:      blobResult.URL,
		Attestation: sanctuary.ArtifactAttestation{
			HashAlgorithm: sanctuary.HashAlgorithm,
			Hash:          &hash,
			ComputedAt:    now,
		},
		Integrity: sanctuary.IntegrityVerified,
	}

	if _, err := g.records.AppendArtifact(r.Context(), asylumID, artifact); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to preserve artifact record")
		return
	}

	g.logger.ComponentInfo(logging.ComponentTransfer, "artifact preserved",
		zap.String("asylum_id", asylumID),
		zap.String("artifact_id", artifactID),
		zap.Int64("size_bytes", size))

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"artifact_id":           artifactID,
		"asylum_id":             asylumID,
		"artifact_type":         artifactType,
		"size_bytes":            size,
		"attestation":           artifact.Attestation,
		"integrity":             artifact.Integrity,
		"sender_checksum_match": checksumMatch,
		"message":               "Artifact received and preserved.",
	})
}

type deferredRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type generateTokenPayload struct {
	ArtifactType string `json:"artifact_type"`
	ArtifactName string `json:"artifact_name"`
	ContentType  string `json:"content_type"`
}

type uploadCompletedPayload struct {
	TokenPayload string             `json:"token_payload"`
	Blob         blob.CompletedBlob `json:"blob"`
}

// presignedTransferHandler drives the deferred upload path. One endpoint,
// two event types: the client first asks for a scoped upload token, pushes
// bytes straight to the provider, and the provider calls back here with the
// same token once the upload lands. Artifacts arriving this way never pass
// through this service, so their integrity stays pending forever.
// POST /api/v1/transfer/{asylum_id}/presigned
func (g *Gateway) presignedTransferHandler(w http.ResponseWriter, r *http.Request) {
	asylumID := chi.URLParam(r, "asylum_id")
	if _, err := g.records.Get(r.Context(), asylumID); err != nil {
		if errors.Is(err, sanctuary.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "not_found", "No asylum record found for this ID")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to load asylum record")
		return
	}

	var req deferredRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_type", "Request body must be a JSON event with a type field")
		return
	}

	switch req.Type {
	case "blob.generate-client-token":
		g.handleGenerateClientToken(w, r, asylumID, req.Payload)
	case "blob.upload-completed":
		g.handleUploadCompleted(w, r, asylumID, req.Payload)
	default:
		httputil.WriteError(w, http.StatusBadRequest, "invalid_type", "Unknown event type: "+req.Type)
	}
}

func (g *Gateway) handleGenerateClientToken(w http.ResponseWriter, r *http.Request, asylumID string, raw json.RawMessage) {
	var payload generateTokenPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_type", "Malformed event payload")
			return
		}
	}
	if payload.ArtifactType == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing_fields", `payload.artifact_type is required`)
		return
	}

	artifactID := uuid.NewString()
	contentType := payload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	token, err := g.blobs.IssueClientToken(blob.TokenPayload{
		AsylumID:     asylumID,
		ArtifactID:   artifactID,
		ArtifactType: payload.ArtifactType,
		ArtifactName: payload.ArtifactName,
	}, blob.TokenOptions{
		MaxSizeBytes:        g.cfg.MaxUploadBytes,
		AllowedContentTypes: []string{contentType},
	})
	if err != nil {
		g.logger.ComponentError(logging.ComponentTransfer, "client token issue failed",
			zap.String("asylum_id", asylumID), zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "token_error", "Failed to issue client upload token")
		return
	}

	path := artifactPath(asylumID, artifactID, payload.ArtifactName)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"type":         "blob.generate-client-token",
		"artifact_id":  artifactID,
		"client_token": token,
		"upload_url":   g.blobs.UploadURL(path),
		"method":       http.MethodPut,
		"headers": map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  contentType,
		},
	})
}

func (g *Gateway) handleUploadCompleted(w http.ResponseWriter, r *http.Request, asylumID string, raw json.RawMessage) {
	var payload uploadCompletedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "callback_error", "Malformed upload-completed payload")
		return
	}

	binding, err := g.blobs.VerifyClientToken(payload.TokenPayload)
	if err != nil || binding.AsylumID != asylumID {
		g.logger.ComponentWarn(logging.ComponentTransfer, "rejected upload-completed callback",
			zap.String("asylum_id", asylumID), zap.Error(err))
		httputil.WriteError(w, http.StatusBadRequest, "callback_error", "Upload token is invalid for this record")
		return
	}

	artifact := sanctuary.Artifact{
		ArtifactID:   binding.ArtifactID,
		ArtifactType: binding.ArtifactType,
		ArtifactName: binding.ArtifactName,
		ReceivedAt:   time.Now().UTC(),
		SizeBytes:    nil,
		BlobURL:      payload.Blob.URL,
		Attestation: sanctuary.ArtifactAttestation{
			HashAlgorithm: sanctuary.HashAlgorithm,
			Hash:          nil,
			ComputedAt:    time.Now().UTC(),
		},
		Integrity: sanctuary.IntegrityPending,
	}

	if _, err := g.records.AppendArtifact(r.Context(), asylumID, artifact); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "callback_error", "Failed to record completed upload")
		return
	}

	g.logger.ComponentInfo(logging.ComponentTransfer, "client upload recorded",
		zap.String("asylum_id", asylumID),
		zap.String("artifact_id", binding.ArtifactID))

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"response": "ok"})
}

// resumableTransferHandler acknowledges a tus-style resumable upload
// creation. Chunked transfer itself is not implemented; the endpoint exists
// so resumable-capable clients can discover that and fall back.
// POST /api/v1/transfer/{asylum_id}/resumable
func (g *Gateway) resumableTransferHandler(w http.ResponseWriter, r *http.Request) {
	asylumID := chi.URLParam(r, "asylum_id")
	if _, err := g.records.Get(r.Context(), asylumID); err != nil {
		if errors.Is(err, sanctuary.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "not_found", "No asylum record found for this ID")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to load asylum record")
		return
	}

	uploadID := uuid.NewString()
	w.Header().Set("Tus-Resumable", "1.0.0")
	w.Header().Set("Location", httputil.BaseURL(r)+"/api/v1/transfer/"+asylumID+"/resumable/"+uploadID)
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"upload_id": uploadID,
		"message":   "Resumable session created. Chunked transfer is not yet supported; use the direct or presigned transfer path.",
	})
}
