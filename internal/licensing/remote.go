package licensing

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	validateEndpoint = "/api/license/validate"
	remoteTimeout    = 30 * time.Second

	// Header carrying the license server's ed25519 signature over the
	// SHA-256 digest of the response body.
	signatureHeader = "X-License-Signature"
)

type RemoteChecker struct {
	client     *resty.Client
	licenseKey string
	publicKey  ed25519.PublicKey
}

// NewRemoteChecker builds the authoritative checker against the license
// server. When publicKeyDER is non-empty, response signatures are verified
// and unsigned responses are rejected.
func NewRemoteChecker(serverURL, licenseKey string, publicKeyDER []byte) (*RemoteChecker, error) {
	checker := &RemoteChecker{
		client:     resty.New().SetBaseURL(serverURL),
		licenseKey: licenseKey,
	}

	if len(publicKeyDER) > 0 {
		key, err := parseEd25519PublicKey(publicKeyDER)
		if err != nil {
			return nil, err
		}
		checker.publicKey = key
	}

	return checker, nil
}

type validateResponse struct {
	Success   bool         `json:"success"`
	Activated bool         `json:"activated"`
	License   *LicenseData `json:"license"`
	Message   string       `json:"message"`
}

func (checker *RemoteChecker) Check(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	res, err := checker.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"key": checker.licenseKey}).
		Post(validateEndpoint)

	if err != nil {
		slog.Error("unable to reach license server", "error", err)
		return Status{}, fmt.Errorf("%w: %v", ErrCheckUnavailable, err)
	}

	if !res.IsSuccess() {
		slog.Error("license server returned error", "status_code", res.StatusCode(), "body", res.String())
		return Status{}, fmt.Errorf("%w: license server returned status %d", ErrCheckUnavailable, res.StatusCode())
	}

	if checker.publicKey != nil {
		if err := checker.verifyResponseSignature(res); err != nil {
			slog.Error("license server response signature rejected", "error", err)
			return Status{}, fmt.Errorf("%w: %v", ErrInvalidLicense, err)
		}
	}

	var verified validateResponse
	if err := json.Unmarshal(res.Body(), &verified); err != nil {
		slog.Error("error parsing license server response", "error", err)
		return Status{}, fmt.Errorf("%w: malformed response", ErrCheckUnavailable)
	}

	return Status{
		Success:   verified.Success,
		Activated: verified.Activated,
		Data:      verified.License,
		Message:   verified.Message,
		Source:    SourceRemote,
	}, nil
}

// verifyResponseSignature checks that the response originated at the license
// server by verifying the detached signature over the body digest.
func (checker *RemoteChecker) verifyResponseSignature(res *resty.Response) error {
	header := res.Header().Get(signatureHeader)
	if header == "" {
		return fmt.Errorf("missing %s header", signatureHeader)
	}

	signature, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return fmt.Errorf("error decoding response signature: %w", err)
	}

	digest := sha256.Sum256(res.Body())
	if !ed25519.Verify(checker.publicKey, digest[:], signature) {
		return fmt.Errorf("signature verification failed")
	}

	return nil
}

func parseEd25519PublicKey(der []byte) (ed25519.PublicKey, error) {
	pubKey, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("error parsing DER encoded public key: %w", err)
	}

	ed25519PubKey, ok := pubKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not of type ed25519")
	}
	return ed25519PubKey, nil
}
