package licensing

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/gob"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"time"
)

// ActivationPublicKey is the vendor key activation files are signed against.
const ActivationPublicKey = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAwDtDoQaGHO8LcRK3tKZh
fJQhkgK6nc4KCWeRw57qXSyviPo5TTzo9wQp1gbR5iNXtMqvlBUAwTW1MPdD/lIe
VwuN9/3xVWTQ9y11pumMZKrjCRdkGrjATJICx3wkzJK9iMYSl7eEur1lBc2Np23Z
WQTNC+V7ynXnrhrEDfjCNQVwRucTcgEoRLmND/EzBT9YUI4Iu9Bgy1EeQXdpmCx+
PBxCaiAr0so7GjPGcDPGTYzPuYKGWAMXJzzH4uWZr5WbNIomMZ1G6GZ4858n6ob6
Tbsiy76DDIfEHWaBfmcp1jHSeZglOGkyUN0wbYMOEuZVLB6WiAnXMlFASNmn3Zzm
jwIDAQAB
-----END PUBLIC KEY-----
`

// ActivationPayload is the signed content of an offline activation file.
type ActivationPayload struct {
	Type        string
	Features    []string
	ActivatedAt time.Time
	Expiration  *time.Time // nil = never expires
}

type Activation struct {
	Payload   []byte
	Signature []byte
}

// ActivationVerifier validates an offline activation file against the vendor
// public key. It is the authoritative source for installs with no network
// access at all, and the local fallback for everything else.
type ActivationVerifier struct {
	publicKey *rsa.PublicKey
	payload   ActivationPayload
	signature string
}

func NewActivationVerifier(publicKeyPem []byte, activationStr string) (*ActivationVerifier, error) {
	publicKey, err := parseRsaPublicKey(publicKeyPem)
	if err != nil {
		return nil, fmt.Errorf("error parsing public key: %w", err)
	}

	payload, err := DecodeActivation(publicKey, activationStr)
	if err != nil {
		return nil, err
	}

	slog.Info("offline activation initialized", "type", payload.Type, "expiration", payload.Expiration)

	return &ActivationVerifier{
		publicKey: publicKey,
		payload:   payload,
		signature: activationSignature(activationStr),
	}, nil
}

// Status converts the activation payload into a license status. now is
// injected so the cache's clock governs expiry decisions.
func (v *ActivationVerifier) Status(now time.Time) Status {
	data := &LicenseData{
		Type:        v.payload.Type,
		Features:    v.payload.Features,
		ActivatedAt: v.payload.ActivatedAt,
		ExpiresAt:   v.payload.Expiration,
		Signature:   v.signature,
	}

	expired := data.Expired(now)
	status := Status{
		Success:   true,
		Activated: !expired,
		Data:      data,
		Source:    SourceLocalFallback,
	}
	if expired {
		status.Message = ErrExpiredLicense.Error()
	}
	return status
}

func DecodeActivation(publicKey *rsa.PublicKey, activationStr string) (ActivationPayload, error) {
	activationBytes, err := base64.StdEncoding.DecodeString(activationStr)
	if err != nil {
		return ActivationPayload{}, ErrInvalidLicense
	}

	var activation Activation
	if err := gob.NewDecoder(bytes.NewReader(activationBytes)).Decode(&activation); err != nil {
		return ActivationPayload{}, ErrInvalidLicense
	}

	if err := verifySignature(publicKey, activation.Payload, activation.Signature); err != nil {
		return ActivationPayload{}, ErrInvalidLicense
	}

	var payload ActivationPayload
	if err := json.Unmarshal(activation.Payload, &payload); err != nil {
		return ActivationPayload{}, ErrInvalidLicense
	}

	return payload, nil
}

func CreateActivation(privateKeyPem []byte, payload ActivationPayload) (string, error) {
	privateKey, err := parseRsaPrivateKey(privateKeyPem)
	if err != nil {
		return "", fmt.Errorf("error parsing private key: %w", err)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshaling payload: %w", err)
	}

	signature, err := signMessage(privateKey, payloadBytes)
	if err != nil {
		return "", fmt.Errorf("error signing payload: %w", err)
	}

	activation := Activation{
		Payload:   payloadBytes,
		Signature: signature,
	}

	activationBytes := bytes.Buffer{}
	if err := gob.NewEncoder(&activationBytes).Encode(activation); err != nil {
		return "", fmt.Errorf("error encoding activation: %w", err)
	}

	return base64.StdEncoding.EncodeToString(activationBytes.Bytes()), nil
}

func GenerateKeys() ([]byte, []byte, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("error generating private key: %w", err)
	}

	publicKey := &privateKey.PublicKey

	privateKeyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("error marshaling private key: %w", err)
	}

	privateKeyPem, err := encodeToPem("PRIVATE KEY", privateKeyBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding private key to PEM: %w", err)
	}

	publicKeyBytes, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("error marshaling public key: %w", err)
	}
	publicKeyPem, err := encodeToPem("PUBLIC KEY", publicKeyBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding public key to PEM: %w", err)
	}

	return privateKeyPem, publicKeyPem, nil
}

// activationSignature derives the short signature string surfaced in
// LicenseData from the encoded activation.
func activationSignature(activationStr string) string {
	if len(activationStr) > 24 {
		return activationStr[len(activationStr)-24:]
	}
	return activationStr
}

func encodeToPem(blockType string, bytes []byte) ([]byte, error) {
	pemBlock := &pem.Block{
		Type:  blockType,
		Bytes: bytes,
	}

	pemBytes := pem.EncodeToMemory(pemBlock)
	if pemBytes == nil {
		return nil, fmt.Errorf("failed to encode PEM block")
	}

	return pemBytes, nil
}

func parseRsaPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	publicKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing public key: %w", err)
	}

	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not of type RSA")
	}

	return rsaPublicKey, nil
}

func parseRsaPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	privateKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing private key: %w", err)
	}

	rsaPrivateKey, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not of type RSA")
	}

	return rsaPrivateKey, nil
}

func signMessage(privateKey *rsa.PrivateKey, message []byte) ([]byte, error) {
	hash := crypto.SHA256.New()
	hash.Write(message)

	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, hash.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("error signing message: %w", err)
	}

	return signature, nil
}

func verifySignature(publicKey *rsa.PublicKey, message []byte, signature []byte) error {
	hash := crypto.SHA256.New()
	hash.Write(message)

	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, hash.Sum(nil), signature); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}
