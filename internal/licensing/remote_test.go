package licensing_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"license-backend/internal/licensing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validateBody = `{"success": true, "activated": true, "license": {"type": "premium", "features": ["sales"]}, "message": "ok"}`

func TestRemoteChecker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/license/validate", r.URL.Path)
		w.Write([]byte(validateBody))
	}))
	defer server.Close()

	checker, err := licensing.NewRemoteChecker(server.URL, "test-key", nil)
	require.NoError(t, err)

	status, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Success)
	assert.True(t, status.Activated)
	assert.Equal(t, licensing.SourceRemote, status.Source)
	require.NotNil(t, status.Data)
	assert.Equal(t, "premium", status.Data.Type)
}

func TestRemoteCheckerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	checker, err := licensing.NewRemoteChecker(server.URL, "test-key", nil)
	require.NoError(t, err)

	_, err = checker.Check(context.Background())
	assert.ErrorIs(t, err, licensing.ErrCheckUnavailable)
}

func TestRemoteCheckerServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	checker, err := licensing.NewRemoteChecker(server.URL, "test-key", nil)
	require.NoError(t, err)

	_, err = checker.Check(context.Background())
	assert.ErrorIs(t, err, licensing.ErrCheckUnavailable)
}

func TestRemoteCheckerMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	checker, err := licensing.NewRemoteChecker(server.URL, "test-key", nil)
	require.NoError(t, err)

	_, err = checker.Check(context.Background())
	assert.ErrorIs(t, err, licensing.ErrCheckUnavailable)
}

func TestRemoteCheckerSignatures(t *testing.T) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	publicKeyDER, err := x509.MarshalPKIXPublicKey(publicKey)
	require.NoError(t, err)

	sign := func(body []byte) string {
		digest := sha256.Sum256(body)
		return base64.StdEncoding.EncodeToString(ed25519.Sign(privateKey, digest[:]))
	}

	t.Run("valid signature accepted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-License-Signature", sign([]byte(validateBody)))
			w.Write([]byte(validateBody))
		}))
		defer server.Close()

		checker, err := licensing.NewRemoteChecker(server.URL, "test-key", publicKeyDER)
		require.NoError(t, err)

		status, err := checker.Check(context.Background())
		require.NoError(t, err)
		assert.True(t, status.Activated)
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-License-Signature", sign([]byte(validateBody)))
			w.Write([]byte(`{"success": true, "activated": true, "license": {"type": "lifetime"}}`))
		}))
		defer server.Close()

		checker, err := licensing.NewRemoteChecker(server.URL, "test-key", publicKeyDER)
		require.NoError(t, err)

		_, err = checker.Check(context.Background())
		assert.ErrorIs(t, err, licensing.ErrInvalidLicense)
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(validateBody))
		}))
		defer server.Close()

		checker, err := licensing.NewRemoteChecker(server.URL, "test-key", publicKeyDER)
		require.NoError(t, err)

		_, err = checker.Check(context.Background())
		assert.ErrorIs(t, err, licensing.ErrInvalidLicense)
	})

	t.Run("garbage public key rejected", func(t *testing.T) {
		_, err := licensing.NewRemoteChecker("http://localhost", "test-key", []byte("not a key"))
		assert.Error(t, err)
	})
}
