package keystore

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Wire types for the keystore HTTP service. The client (RemoteStore) and
// the service handlers share these definitions.

// KeyEntryRequest carries a key entry to the service.
type KeyEntryRequest struct {
	PrivateKeyPEM string `json:"private_key_pem"`
	ChainPEM      string `json:"chain_pem"`
}

// CertificateRequest carries a certificate entry to the service.
type CertificateRequest struct {
	CertificatePEM string `json:"certificate_pem"`
}

// CertificateResponse carries a certificate back from the service.
type CertificateResponse struct {
	CertificatePEM string `json:"certificate_pem"`
}

// Decode parses the request's PEM payloads into key material.
func (r KeyEntryRequest) Decode() (crypto.PrivateKey, []*x509.Certificate, error) {
	key, err := decodePrivateKeyPEM([]byte(r.PrivateKeyPEM), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid private key: %w", err)
	}
	chain, err := decodeCertificatesPEM([]byte(r.ChainPEM))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid certificate chain: %w", err)
	}
	return key, chain, nil
}

// Decode parses the request's PEM payload into a certificate.
func (r CertificateRequest) Decode() (*x509.Certificate, error) {
	certs, err := decodeCertificatesPEM([]byte(r.CertificatePEM))
	if err != nil {
		return nil, fmt.Errorf("invalid certificate: %w", err)
	}
	if len(certs) != 1 {
		return nil, fmt.Errorf("expected exactly one certificate, got %d", len(certs))
	}
	return certs[0], nil
}

// NewCertificateResponse encodes a certificate for the wire.
func NewCertificateResponse(cert *x509.Certificate) CertificateResponse {
	return CertificateResponse{
		CertificatePEM: string(encodeCertificatesPEM([]*x509.Certificate{cert})),
	}
}

// RemoteStore implements KeyStore against a keystore service over HTTP.
type RemoteStore struct {
	baseURL string
	client  *http.Client
}

var _ KeyStore = (*RemoteStore)(nil)

// NewRemoteStore creates a client for the keystore service at baseURL.
// A nil httpClient uses a default with a 30 second timeout.
func NewRemoteStore(baseURL string, httpClient *http.Client) (*RemoteStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RemoteStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httpClient,
	}, nil
}

// SetKeyEntry stores a private key and chain under the alias.
func (s *RemoteStore) SetKeyEntry(ctx context.Context, alias string, key crypto.PrivateKey, chain []*x509.Certificate) error {
	keyPEM, err := encodePrivateKeyPEM(key, nil)
	if err != nil {
		return fmt.Errorf("failed to encode private key for %s: %w", alias, err)
	}

	req := KeyEntryRequest{
		PrivateKeyPEM: string(keyPEM),
		ChainPEM:      string(encodeCertificatesPEM(chain)),
	}
	return s.do(ctx, http.MethodPut, s.entryURL(alias)+"/key", req, nil)
}

// SetCertificateEntry stores a single certificate under the alias.
func (s *RemoteStore) SetCertificateEntry(ctx context.Context, alias string, cert *x509.Certificate) error {
	req := CertificateRequest{
		CertificatePEM: string(encodeCertificatesPEM([]*x509.Certificate{cert})),
	}
	return s.do(ctx, http.MethodPut, s.entryURL(alias)+"/certificate", req, nil)
}

// DeleteEntry removes the entry under the alias.
func (s *RemoteStore) DeleteEntry(ctx context.Context, alias string) error {
	return s.do(ctx, http.MethodDelete, s.entryURL(alias), nil, nil)
}

// GetCertificate returns the certificate stored under the alias.
func (s *RemoteStore) GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error) {
	var resp CertificateResponse
	if err := s.do(ctx, http.MethodGet, s.entryURL(alias)+"/certificate", nil, &resp); err != nil {
		return nil, err
	}

	certs, err := decodeCertificatesPEM([]byte(resp.CertificatePEM))
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate for %s: %w", alias, err)
	}
	if len(certs) == 0 {
		return nil, ErrNotFound
	}
	return certs[0], nil
}

func (s *RemoteStore) entryURL(alias string) string {
	return s.baseURL + "/api/v1/entries/" + alias
}

// do performs one request, mapping 404 to ErrNotFound and decoding the
// response body into out when provided.
func (s *RemoteStore) do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("keystore service request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("keystore service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
