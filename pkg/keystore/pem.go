package keystore

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// encodeCertificatesPEM encodes certificates in order, each as a separate
// PEM block.
func encodeCertificatesPEM(certs []*x509.Certificate) []byte {
	var result []byte
	for _, cert := range certs {
		block := &pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		}
		result = append(result, pem.EncodeToMemory(block)...)
	}
	return result
}

// decodeCertificatesPEM decodes all CERTIFICATE blocks from PEM data.
func decodeCertificatesPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate

	for {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}

		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			certs = append(certs, cert)
		}

		data = rest
	}

	return certs, nil
}

// encodePrivateKeyPEM encodes a private key as a PKCS#8 PEM block,
// encrypted when a passphrase is provided.
func encodePrivateKeyPEM(key crypto.PrivateKey, passphrase []byte) ([]byte, error) {
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	block := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: keyBytes,
	}

	if len(passphrase) > 0 {
		//nolint:staticcheck // Deprecated but needed
		block, err = x509.EncryptPEMBlock(rand.Reader, block.Type, block.Bytes, passphrase, x509.PEMCipherAES256)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt key: %w", err)
		}
	}

	return pem.EncodeToMemory(block), nil
}

// decodePrivateKeyPEM decodes a PKCS#8 private key from PEM data,
// decrypting when the block is encrypted.
func decodePrivateKeyPEM(data []byte, passphrase []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	keyBytes := block.Bytes
	//nolint:staticcheck // Deprecated but needed
	if x509.IsEncryptedPEMBlock(block) {
		if len(passphrase) == 0 {
			return nil, fmt.Errorf("key is encrypted but no passphrase provided")
		}
		var err error
		//nolint:staticcheck // Deprecated but needed
		keyBytes, err = x509.DecryptPEMBlock(block, passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt key: %w", err)
		}
	}

	key, err := x509.ParsePKCS8PrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// ParseCertificatesPEM parses all CERTIFICATE blocks from PEM data.
func ParseCertificatesPEM(data []byte) ([]*x509.Certificate, error) {
	return decodeCertificatesPEM(data)
}

// ParsePrivateKeyPEM parses a PKCS#8 private key from PEM data, decrypting
// with passphrase when the block is encrypted.
func ParsePrivateKeyPEM(data, passphrase []byte) (crypto.PrivateKey, error) {
	return decodePrivateKeyPEM(data, passphrase)
}
