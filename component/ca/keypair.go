package ca

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"time"

	"github.com/ngx-proxy/forward-engine/common/errs"
)

// LoadTLSKeyPair loads a certificate/key pair for the TLS listener side.
// Both arguments may carry inline PEM or filesystem paths; inline PEM is
// tried first. Empty inputs yield a fresh self-signed pair.
func LoadTLSKeyPair(certificate, privateKey string) (tls.Certificate, error) {
	if certificate == "" && privateKey == "" {
		return NewRandomTLSKeyPair("localhost")
	}
	cert, plainTextErr := tls.X509KeyPair([]byte(certificate), []byte(privateKey))
	if plainTextErr == nil {
		return cert, nil
	}
	cert, loadErr := tls.LoadX509KeyPair(certificate, privateKey)
	if loadErr != nil {
		return tls.Certificate{}, errs.Security("parse certificate failed, maybe format error: %s, or path error: %s", plainTextErr, loadErr)
	}
	return cert, nil
}

// NewRandomTLSKeyPair generates a self-signed ECDSA P-256 certificate
// valid for the given name. Clock skew on the client side is tolerated
// by backdating NotBefore.
func NewRandomTLSKeyPair(commonName string) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, err
	}
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		DNSNames:     []string{commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, key.Public(), key)
	if err != nil {
		return tls.Certificate{}, err
	}
	privBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return tls.Certificate{}, err
	}
	privateKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})
	certificate := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	return tls.X509KeyPair(certificate, privateKey)
}
