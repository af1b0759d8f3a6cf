package certificates

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

func selfSignedCert(t *testing.T) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "self-signed"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:         true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert
}

func TestVerifyPeerCertificateAcceptsSelfSignedSubjectEqualsIssuer(t *testing.T) {
	cert := selfSignedCert(t)
	pool := x509.NewCertPool() // deliberately empty: chain build will fail

	cfg := &Config{}
	verify := cfg.verifyPeerCertificate(pool)

	if err := verify([][]byte{cert.Raw}, nil); err != nil {
		t.Fatalf("expected self-signed subject==issuer cert to be accepted, got: %v", err)
	}
}

func TestVerifyPeerCertificateValidationHookOverridesPolicy(t *testing.T) {
	cert := selfSignedCert(t)
	pool := x509.NewCertPool()

	cfg := &Config{}
	cfg.RegisterValidation(func(chain []*x509.Certificate, verified [][]*x509.Certificate) ValidationDecision {
		return Reject
	})
	verify := cfg.verifyPeerCertificate(pool)

	if err := verify([][]byte{cert.Raw}, nil); err == nil {
		t.Fatal("expected validation hook Reject to fail verification")
	}
}

func TestVerifyPeerCertificateUndecidedFallsBackToDefault(t *testing.T) {
	cert := selfSignedCert(t)
	pool := x509.NewCertPool()

	cfg := &Config{}
	cfg.RegisterValidation(func(chain []*x509.Certificate, verified [][]*x509.Certificate) ValidationDecision {
		return Undecided
	})
	verify := cfg.verifyPeerCertificate(pool)

	if err := verify([][]byte{cert.Raw}, nil); err != nil {
		t.Fatalf("expected Undecided to fall back to default accept, got: %v", err)
	}
}

func TestConfigValidateRequiresKeyFileWithCertFile(t *testing.T) {
	c := &Config{CertFile: "cert.pem"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected validation error when KeyFile is missing")
	}
}
