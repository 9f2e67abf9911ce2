package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// generateCert returns a self-signed certificate and key for localhost.
func generateCert(t *testing.T, cn string, notAfter time.Time) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
}

func TestNewPool(t *testing.T) {
	if NewPool().Pool() == nil {
		t.Fatal("Pool() returned nil")
	}
	if NewEmptyPool().Pool() == nil {
		t.Fatal("empty Pool() returned nil")
	}
}

func TestAddCertPEM(t *testing.T) {
	certPEM, keyPEM := generateCert(t, "ca", time.Now().Add(time.Hour))
	other, _ := generateCert(t, "ca2", time.Now().Add(time.Hour))

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"single", certPEM, nil},
		{"bundle", append(append([]byte{}, certPEM...), other...), nil},
		{"key blocks skipped", append(append([]byte{}, keyPEM...), certPEM...), nil},
		{"empty", nil, ErrNoCertsFound},
		{"key only", keyPEM, ErrNoCertsFound},
		{"garbage", []byte("not pem"), ErrNoCertsFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEmptyPool().AddCertPEM(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AddCertPEM() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddCertPEM_InvalidCertificate(t *testing.T) {
	bad := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("junk")})
	if err := NewEmptyPool().AddCertPEM(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestClientConfig(t *testing.T) {
	cfg, err := ClientConfig("")
	if err != nil || cfg != nil {
		t.Errorf("ClientConfig(\"\") = %v, %v, want nil, nil", cfg, err)
	}

	if _, err := ClientConfig(filepath.Join(t.TempDir(), "missing.pem")); err == nil {
		t.Error("expected error for missing file")
	}

	certPEM, _ := generateCert(t, "ca", time.Now().Add(time.Hour))
	path := filepath.Join(t.TempDir(), "ca.pem")
	writeFile(t, path, certPEM)

	cfg, err = ClientConfig(path)
	if err != nil {
		t.Fatalf("ClientConfig() = %v", err)
	}
	if cfg.RootCAs == nil {
		t.Error("RootCAs not set")
	}
}
