package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TrustPolicy decides how the remote certificate chain is verified
// during the TLS handshake. Implementations must never disable
// verification; a connection whose chain fails the policy is refused
// before any protocol bytes are exchanged.
type TrustPolicy interface {
	TLSConfig(serverName string) (*tls.Config, error)
}

// SystemTrust verifies the server chain against the system root pool.
// It is the default policy.
type SystemTrust struct{}

func (SystemTrust) TLSConfig(serverName string) (*tls.Config, error) {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}, nil
}

// FileTrust verifies the server chain against a PEM CA bundle on disk,
// for deployments whose vault server runs under a private authority.
type FileTrust struct {
	CAFile string
}

func (p FileTrust) TLSConfig(serverName string) (*tls.Config, error) {
	caPEM, err := os.ReadFile(p.CAFile)
	if err != nil {
		return nil, fmt.Errorf("transport: read tls ca bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(caPEM); !ok {
		return nil, fmt.Errorf("transport: parse tls ca bundle: %s", p.CAFile)
	}
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
		RootCAs:    pool,
	}, nil
}
