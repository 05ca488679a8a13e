package adapter

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// LoadClientTLS builds a client [*tls.Config] trusting the CA in caFile.
//
// All args are file paths. Empty certFile and keyFile skip the client
// certificate.
func LoadClientTLS(caFile, certFile, keyFile string) (*tls.Config, error) {
	const op = "adapter.LoadClientTLS"

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read CA certificate file: %w", op, err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("%s: %w", op, errors.New("failed to parse CA certificate"))
	}

	cfg := &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}

	if certFile == "" && keyFile == "" {
		return cfg, nil
	}

	clientCert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cfg.Certificates = []tls.Certificate{clientCert}
	return cfg, nil
}
