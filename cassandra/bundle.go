package cassandra

import (
	"archive/zip"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// SecureConnectBundle is the content of a cloud secure connection bundle.
type SecureConnectBundle struct {
	Host     string
	CQLPort  int
	Keyspace string
	LocalDC  string
	Username string
	Password string
	TLS      *tls.Config
}

// ContactPoint returns host:port of the bundle's proxy.
func (b *SecureConnectBundle) ContactPoint() string {
	return b.Host + ":" + strconv.Itoa(b.CQLPort)
}

type bundleConfig struct {
	Host     string `json:"host"`
	CQLPort  int    `json:"cql_port"`
	Keyspace string `json:"keyspace"`
	LocalDC  string `json:"localDC"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoadSecureConnectBundle reads config.json, ca.crt, cert and key from the zip at path.
func LoadSecureConnectBundle(path string) (*SecureConnectBundle, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open secure connect bundle: %w", err)
	}
	defer archive.Close()

	files := make(map[string][]byte, 4)
	for _, f := range archive.File {
		switch f.Name {
		case "config.json", "ca.crt", "cert", "key":
		default:
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in bundle: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s in bundle: %w", f.Name, err)
		}
		files[f.Name] = data
	}
	for _, name := range []string{"config.json", "ca.crt", "cert", "key"} {
		if _, ok := files[name]; !ok {
			return nil, fmt.Errorf("secure connect bundle is missing %s", name)
		}
	}

	var cfg bundleConfig
	if err := json.Unmarshal(files["config.json"], &cfg); err != nil {
		return nil, fmt.Errorf("decode bundle config: %w", err)
	}
	if cfg.Host == "" || cfg.CQLPort == 0 {
		return nil, errors.New("bundle config requires host and cql_port")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(files["ca.crt"]) {
		return nil, errors.New("bundle ca.crt contains no certificates")
	}
	cert, err := tls.X509KeyPair(files["cert"], files["key"])
	if err != nil {
		return nil, fmt.Errorf("load bundle client certificate: %w", err)
	}
	return &SecureConnectBundle{
		Host:     cfg.Host,
		CQLPort:  cfg.CQLPort,
		Keyspace: cfg.Keyspace,
		LocalDC:  cfg.LocalDC,
		Username: cfg.Username,
		Password: cfg.Password,
		TLS: &tls.Config{
			RootCAs:      pool,
			Certificates: []tls.Certificate{cert},
			ServerName:   cfg.Host,
			MinVersion:   tls.VersionTLS12,
		},
	}, nil
}
