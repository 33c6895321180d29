package broker

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"compliance/internal/config"
)

const dialTimeout = 10 * time.Second

type security struct {
	tls  *tls.Config
	sasl sasl.Mechanism
}

// newSecurity maps security_protocol onto a TLS config and SASL mechanism.
// plain and plaintext yield neither.
func newSecurity(cfg config.KafkaConfig) (security, error) {
	var sec security

	protocol := strings.ToLower(cfg.SecurityProtocol)
	switch protocol {
	case "", "plain", "plaintext":
		return sec, nil
	case "ssl", "sasl_ssl":
		tlsCfg, err := newTLSConfig(cfg.SSLCALocation)
		if err != nil {
			return sec, err
		}
		sec.tls = tlsCfg
	case "sasl_plaintext":
	default:
		return sec, fmt.Errorf("unsupported security protocol %q", cfg.SecurityProtocol)
	}

	if strings.HasPrefix(protocol, "sasl_") {
		mechanism, err := newSASLMechanism(cfg.SASL)
		if err != nil {
			return sec, err
		}
		sec.sasl = mechanism
	}

	return sec, nil
}

func newTLSConfig(caLocation string) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caLocation == "" {
		return tlsCfg, nil
	}

	pem, err := os.ReadFile(caLocation)
	if err != nil {
		return nil, fmt.Errorf("failed to read kafka CA file: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in kafka CA file %s", caLocation)
	}
	tlsCfg.RootCAs = pool

	return tlsCfg, nil
}

func newSASLMechanism(cfg config.SASLConfig) (sasl.Mechanism, error) {
	switch strings.ToUpper(cfg.Mechanism) {
	case "PLAIN":
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism %q", cfg.Mechanism)
	}
}

func (s security) dialer(clientID string) *kafka.Dialer {
	return &kafka.Dialer{
		ClientID:      clientID,
		Timeout:       dialTimeout,
		DualStack:     true,
		TLS:           s.tls,
		SASLMechanism: s.sasl,
	}
}

func (s security) transport(clientID string) *kafka.Transport {
	return &kafka.Transport{
		ClientID:    clientID,
		DialTimeout: dialTimeout,
		TLS:         s.tls,
		SASL:        s.sasl,
	}
}
