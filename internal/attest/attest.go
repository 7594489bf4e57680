// Package attest derives the execution-identity hash bound to every
// published round. The hash is computed once at startup and stays fixed
// for the process lifetime.
package attest

import (
	"crypto/sha256"
	"os"

	"github.com/google/uuid"

	"github.com/R3E-Network/neofeeds/pkg/logging"
)

// Environment variables pointing at enclave identity material. Both are
// optional; outside an enclave the provider falls back to a per-instance
// identity.
const (
	ReportPathEnv = "NEOFEEDS_ATTESTATION_REPORT"
	CertPathEnv   = "NEOFEEDS_IDENTITY_CERT"
)

// Provider holds the attestation hash for this process instance.
type Provider struct {
	hash   []byte
	source string
}

// NewProvider computes the attestation hash. Preference order: hardware
// attestation report, execution-identity certificate, per-instance random
// identity. The hash is never empty.
func NewProvider(log *logging.Logger) *Provider {
	p := &Provider{}

	if path := os.Getenv(ReportPathEnv); path != "" {
		if report, err := os.ReadFile(path); err == nil && len(report) > 0 {
			sum := sha256.Sum256(report)
			p.hash, p.source = sum[:], "report"
		} else if err != nil {
			log.WithError(err).WithField("path", path).Warn("attestation report unreadable, falling back")
		}
	}

	if p.hash == nil {
		if path := os.Getenv(CertPathEnv); path != "" {
			if cert, err := os.ReadFile(path); err == nil && len(cert) > 0 {
				sum := sha256.Sum256(cert)
				p.hash, p.source = sum[:], "certificate"
			} else if err != nil {
				log.WithError(err).WithField("path", path).Warn("identity certificate unreadable, falling back")
			}
		}
	}

	if p.hash == nil {
		p.hash, p.source = instanceIdentity()
	}

	log.WithFields(map[string]interface{}{
		"source": p.source,
	}).Info("attestation identity established")
	return p
}

// instanceIdentity derives a per-process identity when no enclave material
// is available.
func instanceIdentity() ([]byte, string) {
	id, err := uuid.NewRandom()
	if err != nil {
		sum := sha256.Sum256([]byte("neofeeds-static-identity"))
		return sum[:], "static"
	}
	sum := sha256.Sum256([]byte("instance|" + id.String()))
	return sum[:], "instance"
}

// Hash returns the attestation hash.
func (p *Provider) Hash() []byte {
	return p.hash
}

// Source reports which identity material produced the hash.
func (p *Provider) Source() string {
	return p.source
}
