/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package certificates

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"os"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// verifyPeerCertificate implements the default chain policy described by the
// framing engine's TLS upgrade behavior: accept a fully trusted chain,
// accept a self-signed root whose subject equals its issuer as the sole
// non-fatal chain issue, reject everything else. A registered
// ValidationFunc may short-circuit this by returning Accept or Reject;
// Undecided falls back to the policy below.
func (c *Config) verifyPeerCertificate(pool *x509.CertPool) func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("certificates: parse peer certificate: %w", err)
			}
			certs = append(certs, cert)
		}
		if len(certs) == 0 {
			return fmt.Errorf("certificates: no peer certificate presented")
		}

		leaf := certs[0]
		intermediates := x509.NewCertPool()
		for _, cert := range certs[1:] {
			intermediates.AddCert(cert)
		}

		verifiedChains, verr := leaf.Verify(x509.VerifyOptions{
			Roots:         pool,
			Intermediates: intermediates,
		})

		if c.validate != nil {
			switch c.validate(certs, verifiedChains) {
			case Accept:
				return nil
			case Reject:
				return fmt.Errorf("certificates: peer certificate rejected by validation hook")
			}
		}

		if verr == nil {
			return nil
		}

		if isSelfSignedSubjectEqualsIssuer(leaf) {
			return nil
		}

		return fmt.Errorf("certificates: chain verification failed: %w", verr)
	}
}

func isSelfSignedSubjectEqualsIssuer(cert *x509.Certificate) bool {
	return bytes.Equal(cert.RawSubject, cert.RawIssuer)
}
