package topology

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/youmark/pkcs8"
	"golang.org/x/crypto/ocsp"

	"github.com/nimbusdb/nimbus-go-driver/x/mongo/driver/connstring"
)

// TLSConfigFromConnString builds a *tls.Config from a parsed connection
// string's tlsCertificateKeyFile/tlsCertificateKeyFilePassword/tlsCAFile/
// tlsInsecure options, or returns (nil, nil) if cs requested no TLS.
// tlsCertificateKeyFilePassword is applied via PKCS#8 decryption
// (github.com/youmark/pkcs8) when the PEM-encoded key is password
// protected, since crypto/tls.X509KeyPair only understands unencrypted
// keys.
func TLSConfigFromConnString(cs *connstring.ConnString) (*tls.Config, error) {
	if !cs.SSL {
		return nil, nil
	}

	cfg := &tls.Config{InsecureSkipVerify: cs.TLSInsecure}

	if cs.TLSCAFile != "" {
		pemBytes, err := os.ReadFile(cs.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("connstring: reading tlsCAFile: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("connstring: tlsCAFile %q contains no usable certificates", cs.TLSCAFile)
		}
		cfg.RootCAs = pool
	}

	if cs.TLSCertificateKeyFile != "" {
		cert, err := loadCertificateKeyFile(cs.TLSCertificateKeyFile, cs.TLSCertificateKeyFilePassword)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// loadCertificateKeyFile parses a PEM file containing a certificate chain
// and (optionally password-encrypted, via PKCS#8) private key, the format
// tlsCertificateKeyFile points at.
func loadCertificateKeyFile(path, password string) (tls.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("connstring: reading tlsCertificateKeyFile: %w", err)
	}

	var cert tls.Certificate
	rest := raw
	var keyDER []byte
	var keyIsEncryptedPKCS8 bool
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			cert.Certificate = append(cert.Certificate, block.Bytes)
		case "PRIVATE KEY":
			keyDER = block.Bytes
		case "ENCRYPTED PRIVATE KEY":
			keyDER = block.Bytes
			keyIsEncryptedPKCS8 = true
		case "RSA PRIVATE KEY", "EC PRIVATE KEY":
			keyDER = block.Bytes
		}
	}
	if len(cert.Certificate) == 0 || keyDER == nil {
		return tls.Certificate{}, fmt.Errorf("connstring: tlsCertificateKeyFile %q must contain both a certificate and a private key", path)
	}

	if keyIsEncryptedPKCS8 {
		if password == "" {
			return tls.Certificate{}, fmt.Errorf("connstring: tlsCertificateKeyFile %q has an encrypted private key but tlsCertificateKeyFilePassword was not set", path)
		}
		key, err := pkcs8.ParsePKCS8PrivateKey(keyDER, []byte(password))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("connstring: decrypting tlsCertificateKeyFile private key: %w", err)
		}
		cert.PrivateKey = key
	} else {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("connstring: parsing tlsCertificateKeyFile certificate: %w", err)
		}
		keyPair, err := tls.X509KeyPair(raw, raw)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("connstring: parsing tlsCertificateKeyFile key pair: %w", err)
		}
		keyPair.Leaf = leaf
		return keyPair, nil
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("connstring: parsing tlsCertificateKeyFile certificate: %w", err)
	}
	cert.Leaf = leaf
	return cert, nil
}

// verifyOCSPStaple checks the server certificate's revocation status
// (spec.md's TLS section, supplemented per tlsDisableOCSPEndpointCheck):
// a stapled OCSP response on the handshake is verified directly; absent a
// staple, the certificate's OCSP responder is queried directly unless
// disableEndpointCheck is set. A certificate with no responder at all (or
// with endpoint checking disabled) is allowed through unchecked, matching
// the "soft-fail" behavior real drivers use so OCSP outages don't become
// outright connectivity outages.
func verifyOCSPStaple(cs tls.ConnectionState, disableEndpointCheck bool) error {
	if len(cs.PeerCertificates) == 0 {
		return nil
	}
	leaf := cs.PeerCertificates[0]
	var issuer *x509.Certificate
	if len(cs.PeerCertificates) > 1 {
		issuer = cs.PeerCertificates[1]
	} else {
		issuer = leaf
	}

	if len(cs.OCSPResponse) > 0 {
		resp, err := ocsp.ParseResponseForCert(cs.OCSPResponse, leaf, issuer)
		if err != nil {
			return fmt.Errorf("tls: parsing stapled OCSP response: %w", err)
		}
		return ocspStatusError(resp)
	}

	if disableEndpointCheck || len(leaf.OCSPServer) == 0 {
		return nil
	}

	resp, err := fetchOCSPResponse(leaf.OCSPServer[0], leaf, issuer)
	if err != nil {
		// A responder outage shouldn't itself break every connection; the
		// stapled-response path above is the preferred source of truth.
		return nil
	}
	return ocspStatusError(resp)
}

func ocspStatusError(resp *ocsp.Response) error {
	if resp.Status == ocsp.Revoked {
		return fmt.Errorf("tls: server certificate revoked at %s", resp.RevokedAt)
	}
	return nil
}

func fetchOCSPResponse(responderURL string, leaf, issuer *x509.Certificate) (*ocsp.Response, error) {
	req, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := http.Post(responderURL, "application/ocsp-request", bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	return ocsp.ParseResponseForCert(body, leaf, issuer)
}
