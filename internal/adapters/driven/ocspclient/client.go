package ocspclient

import (
	"bytes"
	"context"
	"crypto/x509"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/evalimine/xades-verify/internal/adapters/driven/crypto"
	"github.com/evalimine/xades-verify/internal/core/domain"
	"github.com/evalimine/xades-verify/internal/core/ports"
)

// Client performs the OCSP request/response exchange described in the OCSP
// subsystem component: a single synchronous HTTP round trip, body and
// response both DER-encoded, cancellable by the caller's context deadline.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an OCSP client with the given HTTP client. A nil
// httpClient defaults to http.DefaultClient; a nil logger defaults to a
// no-op logger.
func NewClient(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// Exchange implements ports.OCSPTransport: it POSTs requestDER to url and
// returns the DER-encoded response body. Cancellation is by deadline
// expiry on ctx, surfaced as a TransportFailure.
func (c *Client) Exchange(ctx context.Context, url string, requestDER []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestDER))
	if err != nil {
		return nil, domain.TransportFailure(err)
	}
	req.Header.Set("Content-Type", "application/ocsp-request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("OCSP exchange failed", zap.String("url", url), zap.Error(err))
		return nil, domain.TransportFailure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.TransportFailure(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.TransportFailure(nil)
	}
	return body, nil
}

var _ ports.OCSPTransport = (*Client)(nil)

// NonceFromSignatureValue computes the OCSP nonce as Digest(signatureValue,
// alg), the per-request binding that cryptographically ties an OCSP response
// to this specific signature.
func NonceFromSignatureValue(signatureValue []byte, digestURI string) ([]byte, error) {
	return crypto.Digest(digestURI, signatureValue)
}

// RequestAndVerify builds a nonce-bound OCSP request for cert/issuer, sends
// it via transport, and verifies the response against conf. It returns the
// verified response alongside the raw request/response bytes for callers
// that need to retain an OCSPExchange record (TM online acquisition).
func RequestAndVerify(ctx context.Context, transport ports.OCSPTransport, cert, issuer *x509.Certificate, conf ports.OCSPConf, digestURI string, signatureValue []byte) (domain.OCSPExchange, error) {
	nonce, err := NonceFromSignatureValue(signatureValue, digestURI)
	if err != nil {
		return domain.OCSPExchange{}, err
	}

	requestDER, err := BuildRequest(cert, issuer, nonce)
	if err != nil {
		return domain.OCSPExchange{}, err
	}

	responseDER, err := transport.Exchange(ctx, conf.URL, requestDER)
	if err != nil {
		return domain.OCSPExchange{}, err
	}

	verified, err := ParseAndVerify(responseDER, conf.Certs, cert, conf.Skew, conf.MaxAge, nonce, time.Now())
	if err != nil {
		return domain.OCSPExchange{}, err
	}

	return domain.OCSPExchange{
		RequestDER:    requestDER,
		ResponseDER:   verified.Raw,
		ProducedAt:    verified.ProducedAt,
		Nonce:         nonce,
		ResponderCert: verified.ResponderCert,
	}, nil
}
