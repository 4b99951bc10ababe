package tm

import (
	"bytes"
	"time"

	"go.uber.org/zap"

	"github.com/evalimine/xades-verify/internal/adapters/driven/crypto"
	"github.com/evalimine/xades-verify/internal/adapters/driven/ocspclient"
	"github.com/evalimine/xades-verify/internal/adapters/driven/xades"
	"github.com/evalimine/xades-verify/internal/core/domain"
)

// ValidateOffline re-verifies the OCSP response already embedded in doc's
// RevocationValues: responder signature and freshness (delegated to
// ocspclient.ParseAndVerify), that its nonce extension equals
// Digest(SignatureValue, alg) under the algorithm the signature's own
// CompleteRevocationRefs/OCSPRef names, and that the response bytes match
// the digest recorded by that same OCSPRef.
func (tm *TM) ValidateOffline(doc *xades.Document) error {
	responseDER, err := doc.Profile.GetOCSPResponseValue()
	if err != nil {
		tm.recordAugmentation(false)
		return err
	}

	ref, err := doc.Profile.GetRevocationOCSPRef()
	if err != nil {
		tm.recordAugmentation(false)
		return err
	}

	if _, err := crypto.DigestHashForURI(ref.DigestMethod); err != nil {
		tm.recordAugmentation(false)
		return err
	}
	computed, err := crypto.Digest(ref.DigestMethod, responseDER)
	if err != nil {
		tm.recordAugmentation(false)
		return err
	}
	if !bytes.Equal(computed, ref.DigestValue) {
		tm.recordAugmentation(false)
		return domain.DigestMismatch("embedded OCSP response")
	}

	sigValue, err := doc.SignatureValue()
	if err != nil {
		tm.recordAugmentation(false)
		return err
	}
	expectedNonce, err := ocspclient.NonceFromSignatureValue(sigValue, ref.DigestMethod)
	if err != nil {
		tm.recordAugmentation(false)
		return err
	}

	producedAt, err := doc.Profile.GetProducedAt()
	if err != nil {
		tm.recordAugmentation(false)
		return err
	}

	certDER, err := doc.X509CertificateDER()
	if err != nil {
		tm.recordAugmentation(false)
		return err
	}
	cert, err := crypto.ParseCert(certDER)
	if err != nil {
		tm.recordAugmentation(false)
		return err
	}

	if err := tm.requireConfStore(); err != nil {
		tm.recordAugmentation(false)
		return err
	}

	cn := issuerCommonName(cert.IssuerString())
	conf, ok := tm.confStore.GetOCSPConf(cn)
	if !ok {
		tm.recordAugmentation(false)
		return wrapNotConfigured(cn)
	}

	verified, err := ocspclient.ParseAndVerify(responseDER, conf.Certs, cert.Raw(), conf.Skew, conf.MaxAge, expectedNonce, time.Now())
	if err != nil {
		tm.recordAugmentation(false)
		return err
	}
	if !verified.ProducedAt.Equal(producedAt) {
		tm.recordAugmentation(false)
		return domain.RevocationFailure("embedded ProducedAt does not match responder's own producedAt")
	}

	tm.logger.Debug("TM offline re-verification passed", zap.String("issuer_cn", cn))
	tm.recordAugmentation(true)
	return nil
}
