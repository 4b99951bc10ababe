// Command verify validates a XAdES-signed ballot/result container against
// its enclosed documents and a trust store, optionally re-verifying or
// acquiring its Time-Mark OCSP response.
// Usage: go run ./cmd/verify -signature sig.xml -documents ./ballots -trust ./roots
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/evalimine/xades-verify/internal/adapters/driven/config"
	"github.com/evalimine/xades-verify/internal/adapters/driven/container"
	"github.com/evalimine/xades-verify/internal/adapters/driven/metrics"
	"github.com/evalimine/xades-verify/internal/adapters/driven/ocspclient"
	"github.com/evalimine/xades-verify/internal/adapters/driven/truststore"
	"github.com/evalimine/xades-verify/internal/adapters/driven/xades"
	"github.com/evalimine/xades-verify/internal/core/ports"
	"github.com/evalimine/xades-verify/internal/tm"
	"github.com/evalimine/xades-verify/internal/validator"
)

func main() {
	signaturePath := flag.String("signature", "", "path to the <Signature> XML file")
	documentsDir := flag.String("documents", "", "directory of enclosed documents referenced by the signature")
	trustDir := flag.String("trust", "", "directory of PEM-encoded trust anchor certificates")
	ocspConfigPath := flag.String("ocsp-config", "", "path to a YAML OCSP responder configuration (optional)")
	online := flag.Bool("online", false, "acquire a fresh Time-Mark OCSP response instead of re-verifying an embedded one")
	outPath := flag.String("out", "", "path to write the Time-Mark augmented signature when -online succeeds")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if *signaturePath == "" || *documentsDir == "" || *trustDir == "" {
		logger.Fatal("missing required flags", zap.String("usage", "-signature, -documents, and -trust are required"))
	}

	if err := run(logger, *signaturePath, *documentsDir, *trustDir, *ocspConfigPath, *online, *outPath); err != nil {
		logger.Error("verification failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("verification succeeded")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(logger *zap.Logger, signaturePath, documentsDir, trustDir, ocspConfigPath string, online bool, outPath string) error {
	raw, err := os.ReadFile(signaturePath)
	if err != nil {
		return fmt.Errorf("read signature file: %w", err)
	}
	doc, err := xades.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse signature: %w", err)
	}

	containerInfo, err := container.NewFileDirectory(documentsDir)
	if err != nil {
		return fmt.Errorf("open documents directory: %w", err)
	}

	trustStore, err := truststore.Load(trustDir)
	if err != nil {
		return fmt.Errorf("load trust store: %w", err)
	}

	var confStore ports.OCSPConfStore
	if ocspConfigPath != "" {
		confStore, err = config.Load(ocspConfigPath)
		if err != nil {
			return fmt.Errorf("load OCSP config: %w", err)
		}
	}

	metricsRecorder := metrics.NewNoopMetricsRecorder()
	offlineValidator := validator.New(metricsRecorder, logger)

	outcome, err := offlineValidator.ValidateOffline(doc, containerInfo, trustStore)
	if err != nil {
		return fmt.Errorf("offline validation: %w", err)
	}
	logger.Info("offline validation passed", zap.String("profile", string(outcome.Profile)), zap.Duration("duration", outcome.Duration))

	if confStore == nil {
		logger.Info("no OCSP configuration supplied, skipping Time-Mark step")
		return nil
	}

	httpTransport := ocspclient.NewClient(&http.Client{Timeout: 15 * time.Second}, logger)
	tmOrchestrator := tm.New(confStore, httpTransport, trustStore, metricsRecorder, logger)

	if online {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, rawAugmented, err := tmOrchestrator.AcquireOnline(ctx, doc)
		if err != nil {
			return fmt.Errorf("Time-Mark online acquisition: %w", err)
		}
		logger.Info("Time-Mark online acquisition succeeded")
		if outPath != "" {
			if err := os.WriteFile(outPath, rawAugmented, 0o600); err != nil {
				return fmt.Errorf("write augmented signature: %w", err)
			}
			logger.Info("wrote augmented signature", zap.String("path", outPath))
		}
		return nil
	}

	if err := tmOrchestrator.ValidateOffline(doc); err != nil {
		return fmt.Errorf("Time-Mark offline re-verification: %w", err)
	}
	logger.Info("Time-Mark offline re-verification passed")
	return nil
}
