package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/polyscope/polyscope/internal/storage"
	"github.com/polyscope/polyscope/internal/upstream"
	"github.com/polyscope/polyscope/pkg/config"
)

// loadEnv is the shared setup for one-shot commands.
func loadEnv() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func openStore(cfg *config.Config, logger *zap.Logger) (*storage.Store, error) {
	store, err := storage.New(&storage.Config{
		DatabaseURL: cfg.DatabaseURL,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

func openClient(cfg *config.Config, logger *zap.Logger) (*upstream.Client, error) {
	var creds *upstream.Credentials
	if cfg.HasAPICredentials() {
		creds = &upstream.Credentials{
			APIKey:     cfg.APIKey,
			Secret:     cfg.APISecret,
			Passphrase: cfg.APIPassphrase,
			Address:    cfg.WalletAddress,
		}
	}
	client, err := upstream.NewClient(&upstream.Config{
		GammaURL: cfg.MetadataAPIURL,
		ClobURL:  cfg.OrderBookAPIURL,
		Timeout:  cfg.UpstreamTimeout,
		Retry: upstream.RetryPolicy{
			MaxAttempts: cfg.APIMaxRetries,
			BaseDelay:   cfg.APIRetryBaseDelay,
			MaxDelay:    cfg.APIRetryMaxDelay,
		},
		Credentials: creds,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create upstream client: %w", err)
	}
	return client, nil
}
