package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/expression-client/internal/classifierclient"
	"github.com/example/expression-client/internal/config"
	"github.com/example/expression-client/internal/controller"
	"github.com/example/expression-client/internal/logging"
	"github.com/example/expression-client/internal/preview"
)

type rootOptions struct {
	configPath string
	serviceURL string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "expression-client",
		Short: "Submit face images to an expression classification service",
		Long: `expression-client uploads a single image to a facial expression
classification service and reports the predicted expression, its accuracy
and the per-class probabilities.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.serviceURL, "service-url", "", "Classification service base URL (overrides CLASSIFIER_URL)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newClassifyCmd(opts))

	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.serviceURL != "" {
		cfg.ServiceURL = o.serviceURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// session bundles everything one controller needs.
type session struct {
	cfg      *config.Config
	logger   *zap.Logger
	previews *preview.Registry
	ctrl     *controller.Controller
}

func (o *rootOptions) newSession() (*session, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	client, err := classifierclient.New(cfg.ServiceURL, cfg.UploadTimeout, logger)
	if err != nil {
		return nil, err
	}

	previews := preview.NewRegistry(logger)
	return &session{
		cfg:      cfg,
		logger:   logger,
		previews: previews,
		ctrl:     controller.New(client, previews, logger),
	}, nil
}

func (s *session) close() {
	s.ctrl.Close()
	_ = s.logger.Sync()
}
