package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/lorrc/trusted-invoker/internal/adapters/secondary/httpsclient"
	"github.com/lorrc/trusted-invoker/internal/adapters/secondary/truststore"
	"github.com/lorrc/trusted-invoker/internal/auth"
	"github.com/lorrc/trusted-invoker/internal/config"
	"github.com/lorrc/trusted-invoker/internal/core/domain"
	"github.com/lorrc/trusted-invoker/internal/core/services"
	"github.com/lorrc/trusted-invoker/internal/infrastructure/logging"
)

var flagUser = &cli.StringFlag{
	Name:  "user",
	Value: "invokectl",
	Usage: "User ID to act as; \"anonymous\" for an unauthenticated caller",
}

var flagEndpoint = &cli.StringFlag{
	Name:  "endpoint",
	Usage: "HTTPS endpoint to call (defaults to INVOKER_ENDPOINT)",
}

var flagTrustStoreFile = &cli.StringFlag{
	Name:  "truststore-file",
	Usage: "PEM bundle to trust; forces the file backend",
}

var flagVerifyHostname = &cli.BoolFlag{
	Name:  "verify-hostname",
	Value: true,
	Usage: "Verify the server hostname; the chain is verified against the trust store regardless",
}

var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Usage: "Outbound call timeout (defaults to INVOKER_TIMEOUT)",
}

var flagLogLevel = &cli.StringFlag{
	Name:  "log-level",
	Value: "warn",
	Usage: "Log level: debug, info, warn, error",
}

var flagSecret = &cli.StringFlag{
	Name:    "secret",
	EnvVars: []string{"JWT_SECRET"},
	Usage:   "HMAC secret used to sign tokens",
}

var flagTTL = &cli.DurationFlag{
	Name:  "ttl",
	Value: time.Hour,
	Usage: "Token lifetime",
}

func main() {
	// .env is optional, as for the server
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "invokectl",
		Usage: "operate the trusted HTTPS invoker from the command line",
		Flags: []cli.Flag{
			flagLogLevel,
		},
		Commands: []*cli.Command{
			{
				Name:  "invoke",
				Usage: "perform one invocation with the configured trust store and print the result",
				Flags: []cli.Flag{
					flagUser,
					flagEndpoint,
					flagTrustStoreFile,
					flagVerifyHostname,
					flagTimeout,
				},
				Action: invoke,
			},
			{
				Name:  "truststore",
				Usage: "inspect the configured trust store",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "print every trusted certificate",
						Flags:  []cli.Flag{flagUser, flagTrustStoreFile},
						Action: listTrustStore,
					},
				},
			},
			{
				Name:  "token",
				Usage: "mint a development identity token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagUser.Name, Required: true, Usage: flagUser.Usage},
					flagSecret,
					flagTTL,
				},
				Action: mintToken,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogger(cCtx *cli.Context, cfg *config.Config) *slog.Logger {
	return logging.NewLogger(logging.Config{
		Level:       cCtx.String(flagLogLevel.Name),
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "invokectl",
		Environment: cfg.App.Environment,
	})
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig(cCtx *cli.Context) *config.Config {
	cfg := config.FromEnv()

	if cCtx.IsSet(flagEndpoint.Name) {
		cfg.Invoker.Endpoint = cCtx.String(flagEndpoint.Name)
	}
	if cCtx.IsSet(flagTrustStoreFile.Name) {
		cfg.TrustStore.Backend = config.TrustStoreBackendFile
		cfg.TrustStore.FilePath = cCtx.String(flagTrustStoreFile.Name)
	}
	if cCtx.IsSet(flagVerifyHostname.Name) {
		cfg.Invoker.VerifyHostname = cCtx.Bool(flagVerifyHostname.Name)
	}
	if cCtx.IsSet(flagTimeout.Name) {
		cfg.Invoker.Timeout = cCtx.Duration(flagTimeout.Name)
	}

	return cfg
}

func identityFrom(cCtx *cli.Context) domain.Identity {
	user := cCtx.String(flagUser.Name)
	if user == "" || user == domain.AnonymousUserID {
		return domain.AnonymousIdentity()
	}
	return domain.NewIdentity(user)
}

func invoke(cCtx *cli.Context) error {
	cfg := loadConfig(cCtx)
	logger := setupLogger(cCtx, cfg)

	if !cfg.Invoker.VerifyHostname {
		logger.Warn("hostname verification disabled", "endpoint", cfg.Invoker.Endpoint)
	}

	stores, err := truststore.NewProvider(cfg.TrustStore, logger)
	if err != nil {
		return err
	}

	invoker, err := services.NewAPIInvokerService(
		stores,
		httpsclient.NewClientFactory(cfg.Invoker.Timeout, cfg.Invoker.VerifyHostname),
		services.APIInvokerConfig{
			Endpoint:     cfg.Invoker.Endpoint,
			Timeout:      cfg.Invoker.Timeout,
			MaxBodyBytes: cfg.Invoker.MaxBodyBytes,
		},
		logger,
	)
	if err != nil {
		return err
	}

	details := invoker.Invoke(cCtx.Context, identityFrom(cCtx))

	encoded, err := json.MarshalIndent(struct {
		Endpoint   string `json:"endpoint"`
		StatusCode int    `json:"statusCode"`
		Body       string `json:"body"`
	}{invoker.Endpoint(), details.StatusCode, details.Body}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func listTrustStore(cCtx *cli.Context) error {
	cfg := loadConfig(cCtx)
	logger := setupLogger(cCtx, cfg)

	stores, err := truststore.NewProvider(cfg.TrustStore, logger)
	if err != nil {
		return err
	}

	store, err := stores.TrustStore(cCtx.Context, identityFrom(cCtx))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tISSUER\tNOT AFTER\tSHA-256")
	for _, cert := range store.Certificates() {
		sum := sha256.Sum256(cert.Raw)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			cert.Subject.String(),
			cert.Issuer.String(),
			cert.NotAfter.UTC().Format(time.RFC3339),
			hex.EncodeToString(sum[:]),
		)
	}
	return w.Flush()
}

func mintToken(cCtx *cli.Context) error {
	secret := cCtx.String(flagSecret.Name)
	if secret == "" {
		return fmt.Errorf("--%s or JWT_SECRET is required", flagSecret.Name)
	}

	token, err := auth.NewTokenManager(secret, cCtx.Duration(flagTTL.Name)).GenerateToken(cCtx.String(flagUser.Name))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
