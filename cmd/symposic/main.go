package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/symposic/symposic/internal/account"
	"github.com/symposic/symposic/internal/api"
	"github.com/symposic/symposic/internal/auth"
	"github.com/symposic/symposic/internal/genai"
	"github.com/symposic/symposic/internal/interview"
	"github.com/symposic/symposic/internal/lockfile"
	"github.com/symposic/symposic/internal/prompt"
	"github.com/symposic/symposic/internal/sms"
	"github.com/symposic/symposic/internal/store"
	"github.com/symposic/symposic/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Symposic state data
	DefaultStateDir = "/var/lib/symposic"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "symposic.db"
	// otpCleanupInterval is how often expired OTP rows are purged
	otpCleanupInterval = 10 * time.Minute
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// Hold the state directory for the life of the process so a second
	// instance cannot share the same SQLite file or lock state.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	if err := run(flags); err != nil {
		slog.Error("Symposic failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("Symposic exited successfully")
}

// run wires the modules together and serves until interrupted.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	registry, err := prompt.NewRegistry(buildPromptOptions(flags)...)
	if err != nil {
		return err
	}

	genaiClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	sender, err := buildSMSSender(flags)
	if err != nil {
		return err
	}

	authService := auth.NewService(st, sender)
	accountService := account.NewService(st)
	orchestrator := interview.NewOrchestrator(registry, genaiClient)
	server := api.NewServer(authService, accountService, orchestrator, st, buildAPIOptions(flags)...)

	go runOTPCleanup(ctx, authService)

	slog.Info("Bootstrapping Symposic",
		"stateDir", *flags.stateDir,
		"dsnSet", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"promptVersion", registry.ActiveVersion())
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	OpenAIKey        string
	APIAddr          string
	PromptVersion    string
	PromptDir        string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	ConsoleSMS       bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	apiAddr       *string
	promptVersion *string
	promptDir     *string
	consoleSMS    *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("SYMPOSIC_STATE_DIR"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		APIAddr:          os.Getenv("API_ADDR"),
		PromptVersion:    os.Getenv("PROMPT_VERSION"),
		PromptDir:        os.Getenv("PROMPT_DIR"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		ConsoleSMS:       util.ParseBoolEnv("CONSOLE_SMS", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SYMPOSIC_STATE_DIR set, using default", "stateDir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlitePath", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"SYMPOSIC_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"PROMPT_VERSION", config.PromptVersion,
		"TWILIO_CONFIGURED", config.TwilioAccountSID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for Symposic data (overrides $SYMPOSIC_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN, postgres:// URL or SQLite path (overrides $DATABASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		promptVersion: flag.String("prompt-version", config.PromptVersion, "interview prompt config version (overrides $PROMPT_VERSION)"),
		promptDir:     flag.String("prompt-dir", config.PromptDir, "directory with prompt config overrides (overrides $PROMPT_DIR)"),
		consoleSMS:    flag.Bool("console-sms", config.ConsoleSMS, "log OTP codes to stdout instead of sending via Twilio (overrides $CONSOLE_SMS)"),
	}

	flag.Parse()

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "newStateDir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSNSet", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"promptVersion", *flags.promptVersion,
		"consoleSMS", *flags.consoleSMS)

	return flags
}

// buildStore selects a storage backend based on the DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dbPath", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildPromptOptions constructs prompt registry configuration options
func buildPromptOptions(flags Flags) []prompt.Option {
	var opts []prompt.Option
	if *flags.promptDir != "" {
		opts = append(opts, prompt.WithDir(*flags.promptDir))
	}
	if *flags.promptVersion != "" {
		opts = append(opts, prompt.WithVersion(*flags.promptVersion))
	}
	return opts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if *flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(*flags.openaiKey))
	}
	return opts
}

// buildSMSSender selects the SMS delivery mechanism.
func buildSMSSender(flags Flags) (sms.Sender, error) {
	if *flags.consoleSMS {
		slog.Info("Using console SMS sender, OTP codes will be logged")
		return sms.ConsoleSender{}, nil
	}
	return sms.NewTwilioClient()
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.apiAddr != "" {
		opts = append(opts, api.WithAddr(*flags.apiAddr))
	}
	return opts
}

// runOTPCleanup purges expired OTP rows periodically until the context ends.
func runOTPCleanup(ctx context.Context, authService *auth.Service) {
	ticker := time.NewTicker(otpCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := authService.CleanupExpiredOTPs(ctx); err != nil {
				slog.Warn("OTP cleanup failed", "error", err)
			}
		}
	}
}
