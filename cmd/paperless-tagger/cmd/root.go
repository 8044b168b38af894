package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mfenderov/paperless-tagger/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "paperless-tagger",
	Short: "Title and tag Paperless-ngx documents with a local language model",
	Long: `paperless-tagger finds Paperless-ngx documents that have not been
enriched yet, asks a local language model for a title and topical tags,
and writes both back. Processed documents receive a marker tag ("AI" by
default) so later runs skip them.

Commands:
  run      Enrich every unprocessed document
  tags     List the tags defined in Paperless
  history  Show past runs from the journal
  search   Search enriched documents in the mirror index
  serve    Start the MCP server`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	slog.SetDefault(newLogger(slog.LevelWarn))
}

// newLogger returns a stderr text logger at level, or debug with --verbose.
func newLogger(level slog.Level) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

func initConfig() {
	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/paperless-tagger")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// PTAGGER_PAPERLESS_URL -> paperless.url
	viper.SetEnvPrefix("PTAGGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars. PAPERLESS_URL and API_KEY are
	// accepted as well so existing deployments keep working.
	viper.BindEnv("paperless.url", "PTAGGER_PAPERLESS_URL", "PAPERLESS_URL")
	viper.BindEnv("paperless.token", "PTAGGER_PAPERLESS_TOKEN", "API_KEY")
	viper.BindEnv("paperless.api_version", "PTAGGER_PAPERLESS_API_VERSION")
	viper.BindEnv("paperless.page_size", "PTAGGER_PAPERLESS_PAGE_SIZE")
	viper.BindEnv("paperless.requests_per_second", "PTAGGER_PAPERLESS_REQUESTS_PER_SECOND")
	viper.BindEnv("paperless.timeout", "PTAGGER_PAPERLESS_TIMEOUT")
	viper.BindEnv("model.backend", "PTAGGER_MODEL_BACKEND")
	viper.BindEnv("model.command", "PTAGGER_MODEL_COMMAND")
	viper.BindEnv("model.timeout", "PTAGGER_MODEL_TIMEOUT")
	viper.BindEnv("model.max_content_chars", "PTAGGER_MODEL_MAX_CONTENT_CHARS")
	viper.BindEnv("model.socket_path", "PTAGGER_MODEL_SOCKET_PATH")
	viper.BindEnv("model.base_url", "PTAGGER_MODEL_BASE_URL")
	viper.BindEnv("model.name", "PTAGGER_MODEL_NAME")
	viper.BindEnv("run.save", "PTAGGER_RUN_SAVE")
	viper.BindEnv("run.marker_tag", "PTAGGER_RUN_MARKER_TAG")
	viper.BindEnv("run.limit", "PTAGGER_RUN_LIMIT")
	viper.BindEnv("journal.enabled", "PTAGGER_JOURNAL_ENABLED")
	viper.BindEnv("journal.path", "PTAGGER_JOURNAL_PATH")
	viper.BindEnv("elasticsearch.enabled", "PTAGGER_ELASTICSEARCH_ENABLED")
	viper.BindEnv("elasticsearch.addresses", "PTAGGER_ELASTICSEARCH_ADDRESSES")
	viper.BindEnv("elasticsearch.index", "PTAGGER_ELASTICSEARCH_INDEX")
	viper.BindEnv("elasticsearch.username", "PTAGGER_ELASTICSEARCH_USERNAME")
	viper.BindEnv("elasticsearch.password", "PTAGGER_ELASTICSEARCH_PASSWORD")
	viper.BindEnv("embeddings.enabled", "PTAGGER_EMBEDDINGS_ENABLED")
	viper.BindEnv("embeddings.socket_path", "PTAGGER_EMBEDDINGS_SOCKET_PATH")
	viper.BindEnv("embeddings.base_url", "PTAGGER_EMBEDDINGS_BASE_URL")
	viper.BindEnv("embeddings.model", "PTAGGER_EMBEDDINGS_MODEL")
	viper.BindEnv("mcp.name", "PTAGGER_MCP_NAME")
	viper.BindEnv("mcp.version", "PTAGGER_MCP_VERSION")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Handle special case: addresses as comma-separated string from env
	if addrs := os.Getenv("PTAGGER_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
