package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/haivivi/streambuf/pkg/capture"
	"github.com/haivivi/streambuf/pkg/cli"
	"github.com/haivivi/streambuf/pkg/storage"
)

const appName = "streambuf"

var (
	// Global flags
	verbose     bool
	contextName string
	configPath  string

	// Global configuration (loaded at init time)
	globalConfig *cli.Config
)

var rootCmd = &cobra.Command{
	Use:   "streambuf",
	Short: "Record, replay, and inspect framed byte streams",
	Long: `streambuf - capture tooling for length-prefixed byte streams.

A recording taps the byte stream between a live source (tcp://, tls://,
ws://, wss://) and the frame scanner, preserving every read result in a
local store. A recorded session replays through the exact same scanner
any number of times, which makes protocol bugs reproducible offline.

Configuration is stored in ~/.streambuf/streambuf/config.yaml and uses
named contexts, similar to kubectl:

  # Create a context and make it current
  streambuf config add-context dev --source tcp://localhost:9000
  streambuf config use-context dev

  # Record until the stream ends (or ^C), then inspect
  streambuf record
  streambuf sessions
  streambuf inspect <session-id> --hex

  # Move a session to another machine
  streambuf export <session-id> s3://my-bucket/dumps/bug-1234.dump`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "config context to use (default: current context)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

// configLoadErr stores the error from config loading for deferred
// reporting, so commands like 'streambuf version' work without a config.
var configLoadErr error

func initConfig() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := cli.LoadConfigWithPath(appName, configPath)
	if err != nil {
		configLoadErr = err
		return
	}
	globalConfig = cfg
}

// GetConfig returns the global configuration.
func GetConfig() (*cli.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		cfg, err := cli.LoadConfigWithPath(appName, configPath)
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		globalConfig = cfg
	}
	return globalConfig, nil
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// currentContext resolves the context selected by --context, falling back
// to the current context. With no contexts configured at all it returns an
// empty context so commands run with built-in defaults.
func currentContext() (*cli.Context, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	if contextName == "" && cfg.CurrentContext == "" {
		return &cli.Context{}, nil
	}
	return cfg.ResolveContext(contextName)
}

// openStore opens the capture store for the context, defaulting to the
// app's own store directory under ~/.streambuf.
func openStore(cc *cli.Context) (*capture.Store, error) {
	dir := cc.StoreDir
	if dir == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, err
		}
		if err := paths.EnsureStoreDir(); err != nil {
			return nil, err
		}
		dir = paths.StoreDir()
	}
	return capture.Open(dir)
}

// dumpTarget resolves an export/import target into a file store and a path
// within it. Targets of the form s3://bucket/key go to the object store
// configured in the context; anything else is a path under the context's
// dump directory.
func dumpTarget(cc *cli.Context, target string) (storage.FileStore, string, error) {
	if strings.HasPrefix(target, "s3://") {
		u, err := url.Parse(target)
		if err != nil {
			return nil, "", fmt.Errorf("invalid s3 target %q: %w", target, err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, "", fmt.Errorf("s3 target must be s3://bucket/key, got %q", target)
		}
		client, prefix, err := s3ClientFor(cc)
		if err != nil {
			return nil, "", err
		}
		return storage.NewS3(client, u.Host, prefix), key, nil
	}

	root := cc.DumpDir
	if root == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, "", err
		}
		if err := paths.EnsureDumpDir(); err != nil {
			return nil, "", err
		}
		root = paths.DumpDir()
	}
	fs, err := storage.NewLocal(root)
	if err != nil {
		return nil, "", err
	}
	return fs, target, nil
}

// s3ClientFor builds an S3 client from the context's s3 section. Static
// credentials are used when configured; otherwise the SDK's default chain
// applies.
func s3ClientFor(cc *cli.Context) (*s3.Client, string, error) {
	s3cfg := cc.S3
	if s3cfg == nil {
		s3cfg = &cli.S3Config{}
	}
	if s3cfg.Region == "" {
		return nil, "", fmt.Errorf("s3 region not configured (set s3.region in the context, or add --s3-region via 'config add-context')")
	}

	opts := s3.Options{Region: s3cfg.Region}
	if s3cfg.AccessKey != "" && s3cfg.SecretKey != "" {
		ak, sk := s3cfg.AccessKey, s3cfg.SecretKey
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: ak, SecretAccessKey: sk}, nil
		})
	}
	return s3.New(opts), s3cfg.Prefix, nil
}

// emit renders v in the requested format. YAML output is normalized
// through the JSON representation so custom marshalers (timestamps,
// base64/hex data) render the same in both formats.
func emit(format string, v any) error {
	switch cli.OutputFormat(format) {
	case cli.FormatJSON:
		return cli.Output(v, cli.OutputOptions{Format: cli.FormatJSON})
	case cli.FormatYAML, "":
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var plain any
		if err := json.Unmarshal(data, &plain); err != nil {
			return err
		}
		return cli.Output(plain, cli.OutputOptions{Format: cli.FormatYAML})
	default:
		return fmt.Errorf("unsupported output format %q (want yaml or json)", format)
	}
}
