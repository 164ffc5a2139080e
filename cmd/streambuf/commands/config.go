package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/haivivi/streambuf/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple capture environments,
similar to kubectl's context management.

Configuration is stored in ~/.streambuf/streambuf/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

A context can preset:
  - Source: default dial URL for 'record' (tcp://, tls://, ws://, wss://)
  - Store/dump directories
  - Frame size limit and per-read timeout
  - S3 settings for s3:// export/import targets

Example:
  # Local recording against a device gateway
  streambuf config add-context dev --source tcp://192.168.1.20:9000

  # Full setup with an S3 dump target
  streambuf config add-context prod \
    --source wss://gateway.example.com/stream \
    --max-frame 4194304 --read-timeout 30 \
    --s3-bucket captures --s3-region us-west-2 \
    --s3-access-key AKIA... --s3-secret-key ...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		source, _ := cmd.Flags().GetString("source")
		storeDir, _ := cmd.Flags().GetString("store-dir")
		dumpDir, _ := cmd.Flags().GetString("dump-dir")
		maxFrame, _ := cmd.Flags().GetInt("max-frame")
		readTimeout, _ := cmd.Flags().GetInt("read-timeout")

		ctx := &cli.Context{
			Source:      source,
			StoreDir:    storeDir,
			DumpDir:     dumpDir,
			MaxFrame:    maxFrame,
			ReadTimeout: readTimeout,
		}

		bucket, _ := cmd.Flags().GetString("s3-bucket")
		region, _ := cmd.Flags().GetString("s3-region")
		prefix, _ := cmd.Flags().GetString("s3-prefix")
		accessKey, _ := cmd.Flags().GetString("s3-access-key")
		secretKey, _ := cmd.Flags().GetString("s3-secret-key")
		if bucket != "" || region != "" || prefix != "" || accessKey != "" {
			ctx.S3 = &cli.S3Config{
				Bucket:    bucket,
				Region:    region,
				Prefix:    prefix,
				AccessKey: accessKey,
				SecretKey: secretKey,
			}
		}

		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}

		// Make it current if it's the first one.
		if cfg.CurrentContext == "" {
			if err := cfg.UseContext(name); err != nil {
				return err
			}
		}

		cli.PrintSuccess("context %q added", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Switch to a different context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("switched to context %q", args[0])
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("context %q deleted", args[0])
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		names := cfg.ListContexts()
		if len(names) == 0 {
			cli.PrintInfo("no contexts configured (use 'streambuf config add-context')")
			return nil
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tSOURCE\tS3")
		for _, name := range names {
			ctx := cfg.Contexts[name]
			marker := ""
			if name == cfg.CurrentContext {
				marker = "*"
			}
			s3 := ""
			if ctx.S3 != nil {
				s3 = ctx.S3.Bucket
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, name, ctx.Source, s3)
		}
		return w.Flush()
	},
}

var configShowContextCmd = &cobra.Command{
	Use:   "show-context [name]",
	Short: "Show context details",
	Long:  `Show context details. With no name, shows the current context.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		ctx, err := cfg.ResolveContext(name)
		if err != nil {
			return err
		}

		fmt.Printf("Name:         %s\n", ctx.Name)
		fmt.Printf("Source:       %s\n", valueOr(ctx.Source, "(not set)"))
		fmt.Printf("Store dir:    %s\n", valueOr(ctx.StoreDir, "(default)"))
		fmt.Printf("Dump dir:     %s\n", valueOr(ctx.DumpDir, "(default)"))
		if ctx.MaxFrame > 0 {
			fmt.Printf("Max frame:    %s\n", cli.FormatBytesInt(ctx.MaxFrame))
		}
		if ctx.ReadTimeout > 0 {
			fmt.Printf("Read timeout: %ds\n", ctx.ReadTimeout)
		}
		if ctx.S3 != nil {
			fmt.Printf("S3 bucket:    %s\n", ctx.S3.Bucket)
			fmt.Printf("S3 region:    %s\n", ctx.S3.Region)
			if ctx.S3.Prefix != "" {
				fmt.Printf("S3 prefix:    %s\n", ctx.S3.Prefix)
			}
			if ctx.S3.AccessKey != "" {
				fmt.Printf("S3 access:    %s\n", cli.MaskSecret(ctx.S3.AccessKey))
				fmt.Printf("S3 secret:    %s\n", cli.MaskSecret(ctx.S3.SecretKey))
			}
		}
		return nil
	},
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func init() {
	configAddContextCmd.Flags().String("source", "", "default dial URL for record")
	configAddContextCmd.Flags().String("store-dir", "", "capture store directory")
	configAddContextCmd.Flags().String("dump-dir", "", "local dump directory for export/import")
	configAddContextCmd.Flags().Int("max-frame", 0, "frame payload size limit in bytes")
	configAddContextCmd.Flags().Int("read-timeout", 0, "per-read timeout in seconds")
	configAddContextCmd.Flags().String("s3-bucket", "", "S3 bucket for s3:// dump targets")
	configAddContextCmd.Flags().String("s3-region", "", "S3 bucket region")
	configAddContextCmd.Flags().String("s3-prefix", "", "key prefix for S3 dumps")
	configAddContextCmd.Flags().String("s3-access-key", "", "static S3 access key (optional)")
	configAddContextCmd.Flags().String("s3-secret-key", "", "static S3 secret key (optional)")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configShowContextCmd)
	rootCmd.AddCommand(configCmd)
}
