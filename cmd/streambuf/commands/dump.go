package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/streambuf/pkg/capture"
	"github.com/haivivi/streambuf/pkg/cli"
	"github.com/haivivi/streambuf/pkg/jsontime"
	"github.com/haivivi/streambuf/pkg/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id> <target>",
	Short: "Export a session as a portable dump",
	Long: `Export a session as a portable dump.

The target is either a path under the context's dump directory or an
s3://bucket/key URL. S3 targets use the s3 settings of the context.

Example:
  streambuf export 4f2a... bug-1234.dump
  streambuf export 4f2a... s3://captures/dumps/bug-1234.dump`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := currentContext()
		if err != nil {
			return err
		}
		store, err := openStore(cc)
		if err != nil {
			return err
		}
		defer store.Close()

		fs, path, err := dumpTarget(cc, args[1])
		if err != nil {
			return err
		}
		if err := capture.Export(cmd.Context(), store, args[0], fs, path); err != nil {
			return err
		}
		cli.PrintSuccess("session %s exported to %s", args[0], args[1])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <target>",
	Short: "Import a session dump into the store",
	Long: `Import a session dump into the store.

The target is either a path under the context's dump directory or an
s3://bucket/key URL. Importing a session that already exists in the
store fails without writing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := currentContext()
		if err != nil {
			return err
		}
		store, err := openStore(cc)
		if err != nil {
			return err
		}
		defer store.Close()

		fs, path, err := dumpTarget(cc, args[0])
		if err != nil {
			return err
		}
		sess, err := capture.Import(cmd.Context(), store, fs, path)
		if err != nil {
			return err
		}

		if format, _ := cmd.Flags().GetString("output"); format != "" {
			return emit(format, sessionView{
				ID:      sess.ID,
				Source:  sess.Source,
				Started: jsontime.Milli(time.UnixMilli(sess.Started)),
				Note:    sess.Note,
			})
		}
		cli.PrintSuccess("session %s imported", sess.ID)
		return nil
	},
}

var dumpsCmd = &cobra.Command{
	Use:   "dumps [prefix]",
	Short: "List dumps in the dump directory or S3 bucket",
	Long: `List dumps in the dump directory or S3 bucket.

With --s3 the context's bucket is listed; otherwise the local dump
directory. An optional prefix narrows the listing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cc, err := currentContext()
		if err != nil {
			return err
		}

		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}

		var fs storage.FileStore
		if useS3, _ := cmd.Flags().GetBool("s3"); useS3 {
			if cc.S3 == nil || cc.S3.Bucket == "" {
				return fmt.Errorf("no s3 bucket configured in the context")
			}
			client, keyPrefix, err := s3ClientFor(cc)
			if err != nil {
				return err
			}
			fs = storage.NewS3(client, cc.S3.Bucket, keyPrefix)
		} else {
			root := cc.DumpDir
			if root == "" {
				paths, err := cli.NewPaths(appName)
				if err != nil {
					return err
				}
				if err := paths.EnsureDumpDir(); err != nil {
					return err
				}
				root = paths.DumpDir()
			}
			if fs, err = storage.NewLocal(root); err != nil {
				return err
			}
		}

		n := 0
		for name, err := range fs.List(cmd.Context(), prefix) {
			if err != nil {
				return err
			}
			fmt.Println(name)
			n++
		}
		if n == 0 {
			cli.PrintInfo("no dumps found")
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringP("output", "o", "", "output the imported session as yaml|json")
	dumpsCmd.Flags().Bool("s3", false, "list the context's S3 bucket instead of the local dump directory")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(dumpsCmd)
}
