package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/streambuf/pkg/buffer"
	"github.com/haivivi/streambuf/pkg/capture"
	"github.com/haivivi/streambuf/pkg/cli"
	"github.com/haivivi/streambuf/pkg/encoding"
	"github.com/haivivi/streambuf/pkg/frame"
)

// frameView is one scanned frame in replay/inspect output. Preview holds
// at most previewBytes of the payload, hex-encoded in JSON/YAML.
type frameView struct {
	Index   int              `json:"index"`
	Size    int              `json:"size"`
	Preview encoding.HexData `json:"preview,omitempty"`
}

const previewBytes = 32

func preview(payload []byte) encoding.HexData {
	n := min(len(payload), previewBytes)
	return encoding.HexData(append([]byte(nil), payload[:n]...))
}

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Replay a recorded session through the frame scanner",
	Long: `Replay a recorded session through the frame scanner.

The session's byte stream is reproduced exactly as recorded, short reads
and terminal result included, and scanned into frames. This is the same
code path 'record' runs against the live source.

Example:
  streambuf replay 4f2a... --hex`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	cc, err := currentContext()
	if err != nil {
		return err
	}
	store, err := openStore(cc)
	if err != nil {
		return err
	}
	defer store.Close()

	rp, err := capture.NewReplayer(store, args[0])
	if err != nil {
		return err
	}

	maxFrame := cc.MaxFrame
	if cmd.Flags().Changed("max-frame") {
		maxFrame, _ = cmd.Flags().GetInt("max-frame")
	}

	buf := buffer.New(recordBufferSize, recordMinLoading, 0, rp)
	defer buf.Close()
	opts := []frame.ScannerOption{frame.WithSource(rp)}
	if maxFrame > 0 {
		opts = append(opts, frame.WithMaxSize(maxFrame))
	}
	sc := frame.NewScanner(buf, opts...)

	hex, _ := cmd.Flags().GetBool("hex")
	format, _ := cmd.Flags().GetString("output")
	st := cli.NewStyles(cli.DefaultTheme)

	var (
		views   []frameView
		frames  int
		bytes   int64
		scanErr error
	)
	for {
		payload, err := sc.Next()
		if err != nil {
			scanErr = err
			break
		}
		frames++
		bytes += int64(len(payload))

		switch {
		case format != "":
			views = append(views, frameView{Index: frames, Size: len(payload), Preview: preview(payload)})
		case hex:
			fmt.Printf("--- frame %d (%s)\n", frames, cli.FormatBytesInt(len(payload)))
			if err := cli.HexDump(os.Stdout, payload, &st); err != nil {
				return err
			}
		default:
			fmt.Printf("%6d  %s\n", frames, cli.FormatBytesInt(len(payload)))
		}
	}

	if format != "" {
		if err := emit(format, views); err != nil {
			return err
		}
	}

	switch {
	case scanErr == io.EOF:
		cli.PrintSuccess("replayed %d frames (%s)", frames, cli.FormatBytes(bytes))
	case errors.Is(scanErr, io.ErrUnexpectedEOF):
		cli.PrintWarning("recording ends mid-frame after %d frames: %v", frames, scanErr)
	default:
		cli.PrintWarning("replay ended after %d frames: %v", frames, scanErr)
	}
	return nil
}

func init() {
	replayCmd.Flags().Bool("hex", false, "hex dump each frame payload")
	replayCmd.Flags().Int("max-frame", 0, "frame payload size limit in bytes")
	replayCmd.Flags().StringP("output", "o", "", "output frame list as yaml|json instead of text")
	rootCmd.AddCommand(replayCmd)
}
