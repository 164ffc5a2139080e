package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/haivivi/streambuf/pkg/buffer"
	"github.com/haivivi/streambuf/pkg/capture"
	"github.com/haivivi/streambuf/pkg/cli"
	"github.com/haivivi/streambuf/pkg/encoding"
	"github.com/haivivi/streambuf/pkg/frame"
	"github.com/haivivi/streambuf/pkg/jsontime"
)

// chunkView is one recorded loader call in inspect output. Data is
// included only with --data.
type chunkView struct {
	Seq  uint64                 `json:"seq"`
	Time jsontime.Milli         `json:"time"`
	N    int                    `json:"n"`
	Size int                    `json:"size"`
	Data encoding.StdBase64Data `json:"data,omitempty"`
}

// inspectView is the full inspect report for a session.
type inspectView struct {
	Session sessionView `json:"session"`
	Chunks  []chunkView `json:"chunks,omitempty"`
	Frames  []frameView `json:"frames,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Examine the chunks or frames of a session",
	Long: `Examine the chunks or frames of a session.

By default lists the recorded chunks: one row per loader call with its
sequence number, timestamp, and signed count. With --frames the session
is re-scanned and frames are listed instead. --jq filters the JSON form
of the report, e.g.:

  streambuf inspect 4f2a... --jq '.chunks[] | select(.n <= 0)'
  streambuf inspect 4f2a... --frames --jq '[.frames[].size] | max'`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cc, err := currentContext()
	if err != nil {
		return err
	}
	store, err := openStore(cc)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.Session(args[0])
	if err != nil {
		return err
	}

	view := inspectView{Session: sessionView{
		ID:      sess.ID,
		Source:  sess.Source,
		Started: jsontime.Milli(time.UnixMilli(sess.Started)),
		Note:    sess.Note,
	}}

	withData, _ := cmd.Flags().GetBool("data")
	hex, _ := cmd.Flags().GetBool("hex")
	listFrames, _ := cmd.Flags().GetBool("frames")

	if listFrames {
		if view.Frames, err = scanFrames(store, sess.ID, cc.MaxFrame); err != nil {
			return err
		}
	} else {
		for c, cerr := range store.Chunks(sess.ID) {
			if cerr != nil {
				return cerr
			}
			cv := chunkView{
				Seq:  c.Seq,
				Time: jsontime.Milli(time.UnixMilli(c.Time)),
				N:    c.N,
				Size: len(c.Data),
			}
			if withData {
				cv.Data = encoding.StdBase64Data(c.Data)
			}
			view.Chunks = append(view.Chunks, cv)
		}
	}

	if expr, _ := cmd.Flags().GetString("jq"); expr != "" {
		return runJQ(cmd.Context(), expr, view)
	}
	if format, _ := cmd.Flags().GetString("output"); format != "" {
		return emit(format, view)
	}

	// Human-readable report.
	fmt.Printf("Session: %s\n", sess.ID)
	fmt.Printf("Source:  %s\n", sess.Source)
	fmt.Printf("Started: %s\n", view.Session.Started.Time().Format(time.RFC3339))
	if sess.Note != "" {
		fmt.Printf("Note:    %s\n", sess.Note)
	}
	fmt.Println()

	st := cli.NewStyles(cli.DefaultTheme)
	if listFrames {
		for _, f := range view.Frames {
			fmt.Printf("%6d  %s\n", f.Index, cli.FormatBytesInt(f.Size))
		}
		return nil
	}
	for c, cerr := range store.Chunks(sess.ID) {
		if cerr != nil {
			return cerr
		}
		switch {
		case c.N > 0:
			fmt.Printf("%6d  +%dms  %s\n", c.Seq, c.Time-sess.Started, cli.FormatBytesInt(c.N))
			if hex {
				if err := cli.HexDump(os.Stdout, c.Data, &st); err != nil {
					return err
				}
			}
		case c.N == 0:
			fmt.Printf("%6d  +%dms  end of input\n", c.Seq, c.Time-sess.Started)
		default:
			fmt.Printf("%6d  +%dms  error code %d\n", c.Seq, c.Time-sess.Started, c.N)
		}
	}
	return nil
}

// scanFrames replays the session through the frame scanner and collects
// one frameView per frame.
func scanFrames(store *capture.Store, id string, maxFrame int) ([]frameView, error) {
	rp, err := capture.NewReplayer(store, id)
	if err != nil {
		return nil, err
	}
	buf := buffer.New(recordBufferSize, recordMinLoading, 0, rp)
	defer buf.Close()
	opts := []frame.ScannerOption{frame.WithSource(rp)}
	if maxFrame > 0 {
		opts = append(opts, frame.WithMaxSize(maxFrame))
	}
	sc := frame.NewScanner(buf, opts...)

	var views []frameView
	for {
		payload, err := sc.Next()
		if err == io.EOF {
			return views, nil
		}
		if err != nil {
			return nil, fmt.Errorf("scan frame %d: %w", len(views)+1, err)
		}
		views = append(views, frameView{Index: len(views) + 1, Size: len(payload), Preview: preview(payload)})
	}
}

// runJQ filters the JSON form of v with a jq expression and prints each
// result as a JSON line.
func runJQ(ctx context.Context, expr string, v any) error {
	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	iter := query.RunWithContext(ctx, input)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := out.(error); ok {
			return fmt.Errorf("jq: %w", err)
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
}

func init() {
	inspectCmd.Flags().Bool("frames", false, "list scanned frames instead of recorded chunks")
	inspectCmd.Flags().Bool("hex", false, "hex dump chunk data (text output only)")
	inspectCmd.Flags().Bool("data", false, "include chunk data in yaml/json output")
	inspectCmd.Flags().String("jq", "", "filter the JSON report with a jq expression")
	inspectCmd.Flags().StringP("output", "o", "", "output format (yaml|json)")
	rootCmd.AddCommand(inspectCmd)
}
