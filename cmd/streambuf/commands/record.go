package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haivivi/streambuf/pkg/buffer"
	"github.com/haivivi/streambuf/pkg/capture"
	"github.com/haivivi/streambuf/pkg/cli"
	"github.com/haivivi/streambuf/pkg/frame"
	"github.com/haivivi/streambuf/pkg/jsontime"
	"github.com/haivivi/streambuf/pkg/source"
)

// Buffer geometry for live recording: enough to hold typical frames
// resident, with load requests batched to at least 8 KiB.
const (
	recordBufferSize = 256 << 10
	recordMinLoading = 8 << 10
)

// recordManifest is the YAML/JSON request file accepted by record -f.
type recordManifest struct {
	Source      string `yaml:"source" json:"source"`
	Note        string `yaml:"note,omitempty" json:"note,omitempty"`
	MaxFrame    int    `yaml:"max_frame,omitempty" json:"max_frame,omitempty"`
	ReadTimeout string `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"` // e.g. "30s"
}

// recordSummary is the machine-readable end-of-run report.
type recordSummary struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Started  jsontime.Milli    `json:"started"`
	Frames   int               `json:"frames"`
	Bytes    int64             `json:"bytes"`
	Chunks   uint64            `json:"chunks"`
	Duration jsontime.Duration `json:"duration"`
	Note     string            `json:"note,omitempty"`
}

var recordCmd = &cobra.Command{
	Use:   "record [url]",
	Short: "Record a framed byte stream into the capture store",
	Long: `Record a framed byte stream into the capture store.

The source URL comes from the argument, the -f manifest, or the context,
in that order. Recording taps every read between the source and the
frame scanner, so the session replays the exact byte stream the scanner
saw, including short reads and the terminal result.

Recording runs until the stream ends or ^C.

Example:
  streambuf record tcp://localhost:9000 --note "reconnect bug"
  streambuf record -f capture.yaml -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecord,
}

func runRecord(cmd *cobra.Command, args []string) error {
	cc, err := currentContext()
	if err != nil {
		return err
	}

	var manifest recordManifest
	if path, _ := cmd.Flags().GetString("manifest"); path == "-" {
		if err := cli.LoadRequestFromStdin(&manifest); err != nil {
			return err
		}
	} else if path != "" {
		if err := cli.LoadRequest(path, &manifest); err != nil {
			return err
		}
	}

	// Argument wins over manifest, manifest over context.
	addr := cc.Source
	if manifest.Source != "" {
		addr = manifest.Source
	}
	if len(args) > 0 {
		addr = args[0]
	}
	if addr == "" {
		return fmt.Errorf("no source: pass a URL, use -f, or set source in the context")
	}

	note, _ := cmd.Flags().GetString("note")
	if note == "" {
		note = manifest.Note
	}

	timeout := time.Duration(cc.ReadTimeout) * time.Second
	if manifest.ReadTimeout != "" {
		d, err := time.ParseDuration(manifest.ReadTimeout)
		if err != nil {
			return fmt.Errorf("invalid read_timeout in manifest: %w", err)
		}
		timeout = d
	}
	if cmd.Flags().Changed("read-timeout") {
		timeout, _ = cmd.Flags().GetDuration("read-timeout")
	}

	maxFrame := cc.MaxFrame
	if manifest.MaxFrame > 0 {
		maxFrame = manifest.MaxFrame
	}
	if cmd.Flags().Changed("max-frame") {
		maxFrame, _ = cmd.Flags().GetInt("max-frame")
	}

	store, err := openStore(cc)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		src    source.Source
		closer io.Closer
	)
	if redial, _ := cmd.Flags().GetBool("redial"); redial {
		dial, err := source.NetDialer(addr)
		if err != nil {
			return err
		}
		rd := source.Redial(ctx, dial, source.WithReadTimeout(timeout))
		src, closer = rd, rd
	} else {
		var err error
		src, closer, err = source.Dial(ctx, addr, timeout)
		if err != nil {
			return err
		}
	}
	defer closer.Close()
	// ^C closes the connection, which unblocks any pending read.
	go func() {
		<-ctx.Done()
		closer.Close()
	}()

	sess := capture.Session{
		ID:      uuid.NewString(),
		Source:  addr,
		Started: time.Now().UnixMilli(),
		Note:    note,
	}
	rec := capture.NewRecorder(src, store, sess)
	if err := rec.Err(); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	slog.Info("recording", "session", sess.ID, "source", addr)

	buf := buffer.New(recordBufferSize, recordMinLoading, 0, rec)
	defer buf.Close()
	opts := []frame.ScannerOption{frame.WithSource(src)}
	if maxFrame > 0 {
		opts = append(opts, frame.WithMaxSize(maxFrame))
	}
	sc := frame.NewScanner(buf, opts...)

	start := time.Now()
	var (
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
		slog.Debug("frame", "index", frames, "size", len(payload))
	}
	elapsed := time.Since(start)
	stop()

	switch {
	case scanErr == io.EOF:
		// Clean end of stream.
	case ctx.Err() != nil:
		cli.PrintInfo("interrupted, recording stopped")
	case errors.Is(scanErr, io.ErrUnexpectedEOF):
		cli.PrintWarning("stream ended mid-frame: %v", scanErr)
	default:
		cli.PrintWarning("stream error: %v", scanErr)
	}
	if err := rec.Err(); err != nil {
		cli.PrintWarning("recording incomplete: %v", err)
	}

	summary := recordSummary{
		ID:       sess.ID,
		Source:   sess.Source,
		Started:  jsontime.Milli(time.UnixMilli(sess.Started)),
		Frames:   frames,
		Bytes:    bytes,
		Chunks:   rec.Chunks(),
		Duration: jsontime.Duration(elapsed),
		Note:     note,
	}

	if format, _ := cmd.Flags().GetString("output"); format != "" {
		return emit(format, summary)
	}

	st := cli.NewStyles(cli.DefaultTheme)
	fmt.Println(st.SummaryBox("Recording complete", [][2]string{
		{"Session", summary.ID},
		{"Source", summary.Source},
		{"Frames", fmt.Sprintf("%d", summary.Frames)},
		{"Bytes", cli.FormatBytes(summary.Bytes)},
		{"Chunks", fmt.Sprintf("%d", summary.Chunks)},
		{"Duration", cli.FormatDuration(int(elapsed.Milliseconds()))},
	}))
	return nil
}

func init() {
	recordCmd.Flags().StringP("manifest", "f", "", "YAML/JSON manifest file, or - for stdin (source, note, max_frame, read_timeout)")
	recordCmd.Flags().String("note", "", "annotation stored with the session")
	recordCmd.Flags().Int("max-frame", 0, "frame payload size limit in bytes")
	recordCmd.Flags().Duration("read-timeout", 0, "per-read timeout (e.g. 30s)")
	recordCmd.Flags().Bool("redial", false, "reconnect with backoff when the connection drops (tcp/tls only); stop with ^C")
	recordCmd.Flags().StringP("output", "o", "", "output format for the summary (yaml|json)")
	rootCmd.AddCommand(recordCmd)
}
