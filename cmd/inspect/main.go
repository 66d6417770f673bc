// Command inspect drives H2FS or PDFTok over one or more input files,
// feeding each in fixed-size or randomly-fragmented chunks to exercise
// the same incremental, arbitrary-segmentation contract the core
// itself promises. One goroutine per input file, each owning its own
// Scanner/Lexer instance with no shared mutable state (spec.md §5).
package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"syscall"

	"github.com/qpoint-io/h2pdfinspect/pkg/buildinfo"
	"github.com/qpoint-io/h2pdfinspect/pkg/h2fs"
	"github.com/qpoint-io/h2pdfinspect/pkg/limits"
	"github.com/qpoint-io/h2pdfinspect/pkg/pdftok"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var (
	mode        string
	inputs      []string
	chunkSize   int
	logLevel    string
	logEncoding string
	logCaller   bool
	limitsPath  string

	rootCmd = &cobra.Command{
		Use:     "inspect",
		Short:   "Drive H2FS or PDFTok over one or more input files",
		Version: buildinfo.Version(),
		RunE:    run,
	}
)

func init() {
	rootCmd.Flags().StringVar(&mode, "mode", "", "inspection mode: h2fs or pdftok (required)")
	rootCmd.Flags().StringArrayVar(&inputs, "input", nil, "input file path (repeatable)")
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", 4096,
		"bytes fed per Process call; 0 picks a random 1..64 byte fragment each call")
	rootCmd.Flags().StringVar(&logLevel, "log-level", getEnvOr("LOG_LEVEL", "info"),
		"log level (debug, info, warn, error, dpanic, panic, fatal)")
	rootCmd.Flags().StringVar(&logEncoding, "log-encoding", getEnvOr("LOG_ENCODING", defaultLogEncoding()),
		"log encoding (console, json)")
	rootCmd.Flags().BoolVar(&logCaller, "log-caller", false, "log caller")
	rootCmd.Flags().StringVar(&limitsPath, "limits", "", "optional YAML file overriding pkg/limits defaults")

	_ = rootCmd.MarkFlagRequired("mode")
	_ = rootCmd.MarkFlagRequired("input")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if mode != "h2fs" && mode != "pdftok" {
		return fmt.Errorf("--mode must be h2fs or pdftok, got %q", mode)
	}

	logger := initLogger()
	defer syncLogger(logger)

	lim := limits.Default()
	if limitsPath != "" {
		var err error
		lim, err = limits.Load(limitsPath)
		if err != nil {
			return fmt.Errorf("loading limits: %w", err)
		}
	}

	var wg conc.WaitGroup
	failed := make([]bool, len(inputs))
	for i, path := range inputs {
		i, path := i, path
		wg.Go(func() {
			fileLogger := logger.With(zap.String("input", path), zap.String("mode", mode))
			if err := inspectFile(path, mode, lim, fileLogger); err != nil {
				fileLogger.Error("inspection failed", zap.Error(err))
				failed[i] = true
			}
		})
	}
	wg.Wait()

	for _, f := range failed {
		if f {
			return errors.New("one or more inputs failed inspection")
		}
	}
	return nil
}

func inspectFile(path, mode string, lim limits.Limits, logger *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	switch mode {
	case "h2fs":
		return inspectH2FS(f, lim, logger)
	case "pdftok":
		return inspectPDFTok(f, lim, logger)
	}
	return nil
}

// inspectH2FS drives a single client→server Scanner/Reassembler pair
// over f, logging every Flush and Abort. passthroughCutter stands in
// for the caller-supplied DataCutter spec.md §6 requires: this CLI has
// no HTTP/1-over-HTTP/2 body tracker of its own, so DATA frames are
// cut and reassembled whole, one frame per Flush.
//
// Scan is fed the raw bytes of one read at a time (never a cumulative
// buffer): a Search verdict means the whole chunk fed so far belongs
// to a PDU still being assembled and must be held onto, per spec.md
// §4.1's "caller should deliver chunk[..flush_offset] (plus any
// previously-buffered bytes) to the reassembler". segments accumulates
// exactly those held-onto pieces until the PDU's terminal Flush, at
// which point the whole PDU's byte count is known and each segment is
// replayed into Reassemble in order, PDUTail set only on the last.
func inspectH2FS(f *os.File, lim limits.Limits, logger *zap.Logger) error {
	state := h2fs.NewDirectionState(h2fs.ClientToServer)
	cutter := &passthroughCutter{}
	sink := loggingEventSink{logger: logger}
	scanner := h2fs.NewScanner(state, h2fs.ClientToServer, sink, cutter, lim, h2fs.WithLogger(logger))
	reassembler := h2fs.NewReassembler(state, cutter, logger)

	var segments [][]byte
	pduCount := 0

	err := forEachChunk(f, func(chunk []byte) error {
		rest := chunk
		for len(rest) > 0 {
			status, flushOffset, discard, err := scanner.Scan(rest)
			if err != nil {
				return err
			}
			switch status {
			case h2fs.Abort:
				return fmt.Errorf("h2fs scan aborted")
			case h2fs.Search:
				if !state.Preface {
					segments = append(segments, append([]byte(nil), rest...))
				}
				rest = nil
			case h2fs.Flush:
				if discard {
					segments = nil
					rest = rest[flushOffset:]
					continue
				}
				segments = append(segments, append([]byte(nil), rest[:flushOffset]...))

				var total uint32
				for _, seg := range segments {
					total += uint32(len(seg))
				}
				var offset uint32
				var last h2fs.StreamBuffer
				for i, seg := range segments {
					flags := h2fs.ReassembleFlags(0)
					if i == len(segments)-1 {
						flags = h2fs.PDUTail
					}
					last = reassembler.Reassemble(total, offset, seg, flags)
					offset += uint32(len(seg))
				}
				pduCount++
				logger.Info("flushed PDU",
					zap.Int("header_bytes", len(state.FrameHeaderBuf)),
					zap.Int("data_bytes", len(state.FrameDataBuf)),
					zap.Bool("tail", last.Tail))
				state.Reset()
				segments = nil
				rest = rest[flushOffset:]
			}
		}
		return nil
	})
	logger.Info("h2fs scan complete", zap.Int("pdus_flushed", pduCount))
	return err
}

func inspectPDFTok(f *os.File, lim limits.Limits, logger *zap.Logger) error {
	lexer, err := pdftok.NewLexer(stdoutSink{}, lim, logger)
	if err != nil {
		return fmt.Errorf("building lexer: %w", err)
	}

	err = forEachChunk(f, func(chunk []byte) error {
		ret, err := lexer.Process(chunk)
		if err != nil {
			return err
		}
		_ = ret
		return nil
	})
	if err != nil {
		return err
	}

	ret, err := lexer.Close()
	if err != nil {
		return err
	}
	logger.Info("pdftok scan complete", zap.Stringer("result", ret))
	return nil
}

// forEachChunk reads f in chunkSize pieces, or in random 1..64 byte
// fragments when chunkSize is 0, calling fn with each non-empty chunk.
func forEachChunk(f *os.File, fn func([]byte) error) error {
	size := chunkSize
	if size <= 0 {
		size = 64
	}
	buf := make([]byte, size)
	for {
		n := len(buf)
		if chunkSize <= 0 {
			n = 1 + rand.Intn(64)
			if n > len(buf) {
				n = len(buf)
			}
		}
		read, err := f.Read(buf[:n])
		if read > 0 {
			if ferr := fn(buf[:read]); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// passthroughCutter is the CLI's stand-in DataCutter: it treats an
// entire DATA frame payload as one deliverable unit, with no
// HTTP/1-over-HTTP/2 body semantics layered on top.
type passthroughCutter struct {
	remaining uint32
}

func (c *passthroughCutter) Scan(chunk []byte, dataOffset int, frameLength uint32, _ uint8) (h2fs.Status, int, int) {
	avail := len(chunk) - dataOffset
	if uint32(avail) >= frameLength {
		return h2fs.Flush, dataOffset + int(frameLength), dataOffset + int(frameLength)
	}
	c.remaining = frameLength - uint32(avail)
	return h2fs.Search, len(chunk), 0
}

func (c *passthroughCutter) Continue(chunk []byte, dataOffset int) (h2fs.Status, int, int) {
	avail := uint32(len(chunk) - dataOffset)
	if avail >= c.remaining {
		flush := dataOffset + int(c.remaining)
		c.remaining = 0
		return h2fs.Flush, flush, flush
	}
	c.remaining -= avail
	return h2fs.Search, len(chunk), 0
}

func (c *passthroughCutter) Reassemble(chunk []byte) h2fs.StreamBuffer {
	return h2fs.StreamBuffer{Data: chunk, Tail: true}
}

// loggingEventSink reports every H2FS protocol-violation event as a
// structured log line; this CLI has no detection pipeline of its own
// to forward events into.
type loggingEventSink struct {
	logger *zap.Logger
}

func (s loggingEventSink) RecordEvent(id h2fs.EventID) {
	s.logger.Warn("h2fs event", zap.Stringer("event", id))
}

func (s loggingEventSink) AccumulateInfraction(id h2fs.InfractionID) {
	s.logger.Debug("h2fs infraction", zap.Int("infraction", int(id)))
}

// stdoutSink writes decoded JS text straight to stdout.
type stdoutSink struct{}

func (stdoutSink) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func defaultLogEncoding() string {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "console"
	}
	return "json"
}

func getEnvOr(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func convertStringToZapLevel(levelStr string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(levelStr)); err != nil {
		return 0, fmt.Errorf("invalid log level: %s", levelStr)
	}
	return l, nil
}

func initLogger() *zap.Logger {
	level, err := convertStringToZapLevel(logLevel)
	if err != nil {
		panic("error: invalid log level: " + err.Error())
	}

	cfg := zap.NewProductionConfig()
	cfg.DisableCaller = !logCaller
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = logEncoding
	cfg.EncoderConfig.MessageKey = "message"

	if strings.EqualFold(logEncoding, "console") {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	}

	l, err := cfg.Build()
	if err != nil {
		panic("error: couldn't create a logger: " + err.Error())
	}
	return l
}

func syncLogger(logger *zap.Logger) {
	if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		fmt.Fprintf(os.Stderr, "syncing logger: %v\n", err)
	}
}
