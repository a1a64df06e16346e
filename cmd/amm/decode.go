package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammPool/internal/config"
	"ammPool/internal/dex"
	"ammPool/internal/model"
)

func decodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode-events",
		Short: "Decode emitted EVM logs (JSONL) back into typed pool and role events",
		RunE:  runDecode,
	}
	cmd.Flags().String("in", "", "input JSONL of log records")
	cmd.Flags().String("out", "./data/typed_events.jsonl", "output JSONL of typed events")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "output JSONL of decode errors")
	cmd.Flags().String("topic0-map", "", "topic0 aliases (topic0=EventName,...)")
	return cmd
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoder, err := dex.NewEventDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := newJSONLWriter(cfg.Out)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(cfg.Errors)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	scanner := bufio.NewScanner(inputFile)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var total, decoded, skipped, failed int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			writeDecodeError(errWriter, model.DecodeError{Error: err.Error()})
			continue
		}
		if len(record.Topics) == 0 {
			failed++
			writeDecodeError(errWriter, model.NewDecodeError(record, fmt.Errorf("missing topic0")))
			continue
		}
		if !decoder.CanDecode(record.Topic0()) {
			skipped++
			continue
		}

		event, err := decoder.Decode(record)
		if err != nil {
			failed++
			writeDecodeError(errWriter, model.NewDecodeError(record, err))
			continue
		}
		if err := outWriter.Write(event); err != nil {
			return err
		}
		decoded++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

// newJSONLWriter truncates path, creating its directory when needed.
func newJSONLWriter(path string) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return &jsonlWriter{file: file, writer: bufio.NewWriter(file)}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func writeDecodeError(writer *jsonlWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
