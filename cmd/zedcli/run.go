package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"zedvoice/internal/bootstrap"
	"zedvoice/internal/config"
	"zedvoice/internal/domain"
	"zedvoice/internal/logging"
)

func runCmd() *cobra.Command {
	var mode string
	var url string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a voice session in the terminal",
		Long: `Start a voice session. Lines typed on stdin are sent as text queries.

Commands:
  /rec           toggle a push-to-talk recording
  /mode <mode>   switch to push-to-talk or hands-free
  /clear         clear the conversation
  /reconnect     reconnect to the reasoning service
  /quit          exit`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, mode, url)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "capture mode at startup (push-to-talk or hands-free)")
	cmd.Flags().StringVar(&url, "url", "", "reasoning service websocket endpoint")
	return cmd
}

func runSession(cmd *cobra.Command, mode, url string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if mode != "" {
		parsed, ok := domain.ParseCaptureMode(mode)
		if !ok {
			return fmt.Errorf("unknown capture mode %q", mode)
		}
		cfg.Session.Mode = string(parsed)
	}
	if url != "" {
		cfg.Server.URL = url
	}

	log, closeLog, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File, Console: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer closeLog()

	out := cmd.OutOrStdout()
	services, err := bootstrap.BuildWith(cfg, newConsoleSink(out), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := services.Engine
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(out, "connecting to %s in %s mode, /quit to exit\n", cfg.Server.URL, cfg.Session.Mode)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleLine(engine, line)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// commander is the part of the engine the terminal drives.
type commander interface {
	ToggleRecording() error
	SetMode(mode domain.CaptureMode) error
	SendText(text string) error
	Clear() error
	Reconnect() error
}

var errUnknownCommand = errors.New("unknown command")

// handleLine runs one line of input. It reports whether the session should end.
func handleLine(c commander, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, c.SendText(line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/rec":
		return false, c.ToggleRecording()
	case "/mode":
		if len(fields) < 2 {
			return false, errors.New("usage: /mode push-to-talk|hands-free")
		}
		mode, ok := domain.ParseCaptureMode(fields[1])
		if !ok {
			return false, fmt.Errorf("unknown capture mode %q", fields[1])
		}
		return false, c.SetMode(mode)
	case "/clear":
		return false, c.Clear()
	case "/reconnect":
		return false, c.Reconnect()
	default:
		return false, fmt.Errorf("%w %s", errUnknownCommand, fields[0])
	}
}

// consoleSink prints engine events as plain lines.
type consoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (s *consoleSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *consoleSink) StatusChanged(status domain.Status, reason domain.StatusReason) {
	s.printf("[%s] %s\n", status, reason)
}

func (s *consoleSink) Transcription(text string) {
	s.printf("heard: %s\n", text)
}

// ResponseUpdated is quiet; the full reply prints once it is promoted.
func (s *consoleSink) ResponseUpdated(string) {}

func (s *consoleSink) MessageAppended(message domain.ChatMessage) {
	if message.Role == domain.RoleAssistant {
		s.printf("zed: %s\n", message.Content)
	}
}

func (s *consoleSink) LevelSampled(float64) {}

func (s *consoleSink) SessionError(code domain.ErrorCode, detail string) {
	s.printf("! %s: %s\n", code, detail)
}
