package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/thereayou/taskchat/internal/chat"
	"github.com/thereayou/taskchat/internal/config"
)

var (
	// Global flags
	apiURL  string
	debug   bool
	timeout time.Duration

	cfg    *config.ClientConfig
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatclient",
	Short: "Terminal client for task chat rooms",
	Long: `chatclient talks to the task chat API.

Log in once, then list rooms, create rooms, watch a room live or send a
message (optionally with an attachment) from scripts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadClient()
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.APIURL = apiURL
		}
		if debug {
			cfg.Debug = true
		}

		level := zerolog.WarnLevel
		if cfg.Debug {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (overrides TASKCHAT_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "per-request timeout")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(describe(err)))
		os.Exit(1)
	}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: timeout}
}

// openSession restores the stored login and builds an API client for it.
func openSession() (*chat.Session, *chat.Client, error) {
	stored, err := config.LoadSession(cfg.SessionFile)
	if err != nil {
		return nil, nil, err
	}
	session := chat.NewSession(stored.BaseURL, stored.Token, chat.User{
		ID:    stored.UserID,
		Name:  stored.UserName,
		Email: stored.UserEmail,
	})
	client := chat.NewClient(session, chat.WithHTTPClient(httpClient()), chat.WithClientLogger(logger))
	return session, client, nil
}

// findRoom accepts a room id or a case-insensitive room name.
func findRoom(ctx context.Context, dir *chat.Directory, ref string) (chat.Room, error) {
	rooms, err := dir.ListRooms(ctx)
	if err != nil {
		return chat.Room{}, err
	}
	if id, err := uuid.Parse(ref); err == nil {
		for _, r := range rooms {
			if r.ID == id {
				return r, nil
			}
		}
		return chat.Room{}, fmt.Errorf("room %s not found among your rooms", ref)
	}

	var matches []chat.Room
	for _, r := range rooms {
		if strings.EqualFold(r.Name, ref) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return chat.Room{}, fmt.Errorf("no room named %q", ref)
	case 1:
		return matches[0], nil
	default:
		return chat.Room{}, fmt.Errorf("%d rooms are named %q, use the id", len(matches), ref)
	}
}

func describe(err error) string {
	var ve *chat.ValidationError
	var ae *chat.AuthorizationError
	var te *chat.TransportError
	switch {
	case errors.Is(err, config.ErrNoSession), errors.Is(err, chat.ErrSessionClosed):
		return "not logged in, run: chatclient login"
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &ae):
		return "not allowed: " + ae.Error()
	case errors.As(err, &te):
		return "request failed: " + te.Error()
	default:
		return err.Error()
	}
}
