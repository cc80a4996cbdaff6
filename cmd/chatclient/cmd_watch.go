package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"github.com/thereayou/taskchat/internal/chat"
)

var sendFile string

var watchCmd = &cobra.Command{
	Use:   "watch ROOM",
	Short: "Follow a room and chat from stdin",
	Long: `Follow a room by id or name. Every line typed on stdin is sent as a
message.

  /file PATH [text]  send a file, optionally with a caption
  /dismiss           drop messages that failed to send
  /quit              leave`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var sendCmd = &cobra.Command{
	Use:   "send ROOM [TEXT]",
	Short: "Send one message, optionally with --file",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendFile, "file", "f", "", "attach a file")
	rootCmd.AddCommand(watchCmd, sendCmd)
}

type roomView struct {
	session  *chat.Session
	engine   *chat.Engine
	room     *chat.RoomSession
	composer *chat.Composer
}

// openRoom authorizes and starts polling ROOM. Call engine.Stop when done.
func openRoom(ctx context.Context, ref string) (*roomView, error) {
	session, client, err := openSession()
	if err != nil {
		return nil, err
	}
	dir := chat.NewDirectory(session, client)
	room, err := findRoom(ctx, dir, ref)
	if err != nil {
		return nil, err
	}

	engine := chat.NewEngine(client, dir,
		chat.WithPollInterval(cfg.PollInterval),
		chat.WithHistoryLimit(cfg.HistoryLimit),
		chat.WithLogger(logger),
	)
	rs, err := engine.Start(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	return &roomView{
		session:  session,
		engine:   engine,
		room:     rs,
		composer: chat.NewComposer(client, dir, rs, logger),
	}, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	v, err := openRoom(ctx, args[0])
	if err != nil {
		return err
	}
	defer v.engine.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", titleStyle.Render(v.room.Room().Name), dimStyle.Render("(/quit to leave)"))
	return v.loop(ctx, out, readLines(cmd.InOrStdin()))
}

// loop renders the room and sends typed lines. Posts run in their own
// goroutines so pending entries and poll results keep rendering meanwhile.
func (v *roomView) loop(ctx context.Context, out io.Writer, lines <-chan string) error {
	f := newFeed(v.session.User(), v.session.BaseURL())
	errs := make(chan error, 8)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-v.room.Done():
			return nil
		case <-v.room.Updates():
			for _, l := range f.next(v.room.Visible()) {
				fmt.Fprintln(out, l)
			}
		case err := <-errs:
			fmt.Fprintln(out, errorStyle.Render(describe(err)))
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			send, quit, err := v.handleInput(line)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render(describe(err)))
			}
			if quit {
				return nil
			}
			if send != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := send(ctx); err != nil {
						// failed posts also show up in the feed
						select {
						case errs <- err:
						default:
						}
					}
				}()
			}
		}
	}
}

// handleInput applies commands right away and returns the post to run, if any.
func (v *roomView) handleInput(line string) (send func(context.Context) error, quit bool, err error) {
	cmd := strings.TrimSpace(line)
	switch {
	case cmd == "":
		return nil, false, nil
	case cmd == "/quit":
		return nil, true, nil
	case cmd == "/dismiss":
		for _, p := range v.room.Pending() {
			if p.Status == chat.StatusFailed {
				v.room.DismissFailed(p.Message.ID)
			}
		}
		return nil, false, nil
	case strings.HasPrefix(cmd, "/file "):
		path, caption, _ := strings.Cut(strings.TrimSpace(strings.TrimPrefix(cmd, "/file ")), " ")
		upload, closeFn, err := openUpload(path)
		if err != nil {
			return nil, false, err
		}
		return func(ctx context.Context) error {
			defer closeFn()
			_, err := v.composer.Submit(ctx, caption, upload)
			return err
		}, false, nil
	}
	return func(ctx context.Context) error {
		_, err := v.composer.Submit(ctx, line, nil)
		return err
	}, false, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	v, err := openRoom(ctx, args[0])
	if err != nil {
		return err
	}
	defer v.engine.Stop()

	text := ""
	if len(args) > 1 {
		text = args[1]
	}

	var entry chat.PendingEntry
	if sendFile != "" {
		upload, closeFn, err := openUpload(sendFile)
		if err != nil {
			return err
		}
		defer closeFn()
		entry, err = v.composer.Submit(ctx, text, upload)
		if err != nil {
			return err
		}
	} else {
		entry, err = v.composer.Submit(ctx, text, nil)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sent #%d\n", entry.ServerID)
	return nil
}

// openUpload sniffs the file's type from its content.
func openUpload(path string) (*chat.Upload, func(), error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	contentType, _, _ := strings.Cut(mt.String(), ";")
	return &chat.Upload{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Body:        f,
	}, func() { _ = f.Close() }, nil
}

func readLines(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			out <- sc.Text()
		}
	}()
	return out
}
