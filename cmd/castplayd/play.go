package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"castplayd/internal/player"
	"castplayd/internal/render"

	"github.com/creack/pty"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a recording in this terminal",
	Long: `Play a recording in this terminal.

Controls (followed by Enter): p or space toggles pause, + and - change the speed,
r rewinds, b bookmarks the current frame, q quits.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().Float64("rate", 0, "Initial playback rate")
	playCmd.Flags().Bool("stay", false, "Keep the last frame on screen instead of exiting at the end")
	bindFlags(map[string]string{"player.default_rate": "rate"}, playCmd.Flags())
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stay, _ := cmd.Flags().GetBool("stay")
	log := newLogger(cfg, os.Stderr)

	rec, err := readRecording(args[0], cfg)
	if err != nil {
		return err
	}

	if rows, cols, err := pty.Getsize(os.Stdout); err == nil {
		if rec.Header.Width > cols || rec.Header.Height > rows {
			fmt.Fprintf(os.Stderr, "warning: recording is %dx%d but the terminal is %dx%d\n",
				rec.Header.Width, rec.Header.Height, cols, rows)
		}
	}

	p := player.New(rec, render.NewANSI(), log, player.Options{
		MinRate:       cfg.Player.MinRate,
		MaxRate:       cfg.Player.MaxRate,
		DefaultRate:   cfg.Player.DefaultRate,
		MaxFrameDelay: cfg.Player.MaxFrameDelay,
		OnContentUpdate: func(content []byte) error {
			return writeFileAtomic(args[0], content)
		},
	})
	defer p.Cleanup()

	done := make(chan struct{})
	var once sync.Once
	last := rec.Len() - 1
	unsubscribe := p.Subscribe(func(n player.Notification) {
		if n.Kind == player.FrameAdvance && n.Position != nil && n.Position.Index == last && !stay {
			once.Do(func() { close(done) })
		}
	})
	defer unsubscribe()

	if err := p.Init(os.Stdout); err != nil {
		return err
	}
	p.Play()

	var edited atomic.Bool
	quit := make(chan struct{})
	go readKeys(os.Stdin, p, &edited, quit)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-done:
	case <-quit:
	case <-sig:
	}
	p.Pause()
	fmt.Fprint(os.Stdout, "\x1b[0m\r\n")

	if edited.Load() {
		return p.CommitBookmarks()
	}
	return nil
}

// readKeys maps single-character commands to player controls. quit is closed on q; end of input
// leaves playback running.
func readKeys(in io.Reader, p *player.Player, edited *atomic.Bool, quit chan<- struct{}) {
	r := bufio.NewReader(in)
	for {
		c, _, err := r.ReadRune()
		if err != nil {
			return
		}
		switch c {
		case 'p', ' ':
			if p.IsPlaying() {
				p.Pause()
			} else {
				p.Play()
			}
		case '+', '=':
			p.Faster()
		case '-', '_':
			p.Slower()
		case 'r':
			p.Reset()
		case 'b':
			p.AddBookmarkAtCursor(fmt.Sprintf("bookmark at %s", p.ElapsedTime()))
			edited.Store(true)
		case 'q':
			close(quit)
			return
		}
	}
}
