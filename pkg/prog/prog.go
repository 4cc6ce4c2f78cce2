// Package prog implements the asyncline demo: a command prompt that keeps
// working while timers and a logger print above it.
package prog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/elves/asyncline/pkg/errutil"
	"github.com/elves/asyncline/pkg/histstore"
	"github.com/elves/asyncline/pkg/line"
	"github.com/elves/asyncline/pkg/logutil"
	"github.com/elves/asyncline/pkg/readline"
	"github.com/elves/asyncline/pkg/rlmetrics"
	"github.com/elves/asyncline/pkg/sharedwriter"
)

var logger = logutil.GetLogger("[demo] ")

const helpMarkdown = `# Commands

- **start** *task|logging|printouts*
- **stop** *task|logging|printouts*
- **info**: show some information
- **history**: list the history
- **prompt** *text*: change the prompt
- **clear**: clear the screen
- **help**: show this help
- **quit**: exit; so does Ctrl-D
`

// Run runs the demo on tty until the user quits. If tty is nil, stdin and
// stdout are used.
func Run(ctx context.Context, cfg Config, tty readline.TTY) (err error) {
	if tty == nil {
		tty = readline.NewTTY(os.Stdin, os.Stdout)
	}
	width, _ := tty.Size()
	profile := termenv.Ascii
	if cfg.Color {
		profile = termenv.ColorProfile()
	}
	help, err := renderHelp(width, cfg.Color)
	if err != nil {
		return err
	}

	var metrics *rlmetrics.Metrics
	if cfg.MetricsAddr != "" {
		metrics = rlmetrics.New()
	}
	rl, out, err := readline.New(readline.Spec{
		Prompt:     stylePrompt(cfg.Prompt, profile),
		TTY:        tty,
		MaxHistory: cfg.MaxHistory,
		Emacs:      cfg.Emacs,
		Metrics:    metrics,
	})
	if err != nil {
		return err
	}
	rl.ShouldPrintLineOn(cfg.Echo, cfg.Echo)

	// The close functions run in reverse order, the terminal last.
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = errutil.Multi(err, closers[i]())
		}
	}()
	closers = append(closers, rl.Close)

	if cfg.Log != "" {
		if err := logutil.SetOutputFile(cfg.Log); err != nil {
			return err
		}
	} else {
		logOut := out.Clone()
		logutil.SetOutput(logOut)
		closers = append(closers, func() error {
			logutil.SetOutput(io.Discard)
			return logOut.Close()
		})
	}

	d := &demo{rl: rl, out: out, profile: profile, help: help}
	d.runningTask.Store(true)

	if cfg.HistoryDB != "" {
		store, err := histstore.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		closers = append(closers, func() error {
			return errutil.Multi(store.Trim(cfg.MaxHistory), store.Close())
		})
		entries, err := store.LastCmds(cfg.MaxHistory)
		if err != nil {
			return err
		}
		rl.SetHistoryEntries(entries)
		d.store = store
	}

	if metrics != nil {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Println("metrics server:", err)
			}
		}()
		closers = append(closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		})
	}

	timerCtx, stopTimers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tick(timerCtx, cfg.TaskInterval, func() {
			if d.runningTask.Load() {
				out.WriteContext(timerCtx, []byte("First timer went off!\n"))
			}
		})
	}()
	go func() {
		defer wg.Done()
		tick(timerCtx, cfg.LoggingInterval, func() {
			if d.runningLogging.Load() {
				logger.Println("Second timer went off!")
			}
		})
	}()
	closers = append(closers, func() error {
		// Print what is left, so that nothing written before exiting is lost.
		return errutil.Multi(out.Close(), rl.Flush())
	}, func() error {
		stopTimers()
		wg.Wait()
		return nil
	})

	return d.loop(ctx)
}

func tick(ctx context.Context, interval time.Duration, f func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f()
		case <-ctx.Done():
			return
		}
	}
}

func renderHelp(width int, color bool) (string, error) {
	style := "notty"
	if color {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return "", err
	}
	return r.Render(helpMarkdown)
}

func stylePrompt(prompt string, p termenv.Profile) string {
	if p == termenv.Ascii {
		return prompt
	}
	return termenv.String(prompt).Foreground(p.Color("#818cf8")).Bold().String()
}

type demo struct {
	rl      *readline.Readline
	out     *sharedwriter.Writer
	store   *histstore.Store
	profile termenv.Profile
	help    string

	runningTask    atomic.Bool
	runningLogging atomic.Bool
}

func (d *demo) loop(ctx context.Context) error {
	for {
		output, err := d.rl.Readline(ctx)
		if err != nil {
			if err == readline.ErrClosed || err == context.Canceled {
				return nil
			}
			d.println("Received err:", err)
			d.println("Exiting...")
			return err
		}
		switch output := output.(type) {
		case line.Line:
			quit, err := d.handleLine(string(output))
			if quit || err != nil {
				return err
			}
		case line.Interrupted:
			d.println("^C")
		case line.EOF:
			d.println("Exiting...")
			return nil
		}
	}
}

// Prints a line above the prompt. It is called outside of Readline, so it can
// make room in a full channel by flushing.
func (d *demo) println(a ...any) error {
	text := fmt.Sprintln(a...)
	for {
		_, err := io.WriteString(d.out, text)
		if err != sharedwriter.ErrWouldBlock {
			return err
		}
		if err := d.rl.Flush(); err != nil {
			return err
		}
	}
}

func (d *demo) handleLine(text string) (quit bool, err error) {
	text = strings.TrimSpace(text)
	d.rl.AddHistoryEntry(text)
	if d.store != nil && text != "" {
		if _, err := d.store.AddCmd(text); err != nil {
			logger.Println("cannot save history:", err)
		}
	}

	cmd, arg, _ := strings.Cut(text, " ")
	switch cmd {
	case "start", "stop":
		start := cmd == "start"
		switch arg {
		case "task":
			if start {
				err = d.println("Starting the task...")
			} else {
				err = d.println("Stopping the task...")
			}
			d.runningTask.Store(start)
		case "logging":
			if start {
				logger.Println("Starting the logger...")
			} else {
				logger.Println("Stopping the logger...")
			}
			d.runningLogging.Store(start)
		case "printouts":
			d.rl.ShouldPrintLineOn(start, start)
		default:
			err = d.println("Usage:", cmd, "task|logging|printouts")
		}
	case "info":
		err = d.println("hello there\nasyncline edits one line while others print\nits pretty cool")
	case "help":
		err = d.println(strings.TrimRight(d.help, "\n"))
	case "history":
		for i, entry := range d.rl.HistoryEntries() {
			if err = d.println(fmt.Sprintf("%4d  %s", i+1, entry)); err != nil {
				break
			}
		}
	case "prompt":
		err = d.rl.UpdatePrompt(stylePrompt(arg, d.profile))
	case "clear":
		err = d.rl.Clear()
	case "quit":
		return true, nil
	case "":
	default:
		err = d.println(fmt.Sprintf("Command not found: %q", text))
	}
	return false, err
}
