// Package console prints human-readable status: colored markers, progress
// bars and the slog logger used for debug output. None of it is a
// machine-readable protocol.
package console

import (
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// Reporter writes status lines to w (normally stderr).
type Reporter struct {
	w        io.Writer
	progress bool
}

func NewReporter(w io.Writer, progress bool) *Reporter {
	if f, ok := w.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		progress = false
	}
	return &Reporter{w: w, progress: progress}
}

func (r *Reporter) Writer() io.Writer {
	return r.w
}

func (r *Reporter) Info(format string, args ...any) {
	fmt.Fprintf(r.w, format+"\n", args...)
}

func (r *Reporter) Notice(format string, args ...any) {
	infoColor.Fprintf(r.w, "[*] "+format+"\n", args...)
}

func (r *Reporter) Success(format string, args ...any) {
	successColor.Fprintf(r.w, "[+] "+format+"\n", args...)
}

func (r *Reporter) Warning(format string, args ...any) {
	warningColor.Fprintf(r.w, "[?] "+format+"\n", args...)
}

func (r *Reporter) Error(format string, args ...any) {
	errorColor.Fprintf(r.w, "[!] "+format+"\n", args...)
}

// Bar is a percentage bar; totals can exceed int64, so it tracks percent.
type Bar struct {
	bar *progressbar.ProgressBar
	w   io.Writer
}

// NewBar returns a bar, or nil when progress output is disabled. A nil
// *Bar is safe to use.
func (r *Reporter) NewBar(description string) *Bar {
	if !r.progress {
		return nil
	}
	return &Bar{w: r.w, bar: progressbar.NewOptions(100,
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(r.w) }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)}
}

func (b *Bar) Set(percent float64, detail string) {
	if b == nil {
		return
	}
	if detail != "" {
		b.bar.Describe(detail)
	}
	b.bar.Set(int(min(max(percent, 0), 100)))
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	b.bar.Finish()
}

// Abandon leaves the bar where it is and moves to a fresh line.
func (b *Bar) Abandon() {
	if b == nil {
		return
	}
	fmt.Fprintln(b.w)
}

func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Count renders a possibly huge candidate count with thousands separators.
func Count(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return humanize.BigComma(n)
}

func Bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func Duration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return humanize.Comma(int64(d.Hours()/24)) + "d"
}

func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
