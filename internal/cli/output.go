package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Output writes command results either as JSON or as text, colored when
// the command writes straight to a terminal.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates a new Output instance.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	w := cmd.OutOrStdout()
	return &Output{
		writer:       w,
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && w == os.Stdout && isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// Writer returns the underlying writer.
func (o *Output) Writer() io.Writer {
	return o.writer
}

// IsJSON returns true if JSON output mode is enabled.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// ColorEnabled reports whether cells may keep their color codes.
func (o *Output) ColorEnabled() bool {
	return o.colorEnabled
}

// JSON outputs data as JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println prints a message with newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf prints a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

func (o *Output) Success(format string, args ...interface{}) {
	o.styled(format, args, color.FgGreen)
}

func (o *Output) Error(format string, args ...interface{}) {
	o.styled(format, args, color.FgRed)
}

func (o *Output) Warning(format string, args ...interface{}) {
	o.styled(format, args, color.FgYellow)
}

func (o *Output) Info(format string, args ...interface{}) {
	o.styled(format, args, color.FgCyan)
}

func (o *Output) Bold(format string, args ...interface{}) {
	o.styled(format, args, color.Bold)
}

func (o *Output) Dim(format string, args ...interface{}) {
	o.styled(format, args, color.Faint)
}

func (o *Output) styled(format string, args []interface{}, attrs ...color.Attribute) {
	c := color.New(attrs...)
	if o.colorEnabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	c.Fprintln(o.writer, fmt.Sprintf(format, args...))
}

// Progress redraws a single-line progress bar. It is a no-op when output
// is not a terminal or in JSON mode.
func (o *Output) Progress(current, total int, message string) {
	if !o.colorEnabled || total <= 0 {
		return
	}
	o.Printf("\r%s", ProgressBar(current, total, 30, message))
	if current >= total {
		o.Println()
	}
}

// ProgressBar renders "message [████░░░░] 50%" for current of total.
func ProgressBar(current, total, barWidth int, message string) string {
	if total <= 0 {
		total = 1
	}
	current = min(max(current, 0), total)
	filled := barWidth * current / total
	pct := float64(current) / float64(total) * 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("%s [%s] %.0f%% ", message, bar, pct)
}
