package commands

import (
	"fmt"
	"io"

	"github.com/benvon/contact-relay/internal/intake"
	"github.com/benvon/contact-relay/internal/models"
)

// terminalView renders a contact form's status lines to a writer
type terminalView struct {
	out       io.Writer
	startedAt int64
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out}
}

var statusMarks = map[intake.StatusKind]string{
	intake.StatusDefault: "·",
	intake.StatusPending: "…",
	intake.StatusSuccess: "✓",
	intake.StatusError:   "✗",
}

func (v *terminalView) SetStatus(kind intake.StatusKind, text string) {
	fmt.Fprintf(v.out, "%s %s\n", statusMarks[kind], text)
}

func (v *terminalView) SetFieldError(field models.FieldKey, message string) {
	if message == "" {
		return
	}
	fmt.Fprintf(v.out, "  %s: %s\n", field, message)
}

func (v *terminalView) Focus(field models.FieldKey) {
	fmt.Fprintf(v.out, "  check the %s field\n", field)
}

func (v *terminalView) SetSubmitEnabled(enabled bool, label string) {
	if !enabled {
		fmt.Fprintf(v.out, "[%s]\n", label)
	}
}

func (v *terminalView) Reset() {}

func (v *terminalView) SetStartedAt(ms int64) { v.startedAt = ms }

var _ intake.View = (*terminalView)(nil)
