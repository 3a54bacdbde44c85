// Package cli holds the terminal presentation shared by the tendril commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Renderer writes markdown through glamour when the output is a terminal and
// verbatim otherwise.
type Renderer struct {
	w        io.Writer
	out      *termenv.Output
	markdown func(string) (string, error)
}

// NewRenderer inspects w and picks the rendering mode. plain forces verbatim output.
func NewRenderer(w io.Writer, plain bool) *Renderer {
	r := &Renderer{w: w, out: termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))}
	f, ok := w.(*os.File)
	if plain || !ok || !term.IsTerminal(int(f.Fd())) {
		return r
	}

	r.out = termenv.NewOutput(w)
	width := 100
	if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 20 {
		width = cols - 4
	}
	style := "light"
	if r.out.HasDarkBackground() {
		style = "dark"
	}
	if g, err := glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(width)); err == nil {
		r.markdown = g.Render
	}
	return r
}

// Markdown writes md, styled when the output is a terminal.
func (r *Renderer) Markdown(md string) error {
	if r.markdown != nil {
		if styled, err := r.markdown(md); err == nil {
			md = styled
		}
	}
	_, err := io.WriteString(r.w, md)
	return err
}

// Status writes a one-line verdict, green when ok and red otherwise.
func (r *Renderer) Status(ok bool, format string, args ...any) {
	color := "1"
	if ok {
		color = "2"
	}
	line := r.out.String(fmt.Sprintf(format, args...)).Foreground(r.out.Color(color)).Bold()
	fmt.Fprintln(r.w, line.String())
}
