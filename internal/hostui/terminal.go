package hostui

import (
	"errors"
	"io"

	"github.com/manifoldco/promptui"
)

var _ UI = (*Terminal)(nil)

// Terminal is the interactive UI backed by promptui.
type Terminal struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
	// Size is how many choices a menu shows at once.
	Size int
}

var selectTemplates = &promptui.SelectTemplates{
	Label:    "{{ . }}",
	Active:   "> {{ .Label | cyan }}",
	Inactive: "  {{ .Label }}",
	Selected: "{{ .Label | green }}",
	Details:  "{{ if .Description }}{{ .Description | faint }}{{ end }}",
}

func (t *Terminal) Select(label string, choices []Choice) (string, error) {
	if len(choices) == 0 {
		return "", errors.New("nothing to choose from")
	}
	size := t.Size
	if size <= 0 {
		size = 10
	}
	sel := promptui.Select{
		Label:     label,
		Items:     choices,
		Templates: selectTemplates,
		Size:      size,
		Stdin:     t.Stdin,
		Stdout:    t.Stdout,
	}
	i, _, err := sel.Run()
	if err != nil {
		return "", translate(err)
	}
	return choices[i].Value, nil
}

func (t *Terminal) Input(label string) (string, error) {
	p := promptui.Prompt{Label: label, Stdin: t.Stdin, Stdout: t.Stdout}
	value, err := p.Run()
	if err != nil {
		return "", translate(err)
	}
	return value, nil
}

// Confirm defaults to yes; answering n declines.
func (t *Terminal) Confirm(label string) (bool, error) {
	p := promptui.Prompt{Label: label, IsConfirm: true, Default: "y", Stdin: t.Stdin, Stdout: t.Stdout}
	_, err := p.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, translate(err)
	}
	return true, nil
}

func translate(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrQuit
	}
	return err
}
