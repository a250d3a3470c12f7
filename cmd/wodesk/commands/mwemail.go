package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/mwemail"
)

// MWEmailCmd implements the 'mw-email' command. The configuration file is
// optional here; only its mw_email section is read.
type MWEmailCmd struct {
	WorkOrderID string `arg:"" name:"id" help:"Work order the maintenance window belongs to"`
	NoteFile    string `short:"f" name:"note-file" help:"File holding the log note; - reads stdin" default:"-"`
	OutputDir   string `name:"output-dir" help:"Override mw_email.output_dir" placeholder:"DIR"`
	Template    string `help:"Override mw_email.template" placeholder:"FILE"`

	stdin io.Reader
}

func (m *MWEmailCmd) Run(g *Global, root *CLI) error {
	mwCfg, err := m.resolveConfig(root.Config)
	if err != nil {
		return err
	}
	note, err := m.readNote()
	if err != nil {
		return err
	}

	r, err := mwemail.New(mwCfg)
	if err != nil {
		return err
	}
	path, err := r.Render(context.Background(), m.WorkOrderID, note)
	if err != nil {
		return err
	}
	fmt.Fprintln(g.out(), path)
	return nil
}

func (m *MWEmailCmd) resolveConfig(configPath string) (config.MWEmailConfig, error) {
	var cfg config.Config
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.MWEmailConfig{}, err
		}
		cfg = *loaded
	} else {
		config.ApplyDefaults(&cfg)
	}

	out := cfg.MWEmail
	if m.OutputDir != "" {
		out.OutputDir = m.OutputDir
	}
	if m.Template != "" {
		out.Template = m.Template
	}
	return out, nil
}

func (m *MWEmailCmd) readNote() (string, error) {
	if m.NoteFile == "-" {
		in := m.stdin
		if in == nil {
			in = os.Stdin
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to read note from stdin").Build()
		}
		return string(data), nil
	}
	data, err := os.ReadFile(m.NoteFile)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to read note file").
			WithContext("path", m.NoteFile).Build()
	}
	return string(data), nil
}
