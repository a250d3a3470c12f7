// Package mwemail renders maintenance-window e-mails from N20./N21. work log
// notes into HTML files for the operator to send.
package mwemail

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
)

//go:embed templates/email.html
var defaultTemplate string

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// view is the template data.
type view struct {
	WorkOrderID string
	RFC         string
	Status      string
	StartDate   string
	EndDate     string
	Details     template.HTML
}

// Renderer writes rendered e-mails into an output directory.
type Renderer struct {
	outDir string
	tmpl   *template.Template
	md     goldmark.Markdown
}

// New creates a Renderer. cfg.Template, when set, replaces the built-in template.
func New(cfg config.MWEmailConfig) (*Renderer, error) {
	src := defaultTemplate
	if cfg.Template != "" {
		data, err := os.ReadFile(cfg.Template)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read mw_email template").
				WithContext("path", cfg.Template).Build()
		}
		src = string(data)
	}
	tmpl, err := template.New("mw-email").Parse(src)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid mw_email template").Build()
	}
	return &Renderer{outDir: cfg.OutputDir, tmpl: tmpl, md: goldmark.New()}, nil
}

// Render parses note and writes MW_<rfc>_<status>.html into the output
// directory, returning the file path.
func (r *Renderer) Render(ctx context.Context, workOrderID, note string) (string, error) {
	n, err := Parse(note)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.Write(&buf, workOrderID, n); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.outDir, 0o750); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to create mw_email output directory").
			WithContext("path", r.outDir).Build()
	}
	path := filepath.Join(r.outDir, FileName(n))
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to write mw e-mail").
			WithContext("path", path).Build()
	}
	slog.Debug("Rendered maintenance window e-mail", logfields.WorkOrderID(workOrderID), logfields.Path(path))
	return path, nil
}

// Write renders n to w.
func (r *Renderer) Write(w io.Writer, workOrderID string, n Notice) error {
	var details bytes.Buffer
	if err := r.md.Convert([]byte(n.Details), &details); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to render mw details").Build()
	}
	v := view{
		WorkOrderID: workOrderID,
		RFC:         n.RFC,
		Status:      n.Status,
		StartDate:   n.StartDate,
		EndDate:     n.EndDate,
		// goldmark escapes raw HTML by default, so the output is safe to embed.
		Details: template.HTML(details.String()), //nolint:gosec
	}
	if err := r.tmpl.Execute(w, v); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to execute mw_email template").Build()
	}
	return nil
}

// FileName is the output file name for n.
func FileName(n Notice) string {
	name := "MW_" + n.RFC
	if n.Status != "" {
		name += "_" + n.Status
	}
	return unsafeName.ReplaceAllString(name, "_") + ".html"
}
