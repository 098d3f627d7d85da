package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"pantrynotify/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// RenderedEmail holds the final content handed to a provider.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// templateData is what the templates see.
type templateData struct {
	Digest
	Subject string
	Header  string
	AppURL  string
}

var templateFuncs = map[string]any{
	"date": func(t time.Time) string { return t.UTC().Format("Mon, Jan 2") },
}

// Renderer renders digests from the embedded templates. It is safe for
// concurrent use once constructed.
type Renderer struct {
	html   *template.Template
	text   *texttemplate.Template
	sender types.SenderIdentity
	appURL string
}

// RendererConfig holds the sender identity and the app link used in footers.
type RendererConfig struct {
	FromAddress string
	FromName    string
	AppURL      string
}

// NewRenderer parses base.html plus the digest templates.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	baseHTML, err := templateFS.ReadFile("templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read base.html: %w", err)
	}
	digestHTML, err := templateFS.ReadFile("templates/expiry_digest.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read expiry_digest.html: %w", err)
	}
	htmlTmpl, err := template.New("base").Funcs(templateFuncs).Parse(string(baseHTML))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse base.html: %w", err)
	}
	if _, err := htmlTmpl.Parse(string(digestHTML)); err != nil {
		return nil, fmt.Errorf("renderer: failed to parse expiry_digest.html: %w", err)
	}

	digestText, err := templateFS.ReadFile("templates/expiry_digest.txt")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read expiry_digest.txt: %w", err)
	}
	textTmpl, err := texttemplate.New("expiry_digest").Funcs(templateFuncs).Parse(string(digestText))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse expiry_digest.txt: %w", err)
	}

	return &Renderer{
		html:   htmlTmpl,
		text:   textTmpl,
		sender: types.SenderIdentity{Address: cfg.FromAddress, Name: cfg.FromName},
		appURL: strings.TrimSuffix(cfg.AppURL, "/"),
	}, nil
}

// Render produces the subject and both bodies for d. An empty digest is a
// render failure; callers never build one for a real recipient.
func (r *Renderer) Render(d Digest) (*RenderedEmail, types.SenderIdentity, error) {
	if d.ItemCount() == 0 {
		return nil, types.SenderIdentity{}, types.NewAppError(types.ErrCodeRenderFailure, "digest has no ingredients", nil)
	}

	data := templateData{
		Digest:  d,
		Subject: d.Subject(),
		Header:  d.Header(),
		AppURL:  r.appURL,
	}

	var htmlBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, data); err != nil {
		return nil, types.SenderIdentity{}, types.NewAppError(types.ErrCodeRenderFailure, "failed to render HTML digest", err)
	}
	var textBuf bytes.Buffer
	if err := r.text.Execute(&textBuf, data); err != nil {
		return nil, types.SenderIdentity{}, types.NewAppError(types.ErrCodeRenderFailure, "failed to render text digest", err)
	}

	return &RenderedEmail{
		Subject:  data.Subject,
		BodyHTML: htmlBuf.String(),
		BodyText: textBuf.String(),
	}, r.sender, nil
}
