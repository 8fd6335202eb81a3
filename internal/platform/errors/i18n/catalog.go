// Package i18n renders the user-facing reply for an error code in the
// requester's locale.
//
// Replies come from the "errors" namespace of the message bundle. Each
// message is a text/template over the error metadata, such as
// "Only {{.Owner}} can use these buttons.".
package i18n

import (
	"strconv"
	"strings"
	"sync"
	"text/template"

	"github.com/louisbranch/dicebot/internal/platform/i18n/catalog"
)

// Replies renders error replies from a message bundle. It is safe for
// concurrent use.
type Replies struct {
	bundle *catalog.Bundle

	mu     sync.RWMutex
	parsed map[replyKey]*template.Template
}

type replyKey struct {
	locale string
	code   string
}

var defaultReplies = New(catalog.Default())

// Default returns the replies of the embedded bundle.
func Default() *Replies {
	return defaultReplies
}

// New creates replies over bundle.
func New(bundle *catalog.Bundle) *Replies {
	return &Replies{bundle: bundle, parsed: make(map[replyKey]*template.Template)}
}

// Format returns the reply for code in the locale closest to locale.
// Metadata keys the message does not receive render as empty text. Codes
// without a message use the UNKNOWN reply, and the code itself is returned
// only when even that is missing.
func (r *Replies) Format(locale string, code string, metadata map[string]string) string {
	resolved := r.bundle.Match(locale)
	code = strings.TrimSpace(code)
	tmpl, ok := r.template(resolved, code)
	if !ok {
		if tmpl, ok = r.template(resolved, CodeUnknown); !ok {
			return code
		}
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, metadata); err != nil {
		text, _ := r.bundle.Message(resolved, code)
		return text
	}
	return out.String()
}

// Translated reports whether code has a message of its own in locale or
// the base locale.
func (r *Replies) Translated(locale string, code string) bool {
	_, ok := r.bundle.Message(r.bundle.Match(locale), code)
	return ok
}

func (r *Replies) template(locale, code string) (*template.Template, bool) {
	key := replyKey{locale: locale, code: code}
	r.mu.RLock()
	tmpl, ok := r.parsed[key]
	r.mu.RUnlock()
	if ok {
		return tmpl, true
	}

	text, ok := r.bundle.Message(locale, code)
	if !ok {
		return nil, false
	}
	tmpl, err := template.New(code).Option("missingkey=zero").Parse(text)
	if err != nil {
		tmpl = template.Must(template.New(code).Parse(escapeTemplate(text)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.parsed[key]; ok {
		return existing, true
	}
	r.parsed[key] = tmpl
	return tmpl, true
}

// escapeTemplate turns text that does not parse as a template into a
// template printing it verbatim.
func escapeTemplate(text string) string {
	return "{{" + strconv.Quote(text) + "}}"
}
