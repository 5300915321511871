// Package templates renders the HTML fragments returned to HTMX requests.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/core"
)

// ErrorAlert is the inline error box swapped in when a request fails.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<p class="alert-message">%s</p>`, templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, `<p class="alert-action">%s</p>`, templ.EscapeString(action))
		}
		fmt.Fprintf(&b, `<p class="alert-code">Code: %s</p></div>`, templ.EscapeString(code))
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// FileRow is one queue row with the actions its status allows.
func FileRow(v core.SessionView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, fileRow(v))
		return err
	})
}

// QueueTable renders every queued file.
func QueueTable(files []core.SessionView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<table id="queue" class="queue"><thead><tr>`)
		b.WriteString(`<th>File</th><th>Status</th><th>Rows</th><th>Source</th><th>Attempts</th><th></th>`)
		b.WriteString(`</tr></thead><tbody>`)
		if len(files) == 0 {
			b.WriteString(`<tr class="empty"><td colspan="6">No files in the queue</td></tr>`)
		}
		for _, v := range files {
			b.WriteString(fileRow(v))
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func fileRow(v core.SessionView) string {
	id := templ.EscapeString(v.ID)
	var b strings.Builder
	fmt.Fprintf(&b, `<tr id="file-%s" class="status-%s">`, id, strings.ToLower(string(v.Status)))
	fmt.Fprintf(&b, `<td>%s</td>`, templ.EscapeString(v.Filename))
	fmt.Fprintf(&b, `<td><span class="badge">%s</span>`, templ.EscapeString(string(v.Status)))
	if v.ErrorMessage != "" {
		fmt.Fprintf(&b, `<small class="error">%s</small>`, templ.EscapeString(firstLine(v.ErrorMessage)))
	}
	b.WriteString(`</td>`)
	fmt.Fprintf(&b, `<td>%d</td><td>%s</td><td>%d</td><td class="actions">`,
		v.Rows, templ.EscapeString(string(v.Source)), v.Attempts)

	target := fmt.Sprintf(`hx-target="#file-%s" hx-swap="outerHTML"`, id)
	switch {
	case v.Status == core.StatusPendingCorrection:
		fmt.Fprintf(&b, `<button hx-post="/api/files/%s/correct" %s>Correct</button>`, id, target)
		fmt.Fprintf(&b, `<button hx-post="/api/files/%s/skip" %s>Skip</button>`, id, target)
	case v.Status == core.StatusReadFailed:
		fmt.Fprintf(&b, `<button hx-post="/api/files/%s/skip" %s>Skip</button>`, id, target)
	case v.Status.Ready():
		fmt.Fprintf(&b, `<button hx-post="/api/files/%s/insert" %s>Insert</button>`, id, target)
	}
	fmt.Fprintf(&b, `<a href="/api/files/%s/report">Report</a>`, id)
	if !v.Status.Terminal() {
		fmt.Fprintf(&b, `<button hx-delete="/api/files/%s" %s>Remove</button>`, id, target)
	}
	b.WriteString(`</td></tr>`)
	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
