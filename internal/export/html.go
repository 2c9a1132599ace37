// ABOUTME: HTML transcript export for conversation logs
// ABOUTME: Renders message content as markdown and wraps it in a standalone page

package export

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/parley/internal/conversation"
)

// Transcript describes one export: the conversation plus display metadata.
type Transcript struct {
	AgentName  string
	UserEmail  string
	ExportedAt time.Time
	Messages   []conversation.Message
}

type renderedMessage struct {
	Sender    string
	Timestamp string
	Body      template.HTML
}

type renderedTranscript struct {
	AgentName  string
	UserEmail  string
	ExportedAt string
	Messages   []renderedMessage
}

var pageTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Conversation with {{.AgentName}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
.meta { color: #666; font-size: 0.85rem; margin-bottom: 2rem; }
.message { margin-bottom: 1.25rem; padding: 0.75rem 1rem; border-radius: 8px; }
.message.user { background: #eef3fb; }
.message.agent { background: #f5f5f5; }
.message .who { font-weight: bold; font-size: 0.8rem; margin-bottom: 0.25rem; }
.message .when { color: #999; font-size: 0.75rem; float: right; }
</style>
</head>
<body>
<h1>Conversation with {{.AgentName}}</h1>
<div class="meta">{{if .UserEmail}}{{.UserEmail}} &middot; {{end}}exported {{.ExportedAt}}</div>
{{range .Messages}}<div class="message {{.Sender}}">
<span class="when">{{.Timestamp}}</span>
<div class="who">{{.Sender}}</div>
{{.Body}}
</div>
{{end}}</body>
</html>
`))

// WriteHTML renders the transcript as a standalone HTML page. Message
// content is treated as markdown.
func WriteHTML(w io.Writer, t Transcript) error {
	rendered := renderedTranscript{
		AgentName:  t.AgentName,
		UserEmail:  t.UserEmail,
		ExportedAt: t.ExportedAt.Format("2006-01-02 15:04 MST"),
	}

	for _, msg := range t.Messages {
		var body bytes.Buffer
		if err := goldmark.Convert([]byte(msg.Content), &body); err != nil {
			return fmt.Errorf("rendering message markdown: %w", err)
		}
		rendered.Messages = append(rendered.Messages, renderedMessage{
			Sender:    string(msg.Sender),
			Timestamp: msg.Timestamp.Format("15:04:05"),
			Body:      template.HTML(body.String()),
		})
	}

	if err := pageTemplate.Execute(w, rendered); err != nil {
		return fmt.Errorf("rendering transcript: %w", err)
	}
	return nil
}
