package email

import (
	_ "embed"
	"html/template"
	"strings"
)

var (
	//go:embed notification.html
	notificationHTML     string
	notificationTemplate = template.Must(template.New("notification.html").Parse(notificationHTML))
)

func mustFillTemplate(tmpl *template.Template, values any) string {
	buf := new(strings.Builder)
	err := tmpl.Execute(buf, values)
	if err != nil {
		return ""
	}
	return buf.String()
}

type NotificationFormat struct {
	Text        string
	DocumentURL string
}

// Paragraphs splits Text on newlines for rendering.
func (ef *NotificationFormat) Paragraphs() []string {
	return strings.Split(ef.Text, "\n")
}

func (ef *NotificationFormat) Body() string {
	return mustFillTemplate(notificationTemplate, ef)
}
