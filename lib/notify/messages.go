package notify

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/fiffu/timetablewatch/lib/models"
	"github.com/fiffu/timetablewatch/senders"
)

var (
	//go:embed templates/*.tmpl
	templateFS embed.FS
	templates  = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))
)

func render(name string, line models.Line) string {
	buf := new(strings.Builder)
	if err := templates.ExecuteTemplate(buf, name, line); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

func deletedMessage(line models.Line) senders.Message {
	return senders.Message{
		Subject: fmt.Sprintf("Linea %s eliminata", line.Code),
		Text:    render("deleted.tmpl", line),
	}
}

func changedMessage(line models.Line) senders.Message {
	return senders.Message{
		Subject:     fmt.Sprintf("Linea %s aggiornata", line.Code),
		Text:        render("changed.tmpl", line),
		DocumentURL: line.URL,
	}
}
