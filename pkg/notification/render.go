package notification

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"
)

// Render executes tmpl against data.
func Render(tmpl NoticeTemplate, data NotificationData) (Message, error) {
	msg := Message{To: data.To}

	subject, err := renderText("subject", tmpl.Subject, data.Data)
	if err != nil {
		return Message{}, err
	}
	msg.Subject = subject

	if tmpl.Text != "" {
		if msg.Text, err = renderText("text", tmpl.Text, data.Data); err != nil {
			return Message{}, err
		}
	}

	if tmpl.Html != "" {
		t, err := htmltemplate.New("html").Option("missingkey=error").Parse(tmpl.Html)
		if err != nil {
			return Message{}, err
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, data.Data); err != nil {
			return Message{}, err
		}
		msg.Html = buf.String()
	}

	return msg, nil
}

func renderText(name, text string, data map[string]string) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
