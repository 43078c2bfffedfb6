package mail

import (
	"bytes"
	_ "embed"
	"html/template"

	"github.com/Masterminds/sprig/v3"
)

// ContactMailParams are the fields shown in the notification for one submission.
// Phone may be empty; the template prints "N/A" instead.
type ContactMailParams struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

var (
	contactTemplate = template.New("contact").Funcs(sprig.HtmlFuncMap())

	//go:embed templates/contact.html
	contactTemplateRaw string
)

func init() {
	if _, err := contactTemplate.Parse(contactTemplateRaw); err != nil {
		panic(err)
	}
}

func render(t *template.Template, p any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, p)
	return b.String(), err
}

// RenderContactMessage renders the HTML body. All fields are HTML-escaped.
func RenderContactMessage(p ContactMailParams) (string, error) {
	return render(contactTemplate, p)
}
