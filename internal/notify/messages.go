package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/pqrs_dashboard/backend/internal/models"
)

// Colombia does not observe daylight saving time.
var bogota = time.FixedZone("COT", -5*60*60)

var typeLabels = map[models.PQRType]string{
	models.TypePetition:   "Petición",
	models.TypeComplaint:  "Queja",
	models.TypeClaim:      "Reclamo",
	models.TypeSuggestion: "Sugerencia",
	models.TypeReport:     "Denuncia",
}

func TypeLabel(t models.PQRType) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

var entityNoticeTmpl = template.Must(template.New("entity").Parse(`<h2>Nueva {{.Type}} radicada</h2>
<p>{{.EntityName}} recibió la solicitud <strong>{{.Code}}</strong> el {{.Created}}.</p>
<p>Área: {{.Department}}<br>Fecha límite de respuesta: {{.Due}}</p>
{{if .Creator}}<p>Radicada por: {{.Creator}}</p>{{else}}<p>Radicada de forma anónima.</p>{{end}}
{{if .Fields}}<ul>{{range .Fields}}<li>{{.Name}}: {{.Value}}</li>{{end}}</ul>{{end}}
{{if .Attachments}}<p>Adjuntos:</p><ul>{{range .Attachments}}<li><a href="{{.URL}}">{{.Name}}</a></li>{{end}}</ul>{{end}}
<p><a href="{{.Link}}">Ver en el panel</a></p>`))

var creatorReceiptTmpl = template.Must(template.New("creator").Parse(`<p>Hola {{.Name}},</p>
<p>Tu solicitud fue registrada con el código <strong>{{.Code}}</strong> el {{.Created}}.</p>
<p>Puedes consultar su estado en <a href="{{.Link}}">{{.Link}}</a>.</p>`))

var assigneeNoticeTmpl = template.Must(template.New("assignee").Parse(`<p>Hola {{.Name}},</p>
<p>Se te asignó la solicitud <strong>{{.Code}}</strong> ({{.Type}}). Fecha límite: {{.Due}}.</p>
<p><a href="{{.Link}}">Abrir solicitud</a></p>`))

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatLocal(t time.Time) string {
	return t.In(bogota).Format("02/01/2006 15:04")
}

// Link returns the dashboard address of a request.
func Link(baseURL, pqrID string) string {
	return strings.TrimRight(baseURL, "/") + "/dashboard/pqr/" + pqrID
}

// CreationMessages builds the entity notice and, when the creator has an
// email address, the creator receipt. The entity notice is always first.
func CreationMessages(entity models.Entity, pqr models.PQRS, creator *models.User, baseURL string) ([]Message, error) {
	creatorName := ""
	if creator != nil {
		creatorName = creator.DisplayName()
	}
	department := ""
	if pqr.Department != nil {
		department = pqr.Department.Name
	}
	body, err := render(entityNoticeTmpl, map[string]any{
		"Type":        TypeLabel(pqr.Type),
		"EntityName":  entity.Name,
		"Code":        pqr.ConsecutiveCode,
		"Created":     formatLocal(pqr.CreatedAt),
		"Due":         formatLocal(pqr.DueDate),
		"Department":  department,
		"Creator":     creatorName,
		"Fields":      pqr.CustomFields,
		"Attachments": pqr.Attachments,
		"Link":        Link(baseURL, pqr.ID),
	})
	if err != nil {
		return nil, err
	}
	out := []Message{{
		Kind:    KindEntityNotice,
		PQRID:   pqr.ID,
		To:      entity.Email,
		Subject: fmt.Sprintf("Nueva %s %s", TypeLabel(pqr.Type), pqr.ConsecutiveCode),
		Body:    body,
	}}

	if creator != nil && creator.Email != "" {
		name := creator.FirstName
		if name == "" {
			name = creator.Email
		}
		body, err := render(creatorReceiptTmpl, map[string]any{
			"Name":    name,
			"Code":    pqr.ConsecutiveCode,
			"Created": formatLocal(pqr.CreatedAt),
			"Link":    Link(baseURL, pqr.ID),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, Message{
			Kind:    KindCreatorReceipt,
			PQRID:   pqr.ID,
			To:      creator.Email,
			Subject: "Registro exitoso de PQR " + pqr.ConsecutiveCode,
			Body:    body,
		})
	}
	return out, nil
}

func AssignmentMessage(pqr models.PQRS, assignee models.User, baseURL string) (Message, error) {
	body, err := render(assigneeNoticeTmpl, map[string]any{
		"Name": assignee.DisplayName(),
		"Code": pqr.ConsecutiveCode,
		"Type": TypeLabel(pqr.Type),
		"Due":  formatLocal(pqr.DueDate),
		"Link": Link(baseURL, pqr.ID),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:    KindAssigneeNotice,
		PQRID:   pqr.ID,
		To:      assignee.Email,
		Subject: "Solicitud asignada " + pqr.ConsecutiveCode,
		Body:    body,
	}, nil
}
