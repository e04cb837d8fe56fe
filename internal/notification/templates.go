package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/mamadbah2/medrefill/internal/domain/models"
	"github.com/mamadbah2/medrefill/internal/domain/status"
)

// Message is a rendered reminder ready for a transport.
type Message struct {
	Subject string
	HTML    string
	Plain   string
}

type medicineView struct {
	Name           string
	RemainingDoses int
	DaysLeft       int
	StatusClass    string
	StatusLabel    string
	RefillDate     string
	RefillLink     string
}

type reminderView struct {
	Title       string
	HeaderClass string
	UserName    string
	Intro       string
	Closing     string
	Medicines   []medicineView
	ShowButton  bool
}

const reminderHTML = `<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { color: white; padding: 20px; text-align: center; }
.header.reminder { background-color: #4CAF50; }
.header.summary { background-color: #2196F3; }
.content { padding: 20px; background-color: #f9f9f9; }
.medicine-info { background-color: white; padding: 15px; margin: 10px 0; border-radius: 5px; }
.status { padding: 5px 10px; border-radius: 3px; color: white; font-weight: bold; }
.status.ok { background-color: #4CAF50; }
.status.low { background-color: #ff9800; }
.status.refill-needed { background-color: #f44336; }
.refill-button { background-color: #4CAF50; color: white; padding: 8px 16px; text-decoration: none; border-radius: 3px; }
</style></head><body>
<div class="container">
<div class="header {{.HeaderClass}}"><h1>{{.Title}}</h1></div>
<div class="content">
<p>Dear {{.UserName}},</p>
<p>{{.Intro}}</p>
{{range .Medicines}}<div class="medicine-info">
<h3>{{.Name}}</h3>
<p><strong>Remaining Doses:</strong> {{.RemainingDoses}} | <strong>Days Left:</strong> {{.DaysLeft}}</p>
<p><strong>Status:</strong> <span class="status {{.StatusClass}}">{{.StatusLabel}}</span> | <strong>Refill Date:</strong> {{.RefillDate}}</p>
{{if $.ShowButton}}<a href="{{.RefillLink}}" class="refill-button" target="_blank">Refill Now</a>{{end}}
</div>
{{end}}<p>{{.Closing}}</p>
<p>You can manage your medicines from your Smart Medicine Refill dashboard.</p>
<p>Best regards,<br>Smart Medicine Refill System</p>
</div>
</div>
</body></html>`

const reminderPlain = `Dear {{.UserName}},

{{.Intro}}
{{range .Medicines}}
* {{.Name}}: {{.RemainingDoses}} doses left, {{.DaysLeft}} day(s) until {{.RefillDate}} ({{.StatusLabel}})
{{- if $.ShowButton}}
  Refill: {{.RefillLink}}{{end}}
{{end}}
{{.Closing}}

Smart Medicine Refill System
`

var (
	reminderHTMLTemplate  = htmltemplate.Must(htmltemplate.New("reminder.html").Parse(reminderHTML))
	reminderPlainTemplate = texttemplate.Must(texttemplate.New("reminder.txt").Parse(reminderPlain))
)

// Renderer turns medicines into reminder messages.
type Renderer struct {
	refillURL string
	loc       *time.Location
	now       func() time.Time
}

// NewRenderer builds a renderer. refillURL is the search URL the medicine
// name is appended to; days left are counted from today in loc.
func NewRenderer(refillURL string, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{refillURL: refillURL, loc: loc, now: time.Now}
}

// Single renders the one-medicine reminder.
func (r *Renderer) Single(user models.User, medicine models.Medicine) (Message, error) {
	view := reminderView{
		Title:       "Medicine Refill Reminder",
		HeaderClass: "reminder",
		UserName:    user.Name,
		Intro:       "This is a friendly reminder about your medicine refill:",
		Closing:     "Don't run out of your important medication!",
		Medicines:   r.views([]models.Medicine{medicine}),
		ShowButton:  true,
	}
	return r.render("Medicine Refill Reminder - "+medicine.Name, view)
}

// Batch renders the multi-medicine reminder for daily runs or the summary
// for weekly runs.
func (r *Renderer) Batch(user models.User, medicines []models.Medicine, mode models.DispatchMode) (Message, error) {
	if mode == models.DispatchWeekly {
		view := reminderView{
			Title:       "Weekly Medicine Summary",
			HeaderClass: "summary",
			UserName:    user.Name,
			Intro:       "Here's your weekly medicine summary for the next 2 weeks:",
			Closing:     "Please plan ahead to ensure you don't run out of your medications!",
			Medicines:   r.views(medicines),
		}
		return r.render(fmt.Sprintf("Weekly Medicine Summary - %d medicine(s) need attention", len(medicines)), view)
	}

	view := reminderView{
		Title:       "Multiple Medicine Refill Reminders",
		HeaderClass: "reminder",
		UserName:    user.Name,
		Intro:       fmt.Sprintf("You have %d medicine(s) that need attention:", len(medicines)),
		Closing:     "Please ensure you don't run out of your important medications!",
		Medicines:   r.views(medicines),
		ShowButton:  true,
	}
	return r.render("Multiple Medicine Refill Reminders", view)
}

func (r *Renderer) render(subject string, view reminderView) (Message, error) {
	var html, plain bytes.Buffer
	if err := reminderHTMLTemplate.Execute(&html, view); err != nil {
		return Message{}, fmt.Errorf("render html reminder: %w", err)
	}
	if err := reminderPlainTemplate.Execute(&plain, view); err != nil {
		return Message{}, fmt.Errorf("render plain reminder: %w", err)
	}
	return Message{Subject: subject, HTML: html.String(), Plain: plain.String()}, nil
}

func (r *Renderer) views(medicines []models.Medicine) []medicineView {
	today := status.Today(r.now(), r.loc)

	views := make([]medicineView, 0, len(medicines))
	for _, m := range medicines {
		views = append(views, medicineView{
			Name:           m.Name,
			RemainingDoses: m.RemainingDoses(),
			DaysLeft:       status.DaysLeft(m.RefillDate, today),
			StatusClass:    strings.ReplaceAll(strings.ToLower(string(m.Status)), "_", "-"),
			StatusLabel:    strings.ReplaceAll(string(m.Status), "_", " "),
			RefillDate:     m.RefillDate.Format("2006-01-02"),
			RefillLink:     r.refillURL + url.QueryEscape(m.Name),
		})
	}
	return views
}
