package mailer

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Either HTML/Text is set, or Template names a templates.Render base name
// rendered from Data by the worker.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // "verification_code" or "password_reset"
	Data     map[string]any `json:"data,omitempty"`
}
