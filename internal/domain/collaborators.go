package domain

// TeamMember is one entry from the team-directory service.
type TeamMember struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// ChatMessage is the body accepted by chat-webhook endpoints.
type ChatMessage struct {
	Text        string        `json:"text"`
	Channel     string        `json:"channel,omitempty"`
	Attachments []interface{} `json:"attachments,omitempty"`
}

// ReportRequest asks the analytics service to generate a report.
type ReportRequest struct {
	TeamID     string   `json:"teamId"`
	ReportType string   `json:"reportType"`
	Format     string   `json:"format"`
	Recipients []string `json:"recipients,omitempty"`
}
