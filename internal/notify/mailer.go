package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// Mailer
// Sends the "your video is ready" email via the SendGrid v3 REST API.
// Notification is best-effort: a delivery failure is logged, never escalated,
// because the video has already been produced and stored by the time we get
// here.
// ---------------------------------------------------------------------------

const sendGridBaseURL = "https://api.sendgrid.com"

type Mailer struct {
	apiKey      string
	senderEmail string
	baseURL     string
	client      *http.Client
}

func NewMailer(apiKey, senderEmail string) *Mailer {
	return &Mailer{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		baseURL:     sendGridBaseURL,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// SendGrid v3 mail send payload
type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// VideoReady emails the recipient a link to their finished video. Errors are
// logged and swallowed; the render result never depends on email delivery.
func (m *Mailer) VideoReady(ctx context.Context, videoURL, projectID, email string) {
	if err := m.send(ctx, videoURL, projectID, email); err != nil {
		log.Printf("[Mailer] Failed to send notification for project %s to %s: %v", projectID, email, err)
		return
	}
	log.Printf("[Mailer] Notification sent for project %s to %s", projectID, email)
}

func (m *Mailer) send(ctx context.Context, videoURL, projectID, email string) error {
	payload := sendGridMail{
		Personalizations: []sendGridPersonalization{
			{To: []sendGridAddress{{Email: email}}},
		},
		From:    sendGridAddress{Email: m.senderEmail},
		Subject: fmt.Sprintf("Your video for project %s is ready!", projectID),
		Content: []sendGridContent{
			{
				Type:  "text/html",
				Value: fmt.Sprintf(`<p>Your video is ready! <a href="%s">Click here to watch it</a>.</p><p>The link expires in 10 hours.</p>`, videoURL),
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+"/v3/mail/send", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// SendGrid returns 202 on accepted
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
