package testkit

import "sync"

// SentMail records one delivery through the CaptureMailer.
type SentMail struct {
	To       string
	Template string
	Data     map[string]any
}

// CaptureMailer implements mailer.Sender by recording deliveries in memory.
type CaptureMailer struct {
	mu   sync.Mutex
	sent []SentMail
	err  error
}

// NewCaptureMailer creates an empty CaptureMailer.
func NewCaptureMailer() *CaptureMailer {
	return &CaptureMailer{}
}

// FailWith makes every subsequent send return err. Pass nil to recover.
func (c *CaptureMailer) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// SendTemplate records the delivery, or fails when configured to.
func (c *CaptureMailer) SendTemplate(to, templateName string, data map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, SentMail{To: to, Template: templateName, Data: data})
	return nil
}

// Sent returns a snapshot of all recorded deliveries.
func (c *CaptureMailer) Sent() []SentMail {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentMail, len(c.sent))
	copy(out, c.sent)
	return out
}

// Reset clears recorded deliveries.
func (c *CaptureMailer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}
