package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

var errSMTPNotConfigured = errors.New("SMTP credentials not configured")

// Mailer delivers contact form messages.
type Mailer interface {
	Send(name, email, message string) error
}

type smtpMailer struct {
	cfg    SMTPConfig
	logger *log.Logger
}

func (m smtpMailer) Send(name, email, message string) error {
	if m.cfg.User == "" || m.cfg.Pass == "" {
		return errSMTPNotConfigured
	}
	to := m.cfg.To
	if to == "" {
		to = m.cfg.User
	}

	subject := fmt.Sprintf("Portfolio Contact: %s", name)
	body := fmt.Sprintf(`
New contact form submission from your portfolio:

Name: %s
Email: %s
Message:
%s

---
Sent from your portfolio contact form
`, name, email, message)

	msg := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"From: " + m.cfg.User + "\r\n" +
		"Reply-To: " + email + "\r\n" +
		"\r\n" +
		body + "\r\n")

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	if err := smtp.SendMail(m.cfg.Host+":"+m.cfg.Port, auth, m.cfg.User, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	m.logger.Info("contact email sent", "from", email)
	return nil
}

var contactPolicy = bluemonday.StrictPolicy()

// contactForm is a sanitized contact submission.
type contactForm struct {
	Name    string
	Email   string
	Message string
}

func parseContactForm(c *gin.Context) (contactForm, error) {
	f := contactForm{
		Name:    oneLine(contactPolicy.Sanitize(c.PostForm("fullName"))),
		Email:   strings.TrimSpace(c.PostForm("email")),
		Message: strings.TrimSpace(contactPolicy.Sanitize(c.PostForm("message"))),
	}
	if f.Name == "" || f.Message == "" {
		return f, errors.New("name and message are required")
	}
	addr, err := mail.ParseAddress(f.Email)
	if err != nil {
		return f, errors.New("a valid email address is required")
	}
	f.Email = addr.Address
	return f, nil
}

// oneLine strips line breaks so the value is safe in a mail header.
func oneLine(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}

func (s *Server) handleContactPage(c *gin.Context) {
	sess := mustSession(c)
	c.HTML(http.StatusOK, "contact.html", gin.H{
		"title":     "Contact Me",
		"site":      s.catalog.Site,
		"pageColor": sess.PageColor(),
		"theme":     s.theme(c),
	})
}

// handleContactSubmit answers the HTMX form post with a message fragment.
func (s *Server) handleContactSubmit(c *gin.Context) {
	form, err := parseContactForm(c)
	if err != nil {
		c.HTML(http.StatusOK, "contact-error.html", gin.H{"error": err.Error()})
		return
	}
	if err := s.mailer.Send(form.Name, form.Email, form.Message); err != nil {
		s.logger.Error("error sending email", "err", err)
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error": "Sorry, there was an error sending your message. Please try again later.",
		})
		return
	}
	c.HTML(http.StatusOK, "contact-success.html", gin.H{
		"success": "Thank you for your message! I'll get back to you soon.",
	})
}
