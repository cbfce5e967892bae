package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"unifi-report/internal/report"
	"unifi-report/internal/schema"
)

// EmailSinkConfig configures report delivery by mail.
type EmailSinkConfig struct {
	SMTPHost string   `yaml:"smtp_host" validate:"required"`
	SMTPPort int      `yaml:"smtp_port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from" validate:"required,email"`
	To       []string `yaml:"to" validate:"required,min=1,dive,email"`
	UseTLS   bool     `yaml:"use_tls"`
	Subject  string   `yaml:"subject"`
}

// EmailSink mails the plain-text report.
type EmailSink struct {
	config EmailSinkConfig
}

// NewEmailSink creates an email sink. The port defaults follow the
// transport: 465 with TLS, 587 without.
func NewEmailSink(cfg EmailSinkConfig) *EmailSink {
	if cfg.SMTPPort == 0 {
		if cfg.UseTLS {
			cfg.SMTPPort = 465
		} else {
			cfg.SMTPPort = 587
		}
	}
	if cfg.Subject == "" {
		cfg.Subject = "Network report"
	}
	return &EmailSink{config: cfg}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, r report.Report, rendered []byte) error {
	msg := s.buildMessage(r, rendered)
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	conn, err := s.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTP handshake failed: %w", err)
	}
	defer client.Close()

	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPHost)
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("SMTP authentication failed: %w", err)
			}
		}
	}

	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("SMTP MAIL failed: %w", err)
	}
	for _, to := range s.config.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("SMTP RCPT %s failed: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return client.Quit()
}

func (s *EmailSink) dial(ctx context.Context, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: 10 * time.Second}
	if s.config.UseTLS {
		return (&tls.Dialer{NetDialer: d, Config: &tls.Config{ServerName: s.config.SMTPHost}}).DialContext(ctx, "tcp", addr)
	}
	return d.DialContext(ctx, "tcp", addr)
}

// buildMessage assembles the RFC 5322 message. The subject carries the
// worst severity present so a mailbox sort surfaces the bad days.
func (s *EmailSink) buildMessage(r report.Report, rendered []byte) []byte {
	subject := s.config.Subject
	if worst, ok := worstSeverity(r.Result.Findings); ok {
		subject = fmt.Sprintf("%s [%s] %d findings", subject, strings.ToUpper(worst.String()), len(r.Result.Findings))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.config.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", r.GeneratedAt.UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.Write(rendered)
	return []byte(b.String())
}

func worstSeverity(findings []schema.Finding) (schema.Severity, bool) {
	if len(findings) == 0 {
		return 0, false
	}
	worst := findings[0].Severity
	for _, f := range findings[1:] {
		if f.Severity > worst {
			worst = f.Severity
		}
	}
	return worst, true
}
