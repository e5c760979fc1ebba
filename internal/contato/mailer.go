package contato

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer repassa a mensagem de contato para a caixa do hemocentro.
type Mailer interface {
	Send(m Mensagem) error
}

// SMTPMailer envia pelo relay SMTP configurado.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
	to   string
}

// NewSMTPMailer cria o relay; devolve nil quando o host não está configurado
// (o serviço então apenas persiste as mensagens).
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	if host == "" {
		return nil
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
		to:   from,
	}
}

// Send entrega a mensagem com Reply-To apontando para o remetente original.
func (m *SMTPMailer) Send(msg Mensagem) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", m.to)
	fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.Email)
	fmt.Fprintf(&b, "Subject: [Contato] %s\r\n", sanitizeHeader(msg.Assunto))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Nome: %s\nE-mail: %s\n\n%s\n", msg.Nome, msg.Email, msg.Mensagem)

	return smtp.SendMail(m.addr, m.auth, m.from, []string{m.to}, []byte(b.String()))
}

func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.ReplaceAll(value, "\n", " ")
}
