package util

import (
	"errors"
	"net/mail"
	"strings"
)

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email obrigatório")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("email inválido")
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de senha.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("senha deve ter pelo menos 8 caracteres")
	}
	return nil
}

// RequireString garante string não vazia.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(field + " obrigatório")
	}
	return nil
}

// ValidateTelefone aceita dígitos com pontuação usual de telefone brasileiro.
func ValidateTelefone(telefone string) error {
	telefone = strings.TrimSpace(telefone)
	if telefone == "" {
		return errors.New("telefone obrigatório")
	}
	digitos := 0
	for _, r := range telefone {
		switch {
		case r >= '0' && r <= '9':
			digitos++
		case r == ' ' || r == '(' || r == ')' || r == '-' || r == '+':
		default:
			return errors.New("telefone inválido")
		}
	}
	if digitos < 8 || digitos > 13 {
		return errors.New("telefone inválido")
	}
	return nil
}
