package utils

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minE164Digits = 8
	maxE164Digits = 15
)

// NormalizeE164 formats a number that already carries its country code,
// as WhatsApp reports senders. Only non-digits are dropped.
func NormalizeE164(raw string) (string, error) {
	phone := digitsOnly(raw)
	if phone == "" {
		return "", fmt.Errorf("empty phone")
	}
	if len(phone) < minE164Digits || len(phone) > maxE164Digits {
		return "", fmt.Errorf("invalid phone length: %d", len(phone))
	}
	return "+" + phone, nil
}

// NormalizePhone formats an operator-typed number. Input with "+" or "00"
// is taken as international; otherwise 10/11 digits (DDD + number, optional
// trunk 0) are assumed to be Brazilian and get 55.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty phone")
	}
	if strings.HasPrefix(raw, "+") {
		return NormalizeE164(raw)
	}
	phone := digitsOnly(raw)
	if strings.HasPrefix(phone, "00") {
		return NormalizeE164(phone[2:])
	}

	phone = strings.TrimLeft(phone, "0")
	if len(phone) == 10 || len(phone) == 11 {
		phone = "55" + phone
	}
	if len(phone) < 12 || len(phone) > maxE164Digits {
		return "", fmt.Errorf("invalid phone length: %d", len(phone))
	}
	return "+" + phone, nil
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WhatsAppRecipient strips the leading '+' the Cloud API does not accept.
func WhatsAppRecipient(phone string) string {
	return strings.TrimPrefix(strings.TrimSpace(phone), "+")
}
