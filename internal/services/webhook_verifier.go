package services

import (
	"crypto/subtle"

	"furniplan/internal/models"
	"furniplan/internal/whatsapp"
)

const HandshakeModeSubscribe = "subscribe"

// VerifyHandshake answers the provider's subscription check. On success the
// challenge is returned untouched; any mismatch is ErrWebhookRejected.
func VerifyHandshake(mode, providedToken, challenge, configuredToken string) (string, error) {
	if mode != HandshakeModeSubscribe || configuredToken == "" || providedToken == "" {
		return "", ErrWebhookRejected
	}
	if subtle.ConstantTimeCompare([]byte(providedToken), []byte(configuredToken)) != 1 {
		return "", ErrWebhookRejected
	}
	return challenge, nil
}

// VerifyWebhookSignature checks X-Hub-Signature-256 when an app secret is
// stored. Without one there is nothing to check against.
func VerifyWebhookSignature(settings *models.IntegrationSettings, body []byte, header string) error {
	if settings == nil || settings.AppSecret == "" {
		return nil
	}
	return whatsapp.VerifySignature(body, header, settings.AppSecret)
}
