package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"furniplan/internal/models"
	"furniplan/internal/repositories"
	"furniplan/internal/utils"
)

const (
	verifyTokenBytes        = 32
	maxAutoResponderMessage = 4096
)

var apiVersionRe = regexp.MustCompile(`^v\d+\.\d+$`)

// IntegrationService manages the singleton WhatsApp settings row.
// Everything it hands to callers outside the relay is masked.
type IntegrationService struct {
	repo     repositories.IntegrationRepository
	newToken func() (string, error)
}

func NewIntegrationService(repo repositories.IntegrationRepository) *IntegrationService {
	return &IntegrationService{
		repo:     repo,
		newToken: func() (string, error) { return utils.NewToken(verifyTokenBytes) },
	}
}

// Current returns the stored settings unmasked, for the relay itself.
func (s *IntegrationService) Current(ctx context.Context) (*models.IntegrationSettings, error) {
	settings, err := s.repo.Get(ctx)
	if errors.Is(err, repositories.ErrIntegrationNotFound) {
		return nil, ErrIntegrationNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("load integration settings: %w", err)
	}
	return settings, nil
}

func (s *IntegrationService) Get(ctx context.Context) (*models.IntegrationSettings, error) {
	settings, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	masked := settings.Masked()
	return &masked, nil
}

func (s *IntegrationService) Upsert(ctx context.Context, in models.UpsertIntegrationInput) (*models.IntegrationSettings, error) {
	existing, err := s.repo.Get(ctx)
	if err != nil && !errors.Is(err, repositories.ErrIntegrationNotFound) {
		return nil, fmt.Errorf("load integration settings: %w", err)
	}

	up := repositories.IntegrationUpsert{
		APIKey:               strings.TrimSpace(in.APIKey),
		PhoneNumberID:        strings.TrimSpace(in.PhoneNumberID),
		BusinessAccountID:    strings.TrimSpace(in.BusinessAccountID),
		APIVersion:           strings.TrimSpace(in.APIVersion),
		AppSecret:            strings.TrimSpace(in.AppSecret),
		IsActive:             in.IsActive,
		AutoResponderEnabled: in.AutoResponderEnabled,
		VerifyToken:          strings.TrimSpace(in.WebhookVerifyToken),
	}
	if in.AutoResponderMessage != nil {
		msg := strings.TrimSpace(*in.AutoResponderMessage)
		up.AutoResponderMessage = &msg
	}
	if err := validateIntegration(existing, up); err != nil {
		return nil, err
	}

	// сгенерированный токен всегда важнее присланного
	if in.GenerateNewToken {
		if up.VerifyToken, err = s.newToken(); err != nil {
			return nil, fmt.Errorf("generate verify token: %w", err)
		}
	}
	if up.InitialVerifyToken, err = s.newToken(); err != nil {
		return nil, fmt.Errorf("generate verify token: %w", err)
	}

	saved, err := s.repo.Upsert(ctx, up)
	if err != nil {
		return nil, fmt.Errorf("save integration settings: %w", err)
	}
	masked := saved.Masked()
	log.Printf("[integration] saved phone_number_id=%s active=%t api_key=%s new_token=%t",
		masked.PhoneNumberID, masked.IsActive, masked.APIKey, in.GenerateNewToken)
	return &masked, nil
}

func (s *IntegrationService) Deactivate(ctx context.Context) error {
	err := s.repo.Deactivate(ctx)
	if errors.Is(err, repositories.ErrIntegrationNotFound) {
		return ErrIntegrationNotConfigured
	}
	if err != nil {
		return fmt.Errorf("deactivate integration: %w", err)
	}
	log.Printf("[integration] deactivated")
	return nil
}

// VerifyHandshake checks a subscription request against the stored token.
func (s *IntegrationService) VerifyHandshake(ctx context.Context, mode, token, challenge string) (string, error) {
	settings, err := s.Current(ctx)
	if errors.Is(err, ErrIntegrationNotConfigured) {
		return "", ErrWebhookRejected
	}
	if err != nil {
		return "", err
	}
	return VerifyHandshake(mode, token, challenge, settings.WebhookVerifyToken)
}

func validateIntegration(existing *models.IntegrationSettings, up repositories.IntegrationUpsert) error {
	if existing == nil {
		if up.APIKey == "" {
			return fmt.Errorf("%w: apiKey is required", ErrInvalidIntegrationInput)
		}
		if up.PhoneNumberID == "" {
			return fmt.Errorf("%w: phoneNumberId is required", ErrInvalidIntegrationInput)
		}
	}
	if up.APIVersion != "" && !apiVersionRe.MatchString(up.APIVersion) {
		return fmt.Errorf("%w: apiVersion must look like v20.0", ErrInvalidIntegrationInput)
	}

	enabled, message := false, ""
	if existing != nil {
		enabled, message = existing.AutoResponderEnabled, existing.AutoResponderMessage
	}
	if up.AutoResponderEnabled != nil {
		enabled = *up.AutoResponderEnabled
	}
	if up.AutoResponderMessage != nil {
		message = *up.AutoResponderMessage
	}
	if enabled && message == "" {
		return fmt.Errorf("%w: autoResponderMessage is required when the auto-responder is enabled", ErrInvalidIntegrationInput)
	}
	if len([]rune(message)) > maxAutoResponderMessage {
		return fmt.Errorf("%w: autoResponderMessage longer than %d characters", ErrInvalidIntegrationInput, maxAutoResponderMessage)
	}
	return nil
}
