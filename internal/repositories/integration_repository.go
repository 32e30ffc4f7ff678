package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"furniplan/internal/models"
)

var ErrIntegrationNotFound = errors.New("integration settings not found")

// IntegrationUpsert is a partial write of the settings row. Empty strings and
// nil pointers keep the stored value on update.
type IntegrationUpsert struct {
	APIKey               string
	PhoneNumberID        string
	BusinessAccountID    string
	APIVersion           string
	AppSecret            string
	IsActive             *bool
	AutoResponderEnabled *bool
	AutoResponderMessage *string
	VerifyToken          string
	// InitialVerifyToken is stored when the row is created without VerifyToken.
	InitialVerifyToken string
}

type IntegrationRepository interface {
	Get(ctx context.Context) (*models.IntegrationSettings, error)
	Upsert(ctx context.Context, in IntegrationUpsert) (*models.IntegrationSettings, error)
	Deactivate(ctx context.Context) error
}

type integrationRepository struct {
	db *sqlx.DB
}

func NewIntegrationRepository(db *sqlx.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

const integrationColumns = `id, api_key, phone_number_id, business_account_id, api_version, is_active,
        webhook_verify_token, app_secret, auto_responder_enabled, auto_responder_message, updated_at`

func (r *integrationRepository) Get(ctx context.Context) (*models.IntegrationSettings, error) {
	var s models.IntegrationSettings
	err := r.db.GetContext(ctx, &s,
		`SELECT `+integrationColumns+` FROM integration_settings WHERE id = $1`, models.IntegrationSettingsID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntegrationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert is a single statement keyed by the fixed id, so concurrent
// administrators can never produce a second row.
func (r *integrationRepository) Upsert(ctx context.Context, in IntegrationUpsert) (*models.IntegrationSettings, error) {
	var s models.IntegrationSettings
	err := r.db.GetContext(ctx, &s, `
        INSERT INTO integration_settings (
            id, api_key, phone_number_id, business_account_id, api_version, is_active,
            webhook_verify_token, app_secret, auto_responder_enabled, auto_responder_message, updated_at)
        VALUES (
            $1, $2::text, $3::text, $4::text, COALESCE(NULLIF($5::text, ''), $12::text), COALESCE($6::boolean, TRUE),
            COALESCE(NULLIF($7::text, ''), $8::text), $9::text, COALESCE($10::boolean, FALSE), COALESCE($11::text, ''), NOW())
        ON CONFLICT (id) DO UPDATE SET
            api_key = COALESCE(NULLIF($2::text, ''), integration_settings.api_key),
            phone_number_id = COALESCE(NULLIF($3::text, ''), integration_settings.phone_number_id),
            business_account_id = COALESCE(NULLIF($4::text, ''), integration_settings.business_account_id),
            api_version = COALESCE(NULLIF($5::text, ''), integration_settings.api_version),
            is_active = COALESCE($6::boolean, integration_settings.is_active),
            webhook_verify_token = COALESCE(NULLIF($7::text, ''), integration_settings.webhook_verify_token),
            app_secret = COALESCE(NULLIF($9::text, ''), integration_settings.app_secret),
            auto_responder_enabled = COALESCE($10::boolean, integration_settings.auto_responder_enabled),
            auto_responder_message = COALESCE($11::text, integration_settings.auto_responder_message),
            updated_at = NOW()
        RETURNING `+integrationColumns,
		models.IntegrationSettingsID,
		in.APIKey, in.PhoneNumberID, in.BusinessAccountID, in.APIVersion, in.IsActive,
		in.VerifyToken, in.InitialVerifyToken, in.AppSecret,
		in.AutoResponderEnabled, in.AutoResponderMessage,
		models.DefaultWhatsAppAPIVersion,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *integrationRepository) Deactivate(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE integration_settings SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, models.IntegrationSettingsID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrIntegrationNotFound
	}
	return nil
}
