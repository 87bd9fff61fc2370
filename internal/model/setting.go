package model

import "time"

type SettingType string

const (
	SettingTypeEmail SettingType = "email"
	SettingTypeSMS   SettingType = "sms"
)

func (t SettingType) Valid() bool {
	return t == SettingTypeEmail || t == SettingTypeSMS
}

// Setting is one row of communication_settings.
type Setting struct {
	Key         string      `json:"setting_key" db:"setting_key"`
	Value       string      `json:"setting_value" db:"setting_value"`
	Type        SettingType `json:"setting_type" db:"setting_type"`
	Description *string     `json:"description,omitempty" db:"description"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// Email setting keys
const (
	SettingEmailFromName    = "email_from_name"
	SettingEmailFromAddress = "email_from_address"
	SettingEmailProvider    = "email_provider"
	SettingSMTPHost         = "smtp_host"
	SettingSMTPPort         = "smtp_port"
	SettingSMTPUsername     = "smtp_username"
	SettingSMTPPassword     = "smtp_password"
	SettingSMTPEncryption   = "smtp_encryption"
	SettingSESRegion        = "ses_region"
)

// SMS setting keys
const (
	SettingSMSProvider    = "sms_provider"
	SettingSMSAPIKey      = "sms_api_key"
	SettingSMSAPISecret   = "sms_api_secret"
	SettingSMSSenderID    = "sms_sender_id"
	SettingMaxSMSPerBatch = "max_sms_per_batch"
	SettingSNSRegion      = "sns_region"
)

// SettingKeys lists the keys accepted per type. Anything else is ignored on update.
var SettingKeys = map[SettingType][]string{
	SettingTypeEmail: {
		SettingEmailFromName, SettingEmailFromAddress, SettingEmailProvider,
		SettingSMTPHost, SettingSMTPPort, SettingSMTPUsername, SettingSMTPPassword,
		SettingSMTPEncryption, SettingSESRegion,
	},
	SettingTypeSMS: {
		SettingSMSProvider, SettingSMSAPIKey, SettingSMSAPISecret,
		SettingSMSSenderID, SettingMaxSMSPerBatch, SettingSNSRegion,
	},
}

// SecretSettingKeys are masked when settings are read back.
var SecretSettingKeys = map[string]bool{
	SettingSMTPPassword: true,
	SettingSMSAPIKey:    true,
	SettingSMSAPISecret: true,
}

// EmailSettings is the typed view adapters consume.
type EmailSettings struct {
	Provider    string `json:"email_provider"`
	FromName    string `json:"email_from_name"`
	FromAddress string `json:"email_from_address"`
	SMTPHost    string `json:"smtp_host"`
	SMTPPort    int    `json:"smtp_port"`
	Username    string `json:"smtp_username"`
	Password    string `json:"-"`
	Encryption  string `json:"smtp_encryption"`
	SESRegion   string `json:"ses_region"`
}

type SMSSettings struct {
	Provider       string `json:"sms_provider"`
	APIKey         string `json:"-"`
	APISecret      string `json:"-"`
	SenderID       string `json:"sms_sender_id"`
	MaxSMSPerBatch int    `json:"max_sms_per_batch"`
	SNSRegion      string `json:"sns_region"`
}
