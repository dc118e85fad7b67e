package domain

import "time"

// CredentialSource identifies which rung of the credential priority chain
// produced a successful refresh.
type CredentialSource string

const (
	SourceExistingSession  CredentialSource = "existing-session"
	SourceStoredCredential CredentialSource = "stored-credential"
	SourceManualCredential CredentialSource = "manual-credential"
)

// RefreshTrigger records what initiated a refresh attempt.
type RefreshTrigger string

const (
	TriggerManual    RefreshTrigger = "manual"
	TriggerScheduled RefreshTrigger = "scheduled"
)

// RefreshRecord is one entry of the refresh history log.
type RefreshRecord struct {
	At      time.Time      `toml:"at"`
	Trigger RefreshTrigger `toml:"trigger"`
	Success bool           `toml:"success"`
	Message string         `toml:"message,omitempty"`
}

// WidgetSnapshot is the lightweight projection consumed by widget-style
// renderers. IsRefreshing and SuccessUntil are settable independently of a
// full snapshot write.
type WidgetSnapshot struct {
	UpdatedAt       time.Time  `json:"updatedAt"`
	PlanName        string     `json:"planName,omitempty"`
	RemainingGB     *float64   `json:"remainingGb,omitempty"`
	TotalCapacityGB *float64   `json:"totalCapacityGb,omitempty"`
	LatestBillYen   *int       `json:"latestBillYen,omitempty"`
	IsRefreshing    bool       `json:"isRefreshing"`
	SuccessUntil    *time.Time `json:"successUntil,omitempty"`
}
