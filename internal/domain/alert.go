package domain

import (
	"fmt"
	"time"
)

// AlertType identifies the alert variant.
type AlertType string

const (
	AlertLowBalance    AlertType = "LOW_BALANCE"
	AlertLargeTransfer AlertType = "LARGE_TRANSFER"
	AlertSuspicious    AlertType = "SUSPICIOUS_ACTIVITY"
	AlertNetworkError  AlertType = "NETWORK_ERROR"
	AlertSystemError   AlertType = "SYSTEM_ERROR"
	AlertCustom        AlertType = "CUSTOM"
)

// String returns the string representation of AlertType.
func (t AlertType) String() string {
	return string(t)
}

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// String returns the string representation of Severity.
func (s Severity) String() string {
	return string(s)
}

// RiskLevel grades suspicious-activity findings.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Alert is one raised alert. Type selects which optional field group is
// populated; Severity and Timestamp are always set.
type Alert struct {
	Type      AlertType `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`

	// LowBalance. Balance stays unconditional so a zero balance, the worst
	// case, still shows up in sink payloads.
	Address   string `json:"address,omitempty"`
	Balance   uint64 `json:"balance"`
	Threshold uint64 `json:"threshold"`

	// LargeTransfer
	Sender        string `json:"sender,omitempty"`
	Recipient     string `json:"recipient,omitempty"`
	Amount        uint64 `json:"amount"`
	TransactionID string `json:"transaction_id,omitempty"`
	TokenType     string `json:"token_type,omitempty"`

	// SuspiciousActivity
	ActivityType        string    `json:"activity_type,omitempty"`
	Description         string    `json:"description,omitempty"`
	Risk                RiskLevel `json:"risk,omitempty"`
	RelatedTransactions []string  `json:"related_transactions,omitempty"`

	// NetworkError / SystemError
	Component string `json:"component,omitempty"`
	Detail    string `json:"detail,omitempty"`

	// Custom
	Title    string `json:"title,omitempty"`
	Message  string `json:"message,omitempty"`
	Category string `json:"category,omitempty"`
}

// Key returns the deduplication identity for cooldown tracking. Alerts
// sharing a key within the cooldown window are suppressed after the first.
func (a Alert) Key() string {
	switch a.Type {
	case AlertLowBalance:
		return fmt.Sprintf("low_balance:%s", a.Address)
	case AlertLargeTransfer:
		return fmt.Sprintf("large_transfer:%s", a.TransactionID)
	case AlertSuspicious:
		return fmt.Sprintf("suspicious:%s:%s", a.Address, a.ActivityType)
	case AlertNetworkError:
		return fmt.Sprintf("network_error:%s", a.Component)
	case AlertSystemError:
		return fmt.Sprintf("system_error:%s", a.Component)
	default:
		return fmt.Sprintf("custom:%s:%s", a.Category, a.Title)
	}
}

// NewLowBalanceAlert builds a LowBalance alert.
func NewLowBalanceAlert(address string, balance, threshold uint64, sev Severity, ts time.Time) Alert {
	return Alert{
		Type:      AlertLowBalance,
		Severity:  sev,
		Timestamp: ts,
		Address:   address,
		Balance:   balance,
		Threshold: threshold,
	}
}

// NewLargeTransferAlert builds a LargeTransfer alert from an applied transaction.
func NewLargeTransferAlert(tx *Transaction, sev Severity, ts time.Time) Alert {
	return Alert{
		Type:          AlertLargeTransfer,
		Severity:      sev,
		Timestamp:     ts,
		Sender:        tx.Sender,
		Recipient:     tx.Recipient,
		Amount:        tx.Amount,
		TransactionID: tx.ID,
		TokenType:     tx.TokenType,
	}
}

// NewSuspiciousAlert builds a SuspiciousActivity alert.
func NewSuspiciousAlert(address, activityType, description string, risk RiskLevel, related []string, sev Severity, ts time.Time) Alert {
	return Alert{
		Type:                AlertSuspicious,
		Severity:            sev,
		Timestamp:           ts,
		Address:             address,
		ActivityType:        activityType,
		Description:         description,
		Risk:                risk,
		RelatedTransactions: related,
	}
}

// NewNetworkErrorAlert builds a NetworkError alert raised by a collaborator.
func NewNetworkErrorAlert(component, detail string, ts time.Time) Alert {
	return Alert{
		Type:      AlertNetworkError,
		Severity:  SeverityError,
		Timestamp: ts,
		Component: component,
		Detail:    detail,
	}
}

// NewSystemErrorAlert builds a SystemError alert raised by a collaborator.
func NewSystemErrorAlert(component, detail string, ts time.Time) Alert {
	return Alert{
		Type:      AlertSystemError,
		Severity:  SeverityError,
		Timestamp: ts,
		Component: component,
		Detail:    detail,
	}
}

// NewCustomAlert builds a Custom alert.
func NewCustomAlert(title, message, category string, sev Severity, ts time.Time) Alert {
	return Alert{
		Type:      AlertCustom,
		Severity:  sev,
		Timestamp: ts,
		Title:     title,
		Message:   message,
		Category:  category,
	}
}
