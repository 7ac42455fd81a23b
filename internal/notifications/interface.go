package notifications

import (
	"context"

	"github.com/ocdul/social-listening/internal/models"
)

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendEditorReport(ctx context.Context, report *models.EditorReport) error
	Enabled() bool
}
