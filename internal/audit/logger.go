package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rebatewise/backend/internal/models"
)

// Logger persists the before/after trail for privileged operations and
// mirrors every entry to the process log. Entries are write-once; there
// is no update or delete path.
type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Log appends one audit row. The insert is intentionally outside the
// ledger's SQL transaction: audit failure must not roll back a committed
// money movement, so a failed insert is reported to the caller and still
// lands in the process log.
func (l *Logger) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()

	l.emit(entry)

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_user_id, action, resource_type, resource_id, before, after, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.ActorUserID, entry.Action, entry.ResourceType, entry.ResourceID,
		entry.Before, entry.After, entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	return err
}

// LogStatusChange is the convenience path used by the transition handlers.
func (l *Logger) LogStatusChange(ctx context.Context, actorID, resourceType, resourceID, oldStatus, newStatus, ip, userAgent string) error {
	return l.Log(ctx, &models.AuditLog{
		ActorUserID:  actorID,
		Action:       "status_change",
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Before:       models.Metadata{"status": oldStatus},
		After:        models.Metadata{"status": newStatus},
		IPAddress:    ip,
		UserAgent:    userAgent,
	})
}

func (l *Logger) emit(entry *models.AuditLog) {
	data, _ := json.Marshal(entry)
	log.Printf("AUDIT: %s", string(data))
}
