package activitylog

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tradebook/tradebook-backend/pkg/database"
)

// Logger handles activity logging for audit trail
type Logger struct {
	db *gorm.DB
}

// NewLogger creates a new activity logger
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// LogActivity creates an activity log entry. Logging failures are
// reported but never fail the calling operation.
func (l *Logger) LogActivity(c *gin.Context, action, entityType string, entityID *uuid.UUID, details interface{}) {
	userID, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		return
	}

	detailsJSON := ""
	if details != nil {
		if jsonBytes, err := json.Marshal(details); err == nil {
			detailsJSON = string(jsonBytes)
		}
	}

	entry := database.ActivityLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    detailsJSON,
		IPAddress:  c.ClientIP(),
	}
	if err := l.db.Create(&entry).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"action":      action,
			"entity_type": entityType,
		}).Warn("failed to write activity log")
	}
}

// LogCreate logs a create action
func (l *Logger) LogCreate(c *gin.Context, entityType string, entityID uuid.UUID, newData interface{}) {
	l.LogActivity(c, "create", entityType, &entityID, map[string]interface{}{"new": newData})
}

// LogUpdate logs an update action
func (l *Logger) LogUpdate(c *gin.Context, entityType string, entityID uuid.UUID, changes interface{}) {
	l.LogActivity(c, "update", entityType, &entityID, map[string]interface{}{"changes": changes})
}

// LogDelete logs a delete action
func (l *Logger) LogDelete(c *gin.Context, entityType string, entityID uuid.UUID) {
	l.LogActivity(c, "delete", entityType, &entityID, nil)
}
