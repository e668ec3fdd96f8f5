package service

import (
	"encoding/json"

	"tokenguard/internal/models"
	"tokenguard/internal/repository"

	log "github.com/sirupsen/logrus"
)

// recordAudit writes an admin action trail row. Failures are logged only.
func recordAudit(repo *repository.AuditLogRepository, actor Actor, action, resource, resourceID string, meta interface{}) {
	if repo == nil {
		return
	}
	var metaJSON string
	if meta != nil {
		b, _ := json.Marshal(meta)
		metaJSON = string(b)
	}
	uid := actor.UserID
	if err := repo.Create(&models.AuditLog{
		UserID:     &uid,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		IP:         actor.IP,
		Metadata:   metaJSON,
	}); err != nil {
		log.WithError(err).WithField("action", action).Warn("[audit] write failed")
	}
}
