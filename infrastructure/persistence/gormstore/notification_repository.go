package gormstore

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"devconsole/domain/core/entities"
	"devconsole/domain/core/valueobjects"
	pkgerrors "devconsole/pkg/errors"
)

// NotificationRepository stores notifications in a single table indexed by
// recipient
type NotificationRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

func (r *NotificationRepository) Save(ctx context.Context, n *entities.Notification) error {
	err := r.db.WithContext(ctx).Create(&notificationModel{
		ID:        n.ID.String(),
		Kind:      string(n.Kind),
		FromID:    n.From.String(),
		ToID:      n.To.String(),
		CreatedAt: n.CreatedAt,
	}).Error
	if err != nil {
		return pkgerrors.NewDatabaseError("save notification", err)
	}
	return nil
}

// ListFor orders newest first; rows written in the same instant come back
// latest-written first.
func (r *NotificationRepository) ListFor(ctx context.Context, user valueobjects.UserID) ([]*entities.Notification, error) {
	var models []notificationModel
	if err := r.db.WithContext(ctx).
		Where("to_id = ?", user.String()).
		Order("created_at DESC").Order("seq DESC").
		Find(&models).Error; err != nil {
		return nil, pkgerrors.NewDatabaseError("list notifications", err)
	}

	out := make([]*entities.Notification, len(models))
	for i, m := range models {
		out[i] = &entities.Notification{
			ID:        valueobjects.NotificationID(m.ID),
			Kind:      entities.NotificationKind(m.Kind),
			From:      valueobjects.UserID(m.FromID),
			To:        valueobjects.UserID(m.ToID),
			CreatedAt: m.CreatedAt.UTC(),
		}
	}
	return out, nil
}

func (r *NotificationRepository) DeleteAllFor(ctx context.Context, user valueobjects.UserID) (int, error) {
	res := r.db.WithContext(ctx).Where("to_id = ?", user.String()).Delete(&notificationModel{})
	if res.Error != nil {
		return 0, pkgerrors.NewDatabaseError("clear notifications", res.Error)
	}

	r.logger.Debug("Notifications cleared", zap.String("userID", user.String()), zap.Int64("count", res.RowsAffected))
	return int(res.RowsAffected), nil
}
