// Package postgresadapter persists capability instances with gorm.
// Redemptions lock the instance row for update; serialization failures
// surface as ErrWriteConflict for the application's retry loop.
package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"bastion/contexts/identity-access/instance-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/instance-service/domain/errors"
	"bastion/contexts/identity-access/instance-service/domain/services"
	"bastion/internal/shared/audit"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

type instanceModel struct {
	InstanceID      string    `gorm:"column:instance_id;primaryKey"`
	CapabilityName  string    `gorm:"column:capability_name;index"`
	StartDate       time.Time `gorm:"column:start_date"`
	EndDate         time.Time `gorm:"column:end_date"`
	UsagesRemaining *int      `gorm:"column:usages_remaining"`
	Metadata        []byte    `gorm:"column:metadata"`
}

func (instanceModel) TableName() string { return "iam_capability_instances" }

type auditModel struct {
	RecordID    string     `gorm:"column:record_id;primaryKey"`
	Identity    string     `gorm:"column:identity"`
	Operation   string     `gorm:"column:operation"`
	Entity      string     `gorm:"column:entity"`
	EntityKey   string     `gorm:"column:entity_key"`
	Column      string     `gorm:"column:column_name"`
	OldValue    string     `gorm:"column:old_value"`
	NewValue    string     `gorm:"column:new_value"`
	EventTime   time.Time  `gorm:"column:event_time"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (auditModel) TableName() string { return "iam_audit_instance" }

// AutoMigrate creates the instance and audit tables.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&instanceModel{}, &auditModel{})
}

func (r *Repository) CreateInstance(ctx context.Context, actor string, instance entities.CapabilityInstance) error {
	row, err := instanceModelFromEntity(instance)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: instance %s already exists", domainerrors.ErrInvalidRequest, instance.InstanceID)
			}
			return err
		}
		return appendAudit(tx, actor, "insert", instance.InstanceID, "definition", "", instance.CapabilityName)
	})
}

func (r *Repository) GetInstance(ctx context.Context, instanceID string) (entities.CapabilityInstance, error) {
	var row instanceModel
	err := r.db.WithContext(ctx).Where("instance_id = ?", instanceID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.CapabilityInstance{}, fmt.Errorf("%w: %s", domainerrors.ErrInstanceNotFound, instanceID)
		}
		return entities.CapabilityInstance{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListInstances(ctx context.Context) ([]entities.CapabilityInstance, error) {
	var rows []instanceModel
	if err := r.db.WithContext(ctx).Order("instance_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return instancesFromModels(rows)
}

func (r *Repository) ListInstancesByCapability(ctx context.Context, capabilityName string) ([]entities.CapabilityInstance, error) {
	var rows []instanceModel
	err := r.db.WithContext(ctx).
		Where("capability_name = ?", capabilityName).
		Order("instance_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return instancesFromModels(rows)
}

func (r *Repository) DeleteInstance(ctx context.Context, actor string, instanceID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row instanceModel
		if err := tx.Where("instance_id = ?", instanceID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", domainerrors.ErrInstanceNotFound, instanceID)
			}
			return err
		}
		if err := tx.Where("instance_id = ?", instanceID).Delete(&instanceModel{}).Error; err != nil {
			return err
		}
		return appendAudit(tx, actor, "delete", instanceID, "definition", row.CapabilityName, "")
	})
}

func (r *Repository) Redeem(ctx context.Context, actor string, instanceID string, now time.Time) (entities.CapabilityInstance, error) {
	var redeemed entities.CapabilityInstance
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row instanceModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("instance_id = ?", instanceID).
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", domainerrors.ErrInstanceNotFound, instanceID)
			}
			return err
		}
		instance, err := row.toEntity()
		if err != nil {
			return err
		}

		result, outcome, evalErr := services.EvaluateRedemption(instance, now)
		switch outcome {
		case services.OutcomeExpiredDelete:
			if err := tx.Where("instance_id = ?", instanceID).Delete(&instanceModel{}).Error; err != nil {
				return err
			}
			if err := appendAudit(tx, actor, "delete", instanceID, "expired", instance.CapabilityName, ""); err != nil {
				return err
			}
		case services.OutcomeConsumed:
			if err := tx.Where("instance_id = ?", instanceID).Delete(&instanceModel{}).Error; err != nil {
				return err
			}
			if err := appendAudit(tx, actor, "delete", instanceID, "usages_remaining", usageValue(instance.UsagesRemaining), "0"); err != nil {
				return err
			}
		case services.OutcomeDecremented:
			if err := tx.Model(&instanceModel{}).
				Where("instance_id = ?", instanceID).
				Update("usages_remaining", result.UsagesRemaining).Error; err != nil {
				return err
			}
			if err := appendAudit(tx, actor, "update", instanceID, "usages_remaining", usageValue(instance.UsagesRemaining), usageValue(result.UsagesRemaining)); err != nil {
				return err
			}
		}
		if evalErr != nil {
			return evalErr
		}
		redeemed = result
		return nil
	})
	if err != nil {
		if isSerializationFailure(err) {
			return entities.CapabilityInstance{}, domainerrors.ErrWriteConflict
		}
		return entities.CapabilityInstance{}, err
	}
	return redeemed, nil
}

// ListPendingAudit implements audit.Log.
func (r *Repository) ListPendingAudit(ctx context.Context, limit int) ([]audit.Record, error) {
	var rows []auditModel
	query := r.db.WithContext(ctx).Where("published_at IS NULL").Order("event_time ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]audit.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, audit.Record{
			RecordID:  row.RecordID,
			Identity:  row.Identity,
			Operation: row.Operation,
			Entity:    row.Entity,
			EntityKey: row.EntityKey,
			Column:    row.Column,
			OldValue:  row.OldValue,
			NewValue:  row.NewValue,
			EventTime: row.EventTime,
		})
	}
	return records, nil
}

// MarkAuditPublished implements audit.Log.
func (r *Repository) MarkAuditPublished(ctx context.Context, recordID string, publishedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&auditModel{}).
		Where("record_id = ?", recordID).
		Update("published_at", publishedAt).Error
}

func appendAudit(tx *gorm.DB, actor, operation, entityKey, column, oldValue, newValue string) error {
	row := auditModel{
		RecordID:  uuid.NewString(),
		Identity:  actor,
		Operation: operation,
		Entity:    "capability_instances",
		EntityKey: entityKey,
		Column:    column,
		OldValue:  oldValue,
		NewValue:  newValue,
		EventTime: time.Now().UTC(),
	}
	return tx.Create(&row).Error
}

func instanceModelFromEntity(instance entities.CapabilityInstance) (instanceModel, error) {
	metadata, err := metadataToJSON(instance.Metadata)
	if err != nil {
		return instanceModel{}, err
	}
	return instanceModel{
		InstanceID:      instance.InstanceID,
		CapabilityName:  instance.CapabilityName,
		StartDate:       instance.StartDate,
		EndDate:         instance.EndDate,
		UsagesRemaining: instance.UsagesRemaining,
		Metadata:        metadata,
	}, nil
}

func (m instanceModel) toEntity() (entities.CapabilityInstance, error) {
	metadata, err := metadataFromJSON(m.Metadata)
	if err != nil {
		return entities.CapabilityInstance{}, err
	}
	return entities.CapabilityInstance{
		InstanceID:      m.InstanceID,
		CapabilityName:  m.CapabilityName,
		StartDate:       m.StartDate,
		EndDate:         m.EndDate,
		UsagesRemaining: m.UsagesRemaining,
		Metadata:        metadata,
	}, nil
}

func instancesFromModels(rows []instanceModel) ([]entities.CapabilityInstance, error) {
	items := make([]entities.CapabilityInstance, 0, len(rows))
	for _, row := range rows {
		instance, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, instance)
	}
	return items, nil
}

func metadataToJSON(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	return json.Marshal(metadata)
}

func metadataFromJSON(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func usageValue(usages *int) string {
	if usages == nil {
		return ""
	}
	return strconv.Itoa(*usages)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isSerializationFailure matches SQLSTATE 40001, raised when concurrent
// redemptions cannot be serialized.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}
