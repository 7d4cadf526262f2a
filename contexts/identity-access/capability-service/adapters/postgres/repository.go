// Package postgresadapter persists the capability catalog and ranked grants
// with gorm. Rank moves lock the whole (namespace, http_method) partition so
// concurrent moves serialize and the 1..N numbering survives.
package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"bastion/contexts/identity-access/capability-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/capability-service/domain/errors"
	"bastion/contexts/identity-access/capability-service/domain/services"
	"bastion/contexts/identity-access/capability-service/ports"
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

type capabilityModel struct {
	CapabilityID        string     `gorm:"column:capability_id;primaryKey"`
	Name                string     `gorm:"column:capability_name;uniqueIndex"`
	Hostnames           []byte     `gorm:"column:hostnames"`
	RequiredGroups      []byte     `gorm:"column:required_groups"`
	MatchMethod         string     `gorm:"column:match_method"`
	LifetimeSeconds     int64      `gorm:"column:lifetime_seconds"`
	Description         string     `gorm:"column:description"`
	ExpiryDate          *time.Time `gorm:"column:expiry_date"`
	GroupExistenceCheck bool       `gorm:"column:group_existence_check"`
	Metadata            []byte     `gorm:"column:metadata"`
}

func (capabilityModel) TableName() string { return "iam_capabilities" }

type grantModel struct {
	GrantID             string     `gorm:"column:grant_id;primaryKey"`
	Name                string     `gorm:"column:grant_name;uniqueIndex"`
	NamesAllowed        []byte     `gorm:"column:names_allowed"`
	Hostnames           []byte     `gorm:"column:hostnames"`
	Namespace           string     `gorm:"column:namespace;index:idx_grant_partition;uniqueIndex:idx_grant_partition_rank"`
	HTTPMethod          string     `gorm:"column:http_method;index:idx_grant_partition;uniqueIndex:idx_grant_partition_rank"`
	Rank                int        `gorm:"column:grant_rank;uniqueIndex:idx_grant_partition_rank"`
	URIPattern          string     `gorm:"column:uri_pattern"`
	RequiredGroups      []byte     `gorm:"column:required_groups"`
	StartDate           *time.Time `gorm:"column:start_date"`
	EndDate             *time.Time `gorm:"column:end_date"`
	MaxNumUsages        *int       `gorm:"column:max_num_usages"`
	GroupExistenceCheck bool       `gorm:"column:group_existence_check"`
	Metadata            []byte     `gorm:"column:metadata"`
}

func (grantModel) TableName() string { return "iam_capability_grants" }

// grantRankConstraint guards the dense 1..N rank invariant against phantom
// inserts that a partition row lock cannot see (an empty partition has no
// rows to lock).
const grantRankConstraint = "idx_grant_partition_rank"

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

func (auditModel) TableName() string { return "iam_audit_capability" }

// AutoMigrate creates the catalog, grant and audit tables.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&capabilityModel{}, &grantModel{}, &auditModel{})
}

func (r *Repository) SyncCapabilities(ctx context.Context, actor string, capabilities []entities.Capability) (ports.SyncStats, error) {
	var stats ports.SyncStats
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []capabilityModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Find(&rows).Error; err != nil {
			return err
		}
		existing := make(map[string]capabilityModel, len(rows))
		for _, row := range rows {
			existing[row.Name] = row
		}

		incoming := make(map[string]bool, len(capabilities))
		for _, capability := range capabilities {
			incoming[capability.Name] = true
			row, err := capabilityModelFromEntity(capability)
			if err != nil {
				return err
			}
			if current, ok := existing[capability.Name]; ok {
				row.CapabilityID = current.CapabilityID
				if err := tx.Save(&row).Error; err != nil {
					return err
				}
				if err := appendAudit(tx, actor, "update", "capabilities", capability.Name, "definition", current.Name, capability.Name); err != nil {
					return err
				}
				stats.Updated++
				continue
			}
			if row.CapabilityID == "" {
				row.CapabilityID = uuid.NewString()
			}
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %s", domainerrors.ErrCapabilityExists, capability.Name)
				}
				return err
			}
			if err := appendAudit(tx, actor, "insert", "capabilities", capability.Name, "definition", "", capability.Name); err != nil {
				return err
			}
			stats.Created++
		}

		for name := range existing {
			if incoming[name] {
				continue
			}
			if err := removeCapabilityTx(tx, actor, name); err != nil {
				return err
			}
			stats.Deleted++
		}
		return nil
	})
	if err != nil {
		return ports.SyncStats{}, err
	}
	return stats, nil
}

func (r *Repository) GetCapability(ctx context.Context, name string) (entities.Capability, error) {
	var row capabilityModel
	err := r.db.WithContext(ctx).Where("capability_name = ?", name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Capability{}, fmt.Errorf("%w: %s", domainerrors.ErrCapabilityNotFound, name)
		}
		return entities.Capability{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListCapabilities(ctx context.Context) ([]entities.Capability, error) {
	var rows []capabilityModel
	if err := r.db.WithContext(ctx).Order("capability_name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Capability, 0, len(rows))
	for _, row := range rows {
		capability, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, capability)
	}
	return items, nil
}

func (r *Repository) DeleteCapability(ctx context.Context, actor string, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row capabilityModel
		if err := tx.Where("capability_name = ?", name).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", domainerrors.ErrCapabilityNotFound, name)
			}
			return err
		}
		return removeCapabilityTx(tx, actor, name)
	})
}

// removeCapabilityTx prunes the capability from every grant allow-list and
// deletes the catalog row. A grant that would end up with no allowed names
// blocks the whole transaction.
func removeCapabilityTx(tx *gorm.DB, actor string, name string) error {
	var grants []grantModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Find(&grants).Error; err != nil {
		return err
	}
	for _, row := range grants {
		names, err := stringsFromJSON(row.NamesAllowed)
		if err != nil {
			return err
		}
		trimmed := removeString(names, name)
		if len(trimmed) == len(names) {
			continue
		}
		if len(trimmed) == 0 {
			return fmt.Errorf("%w: grant %s only allows %s", domainerrors.ErrReferentialIntegrity, row.Name, name)
		}
		encoded, err := stringsToJSON(trimmed)
		if err != nil {
			return err
		}
		if err := tx.Model(&grantModel{}).Where("grant_id = ?", row.GrantID).Update("names_allowed", encoded).Error; err != nil {
			return err
		}
		if err := appendAudit(tx, actor, "update", "grants", row.Name, "names_allowed", strings.Join(names, ","), strings.Join(trimmed, ",")); err != nil {
			return err
		}
	}
	if err := tx.Where("capability_name = ?", name).Delete(&capabilityModel{}).Error; err != nil {
		return err
	}
	return appendAudit(tx, actor, "delete", "capabilities", name, "definition", name, "")
}

func (r *Repository) CreateGrant(ctx context.Context, actor string, grant entities.Grant, rankRequested *int) (entities.Grant, error) {
	var created entities.Grant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkNamesAllowedTx(tx, grant.NamesAllowed); err != nil {
			return err
		}
		partition, err := lockPartitionTx(tx, grant.Namespace, grant.HTTPMethod)
		if err != nil {
			return err
		}
		rank, err := services.ValidateNewRank(len(partition), rankRequested)
		if err != nil {
			return err
		}
		grant.Rank = rank

		row, err := grantModelFromEntity(grant)
		if err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			if uniqueViolationConstraint(err) == grantRankConstraint {
				return fmt.Errorf("%w: rank %d already taken in partition %s %s",
					domainerrors.ErrWriteConflict, grant.Rank, grant.Namespace, grant.HTTPMethod)
			}
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", domainerrors.ErrGrantExists, grant.Name)
			}
			return err
		}
		created = grant
		return appendAudit(tx, actor, "insert", "grants", grant.Name, "definition", "", grant.Name)
	})
	if err != nil {
		return entities.Grant{}, err
	}
	return created, nil
}

func (r *Repository) GetGrant(ctx context.Context, ref string) (entities.Grant, error) {
	var row grantModel
	err := r.db.WithContext(ctx).Where("grant_id = ? OR grant_name = ?", ref, ref).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Grant{}, fmt.Errorf("%w: %s", domainerrors.ErrGrantNotFound, ref)
		}
		return entities.Grant{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListGrants(ctx context.Context) ([]entities.Grant, error) {
	var rows []grantModel
	err := r.db.WithContext(ctx).Order("namespace ASC, http_method ASC, grant_rank ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return grantsFromModels(rows)
}

func (r *Repository) ListGrantsByPartition(ctx context.Context, namespace, httpMethod string) ([]entities.Grant, error) {
	var rows []grantModel
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND http_method = ?", namespace, httpMethod).
		Order("grant_rank ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return grantsFromModels(rows)
}

func (r *Repository) UpdateGrant(ctx context.Context, actor string, ref string, update ports.GrantUpdate) (entities.Grant, error) {
	var updated entities.Grant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := getGrantTx(tx, ref)
		if err != nil {
			return err
		}
		grant, err := row.toEntity()
		if err != nil {
			return err
		}

		if update.NamesAllowed != nil {
			if err := checkNamesAllowedTx(tx, update.NamesAllowed); err != nil {
				return err
			}
			if err := appendAudit(tx, actor, "update", "grants", grant.Name, "names_allowed", strings.Join(grant.NamesAllowed, ","), strings.Join(update.NamesAllowed, ",")); err != nil {
				return err
			}
			grant.NamesAllowed = update.NamesAllowed
		}
		if update.Hostnames != nil {
			if err := appendAudit(tx, actor, "update", "grants", grant.Name, "hostnames", strings.Join(grant.Hostnames, ","), strings.Join(update.Hostnames, ",")); err != nil {
				return err
			}
			grant.Hostnames = update.Hostnames
		}
		if update.URIPattern != nil {
			if err := appendAudit(tx, actor, "update", "grants", grant.Name, "uri_pattern", grant.URIPattern, *update.URIPattern); err != nil {
				return err
			}
			grant.URIPattern = *update.URIPattern
		}
		if update.RequiredGroups != nil {
			if err := appendAudit(tx, actor, "update", "grants", grant.Name, "required_groups", strings.Join(grant.RequiredGroups, ","), strings.Join(update.RequiredGroups, ",")); err != nil {
				return err
			}
			grant.RequiredGroups = update.RequiredGroups
		}
		if update.StartDate != nil || update.ClearStartDate {
			if err := appendAudit(tx, actor, "update", "grants", grant.Name, "start_date", timeValue(grant.StartDate), timeValue(update.StartDate)); err != nil {
				return err
			}
			grant.StartDate = update.StartDate
		}
		if update.EndDate != nil || update.ClearEndDate {
			if err := appendAudit(tx, actor, "update", "grants", grant.Name, "end_date", timeValue(grant.EndDate), timeValue(update.EndDate)); err != nil {
				return err
			}
			grant.EndDate = update.EndDate
		}
		if update.MaxNumUsages != nil || update.ClearMaxNumUsages {
			if err := appendAudit(tx, actor, "update", "grants", grant.Name, "max_num_usages", intValue(grant.MaxNumUsages), intValue(update.MaxNumUsages)); err != nil {
				return err
			}
			grant.MaxNumUsages = update.MaxNumUsages
		}
		if update.GroupExistenceCheck != nil {
			if err := appendAudit(tx, actor, "update", "grants", grant.Name, "group_existence_check", boolValue(grant.GroupExistenceCheck), boolValue(*update.GroupExistenceCheck)); err != nil {
				return err
			}
			grant.GroupExistenceCheck = *update.GroupExistenceCheck
		}
		if update.Metadata != nil {
			grant.Metadata = update.Metadata
			if err := appendAudit(tx, actor, "update", "grants", grant.Name, "metadata", "", metadataValue(update.Metadata)); err != nil {
				return err
			}
		}

		saved, err := grantModelFromEntity(grant)
		if err != nil {
			return err
		}
		if err := tx.Save(&saved).Error; err != nil {
			return err
		}
		updated = grant
		return nil
	})
	if err != nil {
		return entities.Grant{}, err
	}
	return updated, nil
}

func (r *Repository) SetGrantRank(ctx context.Context, actor string, ref string, newRank int) (entities.Grant, error) {
	var moved entities.Grant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := getGrantTx(tx, ref)
		if err != nil {
			return err
		}
		if err := moveRankTx(tx, actor, &row, newRank); err != nil {
			return err
		}
		moved, err = row.toEntity()
		return err
	})
	if err != nil {
		return entities.Grant{}, err
	}
	return moved, nil
}

func (r *Repository) AddGrantGroup(ctx context.Context, actor string, ref string, group string) (entities.Grant, error) {
	var updated entities.Grant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := getGrantTx(tx, ref)
		if err != nil {
			return err
		}
		groups, err := stringsFromJSON(row.RequiredGroups)
		if err != nil {
			return err
		}
		for _, existing := range groups {
			if existing == group {
				return fmt.Errorf("%w: group %s already required by grant %s", domainerrors.ErrInvalidRequest, group, row.Name)
			}
		}
		old := strings.Join(groups, ",")
		groups = append(groups, group)
		encoded, err := stringsToJSON(groups)
		if err != nil {
			return err
		}
		if err := tx.Model(&grantModel{}).Where("grant_id = ?", row.GrantID).Update("required_groups", encoded).Error; err != nil {
			return err
		}
		if err := appendAudit(tx, actor, "update", "grants", row.Name, "required_groups", old, strings.Join(groups, ",")); err != nil {
			return err
		}
		row.RequiredGroups = encoded
		updated, err = row.toEntity()
		return err
	})
	if err != nil {
		return entities.Grant{}, err
	}
	return updated, nil
}

func (r *Repository) RemoveGrantGroup(ctx context.Context, actor string, ref string, group string) (entities.Grant, error) {
	var updated entities.Grant
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := getGrantTx(tx, ref)
		if err != nil {
			return err
		}
		groups, err := stringsFromJSON(row.RequiredGroups)
		if err != nil {
			return err
		}
		trimmed := removeString(groups, group)
		if len(trimmed) == len(groups) {
			return fmt.Errorf("%w: group %s not required by grant %s", domainerrors.ErrGroupNotFound, group, row.Name)
		}
		encoded, err := stringsToJSON(trimmed)
		if err != nil {
			return err
		}
		if err := tx.Model(&grantModel{}).Where("grant_id = ?", row.GrantID).Update("required_groups", encoded).Error; err != nil {
			return err
		}
		if err := appendAudit(tx, actor, "update", "grants", row.Name, "required_groups", strings.Join(groups, ","), strings.Join(trimmed, ",")); err != nil {
			return err
		}
		row.RequiredGroups = encoded
		updated, err = row.toEntity()
		return err
	})
	if err != nil {
		return entities.Grant{}, err
	}
	return updated, nil
}

func (r *Repository) DeleteGrant(ctx context.Context, actor string, ref string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := getGrantTx(tx, ref)
		if err != nil {
			return err
		}
		// Park the grant at the end of its partition so the remaining ranks
		// stay dense after deletion.
		partition, err := lockPartitionTx(tx, row.Namespace, row.HTTPMethod)
		if err != nil {
			return err
		}
		if err := moveRankTx(tx, actor, &row, len(partition)); err != nil {
			return err
		}
		if err := tx.Where("grant_id = ?", row.GrantID).Delete(&grantModel{}).Error; err != nil {
			return err
		}
		return appendAudit(tx, actor, "delete", "grants", row.Name, "definition", row.Name, "")
	})
}

func getGrantTx(tx *gorm.DB, ref string) (grantModel, error) {
	var row grantModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("grant_id = ? OR grant_name = ?", ref, ref).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return grantModel{}, fmt.Errorf("%w: %s", domainerrors.ErrGrantNotFound, ref)
		}
		return grantModel{}, err
	}
	return row, nil
}

func lockPartitionTx(tx *gorm.DB, namespace, httpMethod string) ([]grantModel, error) {
	var rows []grantModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("namespace = ? AND http_method = ?", namespace, httpMethod).
		Order("grant_rank ASC").
		Find(&rows).Error
	return rows, err
}

func moveRankTx(tx *gorm.DB, actor string, row *grantModel, newRank int) error {
	partition, err := lockPartitionTx(tx, row.Namespace, row.HTTPMethod)
	if err != nil {
		return err
	}
	shifts, err := services.PlanRankMove(row.Rank, newRank, len(partition))
	if err != nil {
		return err
	}
	if row.Rank == newRank {
		return nil
	}
	// Park the moving grant at rank 0 so the shifts below never collide with
	// the partition rank unique index. Live ranks start at 1; the partition
	// is locked, so no other mover can park concurrently.
	if err := tx.Model(&grantModel{}).Where("grant_id = ?", row.GrantID).Update("grant_rank", 0).Error; err != nil {
		return err
	}
	byRank := make(map[int]grantModel, len(partition))
	for _, other := range partition {
		if other.GrantID != row.GrantID {
			byRank[other.Rank] = other
		}
	}
	for _, shift := range shifts {
		shifted, ok := byRank[shift.OldRank]
		if !ok {
			continue
		}
		if err := tx.Model(&grantModel{}).Where("grant_id = ?", shifted.GrantID).Update("grant_rank", shift.NewRank).Error; err != nil {
			return err
		}
		if err := appendAudit(tx, actor, "update", "grants", shifted.Name, "rank", strconv.Itoa(shift.OldRank), strconv.Itoa(shift.NewRank)); err != nil {
			return err
		}
	}
	if err := tx.Model(&grantModel{}).Where("grant_id = ?", row.GrantID).Update("grant_rank", newRank).Error; err != nil {
		return err
	}
	if err := appendAudit(tx, actor, "update", "grants", row.Name, "rank", strconv.Itoa(row.Rank), strconv.Itoa(newRank)); err != nil {
		return err
	}
	row.Rank = newRank
	return nil
}

func checkNamesAllowedTx(tx *gorm.DB, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: names_allowed must not be empty", domainerrors.ErrInvalidRequest)
	}
	for _, name := range names {
		if name == entities.GrantNameAll {
			continue
		}
		var count int64
		if err := tx.Model(&capabilityModel{}).Where("capability_name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", domainerrors.ErrUnknownCapability, name)
		}
	}
	return nil
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

func appendAudit(
	tx *gorm.DB,
	actor string,
	operation string,
	entity string,
	entityKey string,
	column string,
	oldValue string,
	newValue string,
) error {
	row := auditModel{
		RecordID:  uuid.NewString(),
		Identity:  actor,
		Operation: operation,
		Entity:    entity,
		EntityKey: entityKey,
		Column:    column,
		OldValue:  oldValue,
		NewValue:  newValue,
		EventTime: time.Now().UTC(),
	}
	return tx.Create(&row).Error
}

func capabilityModelFromEntity(capability entities.Capability) (capabilityModel, error) {
	hostnames, err := stringsToJSON(capability.Hostnames)
	if err != nil {
		return capabilityModel{}, err
	}
	groups, err := stringsToJSON(capability.RequiredGroups)
	if err != nil {
		return capabilityModel{}, err
	}
	metadata, err := metadataToJSON(capability.Metadata)
	if err != nil {
		return capabilityModel{}, err
	}
	return capabilityModel{
		CapabilityID:        capability.CapabilityID,
		Name:                capability.Name,
		Hostnames:           hostnames,
		RequiredGroups:      groups,
		MatchMethod:         string(capability.MatchMethod),
		LifetimeSeconds:     int64(capability.Lifetime / time.Second),
		Description:         capability.Description,
		ExpiryDate:          capability.ExpiryDate,
		GroupExistenceCheck: capability.GroupExistenceCheck,
		Metadata:            metadata,
	}, nil
}

func (m capabilityModel) toEntity() (entities.Capability, error) {
	hostnames, err := stringsFromJSON(m.Hostnames)
	if err != nil {
		return entities.Capability{}, err
	}
	groups, err := stringsFromJSON(m.RequiredGroups)
	if err != nil {
		return entities.Capability{}, err
	}
	metadata, err := metadataFromJSON(m.Metadata)
	if err != nil {
		return entities.Capability{}, err
	}
	return entities.Capability{
		CapabilityID:        m.CapabilityID,
		Name:                m.Name,
		Hostnames:           hostnames,
		RequiredGroups:      groups,
		MatchMethod:         entities.MatchMethod(m.MatchMethod),
		Lifetime:            time.Duration(m.LifetimeSeconds) * time.Second,
		Description:         m.Description,
		ExpiryDate:          m.ExpiryDate,
		GroupExistenceCheck: m.GroupExistenceCheck,
		Metadata:            metadata,
	}, nil
}

func grantModelFromEntity(grant entities.Grant) (grantModel, error) {
	namesAllowed, err := stringsToJSON(grant.NamesAllowed)
	if err != nil {
		return grantModel{}, err
	}
	hostnames, err := stringsToJSON(grant.Hostnames)
	if err != nil {
		return grantModel{}, err
	}
	groups, err := stringsToJSON(grant.RequiredGroups)
	if err != nil {
		return grantModel{}, err
	}
	metadata, err := metadataToJSON(grant.Metadata)
	if err != nil {
		return grantModel{}, err
	}
	return grantModel{
		GrantID:             grant.GrantID,
		Name:                grant.Name,
		NamesAllowed:        namesAllowed,
		Hostnames:           hostnames,
		Namespace:           grant.Namespace,
		HTTPMethod:          grant.HTTPMethod,
		Rank:                grant.Rank,
		URIPattern:          grant.URIPattern,
		RequiredGroups:      groups,
		StartDate:           grant.StartDate,
		EndDate:             grant.EndDate,
		MaxNumUsages:        grant.MaxNumUsages,
		GroupExistenceCheck: grant.GroupExistenceCheck,
		Metadata:            metadata,
	}, nil
}

func (m grantModel) toEntity() (entities.Grant, error) {
	namesAllowed, err := stringsFromJSON(m.NamesAllowed)
	if err != nil {
		return entities.Grant{}, err
	}
	hostnames, err := stringsFromJSON(m.Hostnames)
	if err != nil {
		return entities.Grant{}, err
	}
	groups, err := stringsFromJSON(m.RequiredGroups)
	if err != nil {
		return entities.Grant{}, err
	}
	metadata, err := metadataFromJSON(m.Metadata)
	if err != nil {
		return entities.Grant{}, err
	}
	return entities.Grant{
		GrantID:             m.GrantID,
		Name:                m.Name,
		NamesAllowed:        namesAllowed,
		Hostnames:           hostnames,
		Namespace:           m.Namespace,
		HTTPMethod:          m.HTTPMethod,
		Rank:                m.Rank,
		URIPattern:          m.URIPattern,
		RequiredGroups:      groups,
		StartDate:           m.StartDate,
		EndDate:             m.EndDate,
		MaxNumUsages:        m.MaxNumUsages,
		GroupExistenceCheck: m.GroupExistenceCheck,
		Metadata:            metadata,
	}, nil
}

func grantsFromModels(rows []grantModel) ([]entities.Grant, error) {
	items := make([]entities.Grant, 0, len(rows))
	for _, row := range rows {
		grant, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, grant)
	}
	return items, nil
}

func stringsToJSON(values []string) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func stringsFromJSON(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
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

func metadataValue(metadata map[string]any) string {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func boolValue(value bool) string {
	if value {
		return "true"
	}
	return "false"
}

func timeValue(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func intValue(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func removeString(in []string, target string) []string {
	out := make([]string, 0, len(in))
	for _, value := range in {
		if value != target {
			out = append(out, value)
		}
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// uniqueViolationConstraint returns the violated constraint name, or "" when
// the error is not a unique violation.
func uniqueViolationConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}
