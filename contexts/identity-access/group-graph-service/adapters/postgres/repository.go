package postgresadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"bastion/contexts/identity-access/group-graph-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/group-graph-service/domain/errors"
	"bastion/contexts/identity-access/group-graph-service/domain/services"
	"bastion/contexts/identity-access/group-graph-service/ports"
	"bastion/internal/shared/audit"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repository is the transactional group graph store. Graph validation runs
// against a snapshot loaded inside the same transaction as the write, so
// concurrent mutations serialize on the database.
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

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&groupModel{},
		&personModel{},
		&userModel{},
		&membershipModel{},
		&moderatorModel{},
		&auditModel{},
	)
}

func (r *Repository) CreateGroup(ctx context.Context, actor string, group entities.Group) error {
	row, err := groupModelFromEntity(group)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrGroupExists
			}
			return err
		}
		return appendAudit(tx, actor, "insert", "groups", group.Name, "", "", group.Name)
	})
}

func (r *Repository) GetGroup(ctx context.Context, name string) (entities.Group, error) {
	var row groupModel
	err := r.db.WithContext(ctx).Where("group_name = ?", name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Group{}, domainerrors.ErrGroupNotFound
		}
		return entities.Group{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListGroups(ctx context.Context) ([]entities.Group, error) {
	var rows []groupModel
	if err := r.db.WithContext(ctx).Order("group_name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Group, 0, len(rows))
	for _, row := range rows {
		group, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, group)
	}
	return items, nil
}

func (r *Repository) UpdateGroup(
	ctx context.Context,
	actor string,
	name string,
	update ports.GroupUpdate,
) (entities.Group, error) {
	var updated entities.Group
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := getGroupTx(tx, name)
		if err != nil {
			return err
		}
		if group.Class == entities.GroupClassPrimary {
			return domainerrors.ErrPrimaryGroupLifecycle
		}
		if err := applyGroupUpdateTx(tx, actor, &group, update); err != nil {
			return err
		}
		updated = group
		return nil
	})
	return updated, err
}

func (r *Repository) DeleteGroup(ctx context.Context, actor string, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := getGroupTx(tx, name)
		if err != nil {
			return err
		}
		if group.Class == entities.GroupClassPrimary {
			return domainerrors.ErrPrimaryGroupLifecycle
		}
		return removeGroupTx(tx, actor, name)
	})
}

// AddMember validates against a snapshot read inside the same transaction as
// the insert. The transaction runs serializable so two writers racing on
// edges that would close a cycle cannot both pass validation; the loser
// surfaces as ErrWriteConflict.
func (r *Repository) AddMember(ctx context.Context, actor string, group string, member string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := loadSnapshot(tx)
		if err != nil {
			return err
		}
		if err := services.ValidateMembership(snapshot, group, member, time.Now()); err != nil {
			return err
		}
		row := membershipModel{GroupName: group, MemberName: member}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateEdge
			}
			return err
		}
		return appendAudit(tx, actor, "insert", "group_memberships", group, "member_name", "", member)
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if isSerializationFailure(err) {
		return domainerrors.ErrWriteConflict
	}
	return err
}

func (r *Repository) RemoveMember(ctx context.Context, actor string, group string, member string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("group_name = ? AND member_name = ?", group, member).Delete(&membershipModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrEdgeNotFound
		}
		return appendAudit(tx, actor, "delete", "group_memberships", group, "member_name", member, "")
	})
}

// AddModerator runs serializable for the same reason as AddMember: the
// reverse-edge (2-cycle) check is only sound if concurrent inserts cannot
// both validate against pre-insert snapshots.
func (r *Repository) AddModerator(ctx context.Context, actor string, group string, moderator string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := loadSnapshot(tx)
		if err != nil {
			return err
		}
		if err := services.ValidateModerator(snapshot, group, moderator, time.Now()); err != nil {
			return err
		}
		row := moderatorModel{GroupName: group, ModeratorName: moderator}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrDuplicateEdge
			}
			return err
		}
		return appendAudit(tx, actor, "insert", "group_moderators", group, "moderator_name", "", moderator)
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if isSerializationFailure(err) {
		return domainerrors.ErrWriteConflict
	}
	return err
}

func (r *Repository) RemoveModerator(ctx context.Context, actor string, group string, moderator string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("group_name = ? AND moderator_name = ?", group, moderator).Delete(&moderatorModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrEdgeNotFound
		}
		return appendAudit(tx, actor, "delete", "group_moderators", group, "moderator_name", moderator, "")
	})
}

func (r *Repository) CreatePerson(
	ctx context.Context,
	actor string,
	person entities.Person,
	primaryGroup entities.Group,
) error {
	personRow, err := personModelFromEntity(person)
	if err != nil {
		return err
	}
	groupRow, err := groupModelFromEntity(primaryGroup)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&personRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrInvalidRequest
			}
			return err
		}
		if err := tx.Create(&groupRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrGroupExists
			}
			return err
		}
		if err := appendAudit(tx, actor, "insert", "persons", person.PersonID, "", "", person.FullName); err != nil {
			return err
		}
		return appendAudit(tx, actor, "insert", "groups", primaryGroup.Name, "", "", primaryGroup.Name)
	})
}

func (r *Repository) GetPerson(ctx context.Context, personID string) (entities.Person, error) {
	var row personModel
	err := r.db.WithContext(ctx).Where("person_id = ?", personID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Person{}, domainerrors.ErrPersonNotFound
		}
		return entities.Person{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListPersons(ctx context.Context) ([]entities.Person, error) {
	var rows []personModel
	if err := r.db.WithContext(ctx).Order("person_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]entities.Person, 0, len(rows))
	for _, row := range rows {
		person, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, person)
	}
	return items, nil
}

func (r *Repository) UpdatePerson(
	ctx context.Context,
	actor string,
	personID string,
	update ports.PersonUpdate,
) (entities.Person, error) {
	var updated entities.Person
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row personModel
		if err := tx.Where("person_id = ?", personID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrPersonNotFound
			}
			return err
		}
		person, err := row.toEntity()
		if err != nil {
			return err
		}

		changes := map[string]any{}
		if update.FullName != nil && *update.FullName != person.FullName {
			if err := appendAudit(tx, actor, "update", "persons", personID, "full_name",
				person.FullName, *update.FullName); err != nil {
				return err
			}
			person.FullName = *update.FullName
			changes["full_name"] = person.FullName
		}
		if update.Metadata != nil {
			raw, err := metadataToJSON(update.Metadata)
			if err != nil {
				return err
			}
			if err := appendAudit(tx, actor, "update", "persons", personID, "metadata",
				string(row.Metadata), string(raw)); err != nil {
				return err
			}
			person.Metadata = update.Metadata
			changes["metadata"] = raw
		}
		if update.Activated != nil && *update.Activated != person.Activated {
			if err := appendAudit(tx, actor, "update", "persons", personID, "activated",
				boolValue(person.Activated), boolValue(*update.Activated)); err != nil {
				return err
			}
			person.Activated = *update.Activated
			changes["activated"] = person.Activated
			if err := cascadeActivationTx(tx, actor, person); err != nil {
				return err
			}
		}
		if update.ExpiryDate != nil || update.ClearExpiry {
			var expiry *time.Time
			if update.ExpiryDate != nil {
				value := update.ExpiryDate.UTC()
				expiry = &value
			}
			if err := appendAudit(tx, actor, "update", "persons", personID, "expiry_date",
				timeValue(person.ExpiryDate), timeValue(expiry)); err != nil {
				return err
			}
			person.ExpiryDate = expiry
			changes["expiry_date"] = expiry
			if err := cascadeExpiryTx(tx, actor, person); err != nil {
				return err
			}
		}

		if len(changes) > 0 {
			if err := tx.Model(&personModel{}).Where("person_id = ?", personID).Updates(changes).Error; err != nil {
				return err
			}
		}
		updated = person
		return nil
	})
	return updated, err
}

func (r *Repository) DeletePerson(ctx context.Context, actor string, personID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row personModel
		if err := tx.Where("person_id = ?", personID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrPersonNotFound
			}
			return err
		}

		var users []userModel
		if err := tx.Where("person_id = ?", personID).Find(&users).Error; err != nil {
			return err
		}
		for _, user := range users {
			if err := removeGroupTx(tx, actor, user.UserGroup); err != nil {
				return err
			}
			if err := tx.Where("user_name = ?", user.UserName).Delete(&userModel{}).Error; err != nil {
				return err
			}
			if err := appendAudit(tx, actor, "delete", "users", user.UserName, "", user.UserName, ""); err != nil {
				return err
			}
		}
		if err := removeGroupTx(tx, actor, row.PersonGroup); err != nil {
			return err
		}
		if err := tx.Where("person_id = ?", personID).Delete(&personModel{}).Error; err != nil {
			return err
		}
		return appendAudit(tx, actor, "delete", "persons", personID, "", row.FullName, "")
	})
}

func (r *Repository) CreateUser(
	ctx context.Context,
	actor string,
	user entities.User,
	primaryGroup entities.Group,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var personRow personModel
		if err := tx.Where("person_id = ?", user.PersonID).First(&personRow).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrPersonNotFound
			}
			return err
		}

		if user.ExpiryDate == nil {
			user.ExpiryDate = personRow.ExpiryDate
		} else if personRow.ExpiryDate != nil && user.ExpiryDate.After(*personRow.ExpiryDate) {
			return domainerrors.ErrExpiryOutOfRange
		}
		primaryGroup.ExpiryDate = user.ExpiryDate

		userRow, err := userModelFromEntity(user)
		if err != nil {
			return err
		}
		groupRow, err := groupModelFromEntity(primaryGroup)
		if err != nil {
			return err
		}
		if err := tx.Create(&userRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrUserExists
			}
			return err
		}
		if err := tx.Create(&groupRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrGroupExists
			}
			return err
		}
		if err := appendAudit(tx, actor, "insert", "users", user.UserName, "", "", user.UserName); err != nil {
			return err
		}
		return appendAudit(tx, actor, "insert", "groups", primaryGroup.Name, "", "", primaryGroup.Name)
	})
}

func (r *Repository) GetUser(ctx context.Context, userName string) (entities.User, error) {
	var row userModel
	err := r.db.WithContext(ctx).Where("user_name = ?", userName).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.User{}, domainerrors.ErrUserNotFound
		}
		return entities.User{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListUsersByPerson(ctx context.Context, personID string) ([]entities.User, error) {
	var rows []userModel
	if err := r.db.WithContext(ctx).
		Where("person_id = ?", personID).
		Order("user_name ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]entities.User, 0, len(rows))
	for _, row := range rows {
		user, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, user)
	}
	return items, nil
}

func (r *Repository) UpdateUser(
	ctx context.Context,
	actor string,
	userName string,
	update ports.UserUpdate,
) (entities.User, error) {
	var updated entities.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row userModel
		if err := tx.Where("user_name = ?", userName).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrUserNotFound
			}
			return err
		}
		user, err := row.toEntity()
		if err != nil {
			return err
		}
		var personRow personModel
		if err := tx.Where("person_id = ?", user.PersonID).First(&personRow).Error; err != nil {
			return err
		}

		changes := map[string]any{}
		if update.Metadata != nil {
			raw, err := metadataToJSON(update.Metadata)
			if err != nil {
				return err
			}
			if err := appendAudit(tx, actor, "update", "users", userName, "metadata",
				string(row.Metadata), string(raw)); err != nil {
				return err
			}
			user.Metadata = update.Metadata
			changes["metadata"] = raw
		}
		if update.Activated != nil && *update.Activated != user.Activated {
			if err := appendAudit(tx, actor, "update", "users", userName, "activated",
				boolValue(user.Activated), boolValue(*update.Activated)); err != nil {
				return err
			}
			user.Activated = *update.Activated
			changes["activated"] = user.Activated
			if err := setGroupActivatedTx(tx, actor, user.UserGroup, user.Activated); err != nil {
				return err
			}
		}
		if update.ExpiryDate != nil || update.ClearExpiry {
			var expiry *time.Time
			if update.ExpiryDate != nil {
				value := update.ExpiryDate.UTC()
				expiry = &value
				if personRow.ExpiryDate != nil && expiry.After(*personRow.ExpiryDate) {
					return domainerrors.ErrExpiryOutOfRange
				}
			}
			if err := appendAudit(tx, actor, "update", "users", userName, "expiry_date",
				timeValue(user.ExpiryDate), timeValue(expiry)); err != nil {
				return err
			}
			user.ExpiryDate = expiry
			changes["expiry_date"] = expiry
			if err := setGroupExpiryTx(tx, actor, user.UserGroup, expiry); err != nil {
				return err
			}
		}

		if len(changes) > 0 {
			if err := tx.Model(&userModel{}).Where("user_name = ?", userName).Updates(changes).Error; err != nil {
				return err
			}
		}
		updated = user
		return nil
	})
	return updated, err
}

func (r *Repository) DeleteUser(ctx context.Context, actor string, userName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row userModel
		if err := tx.Where("user_name = ?", userName).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrUserNotFound
			}
			return err
		}
		if err := removeGroupTx(tx, actor, row.UserGroup); err != nil {
			return err
		}
		if err := tx.Where("user_name = ?", userName).Delete(&userModel{}).Error; err != nil {
			return err
		}
		return appendAudit(tx, actor, "delete", "users", userName, "", userName, "")
	})
}

func (r *Repository) Snapshot(ctx context.Context) (services.Snapshot, error) {
	return loadSnapshot(r.db.WithContext(ctx))
}

func (r *Repository) ListPendingAudit(ctx context.Context, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []auditModel
	if err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("event_time ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]audit.Record, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toRecord())
	}
	return items, nil
}

func (r *Repository) MarkAuditPublished(ctx context.Context, recordID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&auditModel{}).
		Where("record_id = ?", recordID).
		Update("published_at", publishedAt.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidRequest
	}
	return nil
}

func getGroupTx(tx *gorm.DB, name string) (entities.Group, error) {
	var row groupModel
	if err := tx.Where("group_name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Group{}, domainerrors.ErrGroupNotFound
		}
		return entities.Group{}, err
	}
	return row.toEntity()
}

func applyGroupUpdateTx(tx *gorm.DB, actor string, group *entities.Group, update ports.GroupUpdate) error {
	changes := map[string]any{}
	if update.Description != nil && *update.Description != group.Description {
		if err := appendAudit(tx, actor, "update", "groups", group.Name, "description",
			group.Description, *update.Description); err != nil {
			return err
		}
		group.Description = *update.Description
		changes["description"] = group.Description
	}
	if update.Metadata != nil {
		raw, err := metadataToJSON(update.Metadata)
		if err != nil {
			return err
		}
		old, err := metadataToJSON(group.Metadata)
		if err != nil {
			return err
		}
		if err := appendAudit(tx, actor, "update", "groups", group.Name, "metadata",
			string(old), string(raw)); err != nil {
			return err
		}
		group.Metadata = update.Metadata
		changes["group_metadata"] = raw
	}
	if update.Activated != nil && *update.Activated != group.Activated {
		if err := appendAudit(tx, actor, "update", "groups", group.Name, "activated",
			boolValue(group.Activated), boolValue(*update.Activated)); err != nil {
			return err
		}
		group.Activated = *update.Activated
		changes["group_activated"] = group.Activated
	}
	if update.ExpiryDate != nil || update.ClearExpiry {
		var expiry *time.Time
		if update.ExpiryDate != nil {
			value := update.ExpiryDate.UTC()
			expiry = &value
		}
		if err := appendAudit(tx, actor, "update", "groups", group.Name, "expiry_date",
			timeValue(group.ExpiryDate), timeValue(expiry)); err != nil {
			return err
		}
		group.ExpiryDate = expiry
		changes["group_expiry_date"] = expiry
	}
	if len(changes) == 0 {
		return nil
	}
	return tx.Model(&groupModel{}).Where("group_name = ?", group.Name).Updates(changes).Error
}

func cascadeActivationTx(tx *gorm.DB, actor string, person entities.Person) error {
	if err := setGroupActivatedTx(tx, actor, person.PersonGroup, person.Activated); err != nil {
		return err
	}
	var users []userModel
	if err := tx.Where("person_id = ?", person.PersonID).Find(&users).Error; err != nil {
		return err
	}
	for _, user := range users {
		if user.Activated == person.Activated {
			continue
		}
		if err := appendAudit(tx, actor, "update", "users", user.UserName, "activated",
			boolValue(user.Activated), boolValue(person.Activated)); err != nil {
			return err
		}
		if err := tx.Model(&userModel{}).
			Where("user_name = ?", user.UserName).
			Update("activated", person.Activated).
			Error; err != nil {
			return err
		}
		if err := setGroupActivatedTx(tx, actor, user.UserGroup, person.Activated); err != nil {
			return err
		}
	}
	return nil
}

func cascadeExpiryTx(tx *gorm.DB, actor string, person entities.Person) error {
	if err := setGroupExpiryTx(tx, actor, person.PersonGroup, person.ExpiryDate); err != nil {
		return err
	}
	if person.ExpiryDate == nil {
		return nil
	}
	var users []userModel
	if err := tx.Where("person_id = ?", person.PersonID).Find(&users).Error; err != nil {
		return err
	}
	for _, user := range users {
		if user.ExpiryDate != nil && !user.ExpiryDate.After(*person.ExpiryDate) {
			continue
		}
		if err := appendAudit(tx, actor, "update", "users", user.UserName, "expiry_date",
			timeValue(user.ExpiryDate), timeValue(person.ExpiryDate)); err != nil {
			return err
		}
		if err := tx.Model(&userModel{}).
			Where("user_name = ?", user.UserName).
			Update("expiry_date", person.ExpiryDate).
			Error; err != nil {
			return err
		}
		if err := setGroupExpiryTx(tx, actor, user.UserGroup, person.ExpiryDate); err != nil {
			return err
		}
	}
	return nil
}

func setGroupActivatedTx(tx *gorm.DB, actor string, name string, activated bool) error {
	var row groupModel
	if err := tx.Where("group_name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if row.Activated == activated {
		return nil
	}
	if err := appendAudit(tx, actor, "update", "groups", name, "activated",
		boolValue(row.Activated), boolValue(activated)); err != nil {
		return err
	}
	return tx.Model(&groupModel{}).Where("group_name = ?", name).Update("group_activated", activated).Error
}

func setGroupExpiryTx(tx *gorm.DB, actor string, name string, expiry *time.Time) error {
	var row groupModel
	if err := tx.Where("group_name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := appendAudit(tx, actor, "update", "groups", name, "expiry_date",
		timeValue(row.ExpiryDate), timeValue(expiry)); err != nil {
		return err
	}
	return tx.Model(&groupModel{}).Where("group_name = ?", name).Update("group_expiry_date", expiry).Error
}

func removeGroupTx(tx *gorm.DB, actor string, name string) error {
	var row groupModel
	if err := tx.Where("group_name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	var memberships []membershipModel
	if err := tx.Where("group_name = ? OR member_name = ?", name, name).Find(&memberships).Error; err != nil {
		return err
	}
	for _, edge := range memberships {
		if err := appendAudit(tx, actor, "delete", "group_memberships",
			edge.GroupName, "member_name", edge.MemberName, ""); err != nil {
			return err
		}
	}
	if err := tx.Where("group_name = ? OR member_name = ?", name, name).Delete(&membershipModel{}).Error; err != nil {
		return err
	}

	var moderators []moderatorModel
	if err := tx.Where("group_name = ? OR moderator_name = ?", name, name).Find(&moderators).Error; err != nil {
		return err
	}
	for _, edge := range moderators {
		if err := appendAudit(tx, actor, "delete", "group_moderators",
			edge.GroupName, "moderator_name", edge.ModeratorName, ""); err != nil {
			return err
		}
	}
	if err := tx.Where("group_name = ? OR moderator_name = ?", name, name).Delete(&moderatorModel{}).Error; err != nil {
		return err
	}

	if err := tx.Where("group_name = ?", name).Delete(&groupModel{}).Error; err != nil {
		return err
	}
	return appendAudit(tx, actor, "delete", "groups", name, "", name, "")
}

func loadSnapshot(tx *gorm.DB) (services.Snapshot, error) {
	var groupRows []groupModel
	if err := tx.Find(&groupRows).Error; err != nil {
		return services.Snapshot{}, err
	}
	groups := make(map[string]entities.Group, len(groupRows))
	for _, row := range groupRows {
		group, err := row.toEntity()
		if err != nil {
			return services.Snapshot{}, err
		}
		groups[group.Name] = group
	}

	var membershipRows []membershipModel
	if err := tx.Find(&membershipRows).Error; err != nil {
		return services.Snapshot{}, err
	}
	memberships := make([]entities.MembershipEdge, 0, len(membershipRows))
	for _, row := range membershipRows {
		memberships = append(memberships, entities.MembershipEdge{
			GroupName:  row.GroupName,
			MemberName: row.MemberName,
		})
	}

	var moderatorRows []moderatorModel
	if err := tx.Find(&moderatorRows).Error; err != nil {
		return services.Snapshot{}, err
	}
	moderators := make([]entities.ModeratorEdge, 0, len(moderatorRows))
	for _, row := range moderatorRows {
		moderators = append(moderators, entities.ModeratorEdge{
			GroupName:     row.GroupName,
			ModeratorName: row.ModeratorName,
		})
	}

	return services.Snapshot{Groups: groups, Memberships: memberships, Moderators: moderators}, nil
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

type groupModel struct {
	GroupID       string     `gorm:"column:group_id;primaryKey"`
	GroupName     string     `gorm:"column:group_name;uniqueIndex"`
	GroupClass    string     `gorm:"column:group_class"`
	GroupType     string     `gorm:"column:group_type"`
	PrimaryMember string     `gorm:"column:group_primary_member"`
	Description   string     `gorm:"column:description"`
	Activated     bool       `gorm:"column:group_activated"`
	ExpiryDate    *time.Time `gorm:"column:group_expiry_date"`
	Metadata      []byte     `gorm:"column:group_metadata"`
}

func (groupModel) TableName() string {
	return "iam_groups"
}

func groupModelFromEntity(group entities.Group) (groupModel, error) {
	raw, err := metadataToJSON(group.Metadata)
	if err != nil {
		return groupModel{}, err
	}
	return groupModel{
		GroupID:       group.GroupID,
		GroupName:     group.Name,
		GroupClass:    string(group.Class),
		GroupType:     string(group.Type),
		PrimaryMember: group.PrimaryMember,
		Description:   group.Description,
		Activated:     group.Activated,
		ExpiryDate:    group.ExpiryDate,
		Metadata:      raw,
	}, nil
}

func (m groupModel) toEntity() (entities.Group, error) {
	metadata, err := metadataFromJSON(m.Metadata)
	if err != nil {
		return entities.Group{}, err
	}
	return entities.Group{
		GroupID:       m.GroupID,
		Name:          m.GroupName,
		Class:         entities.GroupClass(m.GroupClass),
		Type:          entities.GroupType(m.GroupType),
		PrimaryMember: m.PrimaryMember,
		Description:   m.Description,
		Activated:     m.Activated,
		ExpiryDate:    m.ExpiryDate,
		Metadata:      metadata,
	}, nil
}

type personModel struct {
	PersonID    string     `gorm:"column:person_id;primaryKey"`
	FullName    string     `gorm:"column:full_name"`
	Activated   bool       `gorm:"column:activated"`
	ExpiryDate  *time.Time `gorm:"column:expiry_date"`
	PersonGroup string     `gorm:"column:person_group"`
	Metadata    []byte     `gorm:"column:metadata"`
}

func (personModel) TableName() string {
	return "iam_persons"
}

func personModelFromEntity(person entities.Person) (personModel, error) {
	raw, err := metadataToJSON(person.Metadata)
	if err != nil {
		return personModel{}, err
	}
	return personModel{
		PersonID:    person.PersonID,
		FullName:    person.FullName,
		Activated:   person.Activated,
		ExpiryDate:  person.ExpiryDate,
		PersonGroup: person.PersonGroup,
		Metadata:    raw,
	}, nil
}

func (m personModel) toEntity() (entities.Person, error) {
	metadata, err := metadataFromJSON(m.Metadata)
	if err != nil {
		return entities.Person{}, err
	}
	return entities.Person{
		PersonID:    m.PersonID,
		FullName:    m.FullName,
		Activated:   m.Activated,
		ExpiryDate:  m.ExpiryDate,
		PersonGroup: m.PersonGroup,
		Metadata:    metadata,
	}, nil
}

type userModel struct {
	UserName   string     `gorm:"column:user_name;primaryKey"`
	PersonID   string     `gorm:"column:person_id;index"`
	Activated  bool       `gorm:"column:activated"`
	ExpiryDate *time.Time `gorm:"column:expiry_date"`
	UserGroup  string     `gorm:"column:user_group"`
	Metadata   []byte     `gorm:"column:metadata"`
}

func (userModel) TableName() string {
	return "iam_users"
}

func userModelFromEntity(user entities.User) (userModel, error) {
	raw, err := metadataToJSON(user.Metadata)
	if err != nil {
		return userModel{}, err
	}
	return userModel{
		UserName:   user.UserName,
		PersonID:   user.PersonID,
		Activated:  user.Activated,
		ExpiryDate: user.ExpiryDate,
		UserGroup:  user.UserGroup,
		Metadata:   raw,
	}, nil
}

func (m userModel) toEntity() (entities.User, error) {
	metadata, err := metadataFromJSON(m.Metadata)
	if err != nil {
		return entities.User{}, err
	}
	return entities.User{
		UserName:   m.UserName,
		PersonID:   m.PersonID,
		Activated:  m.Activated,
		ExpiryDate: m.ExpiryDate,
		UserGroup:  m.UserGroup,
		Metadata:   metadata,
	}, nil
}

type membershipModel struct {
	GroupName  string `gorm:"column:group_name;primaryKey"`
	MemberName string `gorm:"column:member_name;primaryKey"`
}

func (membershipModel) TableName() string {
	return "iam_group_memberships"
}

type moderatorModel struct {
	GroupName     string `gorm:"column:group_name;primaryKey"`
	ModeratorName string `gorm:"column:moderator_name;primaryKey"`
}

func (moderatorModel) TableName() string {
	return "iam_group_moderators"
}

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

func (auditModel) TableName() string {
	return "iam_audit_group_graph"
}

func (m auditModel) toRecord() audit.Record {
	return audit.Record{
		RecordID:  m.RecordID,
		Identity:  m.Identity,
		Operation: m.Operation,
		Entity:    m.Entity,
		EntityKey: m.EntityKey,
		Column:    m.Column,
		OldValue:  m.OldValue,
		NewValue:  m.NewValue,
		EventTime: m.EventTime.UTC(),
	}
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}
