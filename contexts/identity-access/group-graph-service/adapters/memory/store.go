package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"bastion/contexts/identity-access/group-graph-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/group-graph-service/domain/errors"
	"bastion/contexts/identity-access/group-graph-service/domain/services"
	"bastion/contexts/identity-access/group-graph-service/ports"
	"bastion/internal/shared/audit"

	"github.com/google/uuid"
)

// Store is an in-memory adapter implementing the repository and audit log
// ports. It is intended for tests and local development wiring.
type Store struct {
	mu sync.RWMutex

	groups      map[string]entities.Group
	persons     map[string]entities.Person
	users       map[string]entities.User
	memberships []entities.MembershipEdge
	moderators  []entities.ModeratorEdge

	auditRows map[string]auditRow
}

type auditRow struct {
	audit.Record
	PublishedAt *time.Time
}

func NewStore() *Store {
	return &Store{
		groups:    make(map[string]entities.Group),
		persons:   make(map[string]entities.Person),
		users:     make(map[string]entities.User),
		auditRows: make(map[string]auditRow),
	}
}

func (s *Store) CreateGroup(_ context.Context, actor string, group entities.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.Name]; exists {
		return domainerrors.ErrGroupExists
	}
	s.groups[group.Name] = cloneGroup(group)
	s.appendAudit(actor, "insert", "groups", group.Name, "", "", group.Name)
	return nil
}

func (s *Store) GetGroup(_ context.Context, name string) (entities.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[name]
	if !ok {
		return entities.Group{}, domainerrors.ErrGroupNotFound
	}
	return cloneGroup(group), nil
}

func (s *Store) ListGroups(_ context.Context) ([]entities.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Group, 0, len(s.groups))
	for _, group := range s.groups {
		items = append(items, cloneGroup(group))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *Store) UpdateGroup(
	_ context.Context,
	actor string,
	name string,
	update ports.GroupUpdate,
) (entities.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[name]
	if !ok {
		return entities.Group{}, domainerrors.ErrGroupNotFound
	}
	if group.Class == entities.GroupClassPrimary {
		return entities.Group{}, domainerrors.ErrPrimaryGroupLifecycle
	}
	s.applyGroupUpdate(actor, &group, update)
	s.groups[name] = group
	return cloneGroup(group), nil
}

func (s *Store) DeleteGroup(_ context.Context, actor string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[name]
	if !ok {
		return domainerrors.ErrGroupNotFound
	}
	if group.Class == entities.GroupClassPrimary {
		return domainerrors.ErrPrimaryGroupLifecycle
	}
	s.removeGroupLocked(actor, name)
	return nil
}

func (s *Store) AddMember(_ context.Context, actor string, group string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := services.ValidateMembership(s.snapshotLocked(), group, member, time.Now()); err != nil {
		return err
	}
	s.memberships = append(s.memberships, entities.MembershipEdge{GroupName: group, MemberName: member})
	s.appendAudit(actor, "insert", "group_memberships", group, "member_name", "", member)
	return nil
}

func (s *Store) RemoveMember(_ context.Context, actor string, group string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, edge := range s.memberships {
		if edge.GroupName == group && edge.MemberName == member {
			s.memberships = append(s.memberships[:i], s.memberships[i+1:]...)
			s.appendAudit(actor, "delete", "group_memberships", group, "member_name", member, "")
			return nil
		}
	}
	return domainerrors.ErrEdgeNotFound
}

func (s *Store) AddModerator(_ context.Context, actor string, group string, moderator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := services.ValidateModerator(s.snapshotLocked(), group, moderator, time.Now()); err != nil {
		return err
	}
	s.moderators = append(s.moderators, entities.ModeratorEdge{GroupName: group, ModeratorName: moderator})
	s.appendAudit(actor, "insert", "group_moderators", group, "moderator_name", "", moderator)
	return nil
}

func (s *Store) RemoveModerator(_ context.Context, actor string, group string, moderator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, edge := range s.moderators {
		if edge.GroupName == group && edge.ModeratorName == moderator {
			s.moderators = append(s.moderators[:i], s.moderators[i+1:]...)
			s.appendAudit(actor, "delete", "group_moderators", group, "moderator_name", moderator, "")
			return nil
		}
	}
	return domainerrors.ErrEdgeNotFound
}

func (s *Store) CreatePerson(
	_ context.Context,
	actor string,
	person entities.Person,
	primaryGroup entities.Group,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.persons[person.PersonID]; exists {
		return domainerrors.ErrInvalidRequest
	}
	if _, exists := s.groups[primaryGroup.Name]; exists {
		return domainerrors.ErrGroupExists
	}
	s.persons[person.PersonID] = clonePerson(person)
	s.groups[primaryGroup.Name] = cloneGroup(primaryGroup)
	s.appendAudit(actor, "insert", "persons", person.PersonID, "", "", person.FullName)
	s.appendAudit(actor, "insert", "groups", primaryGroup.Name, "", "", primaryGroup.Name)
	return nil
}

func (s *Store) GetPerson(_ context.Context, personID string) (entities.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	person, ok := s.persons[personID]
	if !ok {
		return entities.Person{}, domainerrors.ErrPersonNotFound
	}
	return clonePerson(person), nil
}

func (s *Store) ListPersons(_ context.Context) ([]entities.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Person, 0, len(s.persons))
	for _, person := range s.persons {
		items = append(items, clonePerson(person))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].PersonID < items[j].PersonID })
	return items, nil
}

func (s *Store) UpdatePerson(
	_ context.Context,
	actor string,
	personID string,
	update ports.PersonUpdate,
) (entities.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	person, ok := s.persons[personID]
	if !ok {
		return entities.Person{}, domainerrors.ErrPersonNotFound
	}

	if update.FullName != nil && *update.FullName != person.FullName {
		s.appendAudit(actor, "update", "persons", personID, "full_name", person.FullName, *update.FullName)
		person.FullName = *update.FullName
	}
	if update.Metadata != nil {
		s.appendAudit(actor, "update", "persons", personID, "metadata",
			auditValue(person.Metadata), auditValue(update.Metadata))
		person.Metadata = copyMetadata(update.Metadata)
	}

	if update.Activated != nil && *update.Activated != person.Activated {
		s.appendAudit(actor, "update", "persons", personID, "activated",
			auditValue(person.Activated), auditValue(*update.Activated))
		person.Activated = *update.Activated
		s.cascadeActivationLocked(actor, person)
	}

	if update.ExpiryDate != nil || update.ClearExpiry {
		var expiry *time.Time
		if update.ExpiryDate != nil {
			value := update.ExpiryDate.UTC()
			expiry = &value
		}
		s.appendAudit(actor, "update", "persons", personID, "expiry_date",
			auditValue(person.ExpiryDate), auditValue(expiry))
		person.ExpiryDate = expiry
		s.cascadeExpiryLocked(actor, person)
	}

	s.persons[personID] = person
	return clonePerson(person), nil
}

func (s *Store) DeletePerson(_ context.Context, actor string, personID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	person, ok := s.persons[personID]
	if !ok {
		return domainerrors.ErrPersonNotFound
	}
	for _, user := range s.usersOfLocked(personID) {
		s.removeGroupLocked(actor, user.UserGroup)
		delete(s.users, user.UserName)
		s.appendAudit(actor, "delete", "users", user.UserName, "", user.UserName, "")
	}
	s.removeGroupLocked(actor, person.PersonGroup)
	delete(s.persons, personID)
	s.appendAudit(actor, "delete", "persons", personID, "", person.FullName, "")
	return nil
}

func (s *Store) CreateUser(
	_ context.Context,
	actor string,
	user entities.User,
	primaryGroup entities.Group,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	person, ok := s.persons[user.PersonID]
	if !ok {
		return domainerrors.ErrPersonNotFound
	}
	if _, exists := s.users[user.UserName]; exists {
		return domainerrors.ErrUserExists
	}
	if _, exists := s.groups[primaryGroup.Name]; exists {
		return domainerrors.ErrGroupExists
	}

	if user.ExpiryDate == nil {
		user.ExpiryDate = person.ExpiryDate
	} else if person.ExpiryDate != nil && user.ExpiryDate.After(*person.ExpiryDate) {
		return domainerrors.ErrExpiryOutOfRange
	}
	primaryGroup.ExpiryDate = user.ExpiryDate

	s.users[user.UserName] = cloneUser(user)
	s.groups[primaryGroup.Name] = cloneGroup(primaryGroup)
	s.appendAudit(actor, "insert", "users", user.UserName, "", "", user.UserName)
	s.appendAudit(actor, "insert", "groups", primaryGroup.Name, "", "", primaryGroup.Name)
	return nil
}

func (s *Store) GetUser(_ context.Context, userName string) (entities.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userName]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (s *Store) ListUsersByPerson(_ context.Context, personID string) ([]entities.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.User, 0)
	for _, user := range s.users {
		if user.PersonID == personID {
			items = append(items, cloneUser(user))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UserName < items[j].UserName })
	return items, nil
}

func (s *Store) UpdateUser(
	_ context.Context,
	actor string,
	userName string,
	update ports.UserUpdate,
) (entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userName]
	if !ok {
		return entities.User{}, domainerrors.ErrUserNotFound
	}
	person := s.persons[user.PersonID]

	if update.Metadata != nil {
		s.appendAudit(actor, "update", "users", userName, "metadata",
			auditValue(user.Metadata), auditValue(update.Metadata))
		user.Metadata = copyMetadata(update.Metadata)
	}
	if update.Activated != nil && *update.Activated != user.Activated {
		s.appendAudit(actor, "update", "users", userName, "activated",
			auditValue(user.Activated), auditValue(*update.Activated))
		user.Activated = *update.Activated
		s.setGroupActivatedLocked(actor, user.UserGroup, user.Activated)
	}
	if update.ExpiryDate != nil || update.ClearExpiry {
		var expiry *time.Time
		if update.ExpiryDate != nil {
			value := update.ExpiryDate.UTC()
			expiry = &value
			if person.ExpiryDate != nil && expiry.After(*person.ExpiryDate) {
				return entities.User{}, domainerrors.ErrExpiryOutOfRange
			}
		}
		s.appendAudit(actor, "update", "users", userName, "expiry_date",
			auditValue(user.ExpiryDate), auditValue(expiry))
		user.ExpiryDate = expiry
		s.setGroupExpiryLocked(actor, user.UserGroup, expiry)
	}

	s.users[userName] = user
	return cloneUser(user), nil
}

func (s *Store) DeleteUser(_ context.Context, actor string, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userName]
	if !ok {
		return domainerrors.ErrUserNotFound
	}
	s.removeGroupLocked(actor, user.UserGroup)
	delete(s.users, userName)
	s.appendAudit(actor, "delete", "users", userName, "", userName, "")
	return nil
}

func (s *Store) Snapshot(_ context.Context) (services.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

func (s *Store) ListPendingAudit(_ context.Context, limit int) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]audit.Record, 0, len(s.auditRows))
	for _, row := range s.auditRows {
		if row.PublishedAt == nil {
			rows = append(rows, row.Record)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EventTime.Equal(rows[j].EventTime) {
			return rows[i].RecordID < rows[j].RecordID
		}
		return rows[i].EventTime.Before(rows[j].EventTime)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) MarkAuditPublished(_ context.Context, recordID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.auditRows[recordID]
	if !ok {
		return domainerrors.ErrInvalidRequest
	}
	value := publishedAt.UTC()
	row.PublishedAt = &value
	s.auditRows[recordID] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) snapshotLocked() services.Snapshot {
	groups := make(map[string]entities.Group, len(s.groups))
	for name, group := range s.groups {
		groups[name] = cloneGroup(group)
	}
	return services.Snapshot{
		Groups:      groups,
		Memberships: append([]entities.MembershipEdge(nil), s.memberships...),
		Moderators:  append([]entities.ModeratorEdge(nil), s.moderators...),
	}
}

func (s *Store) applyGroupUpdate(actor string, group *entities.Group, update ports.GroupUpdate) {
	if update.Description != nil && *update.Description != group.Description {
		s.appendAudit(actor, "update", "groups", group.Name, "description",
			group.Description, *update.Description)
		group.Description = *update.Description
	}
	if update.Metadata != nil {
		s.appendAudit(actor, "update", "groups", group.Name, "metadata",
			auditValue(group.Metadata), auditValue(update.Metadata))
		group.Metadata = copyMetadata(update.Metadata)
	}
	if update.Activated != nil && *update.Activated != group.Activated {
		s.appendAudit(actor, "update", "groups", group.Name, "activated",
			auditValue(group.Activated), auditValue(*update.Activated))
		group.Activated = *update.Activated
	}
	if update.ExpiryDate != nil || update.ClearExpiry {
		var expiry *time.Time
		if update.ExpiryDate != nil {
			value := update.ExpiryDate.UTC()
			expiry = &value
		}
		s.appendAudit(actor, "update", "groups", group.Name, "expiry_date",
			auditValue(group.ExpiryDate), auditValue(expiry))
		group.ExpiryDate = expiry
	}
}

func (s *Store) cascadeActivationLocked(actor string, person entities.Person) {
	s.setGroupActivatedLocked(actor, person.PersonGroup, person.Activated)
	for _, user := range s.usersOfLocked(person.PersonID) {
		if user.Activated == person.Activated {
			continue
		}
		s.appendAudit(actor, "update", "users", user.UserName, "activated",
			auditValue(user.Activated), auditValue(person.Activated))
		user.Activated = person.Activated
		s.users[user.UserName] = user
		s.setGroupActivatedLocked(actor, user.UserGroup, person.Activated)
	}
}

func (s *Store) cascadeExpiryLocked(actor string, person entities.Person) {
	s.setGroupExpiryLocked(actor, person.PersonGroup, person.ExpiryDate)
	if person.ExpiryDate == nil {
		return
	}
	for _, user := range s.usersOfLocked(person.PersonID) {
		if user.ExpiryDate != nil && !user.ExpiryDate.After(*person.ExpiryDate) {
			continue
		}
		s.appendAudit(actor, "update", "users", user.UserName, "expiry_date",
			auditValue(user.ExpiryDate), auditValue(person.ExpiryDate))
		user.ExpiryDate = person.ExpiryDate
		s.users[user.UserName] = user
		s.setGroupExpiryLocked(actor, user.UserGroup, person.ExpiryDate)
	}
}

func (s *Store) setGroupActivatedLocked(actor string, name string, activated bool) {
	group, ok := s.groups[name]
	if !ok || group.Activated == activated {
		return
	}
	s.appendAudit(actor, "update", "groups", name, "activated",
		auditValue(group.Activated), auditValue(activated))
	group.Activated = activated
	s.groups[name] = group
}

func (s *Store) setGroupExpiryLocked(actor string, name string, expiry *time.Time) {
	group, ok := s.groups[name]
	if !ok {
		return
	}
	s.appendAudit(actor, "update", "groups", name, "expiry_date",
		auditValue(group.ExpiryDate), auditValue(expiry))
	group.ExpiryDate = expiry
	s.groups[name] = group
}

func (s *Store) usersOfLocked(personID string) []entities.User {
	items := make([]entities.User, 0)
	for _, user := range s.users {
		if user.PersonID == personID {
			items = append(items, user)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].UserName < items[j].UserName })
	return items
}

func (s *Store) removeGroupLocked(actor string, name string) {
	if _, ok := s.groups[name]; !ok {
		return
	}
	memberships := make([]entities.MembershipEdge, 0, len(s.memberships))
	for _, edge := range s.memberships {
		if edge.GroupName == name || edge.MemberName == name {
			s.appendAudit(actor, "delete", "group_memberships", edge.GroupName, "member_name", edge.MemberName, "")
			continue
		}
		memberships = append(memberships, edge)
	}
	s.memberships = memberships

	moderators := make([]entities.ModeratorEdge, 0, len(s.moderators))
	for _, edge := range s.moderators {
		if edge.GroupName == name || edge.ModeratorName == name {
			s.appendAudit(actor, "delete", "group_moderators", edge.GroupName, "moderator_name", edge.ModeratorName, "")
			continue
		}
		moderators = append(moderators, edge)
	}
	s.moderators = moderators

	delete(s.groups, name)
	s.appendAudit(actor, "delete", "groups", name, "", name, "")
}

func (s *Store) appendAudit(
	actor string,
	operation string,
	entity string,
	entityKey string,
	column string,
	oldValue string,
	newValue string,
) {
	record := audit.Record{
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
	s.auditRows[record.RecordID] = auditRow{Record: record}
}

func cloneGroup(group entities.Group) entities.Group {
	group.Metadata = copyMetadata(group.Metadata)
	if group.ExpiryDate != nil {
		value := *group.ExpiryDate
		group.ExpiryDate = &value
	}
	return group
}

func clonePerson(person entities.Person) entities.Person {
	person.Metadata = copyMetadata(person.Metadata)
	if person.ExpiryDate != nil {
		value := *person.ExpiryDate
		person.ExpiryDate = &value
	}
	return person
}

func cloneUser(user entities.User) entities.User {
	user.Metadata = copyMetadata(user.Metadata)
	if user.ExpiryDate != nil {
		value := *user.ExpiryDate
		user.ExpiryDate = &value
	}
	return user
}

func copyMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		out[key] = value
	}
	return out
}

func auditValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return fmt.Sprintf("%t", v)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", v)
	}
}
