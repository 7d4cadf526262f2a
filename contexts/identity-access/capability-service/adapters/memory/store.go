// Package memory provides an in-memory capability repository used by tests
// and local composition. It enforces the same catalog and rank invariants as
// the postgres adapter and records the same audit trail.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bastion/contexts/identity-access/capability-service/domain/entities"
	domainerrors "bastion/contexts/identity-access/capability-service/domain/errors"
	"bastion/contexts/identity-access/capability-service/domain/services"
	"bastion/contexts/identity-access/capability-service/ports"
	"bastion/internal/shared/audit"
)

type auditRow struct {
	record      audit.Record
	publishedAt *time.Time
}

// Store keeps the capability catalog and ranked grants behind one mutex so
// rank moves and referential checks observe a consistent view.
type Store struct {
	mu           sync.RWMutex
	capabilities map[string]entities.Capability
	grants       map[string]entities.Grant
	auditRows    map[string]auditRow
}

func NewStore() *Store {
	return &Store{
		capabilities: make(map[string]entities.Capability),
		grants:       make(map[string]entities.Grant),
		auditRows:    make(map[string]auditRow),
	}
}

// Now implements ports.Clock.
func (s *Store) Now() time.Time { return time.Now().UTC() }

// NewID implements ports.IDGenerator.
func (s *Store) NewID(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

func (s *Store) SyncCapabilities(ctx context.Context, actor string, capabilities []entities.Capability) (ports.SyncStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	incoming := make(map[string]bool, len(capabilities))
	for _, capability := range capabilities {
		incoming[capability.Name] = true
	}
	removals := make(map[string]bool)
	for name := range s.capabilities {
		if !incoming[name] {
			removals[name] = true
		}
	}

	// Stage the grant pruning for every removal before touching any state,
	// so a referential failure leaves the whole catalog untouched.
	type pruned struct {
		grant entities.Grant
		names []string
	}
	var prunes []pruned
	for _, grant := range s.grants {
		trimmed := make([]string, 0, len(grant.NamesAllowed))
		for _, allowed := range grant.NamesAllowed {
			if !removals[allowed] {
				trimmed = append(trimmed, allowed)
			}
		}
		if len(trimmed) == len(grant.NamesAllowed) {
			continue
		}
		if len(trimmed) == 0 {
			return ports.SyncStats{}, fmt.Errorf("%w: grant %s only allows removed capabilities", domainerrors.ErrReferentialIntegrity, grant.Name)
		}
		prunes = append(prunes, pruned{grant: grant, names: trimmed})
	}

	var stats ports.SyncStats
	for _, capability := range capabilities {
		existing, ok := s.capabilities[capability.Name]
		if ok {
			capability.CapabilityID = existing.CapabilityID
			s.capabilities[capability.Name] = cloneCapability(capability)
			s.appendAudit(actor, "update", "capabilities", capability.Name, "definition", capabilityValue(existing), capabilityValue(capability))
			stats.Updated++
			continue
		}
		if capability.CapabilityID == "" {
			capability.CapabilityID = uuid.NewString()
		}
		s.capabilities[capability.Name] = cloneCapability(capability)
		s.appendAudit(actor, "insert", "capabilities", capability.Name, "definition", "", capabilityValue(capability))
		stats.Created++
	}

	for _, update := range prunes {
		grant := update.grant
		old := strings.Join(grant.NamesAllowed, ",")
		grant.NamesAllowed = update.names
		s.grants[grant.GrantID] = grant
		s.appendAudit(actor, "update", "grants", grant.Name, "names_allowed", old, strings.Join(update.names, ","))
	}
	for name := range removals {
		capability := s.capabilities[name]
		delete(s.capabilities, name)
		s.appendAudit(actor, "delete", "capabilities", name, "definition", capabilityValue(capability), "")
		stats.Deleted++
	}
	return stats, nil
}

func (s *Store) GetCapability(ctx context.Context, name string) (entities.Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	capability, ok := s.capabilities[name]
	if !ok {
		return entities.Capability{}, fmt.Errorf("%w: %s", domainerrors.ErrCapabilityNotFound, name)
	}
	return cloneCapability(capability), nil
}

func (s *Store) ListCapabilities(ctx context.Context) ([]entities.Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Capability, 0, len(s.capabilities))
	for _, capability := range s.capabilities {
		out = append(out, cloneCapability(capability))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) DeleteCapability(ctx context.Context, actor string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.capabilities[name]; !ok {
		return fmt.Errorf("%w: %s", domainerrors.ErrCapabilityNotFound, name)
	}
	return s.removeCapabilityLocked(actor, name)
}

// removeCapabilityLocked deletes a catalog entry and prunes its name from
// grant allow-lists. A grant left with an empty allow-list blocks the
// deletion.
func (s *Store) removeCapabilityLocked(actor string, name string) error {
	type pruned struct {
		grant entities.Grant
		names []string
	}
	var updates []pruned
	for _, grant := range s.grants {
		trimmed := removeString(grant.NamesAllowed, name)
		if len(trimmed) == len(grant.NamesAllowed) {
			continue
		}
		if len(trimmed) == 0 {
			return fmt.Errorf("%w: grant %s only allows %s", domainerrors.ErrReferentialIntegrity, grant.Name, name)
		}
		updates = append(updates, pruned{grant: grant, names: trimmed})
	}
	for _, update := range updates {
		grant := update.grant
		old := strings.Join(grant.NamesAllowed, ",")
		grant.NamesAllowed = update.names
		s.grants[grant.GrantID] = grant
		s.appendAudit(actor, "update", "grants", grant.Name, "names_allowed", old, strings.Join(update.names, ","))
	}
	capability := s.capabilities[name]
	delete(s.capabilities, name)
	s.appendAudit(actor, "delete", "capabilities", name, "definition", capabilityValue(capability), "")
	return nil
}

func (s *Store) CreateGrant(ctx context.Context, actor string, grant entities.Grant, rankRequested *int) (entities.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.grants {
		if existing.Name == grant.Name {
			return entities.Grant{}, fmt.Errorf("%w: %s", domainerrors.ErrGrantExists, grant.Name)
		}
	}
	if err := s.checkNamesAllowedLocked(grant.NamesAllowed); err != nil {
		return entities.Grant{}, err
	}

	rank, err := services.ValidateNewRank(len(s.partitionLocked(grant.Namespace, grant.HTTPMethod)), rankRequested)
	if err != nil {
		return entities.Grant{}, err
	}
	grant.Rank = rank
	s.grants[grant.GrantID] = cloneGrant(grant)
	s.appendAudit(actor, "insert", "grants", grant.Name, "definition", "", grantValue(grant))
	return cloneGrant(grant), nil
}

func (s *Store) GetGrant(ctx context.Context, ref string) (entities.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, err := s.getGrantLocked(ref)
	if err != nil {
		return entities.Grant{}, err
	}
	return cloneGrant(grant), nil
}

func (s *Store) ListGrants(ctx context.Context) ([]entities.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Grant, 0, len(s.grants))
	for _, grant := range s.grants {
		out = append(out, cloneGrant(grant))
	}
	sortGrants(out)
	return out, nil
}

func (s *Store) ListGrantsByPartition(ctx context.Context, namespace, httpMethod string) ([]entities.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	partition := s.partitionLocked(namespace, httpMethod)
	out := make([]entities.Grant, 0, len(partition))
	for _, grant := range partition {
		out = append(out, cloneGrant(grant))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (s *Store) UpdateGrant(ctx context.Context, actor string, ref string, update ports.GrantUpdate) (entities.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, err := s.getGrantLocked(ref)
	if err != nil {
		return entities.Grant{}, err
	}
	if update.NamesAllowed != nil {
		if err := s.checkNamesAllowedLocked(update.NamesAllowed); err != nil {
			return entities.Grant{}, err
		}
		s.appendAudit(actor, "update", "grants", grant.Name, "names_allowed", strings.Join(grant.NamesAllowed, ","), strings.Join(update.NamesAllowed, ","))
		grant.NamesAllowed = copyStrings(update.NamesAllowed)
	}
	if update.Hostnames != nil {
		s.appendAudit(actor, "update", "grants", grant.Name, "hostnames", strings.Join(grant.Hostnames, ","), strings.Join(update.Hostnames, ","))
		grant.Hostnames = copyStrings(update.Hostnames)
	}
	if update.URIPattern != nil {
		s.appendAudit(actor, "update", "grants", grant.Name, "uri_pattern", grant.URIPattern, *update.URIPattern)
		grant.URIPattern = *update.URIPattern
	}
	if update.RequiredGroups != nil {
		s.appendAudit(actor, "update", "grants", grant.Name, "required_groups", strings.Join(grant.RequiredGroups, ","), strings.Join(update.RequiredGroups, ","))
		grant.RequiredGroups = copyStrings(update.RequiredGroups)
	}
	if update.StartDate != nil || update.ClearStartDate {
		s.appendAudit(actor, "update", "grants", grant.Name, "start_date", timeValue(grant.StartDate), timeValue(update.StartDate))
		grant.StartDate = copyTime(update.StartDate)
	}
	if update.EndDate != nil || update.ClearEndDate {
		s.appendAudit(actor, "update", "grants", grant.Name, "end_date", timeValue(grant.EndDate), timeValue(update.EndDate))
		grant.EndDate = copyTime(update.EndDate)
	}
	if update.MaxNumUsages != nil || update.ClearMaxNumUsages {
		s.appendAudit(actor, "update", "grants", grant.Name, "max_num_usages", intValue(grant.MaxNumUsages), intValue(update.MaxNumUsages))
		grant.MaxNumUsages = copyInt(update.MaxNumUsages)
	}
	if update.GroupExistenceCheck != nil {
		s.appendAudit(actor, "update", "grants", grant.Name, "group_existence_check", strconv.FormatBool(grant.GroupExistenceCheck), strconv.FormatBool(*update.GroupExistenceCheck))
		grant.GroupExistenceCheck = *update.GroupExistenceCheck
	}
	if update.Metadata != nil {
		grant.Metadata = copyMetadata(update.Metadata)
		s.appendAudit(actor, "update", "grants", grant.Name, "metadata", "", metadataValue(update.Metadata))
	}
	s.grants[grant.GrantID] = grant
	return cloneGrant(grant), nil
}

func (s *Store) SetGrantRank(ctx context.Context, actor string, ref string, newRank int) (entities.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, err := s.getGrantLocked(ref)
	if err != nil {
		return entities.Grant{}, err
	}
	if err := s.moveRankLocked(actor, &grant, newRank); err != nil {
		return entities.Grant{}, err
	}
	return cloneGrant(grant), nil
}

func (s *Store) AddGrantGroup(ctx context.Context, actor string, ref string, group string) (entities.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, err := s.getGrantLocked(ref)
	if err != nil {
		return entities.Grant{}, err
	}
	for _, existing := range grant.RequiredGroups {
		if existing == group {
			return entities.Grant{}, fmt.Errorf("%w: group %s already required by grant %s", domainerrors.ErrInvalidRequest, group, grant.Name)
		}
	}
	old := strings.Join(grant.RequiredGroups, ",")
	grant.RequiredGroups = append(copyStrings(grant.RequiredGroups), group)
	s.grants[grant.GrantID] = grant
	s.appendAudit(actor, "update", "grants", grant.Name, "required_groups", old, strings.Join(grant.RequiredGroups, ","))
	return cloneGrant(grant), nil
}

func (s *Store) RemoveGrantGroup(ctx context.Context, actor string, ref string, group string) (entities.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, err := s.getGrantLocked(ref)
	if err != nil {
		return entities.Grant{}, err
	}
	trimmed := removeString(grant.RequiredGroups, group)
	if len(trimmed) == len(grant.RequiredGroups) {
		return entities.Grant{}, fmt.Errorf("%w: group %s not required by grant %s", domainerrors.ErrGroupNotFound, group, grant.Name)
	}
	old := strings.Join(grant.RequiredGroups, ",")
	grant.RequiredGroups = trimmed
	s.grants[grant.GrantID] = grant
	s.appendAudit(actor, "update", "grants", grant.Name, "required_groups", old, strings.Join(trimmed, ","))
	return cloneGrant(grant), nil
}

func (s *Store) DeleteGrant(ctx context.Context, actor string, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, err := s.getGrantLocked(ref)
	if err != nil {
		return err
	}
	// Park the grant at the end of its partition so the remaining ranks stay
	// dense after deletion.
	max := len(s.partitionLocked(grant.Namespace, grant.HTTPMethod))
	if err := s.moveRankLocked(actor, &grant, max); err != nil {
		return err
	}
	delete(s.grants, grant.GrantID)
	s.appendAudit(actor, "delete", "grants", grant.Name, "definition", grantValue(grant), "")
	return nil
}

func (s *Store) getGrantLocked(ref string) (entities.Grant, error) {
	if grant, ok := s.grants[ref]; ok {
		return grant, nil
	}
	for _, grant := range s.grants {
		if grant.Name == ref {
			return grant, nil
		}
	}
	return entities.Grant{}, fmt.Errorf("%w: %s", domainerrors.ErrGrantNotFound, ref)
}

func (s *Store) partitionLocked(namespace, httpMethod string) []entities.Grant {
	var out []entities.Grant
	for _, grant := range s.grants {
		if grant.Namespace == namespace && grant.HTTPMethod == httpMethod {
			out = append(out, grant)
		}
	}
	return out
}

func (s *Store) checkNamesAllowedLocked(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: names_allowed must not be empty", domainerrors.ErrInvalidRequest)
	}
	for _, name := range names {
		if name == entities.GrantNameAll {
			continue
		}
		if _, ok := s.capabilities[name]; !ok {
			return fmt.Errorf("%w: %s", domainerrors.ErrUnknownCapability, name)
		}
	}
	return nil
}

func (s *Store) moveRankLocked(actor string, grant *entities.Grant, newRank int) error {
	partition := s.partitionLocked(grant.Namespace, grant.HTTPMethod)
	shifts, err := services.PlanRankMove(grant.Rank, newRank, len(partition))
	if err != nil {
		return err
	}
	byRank := make(map[int]entities.Grant, len(partition))
	for _, other := range partition {
		if other.GrantID != grant.GrantID {
			byRank[other.Rank] = other
		}
	}
	for _, shift := range shifts {
		shifted, ok := byRank[shift.OldRank]
		if !ok {
			continue
		}
		shifted.Rank = shift.NewRank
		s.grants[shifted.GrantID] = shifted
		s.appendAudit(actor, "update", "grants", shifted.Name, "rank", strconv.Itoa(shift.OldRank), strconv.Itoa(shift.NewRank))
	}
	if grant.Rank != newRank {
		s.appendAudit(actor, "update", "grants", grant.Name, "rank", strconv.Itoa(grant.Rank), strconv.Itoa(newRank))
		grant.Rank = newRank
		s.grants[grant.GrantID] = *grant
	}
	return nil
}

// ListPendingAudit implements audit.Log.
func (s *Store) ListPendingAudit(ctx context.Context, limit int) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []audit.Record
	for _, row := range s.auditRows {
		if row.publishedAt == nil {
			pending = append(pending, row.record)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].EventTime.Before(pending[j].EventTime) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// MarkAuditPublished implements audit.Log.
func (s *Store) MarkAuditPublished(ctx context.Context, recordID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.auditRows[recordID]
	if !ok {
		return fmt.Errorf("audit record %s not found", recordID)
	}
	row.publishedAt = &publishedAt
	s.auditRows[recordID] = row
	return nil
}

func (s *Store) appendAudit(actor, operation, entity, entityKey, column, oldValue, newValue string) {
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
	s.auditRows[record.RecordID] = auditRow{record: record}
}

func sortGrants(grants []entities.Grant) {
	sort.Slice(grants, func(i, j int) bool {
		if grants[i].Namespace != grants[j].Namespace {
			return grants[i].Namespace < grants[j].Namespace
		}
		if grants[i].HTTPMethod != grants[j].HTTPMethod {
			return grants[i].HTTPMethod < grants[j].HTTPMethod
		}
		return grants[i].Rank < grants[j].Rank
	})
}

func cloneCapability(capability entities.Capability) entities.Capability {
	capability.Hostnames = copyStrings(capability.Hostnames)
	capability.RequiredGroups = copyStrings(capability.RequiredGroups)
	capability.ExpiryDate = copyTime(capability.ExpiryDate)
	capability.Metadata = copyMetadata(capability.Metadata)
	return capability
}

func cloneGrant(grant entities.Grant) entities.Grant {
	grant.NamesAllowed = copyStrings(grant.NamesAllowed)
	grant.Hostnames = copyStrings(grant.Hostnames)
	grant.RequiredGroups = copyStrings(grant.RequiredGroups)
	grant.StartDate = copyTime(grant.StartDate)
	grant.EndDate = copyTime(grant.EndDate)
	grant.MaxNumUsages = copyInt(grant.MaxNumUsages)
	grant.Metadata = copyMetadata(grant.Metadata)
	return grant
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyTime(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	value := *in
	return &value
}

func copyInt(in *int) *int {
	if in == nil {
		return nil
	}
	value := *in
	return &value
}

func copyMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func capabilityValue(capability entities.Capability) string {
	encoded, err := json.Marshal(map[string]any{
		"capability_id":   capability.CapabilityID,
		"name":            capability.Name,
		"required_groups": capability.RequiredGroups,
		"match_method":    capability.MatchMethod,
		"lifetime":        capability.Lifetime.String(),
	})
	if err != nil {
		return capability.Name
	}
	return string(encoded)
}

func grantValue(grant entities.Grant) string {
	encoded, err := json.Marshal(map[string]any{
		"grant_id":      grant.GrantID,
		"name":          grant.Name,
		"namespace":     grant.Namespace,
		"http_method":   grant.HTTPMethod,
		"rank":          grant.Rank,
		"names_allowed": grant.NamesAllowed,
	})
	if err != nil {
		return grant.Name
	}
	return string(encoded)
}

func metadataValue(metadata map[string]any) string {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func timeValue(in *time.Time) string {
	if in == nil {
		return ""
	}
	return in.UTC().Format(time.RFC3339)
}

func intValue(in *int) string {
	if in == nil {
		return ""
	}
	return strconv.Itoa(*in)
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
