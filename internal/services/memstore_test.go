package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"assetflow/internal/apperrors"
	"assetflow/internal/models"
)

// memStore is an in-memory stand-in for GormStore used by the service tests.
// It mirrors the documented store contracts: (nil, nil) for "no row" lookups,
// not-found errors for role and record reads, and compare-and-swap semantics
// for SettleApproval and CompleteHandover.
type memStore struct {
	mu sync.Mutex

	roles       map[string]*models.Role
	rolesByName map[string]string
	assignments []*models.UserRoleAssignment
	mappings    []*models.EntityAdminMapping
	transfers   map[string]*models.TransferRequest
	approvals   []*models.Approval
	handovers   map[string]*models.Handover
	items       map[string]*models.Item

	seq   int
	clock time.Time
}

var (
	_ AuthzStore        = (*memStore)(nil)
	_ AdminMappingStore = (*memStore)(nil)
	_ ApprovalStore     = (*memStore)(nil)
	_ HandoverStore     = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		roles:       make(map[string]*models.Role),
		rolesByName: make(map[string]string),
		transfers:   make(map[string]*models.TransferRequest),
		handovers:   make(map[string]*models.Handover),
		items:       make(map[string]*models.Item),
		clock:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// nextID hands out ids that sort in creation order, like the uuid hook plus
// created_at does in the real store.
func (m *memStore) nextID() string {
	m.seq++
	return fmt.Sprintf("id-%04d", m.seq)
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

// ---- test seeding helpers ----

func (m *memStore) addRole(name string, active bool, grants ...models.RoleModule) *models.Role {
	m.mu.Lock()
	defer m.mu.Unlock()

	role := &models.Role{Name: name, IsActive: active, Modules: grants}
	role.ID = m.nextID()
	role.CreatedAt = m.tick()
	m.roles[role.ID] = role
	m.rolesByName[name] = role.ID
	return role
}

func (m *memStore) addItem(item *models.Item) *models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == "" {
		item.ID = m.nextID()
	}
	item.CreatedAt = m.tick()
	m.items[item.ID] = item
	return item
}

func (m *memStore) addTransfer(transfer *models.TransferRequest) *models.TransferRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	if transfer.ID == "" {
		transfer.ID = m.nextID()
	}
	transfer.CreatedAt = m.tick()
	if transfer.Status == "" {
		transfer.Status = models.TransferStatusPending
	}
	m.transfers[transfer.ID] = transfer
	return transfer
}

func (m *memStore) addMapping(entityType models.EntityType, entityID, socialID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping := &models.EntityAdminMapping{
		EntityID:     entityID,
		EntityType:   entityType,
		UserSocialID: socialID,
		Status:       "active",
	}
	mapping.ID = m.nextID()
	mapping.CreatedAt = m.tick()
	m.mappings = append(m.mappings, mapping)
}

func (m *memStore) addHandover(handover *models.Handover) *models.Handover {
	m.mu.Lock()
	defer m.mu.Unlock()

	if handover.ID == "" {
		handover.ID = m.nextID()
	}
	handover.CreatedAt = m.tick()
	if handover.Status == "" {
		handover.Status = models.HandoverStatusInProgress
	}
	m.handovers[handover.ID] = handover
	return handover
}

func (m *memStore) assignmentsFor(socialID string) []*models.UserRoleAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.UserRoleAssignment
	for _, a := range m.assignments {
		if a.AssignedToSocialID == socialID && a.IsActive && !a.IsDeleted {
			out = append(out, a)
		}
	}
	return out
}

// ---- AuthzStore ----

func (m *memStore) ActiveAssignment(_ context.Context, socialID string) (*models.UserRoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*models.UserRoleAssignment
	for _, a := range m.assignments {
		if a.AssignedToSocialID == socialID && a.IsActive && !a.IsDeleted {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Unscoped assignments win, then creation order
	sort.SliceStable(candidates, func(i, j int) bool {
		iScoped, jScoped := candidates[i].IsScoped(), candidates[j].IsScoped()
		if iScoped != jScoped {
			return !iScoped
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0], nil
}

func (m *memStore) RoleByID(_ context.Context, id string) (*models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[id]
	if !ok {
		return nil, apperrors.NotFound("role %s not found", id)
	}
	return role, nil
}

func (m *memStore) RoleByName(_ context.Context, name string) (*models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.rolesByName[name]
	if !ok {
		return nil, apperrors.NotFound("role %q not found", name)
	}
	return m.roles[id], nil
}

func (m *memStore) CreateAssignment(_ context.Context, assignment *models.UserRoleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if assignment.ID == "" {
		assignment.ID = m.nextID()
	}
	assignment.CreatedAt = m.tick()
	m.assignments = append(m.assignments, assignment)
	return nil
}

// ---- AdminMappingStore ----

func (m *memStore) ListMappings(_ context.Context, entityType models.EntityType, entityID string) ([]models.EntityAdminMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.EntityAdminMapping
	for _, mapping := range m.mappings {
		if mapping.EntityType == entityType && mapping.EntityID == entityID && !mapping.IsDeleted {
			out = append(out, *mapping)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) CreateMapping(_ context.Context, mapping *models.EntityAdminMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.mappings {
		if existing.EntityID == mapping.EntityID && existing.UserSocialID == mapping.UserSocialID && !existing.IsDeleted {
			return fmt.Errorf("duplicate mapping for %s/%s", mapping.EntityID, mapping.UserSocialID)
		}
	}

	if mapping.ID == "" {
		mapping.ID = m.nextID()
	}
	mapping.CreatedAt = m.tick()
	m.mappings = append(m.mappings, mapping)
	return nil
}

func (m *memStore) DeleteMapping(_ context.Context, entityType models.EntityType, entityID, socialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.mappings[:0]
	for _, mapping := range m.mappings {
		if mapping.EntityType == entityType && mapping.EntityID == entityID && mapping.UserSocialID == socialID {
			continue
		}
		kept = append(kept, mapping)
	}
	m.mappings = kept
	return nil
}

func (m *memStore) DeleteScopedAssignment(_ context.Context, socialID, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.assignments[:0]
	for _, a := range m.assignments {
		if a.AssignedToSocialID == socialID && a.EntityID != nil && *a.EntityID == entityID {
			continue
		}
		kept = append(kept, a)
	}
	m.assignments = kept
	return nil
}

func (m *memStore) CountAssignments(_ context.Context, socialID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, a := range m.assignments {
		if a.AssignedToSocialID == socialID && a.IsActive && !a.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (m *memStore) Transaction(_ context.Context, fn func(tx AdminMappingStore) error) error {
	return fn(m)
}

// ---- ApprovalStore ----

func (m *memStore) CreateTransfer(_ context.Context, transfer *models.TransferRequest) error {
	m.addTransfer(transfer)
	return nil
}

func (m *memStore) DeleteTransfer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.transfers, id)
	return nil
}

func (m *memStore) transferCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transfers)
}

func (m *memStore) GetTransfer(_ context.Context, id string) (*models.TransferRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	transfer, ok := m.transfers[id]
	if !ok {
		return nil, apperrors.NotFound("transfer request %s not found", id)
	}
	copied := *transfer
	return &copied, nil
}

func (m *memStore) UpdateTransferStatus(_ context.Context, id string, status models.TransferStatus, isApproved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	transfer, ok := m.transfers[id]
	if !ok {
		return apperrors.NotFound("transfer request %s not found", id)
	}
	transfer.Status = status
	transfer.IsApproved = isApproved
	return nil
}

func (m *memStore) CountApprovals(_ context.Context, requestID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, a := range m.approvals {
		if a.TransferRequestID == requestID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) CreateApprovals(_ context.Context, approvals []models.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range approvals {
		copied := approvals[i]
		if copied.ID == "" {
			copied.ID = m.nextID()
		}
		copied.CreatedAt = m.tick()
		m.approvals = append(m.approvals, &copied)
	}
	return nil
}

func (m *memStore) ListApprovals(_ context.Context, requestID string) ([]models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Approval
	for _, a := range m.approvals {
		if a.TransferRequestID == requestID {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (m *memStore) CurrentPending(_ context.Context, requestID string) (*models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending *models.Approval
	for _, a := range m.approvals {
		if a.TransferRequestID != requestID || a.Status != models.ApprovalStatusPending {
			continue
		}
		if pending == nil || a.Level < pending.Level {
			pending = a
		}
	}
	if pending == nil {
		return nil, nil
	}
	copied := *pending
	return &copied, nil
}

func (m *memStore) SettleApproval(_ context.Context, approvalID string, status models.ApprovalStatus, comment string, actedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.approvals {
		if a.ID != approvalID {
			continue
		}
		if a.Status != models.ApprovalStatusPending {
			return false, nil
		}
		a.Status = status
		a.Comment = comment
		a.ActedAt = &actedAt
		return true, nil
	}
	return false, nil
}

func (m *memStore) ApprovalAtLevel(_ context.Context, requestID string, level int) (*models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.approvals {
		if a.TransferRequestID == requestID && a.Level == level {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetItem(_ context.Context, id string) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, apperrors.NotFound("item %s not found", id)
	}
	copied := *item
	return &copied, nil
}

func (m *memStore) AdminsFor(ctx context.Context, entityType models.EntityType, entityID string) ([]models.EntityAdminMapping, error) {
	return m.ListMappings(ctx, entityType, entityID)
}

// ---- HandoverStore ----

func (m *memStore) CreateHandover(_ context.Context, handover *models.Handover) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if handover.ID == "" {
		handover.ID = m.nextID()
	}
	handover.CreatedAt = m.tick()
	m.handovers[handover.ID] = handover
	return nil
}

func (m *memStore) GetHandover(_ context.Context, id string) (*models.Handover, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handover, ok := m.handovers[id]
	if !ok {
		return nil, apperrors.NotFound("handover %s not found", id)
	}
	copied := *handover
	if item, ok := m.items[copied.ItemID]; ok {
		itemCopy := *item
		copied.Item = &itemCopy
	}
	return &copied, nil
}

func (m *memStore) ListHandovers(_ context.Context, socialID string, unrestricted bool) ([]models.Handover, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Handover
	for _, h := range m.handovers {
		if unrestricted || h.FromSocialID == socialID || h.ToSocialID == socialID {
			out = append(out, *h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateHandover(_ context.Context, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	handover, ok := m.handovers[id]
	if !ok {
		return apperrors.NotFound("handover %s not found", id)
	}
	if notes, ok := fields["notes"].(string); ok {
		handover.Notes = notes
	}
	if status, ok := fields["status"].(models.HandoverStatus); ok {
		handover.Status = status
	}
	return nil
}

func (m *memStore) CompleteHandover(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handover, ok := m.handovers[id]
	if !ok {
		return false, apperrors.NotFound("handover %s not found", id)
	}
	if handover.Status != models.HandoverStatusInProgress {
		return false, nil
	}
	handover.Status = models.HandoverStatusCompleted
	handover.ReceiverAcknowledged = true
	return true, nil
}

func (m *memStore) ReassignItem(_ context.Context, itemID, toSocialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return apperrors.NotFound("item %s not found", itemID)
	}
	item.AssignedToSocialID = toSocialID
	return nil
}
