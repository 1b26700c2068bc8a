package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"trainhub/console/internal/model"
	"trainhub/console/internal/repository"
	"trainhub/console/internal/upstream"
	"trainhub/console/pkg/redis"
)

// ── Mock upstream.API ──

type mockAPI struct {
	mu sync.Mutex

	drafts      map[int64][]upstream.SessionDraft // branch_id → drafts
	draftErrs   map[int64]error
	branches    []upstream.Branch
	branchesErr error
	user        *upstream.CurrentUser
	userErr     error
	actionErr   error
	created     *upstream.SessionDraft
	afterAction func() // 状态变更请求完成后调用

	listCalls    []int64
	branchCalls  int
	userCalls    int
	approveCalls []*upstream.ApproveDraftRequest
	rejectCalls  []*upstream.RejectDraftRequest
	updateCalls  []*upstream.UpdateDraftRequest
	createCalls  []*upstream.CreateDraftRequest
	actionIDs    []int64
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		drafts:    make(map[int64][]upstream.SessionDraft),
		draftErrs: make(map[int64]error),
	}
}

func (m *mockAPI) ListDrafts(_ context.Context, branchID int64) ([]upstream.SessionDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls = append(m.listCalls, branchID)
	if err := m.draftErrs[branchID]; err != nil {
		return nil, err
	}
	return append([]upstream.SessionDraft(nil), m.drafts[branchID]...), nil
}

func (m *mockAPI) CreateDraft(_ context.Context, req *upstream.CreateDraftRequest) (*upstream.SessionDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls = append(m.createCalls, req)
	if m.actionErr != nil {
		return nil, m.actionErr
	}
	return m.created, nil
}

func (m *mockAPI) UpdateDraft(_ context.Context, id int64, req *upstream.UpdateDraftRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls = append(m.updateCalls, req)
	m.actionIDs = append(m.actionIDs, id)
	if m.afterAction != nil {
		m.afterAction()
	}
	return m.actionErr
}

func (m *mockAPI) ApproveDraft(_ context.Context, id int64, req *upstream.ApproveDraftRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approveCalls = append(m.approveCalls, req)
	m.actionIDs = append(m.actionIDs, id)
	if m.afterAction != nil {
		m.afterAction()
	}
	return m.actionErr
}

func (m *mockAPI) RejectDraft(_ context.Context, id int64, req *upstream.RejectDraftRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectCalls = append(m.rejectCalls, req)
	m.actionIDs = append(m.actionIDs, id)
	return m.actionErr
}

func (m *mockAPI) ListBranches(_ context.Context) ([]upstream.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branchCalls++
	if m.branchesErr != nil {
		return nil, m.branchesErr
	}
	return m.branches, nil
}

func (m *mockAPI) GetCurrentUser(_ context.Context) (*upstream.CurrentUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userCalls++
	if m.userErr != nil {
		return nil, m.userErr
	}
	return m.user, nil
}

// totalCalls 所有请求次数（含读取）
func (m *mockAPI) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listCalls) + m.branchCalls + m.userCalls +
		len(m.approveCalls) + len(m.rejectCalls) + len(m.updateCalls) + len(m.createCalls)
}

// ── Mock FormStore ──

type mockFormStore struct {
	mu    sync.Mutex
	forms map[int64]map[int64][]byte
}

func newMockFormStore() *mockFormStore {
	return &mockFormStore{forms: make(map[int64]map[int64][]byte)}
}

func (m *mockFormStore) GetForms(_ context.Context, operatorID int64) (map[int64][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64][]byte)
	for k, v := range m.forms[operatorID] {
		out[k] = v
	}
	return out, nil
}

func (m *mockFormStore) GetForm(_ context.Context, operatorID, draftID int64) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.forms[operatorID][draftID]
	return raw, ok, nil
}

func (m *mockFormStore) SaveForm(_ context.Context, operatorID, draftID int64, raw []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forms[operatorID] == nil {
		m.forms[operatorID] = make(map[int64][]byte)
	}
	m.forms[operatorID][draftID] = raw
	return nil
}

func (m *mockFormStore) DeleteForm(_ context.Context, operatorID, draftID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.forms[operatorID], draftID)
	return nil
}

func (m *mockFormStore) put(operatorID, draftID int64, v interface{}) {
	raw, _ := json.Marshal(v)
	_ = m.SaveForm(context.Background(), operatorID, draftID, raw, 0)
}

// ── Mock ActionGuard ──

type mockGuard struct {
	mu       sync.Mutex
	held     map[int64]string
	released []int64
}

func newMockGuard() *mockGuard {
	return &mockGuard{held: make(map[int64]string)}
}

func (m *mockGuard) AcquireActionLock(_ context.Context, draftID int64, owner string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[draftID]; ok {
		return redis.ErrLockHeld
	}
	m.held[draftID] = owner
	return nil
}

func (m *mockGuard) ReleaseActionLock(_ context.Context, draftID int64, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[draftID] == owner {
		delete(m.held, draftID)
		m.released = append(m.released, draftID)
	}
	return nil
}

// ── Mock SessionCache / BranchCache ──

type mockCache struct {
	mu       sync.Mutex
	sessions map[string][]byte
	ttls     map[string]time.Duration
	branches []byte
}

func newMockCache() *mockCache {
	return &mockCache{sessions: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *mockCache) GetSession(_ context.Context, token string, out interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.sessions[token]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (m *mockCache) CacheSession(_ context.Context, token string, user interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	m.sessions[token] = raw
	m.ttls[token] = ttl
	return nil
}

func (m *mockCache) GetBranches(_ context.Context, out interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.branches == nil {
		return false, nil
	}
	return true, json.Unmarshal(m.branches, out)
}

func (m *mockCache) CacheBranches(_ context.Context, branches interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(branches)
	m.branches = raw
	return err
}

// ── Mock ActionLogRepository ──

type mockActionLogRepo struct {
	mu           sync.Mutex
	logs         []model.ActionLog
	createErr    error
	lastDeadline time.Time
	lastFilter   repository.ActionLogFilter
	lastOffset   int
	lastLimit    int
}

func (m *mockActionLogRepo) Create(ctx context.Context, log *model.ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastDeadline, _ = ctx.Deadline()
	if m.createErr != nil {
		return m.createErr
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockActionLogRepo) List(_ context.Context, filter repository.ActionLogFilter, offset, limit int) ([]model.ActionLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter, m.lastOffset, m.lastLimit = filter, offset, limit
	return m.logs, int64(len(m.logs)), nil
}

func (m *mockActionLogRepo) snapshot() []model.ActionLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ActionLog(nil), m.logs...)
}
