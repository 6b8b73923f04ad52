package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/itemkeep/internal/metrics"
	"github.com/hitoshi/itemkeep/internal/model"
	"github.com/hitoshi/itemkeep/internal/repository"
)

// --- モック定義 ---

// memIdentityRepo はユーザー名・外部IdP IDの一意制約を再現するインメモリ実装。
// createFn/findByFederatedIDFnを設定すると、その呼び出しだけ差し替えられる。
type memIdentityRepo struct {
	mu                  sync.Mutex
	byID                map[string]*model.Identity
	createCalls         int
	createFn            func(ctx context.Context, identity *model.Identity) error
	findByFederatedIDFn func(ctx context.Context, federatedID string) (*model.Identity, error)
	findErr             error
}

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{byID: make(map[string]*model.Identity)}
}

func (m *memIdentityRepo) FindByID(_ context.Context, id string) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if identity, ok := m.byID[id]; ok {
		cp := *identity
		return &cp, nil
	}
	return nil, nil
}

func (m *memIdentityRepo) FindByUsername(_ context.Context, username string) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, identity := range m.byID {
		if identity.Username == username {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memIdentityRepo) FindByFederatedID(ctx context.Context, federatedID string) (*model.Identity, error) {
	if m.findByFederatedIDFn != nil {
		return m.findByFederatedIDFn(ctx, federatedID)
	}
	return m.findByFederatedID(federatedID)
}

func (m *memIdentityRepo) findByFederatedID(federatedID string) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, identity := range m.byID {
		if identity.FederatedID != "" && identity.FederatedID == federatedID {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, identity)
	}
	return m.insert(identity)
}

func (m *memIdentityRepo) insert(identity *model.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Username == identity.Username {
			return model.ErrDuplicateUsername
		}
		if identity.FederatedID != "" && existing.FederatedID == identity.FederatedID {
			return model.ErrDuplicateFederatedID
		}
	}
	cp := *identity
	m.byID[identity.ID] = &cp
	return nil
}

func (m *memIdentityRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// memSessionRepo はセッションのインメモリ実装。
type memSessionRepo struct {
	mu        sync.Mutex
	byID      map[string]*model.Session
	createErr error
	findErr   error
	deleteErr error
	deleted   []string
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byID: make(map[string]*model.Session)}
}

func (m *memSessionRepo) Create(_ context.Context, session *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *session
	m.byID[session.ID] = &cp
	return nil
}

func (m *memSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if session, ok := m.byID[id]; ok {
		cp := *session
		return &cp, nil
	}
	return nil, nil
}

func (m *memSessionRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.byID, id)
	return nil
}

func (m *memSessionRepo) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[id]
	return ok
}

func (m *memSessionRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type mockOAuthProvider struct {
	exchangeCodeFn  func(ctx context.Context, code string) (*oauth2.Token, error)
	fetchUserInfoFn func(ctx context.Context, token *oauth2.Token) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) Name() string { return "google" }

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return &oauth2.Token{AccessToken: "access-" + code}, nil
}

func (m *mockOAuthProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*OAuthUserInfo, error) {
	if m.fetchUserInfoFn != nil {
		return m.fetchUserInfoFn(ctx, token)
	}
	return &OAuthUserInfo{
		ProviderUserID: "sub-123",
		Email:          "taro@example.com",
		Name:           "Taro",
		Provider:       "google",
	}, nil
}

// recordingCollector は記録されたメトリクスを保持するMetricsCollector。
type recordingCollector struct {
	mu            sync.Mutex
	logins        []string
	registrations []string
	resolves      []string
}

func (c *recordingCollector) RecordLogin(method, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins = append(c.logins, method+"/"+result)
}

func (c *recordingCollector) RecordRegistration(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registrations = append(c.registrations, result)
}

func (c *recordingCollector) RecordSessionResolve(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolves = append(c.resolves, result)
}

func (c *recordingCollector) RecordItemMutation(string) {}
func (c *recordingCollector) RecordHTTPStatus(int) {}
func (c *recordingCollector) RecordRequestLatency(time.Duration) {}

// fakeClock はテストから進められる時計。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- compile-time interface checks ---

var (
	_ repository.IdentityRepository = (*memIdentityRepo)(nil)
	_ repository.SessionRepository  = (*memSessionRepo)(nil)
	_ OAuthProvider                 = (*mockOAuthProvider)(nil)
	_ metrics.MetricsCollector      = (*recordingCollector)(nil)
)
