package main

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dientoan/secom-client/pkg/models"
)

type account struct {
	user     models.User
	password string
}

// mockStore is the in-memory backend state: accounts, issued tokens, orders
// and the reference pick lists.
type mockStore struct {
	mutex    sync.RWMutex
	accounts map[string]*account // by username
	tokens   map[string]string   // access token -> username
	refresh  map[string]string   // refresh token -> username
	orders   map[string]*models.Order
	options  map[string][]models.Option
	orgUnits map[int][]models.OrgUnit
	files    map[string]int64 // file id -> size
}

func newMockStore() *mockStore {
	s := &mockStore{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		refresh:  make(map[string]string),
		orders:   make(map[string]*models.Order),
		options:  make(map[string][]models.Option),
		orgUnits: make(map[int][]models.OrgUnit),
		files:    make(map[string]int64),
	}
	s.seed()
	return s
}

func (s *mockStore) seed() {
	for _, a := range []account{
		{user: models.User{ID: uuid.New().String(), Username: "staff", Name: "Nguyen Van A", Role: "staff", Email: "staff@example.com"}, password: "staff123"},
		{user: models.User{ID: uuid.New().String(), Username: "manager", Name: "Tran Thi B", Role: "manager", Email: "manager@example.com"}, password: "manager123"},
	} {
		acct := a
		s.accounts[acct.user.Username] = &acct
	}

	s.options["facility-type"] = []models.Option{
		{ID: uuid.New().String(), Code: "cutting", Name: "Cắt", Group: "facility-type"},
		{ID: uuid.New().String(), Code: "sewing", Name: "May", Group: "facility-type"},
		{ID: uuid.New().String(), Code: "embroidery", Name: "Thêu", Group: "facility-type"},
		{ID: uuid.New().String(), Code: "finishing", Name: "Hoàn thiện", Group: "facility-type"},
	}
	s.options["skudesigns"] = []models.Option{
		{ID: uuid.New().String(), Code: "sku-basic", Name: "Basic Tee", Group: "skudesigns"},
		{ID: uuid.New().String(), Code: "sku-polo", Name: "Polo", Group: "skudesigns"},
	}
	s.options["state-test"] = []models.Option{
		{ID: uuid.New().String(), Code: "s", Name: "S", Group: "state-test"},
		{ID: uuid.New().String(), Code: "m", Name: "M", Group: "state-test"},
		{ID: uuid.New().String(), Code: "l", Name: "L", Group: "state-test"},
	}
	s.options["type-of-goods"] = []models.Option{
		{ID: uuid.New().String(), Code: "oeko", Name: "OEKO-TEX", Group: "type-of-goods"},
		{ID: uuid.New().String(), Code: "gots", Name: "GOTS", Group: "type-of-goods"},
	}

	s.orgUnits[1] = []models.OrgUnit{
		{ID: uuid.New().String(), Code: "flagship", Name: "Flagship", Level: 1},
		{ID: uuid.New().String(), Code: "outlet", Name: "Outlet", Level: 1},
	}
	s.orgUnits[2] = []models.OrgUnit{
		{ID: uuid.New().String(), Code: "vn", Name: "Việt Nam", Level: 2},
		{ID: uuid.New().String(), Code: "us", Name: "United States", Level: 2},
	}
	s.orgUnits[3] = []models.OrgUnit{
		{ID: uuid.New().String(), Code: "hcm-01", Name: "HCM Store 01", Level: 3},
		{ID: uuid.New().String(), Code: "hn-01", Name: "HN Store 01", Level: 3},
	}

	ft := s.options["facility-type"]
	for i := 0; i < 45; i++ {
		o := &models.Order{
			ID:           uuid.New().String(),
			Code:         uuid.New().String()[:8],
			Name:         "Khách hàng mẫu",
			IssuePlace:   models.IssuePlaceUnassigned,
			FacilityType: &models.Ref{ID: ft[i%len(ft)].ID, Name: ft[i%len(ft)].Name},
			CreatedDate:  time.Now().Add(-time.Duration(i) * time.Hour),
		}
		s.orders[o.ID] = o
	}
}

func (s *mockStore) authenticate(username, password string) *account {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	acct, ok := s.accounts[username]
	if !ok || acct.password != password {
		return nil
	}
	return acct
}

func (s *mockStore) issueTokens(username string) models.TokenResponse {
	tokens := models.TokenResponse{
		AccessToken:  uuid.New().String(),
		RefreshToken: uuid.New().String(),
		TokenType:    "bearer",
		ExpiresIn:    3600,
	}
	s.mutex.Lock()
	s.tokens[tokens.AccessToken] = username
	s.refresh[tokens.RefreshToken] = username
	s.mutex.Unlock()
	return tokens
}

func (s *mockStore) usernameForRefresh(token string) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	username, ok := s.refresh[token]
	if ok {
		// Refresh tokens are single use.
		delete(s.refresh, token)
	}
	return username, ok
}

func (s *mockStore) usernameForToken(token string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	username, ok := s.tokens[token]
	return username, ok
}

func (s *mockStore) sortedOrders() []models.Order {
	s.mutex.RLock()
	orders := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, *o)
	}
	s.mutex.RUnlock()

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedDate.After(orders[j].CreatedDate)
	})
	return orders
}

func (s *mockStore) users() []models.User {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	users := make([]models.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		users = append(users, a.user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}
