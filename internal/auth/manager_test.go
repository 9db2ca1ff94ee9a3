package auth

import (
	"testing"
)

// fakeStore is an in-memory Store standing in for the users table.
type fakeStore struct {
	users  map[string]*User
	hashes map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*User{}, hashes: map[string]string{}}
}

func (f *fakeStore) SaveUser(user *User, passwordHash string) error {
	f.users[user.Username] = user
	f.hashes[user.Username] = passwordHash
	return nil
}

func (f *fakeStore) GetUserByUsername(username string) (*User, string, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, "", nil
	}
	return u, f.hashes[username], nil
}

func TestCreateUserAndLogin(t *testing.T) {
	m := NewManager("test-secret", nil)

	user, err := m.CreateUser("anna", "s3cret", "tenant-1", "operator")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.TenantID != "tenant-1" {
		t.Errorf("Expected tenant-1, got %s", user.TenantID)
	}

	resp, err := m.Login("anna", "s3cret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if resp.Token == "" {
		t.Error("Expected a token")
	}

	claims, err := m.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.TenantID != "tenant-1" || claims.Username != "anna" {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	m := NewManager("test-secret", nil)
	if _, err := m.CreateUser("anna", "s3cret", "tenant-1", ""); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if _, err := m.Login("anna", "wrong"); err == nil {
		t.Error("Expected login failure")
	}
	if _, err := m.Login("nobody", "s3cret"); err == nil {
		t.Error("Expected login failure for unknown user")
	}
}

func TestDuplicateUsername(t *testing.T) {
	m := NewManager("test-secret", nil)
	if _, err := m.CreateUser("anna", "a", "t1", ""); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if _, err := m.CreateUser("anna", "b", "t2", ""); err == nil {
		t.Error("Expected duplicate username rejection")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	m1 := NewManager("secret-one", nil)
	m2 := NewManager("secret-two", nil)

	user, _ := m1.CreateUser("anna", "s3cret", "tenant-1", "")
	token, err := m1.GenerateToken(user)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := m2.ValidateToken(token); err == nil {
		t.Error("Token signed with another secret must not validate")
	}
}

func TestUsersSurviveManagerRestart(t *testing.T) {
	store := newFakeStore()

	m1 := NewManager("test-secret", store)
	if _, err := m1.CreateUser("anna", "s3cret", "tenant-1", "admin"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	// A fresh manager over the same store models a process restart.
	m2 := NewManager("test-secret", store)
	resp, err := m2.Login("anna", "s3cret")
	if err != nil {
		t.Fatalf("Login after restart failed: %v", err)
	}
	if resp.User.Role != "admin" || resp.User.TenantID != "tenant-1" {
		t.Errorf("Unexpected restored user: %+v", resp.User)
	}

	if _, err := m2.CreateUser("anna", "other", "tenant-2", ""); err == nil {
		t.Error("Expected duplicate username rejection against the store")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	m := NewManager("test-secret", nil)
	if _, err := m.ValidateToken("not-a-jwt"); err == nil {
		t.Error("Expected garbage token rejection")
	}
}
