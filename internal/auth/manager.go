package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// User is an operator account.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	TenantID  string    `json:"tenant_id"`
	Role      string    `json:"role"` // "admin" or "operator"
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Claims are the JWT claims issued on login. TenantID scopes every
// authenticated request to one property.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	User      User   `json:"user"`
}

// Store persists user accounts and their password hashes.
type Store interface {
	SaveUser(user *User, passwordHash string) error
	GetUserByUsername(username string) (*User, string, error)
}

// Manager handles authentication: user records, bcrypt password hashes and
// JWT issuance/validation. Accounts live in the store; a nil store keeps
// them in memory only.
type Manager struct {
	jwtSecret string
	tokenTTL  time.Duration
	store     Store

	mu        sync.RWMutex
	users     map[string]*User  // userID -> User
	passwords map[string]string // userID -> password hash
}

// NewManager creates an auth manager. An empty secret gets a random
// session-scoped one.
func NewManager(jwtSecret string, store Store) *Manager {
	if jwtSecret == "" {
		jwtSecret = generateRandomSecret(32)
		log.Printf("Generated random JWT secret for session (not persistent)")
	}

	return &Manager{
		jwtSecret: jwtSecret,
		tokenTTL:  24 * time.Hour,
		store:     store,
		users:     make(map[string]*User),
		passwords: make(map[string]string),
	}
}

func generateRandomSecret(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read only fails when the OS entropy source is broken.
		panic(fmt.Sprintf("failed to generate secret: %v", err))
	}
	return hex.EncodeToString(buf)
}

// CreateUser registers an operator account with a bcrypt-hashed password.
func (m *Manager) CreateUser(username, password, tenantID, role string) (*User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password are required")
	}
	if role == "" {
		role = "operator"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, _, err := m.lookupLocked(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("username already taken: %s", username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:        fmt.Sprintf("user-%s", generateRandomSecret(8)),
		Username:  username,
		TenantID:  tenantID,
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if m.store != nil {
		if err := m.store.SaveUser(user, string(hash)); err != nil {
			return nil, fmt.Errorf("failed to persist user: %w", err)
		}
		return user, nil
	}
	m.users[user.ID] = user
	m.passwords[user.ID] = string(hash)
	return user, nil
}

// lookupLocked finds a user record by username. Callers hold m.mu.
func (m *Manager) lookupLocked(username string) (*User, string, error) {
	if m.store != nil {
		user, hash, err := m.store.GetUserByUsername(username)
		if err != nil {
			return nil, "", fmt.Errorf("failed to look up user: %w", err)
		}
		return user, hash, nil
	}
	for _, u := range m.users {
		if u.Username == username {
			return u, m.passwords[u.ID], nil
		}
	}
	return nil, "", nil
}

// Login verifies credentials and returns a signed token.
func (m *Manager) Login(username, password string) (*LoginResponse, error) {
	m.mu.RLock()
	user, hash, err := m.lookupLocked(username)
	m.mu.RUnlock()

	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive || hash == "" {
		return nil, fmt.Errorf("invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid username or password")
	}

	token, err := m.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Token:     token,
		ExpiresIn: int64(m.tokenTTL.Seconds()),
		User:      *user,
	}, nil
}

// GenerateToken creates a JWT for a user.
func (m *Manager) GenerateToken(user *User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		TenantID: user.TenantID,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
			Issuer:    "agenthub",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning its claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
