package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"errand-marketplace/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// ----------------------------------------------------------------------------
// fakeUserRepo: in-memory user store keyed by ID, with the token columns the
// verification and reset flows read.
// ----------------------------------------------------------------------------
type fakeUserRepo struct {
	users  map[string]*models.User
	nextID int

	verifyTokens map[string]tokenRecord // token -> record
	resetTokens  map[string]tokenRecord
	lastLogins   map[string]int
}

type tokenRecord struct {
	userID  string
	expires time.Time
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:        make(map[string]*models.User),
		verifyTokens: make(map[string]tokenRecord),
		resetTokens:  make(map[string]tokenRecord),
		lastLogins:   make(map[string]int),
	}
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, u *models.User, verificationToken string, verificationExpires time.Time) (*models.User, error) {
	for _, existing := range f.users {
		if existing.Email == u.Email || existing.Phone == u.Phone {
			return nil, models.ErrConflict
		}
	}
	f.nextID++
	cp := *u
	cp.ID = fmt.Sprintf("user-%d", f.nextID)
	cp.IsActive = true
	cp.CreatedAt = time.Now()
	if cp.Role == models.RoleRunner {
		cp.RunnerProfile = &models.RunnerProfile{}
	}
	f.users[cp.ID] = &cp
	f.verifyTokens[verificationToken] = tokenRecord{userID: cp.ID, expires: verificationExpires}
	out := cp
	return &out, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, userID string) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) FindByIDs(ctx context.Context, userIDs []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range userIDs {
		if u, ok := f.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeUserRepo) FindByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	rec, ok := f.verifyTokens[token]
	if !ok || time.Now().After(rec.expires) {
		return nil, models.ErrInvalidToken
	}
	return f.FindByID(ctx, rec.userID)
}

func (f *fakeUserRepo) MarkVerified(ctx context.Context, userID string) error {
	u, ok := f.users[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (f *fakeUserRepo) SetResetToken(ctx context.Context, userID, token string, expires time.Time) error {
	if _, ok := f.users[userID]; !ok {
		return models.ErrNotFound
	}
	f.resetTokens[token] = tokenRecord{userID: userID, expires: expires}
	return nil
}

func (f *fakeUserRepo) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	rec, ok := f.resetTokens[token]
	if !ok || time.Now().After(rec.expires) {
		return nil, models.ErrInvalidToken
	}
	return f.FindByID(ctx, rec.userID)
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	u, ok := f.users[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.PasswordHash = passwordHash
	for token, rec := range f.resetTokens {
		if rec.userID == userID {
			delete(f.resetTokens, token)
		}
	}
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	f.lastLogins[userID]++
	return nil
}

func (f *fakeUserRepo) ApproveRunner(ctx context.Context, runnerID string) error {
	u, ok := f.users[runnerID]
	if !ok || u.Role != models.RoleRunner {
		return models.ErrNotFound
	}
	u.RunnerProfile.IsApproved = true
	return nil
}

func (f *fakeUserRepo) CreditRunner(ctx context.Context, runnerID string, amount float64) error {
	return nil
}

func (f *fakeUserRepo) ApplyRunnerRating(ctx context.Context, runnerID string, stars int) error {
	return nil
}

func (f *fakeUserRepo) UpdateRunnerCoordinates(ctx context.Context, runnerID string, lon, lat float64) error {
	return nil
}

// ----------------------------------------------------------------------------
// fakeAuthNotifier records outbound mail and texts; failAll simulates an
// outage.
// ----------------------------------------------------------------------------
type fakeAuthNotifier struct {
	failAll        bool
	verifications  []string // URLs
	otps           []string
	passwordResets []string // URLs
}

func (f *fakeAuthNotifier) SendVerificationEmail(ctx context.Context, email, verificationURL string) error {
	if f.failAll {
		return errors.New("transport down")
	}
	f.verifications = append(f.verifications, verificationURL)
	return nil
}

func (f *fakeAuthNotifier) SendOTP(ctx context.Context, phone, code string) error {
	if f.failAll {
		return errors.New("transport down")
	}
	f.otps = append(f.otps, code)
	return nil
}

func (f *fakeAuthNotifier) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	if f.failAll {
		return errors.New("transport down")
	}
	f.passwordResets = append(f.passwordResets, resetURL)
	return nil
}

// ----------------------------------------------------------------------------
// Test harness
// ----------------------------------------------------------------------------
func newTestService() (*Service, *fakeUserRepo, *fakeAuthNotifier) {
	repo := newFakeUserRepo()
	notifier := &fakeAuthNotifier{}
	tokens := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	svc := NewService(repo, tokens, notifier, "http://localhost:8080")
	return svc, repo, notifier
}

func registerRequest() models.RegisterRequest {
	return models.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Obi",
		Email:     "ada@example.com",
		Phone:     "+2348012345678",
		Password:  "correct horse",
	}
}

// ----------------------------------------------------------------------------
// Tests
// ----------------------------------------------------------------------------

func TestRegister(t *testing.T) {
	svc, repo, notifier := newTestService()

	u, pair, err := svc.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if u.Role != models.RoleCustomer {
		t.Errorf("default role = %s, want customer", u.Role)
	}
	if u.IsVerified {
		t.Error("new account must start unverified")
	}
	if pair.Token == "" || pair.RefreshToken == "" {
		t.Error("token pair not issued")
	}

	stored := repo.users[u.ID]
	if stored.PasswordHash == "correct horse" {
		t.Error("password stored in the clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct horse")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}

	if len(notifier.verifications) != 1 {
		t.Errorf("verification emails = %d, want 1", len(notifier.verifications))
	}
	if len(notifier.otps) != 1 || len(notifier.otps[0]) != 6 {
		t.Errorf("OTPs = %v, want one 6-digit code", notifier.otps)
	}

	// Same email again conflicts.
	if _, _, err := svc.Register(context.Background(), registerRequest()); !errors.Is(err, models.ErrConflict) {
		t.Errorf("duplicate register: got %v, want ErrConflict", err)
	}
}

func TestRegisterSurvivesNotificationOutage(t *testing.T) {
	svc, repo, notifier := newTestService()
	notifier.failAll = true

	u, _, err := svc.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("Register returned error despite notification outage: %v", err)
	}
	if _, ok := repo.users[u.ID]; !ok {
		t.Error("account was not persisted")
	}
}

func TestLogin(t *testing.T) {
	svc, repo, _ := newTestService()
	u, _, err := svc.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	// Unverified accounts cannot log in yet.
	_, _, err = svc.Login(context.Background(), models.LoginRequest{Email: u.Email, Password: "correct horse"})
	if !errors.Is(err, models.ErrAccountUnverified) {
		t.Errorf("unverified login: got %v, want ErrAccountUnverified", err)
	}

	repo.users[u.ID].IsVerified = true

	got, pair, err := svc.Login(context.Background(), models.LoginRequest{Email: u.Email, Password: "correct horse"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if got.ID != u.ID || pair.Token == "" {
		t.Error("login did not return the account and a token")
	}
	if repo.lastLogins[u.ID] != 1 {
		t.Errorf("last-login updates = %d, want 1", repo.lastLogins[u.ID])
	}

	_, _, err = svc.Login(context.Background(), models.LoginRequest{Email: u.Email, Password: "wrong"})
	if !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("bad password: got %v, want ErrInvalidCredentials", err)
	}
	_, _, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "x"})
	if !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v, want ErrInvalidCredentials", err)
	}

	repo.users[u.ID].IsActive = false
	_, _, err = svc.Login(context.Background(), models.LoginRequest{Email: u.Email, Password: "correct horse"})
	if !errors.Is(err, models.ErrAccountInactive) {
		t.Errorf("deactivated login: got %v, want ErrAccountInactive", err)
	}
}

func TestVerifyEmail(t *testing.T) {
	svc, repo, notifier := newTestService()
	u, _, err := svc.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	// Pull the token out of the verification URL.
	url := notifier.verifications[0]
	token := url[strings.LastIndex(url, "/")+1:]

	if err := svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
	if !repo.users[u.ID].IsVerified {
		t.Error("account still unverified")
	}

	if err := svc.VerifyEmail(context.Background(), "no-such-token"); !errors.Is(err, models.ErrInvalidToken) {
		t.Errorf("bogus token: got %v, want ErrInvalidToken", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, repo, notifier := newTestService()
	u, _, err := svc.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	repo.users[u.ID].IsVerified = true

	if err := svc.ForgotPassword(context.Background(), u.Email); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	if len(notifier.passwordResets) != 1 {
		t.Fatalf("reset emails = %d, want 1", len(notifier.passwordResets))
	}

	url := notifier.passwordResets[0]
	token := url[strings.LastIndex(url, "/")+1:]

	pair, err := svc.ResetPassword(context.Background(), token, "new password 42")
	if err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	if pair.Token == "" {
		t.Error("reset did not issue a fresh token pair")
	}

	// Old password is gone, new one works.
	if _, _, err := svc.Login(context.Background(), models.LoginRequest{Email: u.Email, Password: "correct horse"}); !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), models.LoginRequest{Email: u.Email, Password: "new password 42"}); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	// The token is single use.
	if _, err := svc.ResetPassword(context.Background(), token, "again"); !errors.Is(err, models.ErrInvalidToken) {
		t.Errorf("reused token: got %v, want ErrInvalidToken", err)
	}
}

func TestForgotPasswordFailsWhenEmailCannotBeSent(t *testing.T) {
	svc, repo, notifier := newTestService()
	u, _, err := svc.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	repo.users[u.ID].IsVerified = true
	notifier.failAll = true

	if err := svc.ForgotPassword(context.Background(), u.Email); err == nil {
		t.Error("ForgotPassword succeeded despite undeliverable email")
	}
}

func TestRefresh(t *testing.T) {
	svc, repo, _ := newTestService()
	u, pair, err := svc.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	fresh, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if fresh.Token == "" || fresh.RefreshToken == "" {
		t.Error("refresh did not issue a full pair")
	}

	// An access token is not a refresh token.
	if _, err := svc.Refresh(context.Background(), pair.Token); !errors.Is(err, models.ErrInvalidToken) {
		t.Errorf("access token as refresh: got %v, want ErrInvalidToken", err)
	}

	// A refresh token for a deleted account is dead.
	delete(repo.users, u.ID)
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, models.ErrInvalidToken) {
		t.Errorf("refresh for deleted account: got %v, want ErrInvalidToken", err)
	}
}

func TestApproveRunner(t *testing.T) {
	svc, repo, _ := newTestService()
	req := registerRequest()
	req.Role = models.RoleRunner
	u, _, err := svc.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if repo.users[u.ID].RunnerProfile.IsApproved {
		t.Fatal("runner must start unapproved")
	}

	if err := svc.ApproveRunner(context.Background(), u.ID); err != nil {
		t.Fatalf("ApproveRunner returned error: %v", err)
	}
	if !repo.users[u.ID].RunnerProfile.IsApproved {
		t.Error("runner still unapproved")
	}

	if err := svc.ApproveRunner(context.Background(), "no-such-user"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown runner: got %v, want ErrNotFound", err)
	}
}

func TestTokenManager(t *testing.T) {
	m := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)

	pair, err := m.Pair("user-1", models.RoleRunner)
	if err != nil {
		t.Fatalf("Pair returned error: %v", err)
	}

	claims, err := m.ParseAccess(pair.Token)
	if err != nil {
		t.Fatalf("ParseAccess returned error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != models.RoleRunner {
		t.Errorf("claims = %s/%s, want user-1/runner", claims.UserID, claims.Role)
	}

	userID, err := m.ParseRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh returned error: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("refresh subject = %s, want user-1", userID)
	}

	// Cross-use is rejected: the two kinds sign with different secrets.
	if _, err := m.ParseAccess(pair.RefreshToken); !errors.Is(err, models.ErrInvalidToken) {
		t.Errorf("refresh as access: got %v, want ErrInvalidToken", err)
	}
	if _, err := m.ParseRefresh(pair.Token); !errors.Is(err, models.ErrInvalidToken) {
		t.Errorf("access as refresh: got %v, want ErrInvalidToken", err)
	}

	// An expired token no longer parses.
	expired := NewTokenManager("access-secret", "refresh-secret", -time.Minute, -time.Minute)
	dead, err := expired.Pair("user-1", models.RoleRunner)
	if err != nil {
		t.Fatalf("Pair returned error: %v", err)
	}
	if _, err := m.ParseAccess(dead.Token); !errors.Is(err, models.ErrInvalidToken) {
		t.Errorf("expired token: got %v, want ErrInvalidToken", err)
	}
}
