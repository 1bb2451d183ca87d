package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"errand-marketplace/internal/models"
	"errand-marketplace/internal/modules/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// fakeLoader serves one account per ID, the way the auth service would after
// a token validated.
type fakeLoader struct {
	users map[string]*models.User
}

func (f *fakeLoader) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// invoke runs the LoadUser middleware around a handler that records whether
// it was reached, simulating the context echo-jwt leaves behind.
func invoke(t *testing.T, loader *fakeLoader, userID string) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", &jwt.Token{Claims: &auth.Claims{UserID: userID}, Valid: true})

	reached := false
	handler := LoadUser(loader)(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}
	return rec, reached
}

func TestLoadUserGates(t *testing.T) {
	loader := &fakeLoader{users: map[string]*models.User{
		"ok":         {ID: "ok", Role: models.RoleCustomer, IsActive: true, IsVerified: true},
		"unverified": {ID: "unverified", Role: models.RoleCustomer, IsActive: true},
		"inactive":   {ID: "inactive", Role: models.RoleCustomer, IsVerified: true},
	}}

	rec, reached := invoke(t, loader, "ok")
	if !reached || rec.Code != http.StatusOK {
		t.Errorf("verified active account: reached=%v status=%d, want handler to run", reached, rec.Code)
	}

	// An unverified account holds a valid token (Register issues one), but
	// must not get past the gate.
	rec, reached = invoke(t, loader, "unverified")
	if reached {
		t.Error("unverified account reached the handler")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("unverified account: status = %d, want 403", rec.Code)
	}

	rec, reached = invoke(t, loader, "inactive")
	if reached {
		t.Error("deactivated account reached the handler")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("deactivated account: status = %d, want 403", rec.Code)
	}

	// A token for a deleted account is rejected outright.
	rec, reached = invoke(t, loader, "gone")
	if reached {
		t.Error("deleted account reached the handler")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("deleted account: status = %d, want 401", rec.Code)
	}
}

func TestLoadUserSetsContextKeys(t *testing.T) {
	loader := &fakeLoader{users: map[string]*models.User{
		"run-1": {ID: "run-1", Role: models.RoleRunner, IsActive: true, IsVerified: true},
	}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", &jwt.Token{Claims: &auth.Claims{UserID: "run-1"}, Valid: true})

	handler := LoadUser(loader)(func(c echo.Context) error {
		if c.Get("userID").(string) != "run-1" {
			t.Errorf("userID = %v, want run-1", c.Get("userID"))
		}
		if c.Get("userRole").(string) != models.RoleRunner {
			t.Errorf("userRole = %v, want runner", c.Get("userRole"))
		}
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
