package stub

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/cinepass/booking-client/internal/identity"
)

// login handles POST /v1/auth/login.  Credentials are checked against
// the seeded bcrypt hash and a signed HS256 access token is returned.
func (s *Server) login(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	s.mu.Lock()
	u, ok := s.users[body.Email]
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(body.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	token, exp, err := identity.NewAccessToken(s.secret, u.id, s.tokenTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token,
		"expires_at":   exp,
	})
}

// jwtAuth validates the Bearer access token and injects the token's
// subject into the request context as "user_id".
func (s *Server) jwtAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
		}
		raw := strings.TrimPrefix(auth, "Bearer ")
		userID, err := identity.Verify(s.secret, raw)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		c.Set("user_id", userID)
		return next(c)
	}
}

// userID extracts the authenticated user id set by jwtAuth.
func userID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}
