package jwtmiddleware

import (
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/language_school/internal/tokens"
)

const (
	ContextKey = "bearer_claims"
	ErrorKey   = "bearer_error"
)

type Verifier interface {
	Verify(token string) (*tokens.Claims, error)
}

// Bearer verifies an "Authorization: Bearer" token when one is sent.
// It never rejects a request: valid claims land under ContextKey and a
// verification failure is recorded under ErrorKey for later fallback.
func Bearer(v Verifier) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ContextKey,
		TokenLookup: "header:Authorization:Bearer ",
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			claims, err := v.Verify(auth)
			if err != nil {
				c.Set(ErrorKey, err)
				return nil, err
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return nil
		},
		ContinueOnIgnoredError: true,
	})
}

func ClaimsFrom(c echo.Context) (*tokens.Claims, bool) {
	claims, ok := c.Get(ContextKey).(*tokens.Claims)
	return claims, ok && claims != nil
}

func ErrorFrom(c echo.Context) error {
	err, _ := c.Get(ErrorKey).(error)
	return err
}
