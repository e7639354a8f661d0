package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr      string
	DBDSN         string
	JWTIssuer     string
	JWTSecret     string
	JWTTTL        time.Duration
	InternalToken string
	WSOrigin      string
	HalfSpread    decimal.Decimal
	QuoteInterval time.Duration
	UseMemory     bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.WSOrigin = os.Getenv("WS_ORIGIN")
	if c.WSOrigin == "" {
		c.WSOrigin = "*"
	}

	// STORE=memory runs without Postgres, for local development
	c.UseMemory = strings.EqualFold(os.Getenv("STORE"), "memory")
	c.DBDSN = os.Getenv("DB_DSN")
	if !c.UseMemory && c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}

	halfSpread := os.Getenv("HALF_SPREAD")
	if halfSpread == "" {
		halfSpread = "0.5"
	}
	hs, err := decimal.NewFromString(halfSpread)
	if err != nil || hs.IsNegative() {
		return c, errors.New("invalid HALF_SPREAD")
	}
	c.HalfSpread = hs

	quoteInterval := os.Getenv("QUOTE_INTERVAL")
	if quoteInterval == "" {
		quoteInterval = "1s"
	}
	qi, err := time.ParseDuration(quoteInterval)
	if err != nil {
		return c, errors.New("invalid QUOTE_INTERVAL")
	}
	c.QuoteInterval = qi

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
