package config

import (
	"net"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSNValue returns the MySQL DSN for the table-store and audit log. An
// explicit database.dsn wins; otherwise the DSN is assembled from the
// individual fields, with database.params overriding charset, parseTime
// and loc.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(orDefault(c.Host, defaultDBHost), strconv.Itoa(orDefaultInt(c.Port, defaultDBPort)))
	cfg.User = orDefault(c.User, defaultDBUser)
	cfg.Passwd = orDefault(c.Password, defaultDBPassword)
	cfg.DBName = orDefault(c.Name, defaultDBName)
	cfg.ParseTime = c.ParseTime
	cfg.Params = map[string]string{"charset": orDefault(c.Charset, defaultDBCharset)}
	loc := orDefault(c.Loc, defaultDBLoc)

	for key, value := range c.Params {
		k, v := strings.TrimSpace(key), strings.TrimSpace(value)
		if k == "" || v == "" {
			continue
		}
		switch k {
		case "parseTime":
			if b, err := strconv.ParseBool(v); err == nil {
				cfg.ParseTime = b
			}
		case "loc":
			loc = v
		default:
			cfg.Params[k] = v
		}
	}

	if location, err := time.LoadLocation(loc); err == nil {
		cfg.Loc = location
	} else {
		cfg.Params["loc"] = loc
	}
	return cfg.FormatDSN()
}

// URLValue returns the redis URL used for rate limiting and backup events.
// An explicit redis.url wins over the host/port/db fields.
func (c RedisRuntimeConfig) URLValue() string {
	if u := normalizeRedisRawURL(c.URL); u != "" {
		return u
	}

	db := c.DB
	if db < 0 {
		db = defaultRedisDB
	}
	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}
	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(orDefault(c.Host, defaultRedisHost), strconv.Itoa(orDefaultInt(c.Port, defaultRedisPort))),
		Path:   "/" + strconv.Itoa(db),
	}

	username, password := strings.TrimSpace(c.Username), strings.TrimSpace(c.Password)
	switch {
	case password != "":
		u.User = neturl.UserPassword(username, password)
	case username != "":
		u.User = neturl.User(username)
	}

	query := neturl.Values{}
	for key, value := range c.Params {
		if k, v := strings.TrimSpace(key), strings.TrimSpace(value); k != "" && v != "" {
			query.Set(k, v)
		}
	}
	u.RawQuery = query.Encode()
	return u.String()
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func orDefaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
