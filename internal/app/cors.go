package app

import (
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/mx-space/console/internal/config"
)

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
		AllowCredentials: true,
		AllowOriginFunc:  func(string) bool { return true },
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		c.AllowOriginFunc = originAllowList(cfg.AllowedOrigins).allows
	}
	return c
}

// originAllowList holds allowed_origins entries. An entry is an exact
// host[:port], "*.example.com" for any subdomain, or "host:*" for any port.
type originAllowList []string

func (l originAllowList) allows(origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Host
	}
	for _, entry := range l {
		switch {
		case entry == host:
			return true
		case strings.HasPrefix(entry, "*."):
			if strings.HasSuffix(host, entry[1:]) {
				return true
			}
		case strings.HasSuffix(entry, ":*"):
			if strings.HasPrefix(host, strings.TrimSuffix(entry, "*")) {
				return true
			}
		}
	}
	return false
}
