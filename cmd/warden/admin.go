package main

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/guildwarden/warden/automod/event"
	"github.com/guildwarden/warden/automod/rule"
	"github.com/guildwarden/warden/automod/util"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type ruleSetPage struct {
	RuleSets []*rule.RuleSet `json:"rule_sets"`
	Cursor   string          `json:"cursor,omitempty"`
}

type wordListNames struct {
	// lists owned by the guild
	Guild []string `json:"guild"`
	// every list visible to the guild's rules, including global lists
	Visible []string `json:"visible"`
}

// newAdmin builds the admin HTTP handler. Routes under /admin are only registered when a token is configured.
func (s *Server) newAdmin(token string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(s.logger))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("warden"))
	e.Use(otelecho.Middleware("warden"))

	e.GET("/_health", s.HandleHealthCheck)
	e.GET("/schema/rule-set.json", s.HandleRuleSetSchema)

	if token == "" {
		s.logger.Warn("no admin token configured, admin routes disabled")
		return e
	}

	admin := e.Group("/admin", middleware.KeyAuth(func(key string, c echo.Context) (bool, error) {
		return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
	}))
	admin.GET("/guilds/:guild/config", s.HandleGuildConfig)
	admin.POST("/guilds/:guild/config/invalidate", s.HandleInvalidateGuildConfig)
	admin.GET("/guilds/:guild/rule-sets", s.HandleGuildRuleSets)
	admin.POST("/guilds/:guild/rule-sets/invalidate", s.HandleInvalidateGuildRuleSets)
	admin.GET("/guilds/:guild/word-lists", s.HandleGuildWordLists)

	return e
}

func guildParam(c echo.Context) (event.Snowflake, error) {
	id, err := event.ParseSnowflake(c.Param("guild"))
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid guild id")
	}
	return id, nil
}

func (s *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden"})
}

func (s *Server) HandleRuleSetSchema(c echo.Context) error {
	raw, err := rule.SchemaJSON()
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/schema+json", raw)
}

func (s *Server) HandleGuildConfig(c echo.Context) error {
	gid, err := guildParam(c)
	if err != nil {
		return err
	}
	cfg, err := s.configs.Get(c.Request().Context(), gid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) HandleInvalidateGuildConfig(c echo.Context) error {
	gid, err := guildParam(c)
	if err != nil {
		return err
	}
	s.configs.Invalidate(gid)
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden"})
}

func (s *Server) HandleInvalidateGuildRuleSets(c echo.Context) error {
	gid, err := guildParam(c)
	if err != nil {
		return err
	}
	if err := s.rules.Invalidate(c.Request().Context(), gid); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "warden"})
}

// HandleGuildRuleSets pages through a guild's rule sets in evaluation order. The cursor is bound to the guild it was issued for.
func (s *Server) HandleGuildRuleSets(c echo.Context) error {
	gid, err := guildParam(c)
	if err != nil {
		return err
	}

	limit := defaultPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageSize {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxPageSize))
		}
	}

	var offset int64
	if raw := c.QueryParam("cursor"); raw != "" {
		off, guild, err := util.DecodeCursor(raw)
		if err != nil || off < 0 || guild != int64(gid) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid cursor")
		}
		offset = off
	}

	sets, err := s.rules.GuildRuleSets(c.Request().Context(), gid)
	if err != nil {
		return err
	}

	page := ruleSetPage{RuleSets: []*rule.RuleSet{}}
	if offset < int64(len(sets)) {
		end := min(offset+int64(limit), int64(len(sets)))
		page.RuleSets = sets[offset:end]
		if end < int64(len(sets)) {
			page.Cursor = util.EncodeCursor(end, int64(gid))
		}
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) HandleGuildWordLists(c echo.Context) error {
	gid, err := guildParam(c)
	if err != nil {
		return err
	}
	lists := s.wordLists.GuildLists(gid)
	return c.JSON(http.StatusOK, wordListNames{
		Guild:   lists.GuildNames(),
		Visible: lists.Names(),
	})
}
