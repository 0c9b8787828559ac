// Package admin exposes the back office over HTTP: sign-in, the session gate
// and the dashboard workflow of each signed-in admin.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	"github.com/fekuna/evaluation-portal/internal/auth"
	"github.com/fekuna/evaluation-portal/internal/dashboard"
	"github.com/fekuna/evaluation-portal/internal/httpx"
	"github.com/fekuna/evaluation-portal/internal/i18n"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	SessionCookie = "portal_admin_session"
	LoginPath     = "/admin"
	DashboardPath = "/admin/dashboard"

	workspaceKey = "admin_workspace"
)

type Handler struct {
	registry     *Registry
	settle       time.Duration
	secureCookie bool
	cookieMaxAge int
	logger       logger.ZapLogger
}

func NewHandler(registry *Registry, settle time.Duration, secureCookie bool, log logger.ZapLogger) *Handler {
	if settle <= 0 {
		settle = 5 * time.Second
	}
	return &Handler{
		registry:     registry,
		settle:       settle,
		secureCookie: secureCookie,
		cookieMaxAge: int(registry.cfg.TTL.Seconds()),
		logger:       log,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/admin")
	g.POST("/login", h.Login)
	g.POST("/logout", h.Logout)
	g.GET("/session", h.Session)

	d := g.Group("/dashboard", h.RequireAdmin())
	d.GET("", h.Dashboard)
	d.PUT("/kind", h.SelectKind)
	d.PUT("/selection/category", h.SelectCategory)
	d.PUT("/selection/subcategory", h.SelectSubcategory)
	d.POST("/form", h.OpenForm)
	d.PATCH("/form", h.UpdateForm)
	d.POST("/form/save", h.SaveForm)
	d.DELETE("/form", h.CancelForm)
	d.DELETE("/items/:id", h.DeleteItem)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	loc := httpx.Localizer(c)

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": loc.T(i18n.MsgInvalidRequest, nil)})
		return
	}

	ws, existing := h.registry.Get(token(c))
	if !existing {
		ws = h.registry.Open(context.Background(), c.GetHeader("Accept-Language"))
	}

	if err := ws.Gate.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		if !existing {
			h.registry.Delete(ws.Token)
		}
		if apperr.IsAuthentication(err) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"title": loc.T(i18n.MsgLoginFailedTitle, nil),
				"error": loc.T(i18n.MsgLoginFailed, nil),
			})
			return
		}
		httpx.AbortWithError(c, h.logger, err)
		return
	}

	state := h.settled(c.Request.Context(), ws)
	h.setCookie(c, ws.Token, h.cookieMaxAge)

	redirect := LoginPath
	if state.IsAdmin {
		redirect = DashboardPath
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    ws.Token,
		"session":  state,
		"redirect": redirect,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	t := token(c)
	if ws, ok := h.registry.Get(t); ok {
		if err := ws.Gate.SignOut(c.Request.Context()); err != nil {
			h.logger.Warn("Remote sign-out failed", zap.Error(err))
		}
		h.registry.Delete(t)
	}
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"redirect": LoginPath})
}

func (h *Handler) Session(c *gin.Context) {
	ws, ok := h.registry.Get(token(c))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"session": auth.State{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": h.settled(c.Request.Context(), ws)})
}

// RequireAdmin waits for the gate to settle and then lets only admins through.
// It never redirects while the gate is still loading.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		loc := httpx.Localizer(c)
		ws, ok := h.registry.Get(token(c))
		if !ok {
			h.redirect(c, loc)
			return
		}

		h.settled(c.Request.Context(), ws)
		switch ws.Gate.Guard() {
		case auth.GuardPending:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":   loc.T(i18n.MsgServiceUnavailable, nil),
				"loading": true,
			})
			return
		case auth.GuardRedirect:
			h.redirect(c, loc)
			return
		}

		state := ws.Gate.State()
		c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), state.User))
		c.Set(workspaceKey, ws)
		c.Next()
	}
}

func (h *Handler) redirect(c *gin.Context, loc *i18n.Localizer) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error":    loc.T(i18n.MsgAdminRequired, nil),
		"redirect": LoginPath,
	})
}

func (h *Handler) settled(ctx context.Context, ws *Workspace) auth.State {
	ctx, cancel := context.WithTimeout(ctx, h.settle)
	defer cancel()
	state, err := ws.Gate.Settled(ctx)
	if err != nil {
		h.logger.Warn("Session gate did not settle", zap.Duration("timeout", h.settle), zap.Error(err))
	}
	return state
}

func (h *Handler) Dashboard(c *gin.Context) {
	ws := workspace(c)
	err := ws.Dashboard.Load(c.Request.Context())
	h.respond(c, ws, err)
}

type kindRequest struct {
	Kind model.Kind `json:"kind" binding:"required"`
}

func (h *Handler) SelectKind(c *gin.Context) {
	ws := workspace(c)
	var req kindRequest
	if !h.bind(c, &req) {
		return
	}
	h.respond(c, ws, ws.Dashboard.SelectKind(req.Kind))
}

type selectionRequest struct {
	ID string `json:"id"`
}

func (h *Handler) SelectCategory(c *gin.Context) {
	ws := workspace(c)
	var req selectionRequest
	if !h.bind(c, &req) {
		return
	}
	h.respond(c, ws, ws.Dashboard.SelectCategory(c.Request.Context(), req.ID))
}

func (h *Handler) SelectSubcategory(c *gin.Context) {
	ws := workspace(c)
	var req selectionRequest
	if !h.bind(c, &req) {
		return
	}
	h.respond(c, ws, ws.Dashboard.SelectSubcategory(c.Request.Context(), req.ID))
}

type openFormRequest struct {
	// ID opens the edit form; empty opens the add form.
	ID string `json:"id"`
}

func (h *Handler) OpenForm(c *gin.Context) {
	ws := workspace(c)
	var req openFormRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	if req.ID == "" {
		h.respond(c, ws, ws.Dashboard.OpenAdd())
		return
	}
	h.respond(c, ws, ws.Dashboard.OpenEdit(c.Request.Context(), req.ID))
}

type formPatch struct {
	Name          *string `json:"name"`
	NameAr        *string `json:"name_ar"`
	Description   *string `json:"description"`
	ImageURL      *string `json:"image_url"`
	DownloadURL   *string `json:"download_url"`
	CategoryID    *string `json:"category_id"`
	SubcategoryID *string `json:"subcategory_id"`
	SortOrder     *int    `json:"sort_order"`
}

func (p formPatch) apply(f *dashboard.Fields) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&f.Name, p.Name)
	set(&f.NameAr, p.NameAr)
	set(&f.Description, p.Description)
	set(&f.ImageURL, p.ImageURL)
	set(&f.DownloadURL, p.DownloadURL)
	set(&f.CategoryID, p.CategoryID)
	set(&f.SubcategoryID, p.SubcategoryID)
	if p.SortOrder != nil {
		f.SortOrder = *p.SortOrder
	}
}

func (h *Handler) UpdateForm(c *gin.Context) {
	ws := workspace(c)
	var patch formPatch
	if !h.bind(c, &patch) {
		return
	}
	h.respond(c, ws, ws.Dashboard.UpdateForm(patch.apply))
}

func (h *Handler) SaveForm(c *gin.Context) {
	ws := workspace(c)
	h.respond(c, ws, ws.Dashboard.Save(c.Request.Context()))
}

func (h *Handler) CancelForm(c *gin.Context) {
	ws := workspace(c)
	ws.Dashboard.Cancel()
	h.respond(c, ws, nil)
}

// DeleteItem removes an entity of the active kind. Without confirm=true it
// only returns the confirmation prompt.
func (h *Handler) DeleteItem(c *gin.Context) {
	ws := workspace(c)
	confirmed := c.Query("confirm") == "true"

	var prompt string
	deleted, err := ws.Dashboard.Delete(c.Request.Context(), c.Param("id"), func(p string) bool {
		prompt = p
		return confirmed
	})
	if err == nil && !deleted {
		c.JSON(http.StatusConflict, gin.H{"confirm": prompt, "deleted": false})
		return
	}
	h.respond(c, ws, err)
}

func (h *Handler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": httpx.Localizer(c).T(i18n.MsgInvalidRequest, nil)})
		return false
	}
	return true
}

// respond always returns the dashboard state and pending notifications; err
// only picks the status code and the error line.
func (h *Handler) respond(c *gin.Context, ws *Workspace, err error) {
	notes := ws.Dashboard.Notifications()
	if notes == nil {
		notes = []dashboard.Notification{}
	}
	body := gin.H{
		"dashboard":     ws.Dashboard.Snapshot(),
		"notifications": notes,
	}
	if err == nil {
		c.JSON(http.StatusOK, body)
		return
	}

	loc := httpx.Localizer(c)
	status := httpx.Status(err)
	msg := httpx.Message(loc, err)
	switch {
	case errors.Is(err, dashboard.ErrAddDisabled):
		status, msg = http.StatusConflict, loc.T(i18n.MsgAddDisabled, nil)
	case errors.Is(err, dashboard.ErrFormClosed):
		status, msg = http.StatusConflict, loc.T(i18n.MsgInvalidRequest, nil)
	case errors.Is(err, dashboard.ErrClosed):
		status = http.StatusGone
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("dashboard request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	body["error"] = msg
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body["fields"] = ve.Fields
	}
	c.JSON(status, body)
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, value, maxAge, "/", "", h.secureCookie, true)
}

// token reads the workspace token from the bearer header or the cookie.
func token(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if v, err := c.Cookie(SessionCookie); err == nil {
		return v
	}
	return ""
}

func workspace(c *gin.Context) *Workspace {
	return c.MustGet(workspaceKey).(*Workspace)
}
