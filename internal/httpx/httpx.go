// Package httpx holds the gin helpers shared by every handler: locale
// selection and mapping of the error taxonomy onto HTTP responses.
package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/fekuna/evaluation-portal/internal/apperr"
	"github.com/fekuna/evaluation-portal/internal/i18n"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const localizerKey = "localizer"

// WithLocalizer picks the request locale from Accept-Language.
func WithLocalizer(b *i18n.Bundle) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(localizerKey, b.Localizer(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// Localizer returns the request localizer; nil is safe to use.
func Localizer(c *gin.Context) *i18n.Localizer {
	if v, ok := c.Get(localizerKey); ok {
		if l, ok := v.(*i18n.Localizer); ok {
			return l
		}
	}
	return nil
}

func Status(err error) int {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case apperr.IsNotFound(err):
		return http.StatusNotFound
	case apperr.IsAuthentication(err):
		return http.StatusUnauthorized
	case apperr.IsDataAccess(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message localizes err for the end user. Internal details never leak.
func Message(l *i18n.Localizer, err error) string {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return l.T(i18n.MsgValidationFailed, map[string]interface{}{"Fields": FieldList(ve)})
	case apperr.IsNotFound(err):
		return l.T(i18n.MsgNotFound, nil)
	case apperr.IsAuthentication(err):
		return l.T(i18n.MsgLoginFailed, nil)
	default:
		return l.T(i18n.MsgServiceUnavailable, nil)
	}
}

func FieldList(ve *apperr.ValidationError) string {
	return strings.Join(ve.FieldNames(), ", ")
}

// AbortWithError writes the JSON error body and logs server-side failures.
func AbortWithError(c *gin.Context, log logger.ZapLogger, err error) {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	body := gin.H{"error": Message(Localizer(c), err)}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body["fields"] = ve.Fields
	}
	c.AbortWithStatusJSON(status, body)
}
