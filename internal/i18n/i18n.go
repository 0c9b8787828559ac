package i18n

import (
	"embed"
	"encoding/json"
	"path"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

// Message ids shared by the dashboard and the HTTP layer.
const (
	MsgSaveSuccessTitle   = "SaveSuccessTitle"
	MsgItemCreated        = "ItemCreated"
	MsgItemUpdated        = "ItemUpdated"
	MsgDeleteSuccessTitle = "DeleteSuccessTitle"
	MsgErrorTitle         = "ErrorTitle"
	MsgSaveFailed         = "SaveFailed"
	MsgDeleteFailed       = "DeleteFailed"
	MsgLoadFailed         = "LoadFailed"
	MsgValidationFailed   = "ValidationFailed"
	MsgDeleteConfirm      = "DeleteConfirm"
	MsgLoginFailedTitle   = "LoginFailedTitle"
	MsgLoginFailed        = "LoginFailed"
	MsgAdminRequired      = "AdminRequired"
	MsgNotFound           = "NotFound"
	MsgAddDisabled        = "AddDisabled"
	MsgServiceUnavailable = "ServiceUnavailable"
	MsgInvalidRequest     = "InvalidRequest"
)

type Bundle struct {
	bundle   *goi18n.Bundle
	fallback string
}

// New loads the embedded locale files. defaultLang is used when a request
// carries no usable Accept-Language.
func New(defaultLang string) (*Bundle, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		tag = language.Arabic
	}
	b := goi18n.NewBundle(tag)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		data, err := locales.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, err
		}
		if _, err := b.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, err
		}
	}
	return &Bundle{bundle: b, fallback: tag.String()}, nil
}

// Localizer resolves messages for the first supported language in langs,
// which may be raw Accept-Language values.
func (b *Bundle) Localizer(langs ...string) *Localizer {
	langs = append(langs, b.fallback)
	return &Localizer{l: goi18n.NewLocalizer(b.bundle, langs...)}
}

type Localizer struct {
	l *goi18n.Localizer
}

// T returns the message id itself when the message is missing, so a broken
// catalog degrades to readable keys instead of empty toasts.
func (l *Localizer) T(id string, data map[string]interface{}) string {
	if l == nil {
		return id
	}
	msg, err := l.l.Localize(&goi18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil || msg == "" {
		return id
	}
	return msg
}
