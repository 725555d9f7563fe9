package dashboard

import (
	"strings"

	"github.com/tidewatch/tidewatch/internal/source"
)

// Messages is the user-facing copy for one language.
type Messages struct {
	Errors    map[source.Kind]string
	Fallback  string
	RetryHint string
	Reasons   map[string]string

	Today    string
	Tomorrow string

	Morning   string
	Afternoon string
	Evening   string

	Encouragements []string
}

// DefaultLocale is used when a locale has no catalog entry.
const DefaultLocale = "en"

var catalogs = map[string]Messages{
	"en": {
		Errors: map[source.Kind]string{
			source.KindConfig:  "This panel isn't set up yet. Check your settings.",
			source.KindNetwork: "Couldn't reach the service.",
			source.KindData:    "The service sent something unexpected.",
			source.KindAuth:    "Access was denied. Reconnect your account.",
		},
		Fallback:  "Something went wrong.",
		RetryHint: "Tap refresh to try again.",
		Reasons: map[string]string{
			source.ReasonNotConfigured:       "No calendar configured.",
			source.ReasonNoAccountsConnected: "No calendar accounts connected.",
		},
		Today:     "Today",
		Tomorrow:  "Tomorrow",
		Morning:   "Good morning",
		Afternoon: "Good afternoon",
		Evening:   "Good evening",
		Encouragements: []string{
			"The tide always comes back in.",
			"Go find some salt air today.",
			"One wave at a time.",
			"A good day to watch the horizon.",
			"Slow mornings count too.",
			"The ocean doesn't rush, and neither should you.",
		},
	},
	"es": {
		Errors: map[source.Kind]string{
			source.KindConfig:  "Este panel aún no está configurado. Revisa los ajustes.",
			source.KindNetwork: "No se pudo contactar con el servicio.",
			source.KindData:    "El servicio respondió algo inesperado.",
			source.KindAuth:    "Acceso denegado. Vuelve a conectar tu cuenta.",
		},
		Fallback:  "Algo salió mal.",
		RetryHint: "Pulsa actualizar para intentarlo de nuevo.",
		Reasons: map[string]string{
			source.ReasonNotConfigured:       "No hay calendario configurado.",
			source.ReasonNoAccountsConnected: "No hay cuentas de calendario conectadas.",
		},
		Today:     "Hoy",
		Tomorrow:  "Mañana",
		Morning:   "Buenos días",
		Afternoon: "Buenas tardes",
		Evening:   "Buenas noches",
		Encouragements: []string{
			"La marea siempre vuelve.",
			"Sal a respirar un poco de brisa marina.",
			"Una ola a la vez.",
			"Buen día para mirar el horizonte.",
		},
	},
}

// MessagesFor returns the catalog for locale ("es", "es-MX", ...), falling
// back to English.
func MessagesFor(locale string) Messages {
	lang := strings.ToLower(locale)
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	if m, ok := catalogs[lang]; ok {
		return m
	}
	return catalogs[DefaultLocale]
}

func (m Messages) errorText(kind source.Kind) string {
	if text, ok := m.Errors[kind]; ok {
		return text
	}
	return m.Fallback
}

func (m Messages) greeting(hour int) string {
	switch {
	case hour < 12:
		return m.Morning
	case hour < 17:
		return m.Afternoon
	default:
		return m.Evening
	}
}
