package message

import "strings"

const (
	NamePlaceholder     = "{name}"
	SchedulePlaceholder = "{horario}"
)

// DefaultTemplate is used when no template is configured.
const DefaultTemplate = "Mensagem padrão: configure a variável MESSAGE no .env"

// Render substitutes the first {name} and then the first {horario} in tpl.
// Repeated placeholders are left as is; missing ones are not an error.
func Render(tpl, name, schedule string) string {
	out := strings.Replace(tpl, NamePlaceholder, name, 1)
	return strings.Replace(out, SchedulePlaceholder, schedule, 1)
}
