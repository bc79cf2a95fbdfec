package applicability

import "control-advisor/internal/profile"

// Applies решает, относится ли правило к профилю и контексту организации.
// Нераспознанное правило применимо всегда: лучше лишняя рекомендация,
// чем молча пропущенный контроль.
func Applies(r Rule, p profile.Set, flags Flags) bool {
	switch r.Kind() {
	case KindAlways:
		return true
	case KindProfile:
		return r.tags.Intersects(p)
	case KindFlag:
		return flags.Asserted(r.flag)
	default:
		return true
	}
}
