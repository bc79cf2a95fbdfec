package profile

// Answers: ответы анкеты зрелости: id вопроса -> значение.
type Answers map[string]any

const (
	QuestionAutomation       = "automation"
	QuestionProcessStructure = "processStructure"
	QuestionFailureImpact    = "failureImpact"
)

// Derive строит профиль по ответам. Ошибок нет: отсутствующий или
// неожиданный ответ даёт младшую метку категории (manual, decentralized,
// без high-risk).
func Derive(a Answers) Set {
	var s Set

	switch a.text(QuestionAutomation) {
	case "automated":
		s.add(Automated)
	case "erp":
		s.add(ERPEnabled)
	default:
		s.add(Manual)
	}

	if a.text(QuestionProcessStructure) == "centralized" {
		s.add(Centralized)
	} else {
		s.add(Decentralized)
	}

	if a.text(QuestionFailureImpact) == "high" {
		s.add(HighRisk)
	}
	return s
}

// нестроковые значения считаем отсутствующими
func (a Answers) text(key string) string {
	v, _ := a[key].(string)
	return v
}
