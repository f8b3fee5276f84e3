package intent

import (
	"regexp"
	"strings"
)

// Stage names the step of the classification chain that decided an intent.
type Stage string

const (
	StageChitchat         Stage = "rule_chitchat"
	StageNegation         Stage = "rule_negation"
	StageKeyword          Stage = "rule_keyword"
	StageGuardedKeyword   Stage = "rule_guarded_keyword"
	StageSecondaryKeyword Stage = "rule_secondary_keyword"
	StageGeneralKnowledge Stage = "rule_general_knowledge"
	StageModelExact       Stage = "model_exact"
	StageModelFuzzy       Stage = "model_fuzzy"
	StageDefault          Stage = "default"
)

var (
	// Greetings anchored at the start, or thanks/jokes anywhere.
	chitchatPattern = regexp.MustCompile(`^(h+i+|h+e+y+a?|h+e+l+o+|good\s*(morning|evening|afternoon)|who\s+are\s+you|what\s+is\s+your\s+name|help)|(\b(thanks?|joke)\b)`)

	explicitNegationPattern = regexp.MustCompile(`\bnot\s+(asking|related|need|want)\b`)

	// Whole words only so "notice" and "nothing" do not count.
	negationTokenPattern = regexp.MustCompile(`\b(not|don't|no|never)\b`)
)

// keywordRule fires when any keyword is a substring of the lower-cased text.
type keywordRule struct {
	keywords []string
	intent   Intent
}

func (r keywordRule) matches(text string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func firstMatch(rules []keywordRule, text string) (Intent, bool) {
	for _, r := range rules {
		if r.matches(text) {
			return r.intent, true
		}
	}
	return "", false
}

// Checked before the negation guard, so "no tax on my bonus" is still salary.
var highPrecisionRules = []keywordRule{
	{[]string{"salary", "ctc", "payslip", "tax", "pf", "bonus"}, SalaryPolicy},
	{[]string{"compliance", "prevention", "act", "legal"}, CompliancePolicy},
	{[]string{"welfare", "insurance", "gym", "women", "baby", "paternity"}, WelfareBenefits},
	{[]string{"maternity"}, WelfareBenefits},
	{[]string{"safety", "harassment"}, GrievanceSafety},
}

// Skipped entirely when the query carries a negation token.
var guardedRules = []keywordRule{
	{[]string{"leave", "sick", "casual", "vacation"}, LeavePolicy},
	{[]string{"expense", "reimburse", "claim", "travel"}, Reimbursement},
	{[]string{"notice", "resign", "exit", "terminate", "fired"}, Offboarding},
	{[]string{"onboarding", "joining", "induction"}, Onboarding},
}

var secondaryRules = []keywordRule{
	{[]string{"freelance", "conduct", "ethics"}, CodeOfConduct},
}

var generalKnowledgeRule = keywordRule{
	keywords: []string{"apple", "sky", "sun", "moon", "president", "capital", "weather", "color", "pasta", "mars", "earth", "math", "history"},
	intent:   GeneralKnowledge,
}

// responseLabels is the scan order for model output. A label found anywhere
// in the response wins; earlier labels beat later ones.
var responseLabels = []Intent{
	LeavePolicy,
	Reimbursement,
	Onboarding,
	Offboarding,
	Performance,
	CodeOfConduct,
	GrievanceSafety,
	GeneralHRInfo,
	SalaryPolicy,
	CompliancePolicy,
	WelfareBenefits,
	GeneralKnowledge,
	Chitchat,
}

// fuzzyResponseRules recover near-miss model output.
var fuzzyResponseRules = []keywordRule{
	{[]string{"leave"}, LeavePolicy},
	{[]string{"claim", "reimburse"}, Reimbursement},
	{[]string{"conduct"}, CodeOfConduct},
	{[]string{"knowledge", "fact"}, GeneralKnowledge},
}

// classifyByRules runs the deterministic part of the chain on lower-cased text.
func classifyByRules(q string) (Intent, Stage, bool) {
	if chitchatPattern.MatchString(q) {
		return Chitchat, StageChitchat, true
	}

	if explicitNegationPattern.MatchString(q) {
		if strings.Contains(q, "hi") || strings.Contains(q, "hello") {
			return Chitchat, StageNegation, true
		}
		return GeneralHRInfo, StageNegation, true
	}

	if in, ok := firstMatch(highPrecisionRules, q); ok {
		return in, StageKeyword, true
	}

	if !negationTokenPattern.MatchString(q) {
		if in, ok := firstMatch(guardedRules, q); ok {
			return in, StageGuardedKeyword, true
		}
	}

	if in, ok := firstMatch(secondaryRules, q); ok {
		return in, StageSecondaryKeyword, true
	}

	if generalKnowledgeRule.matches(q) {
		return GeneralKnowledge, StageGeneralKnowledge, true
	}

	return "", "", false
}

// interpretResponse maps raw model output to an intent.
func interpretResponse(response string) (Intent, Stage) {
	r := strings.ToLower(strings.TrimSpace(response))
	for _, label := range responseLabels {
		if strings.Contains(r, string(label)) {
			return label, StageModelExact
		}
	}
	if in, ok := firstMatch(fuzzyResponseRules, r); ok {
		return in, StageModelFuzzy
	}
	return GeneralHRInfo, StageDefault
}
