// Package intent classifies an HR question into exactly one Intent using
// ordered keyword rules first and a model prompt only when no rule fires.
package intent

import "strings"

// Intent is the closed set of question categories. Every value maps to one
// skill handler.
type Intent string

const (
	LeavePolicy      Intent = "leave_policy"
	Reimbursement    Intent = "reimbursement"
	Onboarding       Intent = "onboarding"
	Offboarding      Intent = "offboarding"
	Performance      Intent = "performance"
	CodeOfConduct    Intent = "code_of_conduct"
	GrievanceSafety  Intent = "grievance_safety"
	SalaryPolicy     Intent = "salary_policy"
	CompliancePolicy Intent = "compliance_policy"
	WelfareBenefits  Intent = "welfare_benefits"
	GeneralHRInfo    Intent = "general_hr_info"
	Chitchat         Intent = "chitchat"
	GeneralKnowledge Intent = "general_knowledge"
)

// All lists every intent in declaration order.
var All = []Intent{
	LeavePolicy,
	Reimbursement,
	Onboarding,
	Offboarding,
	Performance,
	CodeOfConduct,
	GrievanceSafety,
	SalaryPolicy,
	CompliancePolicy,
	WelfareBenefits,
	GeneralHRInfo,
	Chitchat,
	GeneralKnowledge,
}

func (i Intent) String() string { return string(i) }

// Valid reports whether i is a member of the closed set.
func (i Intent) Valid() bool {
	for _, v := range All {
		if v == i {
			return true
		}
	}
	return false
}

// UsesRetrieval reports whether answers for i are grounded in policy documents.
func (i Intent) UsesRetrieval() bool {
	switch i {
	case Chitchat, GeneralKnowledge:
		return false
	default:
		return true
	}
}

// Parse maps a label back to its Intent.
func Parse(label string) (Intent, bool) {
	in := Intent(strings.ToLower(strings.TrimSpace(label)))
	if in.Valid() {
		return in, true
	}
	return "", false
}
