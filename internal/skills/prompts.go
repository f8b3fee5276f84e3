package skills

// Skill is a retrieval-grounded handler: a fixed category filter and the
// instructions placed ahead of the retrieved context.
type Skill struct {
	Name     string
	Category string
	Prompt   string
}

const contextHeader = "\n\nCONTEXT FROM POLICIES:\n"

var (
	leaveSkill = Skill{
		Name:     "lookup_leave_policy",
		Category: "leave",
		Prompt: `Role: HR policy assistant.
Provide a short answer plus key points and conditions.
Include types of leave, eligibility, documents, limitations.
Format:
- Summary
- Rules list
- Important conditions
- Source references`,
	}
	reimbursementSkill = Skill{
		Name:     "generate_reimbursement_checklist",
		Category: "reimbursement",
		Prompt: `Extract required documents, steps in order, and approval flow.
Output Format:
### Documents required
...
### Step by step process
...
### Approvals
...`,
	}
	onboardingSkill = Skill{
		Name:     "lookup_onboarding_steps",
		Category: "onboarding",
		Prompt: `Extract Pre joining requirements, Day 1 steps, and IT/HR tasks.
Output as a clear checklist.`,
	}
	offboardingSkill = Skill{
		Name:     "lookup_offboarding_policy",
		Category: "offboarding",
		Prompt:   "Explain notice period rules, exit clearance checklist, and FNF timeline.",
	}
	performanceSkill = Skill{
		Name:     "summarize_performance_guidelines",
		Category: "performance",
		Prompt:   "Summarize Appraisal cycle, Rating model, and Criteria.",
	}
	conductSkill = Skill{
		Name:     "extract_conduct_rule",
		Category: "code_of_conduct",
		Prompt:   "Answer with a clear Yes or No if possible, then cite the policy section.",
	}
	grievanceSkill = Skill{
		Name:     "grievance_and_safety_steps",
		Category: "grievance",
		Prompt:   "Explain how to report issues, contact points, and confidentiality rules.",
	}
	salarySkill = Skill{
		Name:     "lookup_salary_policy",
		Category: "salary",
		Prompt: `Role: HR Compensation Expert.
Explain salary components (Basic, HRA), deductions (PF, Tax), and payout cycle.
If asked about benefits, mention the flexible benefit plan.`,
	}
	complianceSkill = Skill{
		Name:     "lookup_compliance_policy",
		Category: "compliance",
		Prompt: `Role: Corporate Governance Officer.
Explain the statutory framework, acts (Maternity, Minimum Wage), and Data Privacy (DPDP).`,
	}
	welfareSkill = Skill{
		Name:     "lookup_welfare_benefits",
		Category: "welfare",
		Prompt: `Role: HR Wellness Coordinator.
Explain insurance coverage (GHI, GPA), wellness benefits (Gym, EAP), and office perks.`,
	}
	genericSkill = Skill{
		Name:   "generic_rag_answer",
		Prompt: "Answer the user question based on the context provided. If unsure, say so.",
	}
)

const (
	chitchatSystemPrompt = "You are a helpful and friendly HR Assistant. Answer questions politely. " +
		"If the user asks about specific policies, suggest they ask that directly."
	generalKnowledgeSystemPrompt = "You are a helpful assistant. Answer the user's general knowledge or logic question " +
		"directly and concisely. Do NOT mention HR policies or corporate context unless explicitly asked."
)
