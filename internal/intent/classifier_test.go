package intent

import (
	"context"
	"strings"
	"testing"

	"github.com/ent0n29/hrdesk/internal/llm"
)

type fakeModel struct {
	reply string
	calls []fakeCall
}

type fakeCall struct {
	messages  []llm.Message
	maxTokens int
}

func (m *fakeModel) Chat(_ context.Context, messages []llm.Message, maxTokens int, _ float64) string {
	m.calls = append(m.calls, fakeCall{messages: messages, maxTokens: maxTokens})
	return m.reply
}

func TestClassifyRuleMatches(t *testing.T) {
	cases := []struct {
		query string
		want  Intent
		stage Stage
	}{
		{"Hiii", Chitchat, StageChitchat},
		{"Good morning", Chitchat, StageChitchat},
		{"Who are you?", Chitchat, StageChitchat},
		{"Help me", Chitchat, StageChitchat},
		{"What is your name?", Chitchat, StageChitchat},
		{"tell me a joke", Chitchat, StageChitchat},
		{"thanks a lot", Chitchat, StageChitchat},
		{"What is casual leave?", LeavePolicy, StageGuardedKeyword},
		{"How many sick days?", LeavePolicy, StageGuardedKeyword},
		{"How to claim travel expenses?", Reimbursement, StageGuardedKeyword},
		{"What is the notice period?", Offboarding, StageGuardedKeyword},
		{"What happens if I get fired?", Offboarding, StageGuardedKeyword},
		{"What is the induction process?", Onboarding, StageGuardedKeyword},
		{"Can I do freelance work?", CodeOfConduct, StageSecondaryKeyword},
		{"Explain my salary structure", SalaryPolicy, StageKeyword},
		{"What is my bonus?", SalaryPolicy, StageKeyword},
		{"Explain the POSH act", CompliancePolicy, StageKeyword},
		{"Is there a gym?", WelfareBenefits, StageKeyword},
		{"What is the maternity leave policy?", WelfareBenefits, StageKeyword},
		{"How do I report harassment?", GrievanceSafety, StageKeyword},
		{"Does apple color is blue?", GeneralKnowledge, StageGeneralKnowledge},
		{"Sky is brown in color", GeneralKnowledge, StageGeneralKnowledge},
		{"What is the capital of France?", GeneralKnowledge, StageGeneralKnowledge},
		{"sky is brown is also chitchat not hr info", GeneralKnowledge, StageGeneralKnowledge},
		{"I am NOT asking about leave, just saying hi", Chitchat, StageNegation},
		{"I do not need leave details", GeneralHRInfo, StageNegation},
		{"Don't tell me about reimbursement, tell me about gym", WelfareBenefits, StageKeyword},
	}

	model := &fakeModel{reply: "performance"}
	c := NewClassifier(model, nil)
	for _, tc := range cases {
		got := c.Explain(context.Background(), tc.query, nil)
		if got.Intent != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.query, got.Intent, tc.want)
		}
		if got.Stage != tc.stage {
			t.Fatalf("Classify(%q) stage = %q, want %q", tc.query, got.Stage, tc.stage)
		}
	}
	if len(model.calls) != 0 {
		t.Fatalf("model calls = %d, want 0 for rule-matched queries", len(model.calls))
	}
}

func TestGreetingIgnoresHistory(t *testing.T) {
	c := NewClassifier(&fakeModel{reply: "leave_policy"}, nil)
	history := []llm.Message{
		llm.UserMessage("What is casual leave?"),
		llm.AssistantMessage("You get 12 casual leaves per year."),
	}
	for _, q := range []string{"hi", "Hello", "heya", "hiiii there"} {
		if got := c.Classify(context.Background(), q, history); got != Chitchat {
			t.Fatalf("Classify(%q) = %q, want chitchat", q, got)
		}
	}
}

func TestNegationSkipsGuardedKeywords(t *testing.T) {
	c := NewClassifier(&fakeModel{reply: "nothing useful"}, nil)
	cases := map[string]Intent{
		"no leave please":              LeavePolicy,
		"I don't want to claim travel": Reimbursement,
		"never resign":                 Offboarding,
	}
	for q, forbidden := range cases {
		got := c.Explain(context.Background(), q, nil)
		if got.Intent == forbidden && got.Stage == StageGuardedKeyword {
			t.Fatalf("Classify(%q) decided %q by guarded keyword despite negation", q, got.Intent)
		}
	}
}

func TestModelFallback(t *testing.T) {
	cases := []struct {
		reply string
		want  Intent
		stage Stage
	}{
		{"performance", Performance, StageModelExact},
		{"  Performance\n", Performance, StageModelExact},
		{"Category: code_of_conduct", CodeOfConduct, StageModelExact},
		{"chitchat", Chitchat, StageModelExact},
		{"the leave one", LeavePolicy, StageModelFuzzy},
		{"a claim", Reimbursement, StageModelFuzzy},
		{"conduct", CodeOfConduct, StageModelFuzzy},
		{"it is a fact", GeneralKnowledge, StageModelFuzzy},
		{"I do not know", GeneralHRInfo, StageDefault},
		{"", GeneralHRInfo, StageDefault},
	}
	for _, tc := range cases {
		model := &fakeModel{reply: tc.reply}
		c := NewClassifier(model, nil)
		got := c.Explain(context.Background(), "What is the appraisal cycle?", nil)
		if got.Intent != tc.want || got.Stage != tc.stage {
			t.Fatalf("reply %q => (%q, %q), want (%q, %q)", tc.reply, got.Intent, got.Stage, tc.want, tc.stage)
		}
		if len(model.calls) != 1 {
			t.Fatalf("model calls = %d, want 1", len(model.calls))
		}
		if model.calls[0].maxTokens != classifyMaxTokens {
			t.Fatalf("maxTokens = %d, want %d", model.calls[0].maxTokens, classifyMaxTokens)
		}
		if len(model.calls[0].messages) != 1 || model.calls[0].messages[0].Role != llm.RoleUser {
			t.Fatalf("messages = %+v, want one user message", model.calls[0].messages)
		}
	}
}

func TestResponseScanOrderPrefersEarlierLabels(t *testing.T) {
	c := NewClassifier(&fakeModel{reply: "salary_policy or general_hr_info"}, nil)
	if got := c.Classify(context.Background(), "Tell me about the company", nil); got != GeneralHRInfo {
		t.Fatalf("Classify() = %q, want %q", got, GeneralHRInfo)
	}
}

func TestClassifyWithoutModelDefaults(t *testing.T) {
	c := NewClassifier(nil, nil)
	got := c.Explain(context.Background(), "What is the dress code?", nil)
	if got.Intent != GeneralHRInfo || got.Stage != StageDefault {
		t.Fatalf("Explain() = %+v, want general_hr_info/default", got)
	}
}

func TestClassifyWithOfflineMockDefaults(t *testing.T) {
	c := NewClassifier(llm.NewGateway(llm.NewMockBackend()), nil)
	for _, q := range []string{"What is the dress code?", "How many days off do I get?"} {
		got := c.Explain(context.Background(), q, nil)
		if got.Intent != GeneralHRInfo || got.Stage != StageDefault {
			t.Fatalf("Explain(%q) = %+v, want general_hr_info/default", q, got)
		}
	}
}

func TestBuildPromptHistoryWindow(t *testing.T) {
	long := strings.Repeat("x", 150)
	history := []llm.Message{
		llm.UserMessage("first question"),
		llm.AssistantMessage("first answer"),
		llm.UserMessage(long),
		llm.AssistantMessage("second answer"),
	}
	prompt := BuildPrompt("and the rest?", history)

	if strings.Contains(prompt, "first question") || strings.Contains(prompt, "first answer") {
		t.Fatalf("prompt includes turns older than the last two:\n%s", prompt)
	}
	if !strings.Contains(prompt, "User: "+strings.Repeat("x", 100)+"\n") {
		t.Fatalf("prompt missing truncated user turn:\n%s", prompt)
	}
	if strings.Contains(prompt, strings.Repeat("x", 101)) {
		t.Fatalf("user turn not truncated to 100 characters")
	}
	if !strings.Contains(prompt, "Assistant: second answer\n") {
		t.Fatalf("prompt missing assistant turn:\n%s", prompt)
	}
	if !strings.Contains(prompt, `Current Query: "and the rest?"`) {
		t.Fatalf("prompt missing current query:\n%s", prompt)
	}
	for _, in := range All {
		if !strings.Contains(prompt, "- "+string(in)+"\n") {
			t.Fatalf("prompt missing category %q", in)
		}
	}
}

func TestBuildPromptWithoutHistory(t *testing.T) {
	prompt := BuildPrompt("q", nil)
	if strings.Contains(prompt, "Conversation History") {
		t.Fatalf("prompt has history section without history")
	}
	if !strings.HasSuffix(prompt, "Output ONLY the category name.") {
		t.Fatalf("prompt suffix = %q", prompt[len(prompt)-40:])
	}
}

func TestParse(t *testing.T) {
	if got, ok := Parse(" Leave_Policy "); !ok || got != LeavePolicy {
		t.Fatalf("Parse() = %q, %v, want leave_policy, true", got, ok)
	}
	if _, ok := Parse("payroll"); ok {
		t.Fatalf("Parse(payroll) ok = true, want false")
	}
	if len(All) != 13 {
		t.Fatalf("len(All) = %d, want 13", len(All))
	}
}
