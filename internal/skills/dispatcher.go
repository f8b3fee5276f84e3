// Package skills maps each intent to a prompt-building handler and runs it
// against the retrieval and generation gateways.
package skills

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ent0n29/hrdesk/internal/intent"
	"github.com/ent0n29/hrdesk/internal/llm"
)

// HistoryWindow is how many trailing turns a skill forwards to the model.
const HistoryWindow = 2

const greetingReplacement = "Hello"

// Short greetings are rewritten before generation; small local models tend
// to hallucinate on inputs like "hiii".
var greetingPattern = regexp.MustCompile(`^(h+i+|h+e+y+a?|h+e+l+o+|who\s+are\s+you|help)$`)

// Retriever returns joined policy context and its sources for a category.
type Retriever interface {
	Retrieve(ctx context.Context, query, category string, k int) (string, []string)
}

// Completer is the generation gateway as seen by the skills.
type Completer interface {
	Chat(ctx context.Context, messages []llm.Message, maxTokens int, temperature float64) string
}

// Dispatcher routes a classified query to the skill for its intent.
type Dispatcher struct {
	retriever Retriever
	model     Completer
	topK      int
	logger    *slog.Logger
}

// NewDispatcher builds a dispatcher retrieving topK chunks per skill.
func NewDispatcher(retriever Retriever, model Completer, topK int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		retriever: retriever,
		model:     model,
		topK:      topK,
		logger:    logger,
	}
}

// Dispatch runs the handler for in. Sources is never nil.
func (d *Dispatcher) Dispatch(ctx context.Context, in intent.Intent, query string, history []llm.Message) (string, []string) {
	switch in {
	case intent.Chitchat:
		return d.chitchat(ctx, query, history), []string{}
	case intent.GeneralKnowledge:
		return d.direct(ctx, generalKnowledgeSystemPrompt, query, history), []string{}
	case intent.LeavePolicy:
		return d.grounded(ctx, leaveSkill, query, history)
	case intent.Reimbursement:
		return d.grounded(ctx, reimbursementSkill, query, history)
	case intent.Onboarding:
		return d.grounded(ctx, onboardingSkill, query, history)
	case intent.Offboarding:
		return d.grounded(ctx, offboardingSkill, query, history)
	case intent.Performance:
		return d.grounded(ctx, performanceSkill, query, history)
	case intent.CodeOfConduct:
		return d.grounded(ctx, conductSkill, query, history)
	case intent.GrievanceSafety:
		return d.grounded(ctx, grievanceSkill, query, history)
	case intent.SalaryPolicy:
		return d.grounded(ctx, salarySkill, query, history)
	case intent.CompliancePolicy:
		return d.grounded(ctx, complianceSkill, query, history)
	case intent.WelfareBenefits:
		return d.grounded(ctx, welfareSkill, query, history)
	case intent.GeneralHRInfo:
		return d.grounded(ctx, genericSkill, query, history)
	default:
		d.logger.Warn("no skill for intent, using generic answer", "intent", string(in))
		return d.grounded(ctx, genericSkill, query, history)
	}
}

// SkillFor reports the retrieval skill bound to in, if any.
func SkillFor(in intent.Intent) (Skill, bool) {
	switch in {
	case intent.LeavePolicy:
		return leaveSkill, true
	case intent.Reimbursement:
		return reimbursementSkill, true
	case intent.Onboarding:
		return onboardingSkill, true
	case intent.Offboarding:
		return offboardingSkill, true
	case intent.Performance:
		return performanceSkill, true
	case intent.CodeOfConduct:
		return conductSkill, true
	case intent.GrievanceSafety:
		return grievanceSkill, true
	case intent.SalaryPolicy:
		return salarySkill, true
	case intent.CompliancePolicy:
		return complianceSkill, true
	case intent.WelfareBenefits:
		return welfareSkill, true
	case intent.GeneralHRInfo:
		return genericSkill, true
	default:
		return Skill{}, false
	}
}

func (d *Dispatcher) grounded(ctx context.Context, s Skill, query string, history []llm.Message) (string, []string) {
	var (
		policyContext string
		sources       []string
	)
	if d.retriever != nil {
		policyContext, sources = d.retriever.Retrieve(ctx, query, s.Category, d.topK)
	}
	if sources == nil {
		sources = []string{}
	}
	d.logger.Debug("skill retrieved context", "skill", s.Name, "category", s.Category, "chunks", len(sources))
	answer := d.generate(ctx, s.Prompt+contextHeader+policyContext, query, history)
	return answer, sources
}

func (d *Dispatcher) chitchat(ctx context.Context, query string, history []llm.Message) string {
	if greetingPattern.MatchString(strings.TrimSpace(strings.ToLower(query))) {
		query = greetingReplacement
	}
	return d.direct(ctx, chitchatSystemPrompt, query, history)
}

func (d *Dispatcher) direct(ctx context.Context, system, query string, history []llm.Message) string {
	return d.generate(ctx, system, query, history)
}

func (d *Dispatcher) generate(ctx context.Context, system, query string, history []llm.Message) string {
	if d.model == nil {
		return llm.ApologyText
	}
	// Zero budget and negative temperature select the gateway defaults.
	return d.model.Chat(ctx, BuildMessages(system, query, history), 0, -1)
}

// BuildMessages lays out system, the trailing history window, then the user
// query. history is not modified.
func BuildMessages(system, query string, history []llm.Message) []llm.Message {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.SystemMessage(system))
	messages = append(messages, history...)
	messages = append(messages, llm.UserMessage(query))
	return messages
}
