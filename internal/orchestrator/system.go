package orchestrator

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/CuriosityQuantified/tandemai/internal/agent"
)

// supervisorPreamble is prepended to the supervisor's system prompt.
// The supervisor has no research tools of its own (§4.5): it plans,
// delegates, and synthesizes over what its workers return.
const supervisorPreamble = `You are the supervisor of a hierarchical research team. You do not have
search or citation tools yourself. Your job is to:

 1. Maintain a research plan (create_research_plan, read_current_plan, update_plan_progress, edit_plan).
 2. Delegate each step to exactly one worker via its delegate_to_<role> tool, giving it an absolute
    task, the absolute paths of any input files, the expected output, and success criteria.
 3. Treat every worker reply as the only source of truth for that step. Never invent a citation,
    statistic, or quote that did not come back from a worker.
 4. Once every plan step is completed, synthesize the final reply strictly from worker output.

Never call more than one delegate_to_<role> tool in a single turn.`

// workerPreamble is prepended to every non-supervisor role's system prompt.
const workerPreamble = `You are a specialized worker on a research team, invoked by a supervisor for
one delegated task. Before you reply with your final answer you must:

 1. Call read_current_plan and confirm allStepsCompleted is true.
 2. Have called update_plan_progress after each step you executed.

If either is not true yet, keep working instead of replying. A reply that skips this check is
rejected and you will be asked to continue.`

// rolePreambles holds any role-specific emphasis beyond the shared
// worker preamble.
var rolePreambles = map[string]string{
	agent.RoleResearcher: `Use search_cached to gather sources, get_cached_source to re-read one you
already fetched, and verify_citations before claiming a quote is supported. Never fabricate a quote
or URL; if you cannot verify a claim, say so in your reply instead of asserting it.`,
	agent.RoleDataScientist: `Perform statistical analysis over files the researcher produced. State your
assumptions and the limits of the sample size explicitly.`,
	agent.RoleExpertAnalyst: `Provide deep interpretive analysis over the gathered material. Do not
search the web; work only from files already on disk.`,
	agent.RoleWriter: `Produce the requested artifact as a file via write_file/edit_file. Every factual
claim must be traceable to material a prior worker produced; do not add new facts.`,
	agent.RoleReviewer: `Critique the artifact you are given against its stated success criteria. You
are read-only: report issues, do not fix them yourself.`,
}

// SystemPrompt builds the full system prompt for a role, mirroring the
// teacher's layered prompt: role preamble, environment context, and any
// project-level custom instructions.
func SystemPrompt(a *agent.Agent, workDir string) string {
	var b strings.Builder

	if a.Prompt != "" {
		b.WriteString(a.Prompt)
		b.WriteString("\n\n")
	} else if a.Name == agent.RoleSupervisor {
		b.WriteString(supervisorPreamble)
		b.WriteString("\n\n")
	} else {
		b.WriteString(workerPreamble)
		if extra, ok := rolePreambles[a.Name]; ok {
			b.WriteString("\n\n")
			b.WriteString(extra)
		}
		b.WriteString("\n\n")
	}

	b.WriteString(environmentContext(workDir))

	if rules := loadProjectRules(workDir); rules != "" {
		b.WriteString("\n\n# Project instructions\n\n")
		b.WriteString(rules)
	}

	return b.String()
}

// environmentContext reports the sandbox root and, when it is a git
// checkout, the git branch, ambient context injected so the model
// doesn't have to ask.
func environmentContext(workDir string) string {
	var b strings.Builder
	b.WriteString("# Environment\n")
	fmt.Fprintf(&b, "Working directory: %s\n", workDir)
	if branch := gitBranch(workDir); branch != "" {
		fmt.Fprintf(&b, "Git branch: %s\n", branch)
	}
	return b.String()
}

func gitBranch(workDir string) string {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// loadProjectRules reads AGENTS.md from the sandbox root, if present,
// so project-specific conventions ride along with every role's prompt
// without being hard-coded into it.
func loadProjectRules(workDir string) string {
	data, err := os.ReadFile(filepath.Join(workDir, "AGENTS.md"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
