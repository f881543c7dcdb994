// Package prompt renders the generation request for each task type.
//
// There is one immutable template per task type. Every template carries
// the grounding rule, the refusal rule, the question, the bounded context
// and the JSON output contract; only the task instruction differs.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/stratum/core"
)

// ErrUnknownTask is returned when no template exists for a task type.
var ErrUnknownTask = errors.New("no prompt template for task")

const (
	// SystemMessage is the concise role statement sent with every prompt.
	SystemMessage = "You are a geotechnical data assistant. You answer questions about a voxel model of the subsurface using only the data you are given. Respond with JSON only."

	// GroundingRule restricts answers to the supplied context.
	GroundingRule = "Only reference voxels, attribute values and statistics that appear in the Context below. Never invent voxel ids or values."

	// RefusalRule tells the model how to decline.
	RefusalRule = "If the Context does not contain the information needed to answer, say that the available data cannot answer the question and return an empty voxel_ids list."

	// OutputContract is the required response shape.
	OutputContract = `Respond with a single JSON object: {"answer": "<your answer>", "voxel_ids": ["<id of every voxel your answer relies on>"]}`
)

// Template is a pure formatting function for one task type.
type Template struct {
	Task        core.TaskType
	Instruction string
}

// Render formats the prompt for ctx and query.
func (t Template) Render(ctx core.Context, query string) core.Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Task (%s): %s\n\n", t.Task, t.Instruction)
	b.WriteString(GroundingRule)
	b.WriteString("\n")
	b.WriteString(RefusalRule)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\nContext:\n")
	b.WriteString(ctx.Text)
	if !strings.HasSuffix(ctx.Text, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(OutputContract)

	return core.Prompt{
		Task:   t.Task,
		System: SystemMessage,
		User:   b.String(),
	}
}

var templates = map[core.TaskType]Template{
	core.TaskAttributeRetrieval: {
		Task:        core.TaskAttributeRetrieval,
		Instruction: "Report the requested attribute values of the named voxel exactly as given, with units.",
	},
	core.TaskFiltering: {
		Task:        core.TaskFiltering,
		Instruction: "List the voxels that satisfy the question's conditions and the values that qualify them. The voxels are ordered by relevance.",
	},
	core.TaskReasoning: {
		Task:        core.TaskReasoning,
		Instruction: "Explain the answer step by step, tying every claim to specific attribute values of specific voxels.",
	},
	core.TaskComputation: {
		Task:        core.TaskComputation,
		Instruction: "Compute the requested quantity. Prefer the aggregates, which cover every retrieved voxel; state the count the result is based on.",
	},
	core.TaskClassification: {
		Task:        core.TaskClassification,
		Instruction: "Classify the voxels by the requested property using their material, soil group and risk attributes, and name the voxels in each class.",
	},
	core.TaskSummarization: {
		Task:        core.TaskSummarization,
		Instruction: "Summarize the ground conditions shown by these voxels: materials, layers, notable properties and risks.",
	},
	core.TaskComparison: {
		Task:        core.TaskComparison,
		Instruction: "Compare the groups the question names using the per-layer aggregates, and point out the largest differences.",
	},
	core.TaskProximity: {
		Task:        core.TaskProximity,
		Instruction: "Describe the voxels near the reference voxel and how their properties differ from it.",
	},
	core.TaskVisualization: {
		Task:        core.TaskVisualization,
		Instruction: "Select the voxels to highlight and say briefly why each was chosen. Every selected voxel must appear in voxel_ids.",
	},
}

// For returns the template of task.
func For(task core.TaskType) (Template, error) {
	t, ok := templates[task]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}
	return t, nil
}

// Assemble renders the prompt for task.
func Assemble(ctx core.Context, task core.TaskType, query string) (core.Prompt, error) {
	t, err := For(task)
	if err != nil {
		return core.Prompt{}, err
	}
	return t.Render(ctx, query), nil
}

// Correction extends p with an instruction to answer again citing only
// validIDs, naming the unknownIDs the previous answer invented.
func Correction(p core.Prompt, validIDs, unknownIDs []string) core.Prompt {
	var b strings.Builder
	b.WriteString(p.User)
	b.WriteString("\n\nCorrection: your previous answer cited voxel ids that are not in the Context: ")
	b.WriteString(strings.Join(unknownIDs, ", "))
	b.WriteString(".\nAnswer again. The only voxel ids you may cite are: ")
	if len(validIDs) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(strings.Join(validIDs, ", "))
	}
	b.WriteString(".\n")
	b.WriteString(RefusalRule)
	b.WriteString("\n")
	b.WriteString(OutputContract)

	return core.Prompt{Task: p.Task, System: p.System, User: b.String()}
}
