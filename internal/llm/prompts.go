package llm

import "github.com/hb-chen/mkbi/internal/skill"

// Separator joins the user request and the Interpreter draft in the
// Fabricator prompt. Existing skill histories depend on it byte for byte.
const Separator = " [KCR] "

const (
	StageInterpreter = "interpreter"
	StageFabricator  = "fabricator"
)

// UserMessage wraps content as a single user turn.
func UserMessage(content string) skill.Message {
	return skill.Message{Role: "user", Content: content}
}

// FabricatorPrompt builds the Fabricator's user message from the original
// request and the Interpreter's full response.
func FabricatorPrompt(request, draft string) string {
	return request + Separator + draft
}
