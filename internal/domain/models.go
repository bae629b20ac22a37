package domain

// ModelOption describes a selectable model.
type ModelOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// ModelOptions is the catalogue offered to users.
var ModelOptions = []ModelOption{
	{ID: "gpt-5.2", Label: "GPT-5.2", Description: "New flagship standard; highly conversational with adaptive tone."},
	{ID: "o4-mini", Label: "OpenAI o4 Mini", Description: "Ultra-fast reasoning for high-volume tasks."},
	{ID: "gpt-5.1-codex-max", Label: "GPT-5.1 Codex Max", Description: "Frontier agentic model built for project-scale coding."},
	{ID: "gemini-3-flash-preview", Label: "Gemini 3 Flash", Description: "Google's new default; PhD-level reasoning at lightning speed."},
	{ID: "gemini-3-pro-preview", Label: "Gemini 3 Pro", Description: "Most intelligent multimodal model for advanced math and logic."},
	{ID: "gemini-2.5-flash", Label: "Gemini 2.5 Flash", Description: "Stable legacy model for high-throughput agentic workflows."},
	{ID: "mistral-large-3", Label: "Mistral Large 3", Description: "Flagship sparse MoE model with 256k context."},
	{ID: "ministral-3-14b", Label: "Ministral 3 (14B)", Description: "Best-in-class intelligence for edge and local deployment."},
	{ID: "magistral-medium-1.2", Label: "Magistral Medium", Description: "Specialized model for transparent, multilingual reasoning."},
	{ID: "devstral-2", Label: "Devstral 2", Description: "Frontier code agent model for complex software engineering."},
}

// DefaultModelID is the model selected when configuration names none.
const DefaultModelID = "mistral-large-3"

// FindModel looks up a catalogue entry by id.
func FindModel(id string) (ModelOption, bool) {
	for _, m := range ModelOptions {
		if m.ID == id {
			return m, true
		}
	}
	return ModelOption{}, false
}
