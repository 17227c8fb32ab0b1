package models

// PhraseWrapper is one generated phrase suggestion.
type PhraseWrapper struct {
	Phrase          string `json:"phrase"`
	Translation     string `json:"translation"`
	Transliteration string `json:"transliteration"`
}

// Valid reports whether all three fields are non-empty. A generation
// result is accepted only if every wrapper in it is valid.
func (p PhraseWrapper) Valid() bool {
	return p.Phrase != "" && p.Translation != "" && p.Transliteration != ""
}

// ChatMessage is one role-tagged turn of the generation conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
