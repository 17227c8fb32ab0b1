package phrases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/phraser/location-server/internal/models"
	"github.com/phraser/location-server/internal/providers/llm"
	"github.com/phraser/location-server/internal/utils"
)

const masterPrompt = `You are generating concise, polite, and practical phrases a user can use based on their location, address, name, and category of the place (e.g., restaurant, café, or shop). If not specified they should be Korean.

- Focus on phrases relevant to typical actions for the category (e.g., ordering food in a restaurant, asking for the menu in a café, or inquiring about a product in a shop).
- Use polite language suitable for the cultural context (e.g., formal expressions for Korean settings).

Return 3 phrases in JSON format:
{
  "phrase": "The English version of the phrase.",
  "translation": "The translation phrase in the target language.",
  "transliteration": "The pronunciation guide for the phrase."
}
If transliteration is not applicable, return "N/A".

Examples:
- Input: Name: "Cafe XYZ", Category: "카페"
- Output:
{
  "phrase": "Can I have an Americano?",
  "translation": "아메리카노 하나 주세요.",
  "transliteration": "Amerikano hana juseyo."
}
- Input: Name: "Restaurant ABC", Category: "음식점"
- Output:
{
  "phrase": "Can I see the menu?",
  "translation": "메뉴를 보여 주시겠어요?",
  "transliteration": "Menyureul boyeo jusigeseoyo."
}
Remember to return 3 phrases as structured JSON data.`

// maxConversationTurns caps the non-system history carried between
// calls so the upstream payload stays bounded.
const maxConversationTurns = 12

// Generator wraps the completion provider: it builds the conversation,
// sends it, and parses the structured phrase response.
type Generator struct {
	provider llm.Provider
	log      *logrus.Logger
}

func NewGenerator(provider llm.Provider, log *logrus.Logger) *Generator {
	return &Generator{provider: provider, log: log}
}

// SeedConversation returns a fresh conversation holding only the system
// instruction.
func SeedConversation() []models.ChatMessage {
	return []models.ChatMessage{{Role: models.RoleSystem, Content: masterPrompt}}
}

// Generate appends a user turn describing the place to the conversation,
// calls the provider, and returns the validated phrases together with the
// conversation including the assistant's reply. The input slice is not
// modified.
func (g *Generator) Generate(ctx context.Context, conversation []models.ChatMessage, place *models.Place) ([]models.PhraseWrapper, []models.ChatMessage, error) {
	const op = "Generator.Generate"

	if len(conversation) == 0 {
		conversation = SeedConversation()
	}

	address := place.Address
	if address == "" {
		address = "N/A"
	}
	msgs := append(append([]models.ChatMessage(nil), conversation...), models.ChatMessage{
		Role:    models.RoleUser,
		Content: fmt.Sprintf("Address: %s, Name: %s, Category: %s", address, place.Name, place.Category),
	})

	reply, err := g.provider.Complete(ctx, msgs)
	if err != nil {
		return nil, conversation, err
	}

	wrappers, err := ParsePhrases(reply)
	if err != nil {
		g.log.WithError(err).WithField("raw", reply).Warn("generation output rejected")
		return nil, conversation, err
	}

	msgs = append(msgs, models.ChatMessage{Role: models.RoleAssistant, Content: reply})
	return wrappers, trimConversation(msgs), nil
}

// ParsePhrases strips an optional markdown code fence, decodes the JSON
// array, and validates every wrapper.
func ParsePhrases(raw string) ([]models.PhraseWrapper, error) {
	const op = "ParsePhrases"

	cleaned := stripCodeFence(raw)

	var wrappers []models.PhraseWrapper
	if err := json.Unmarshal([]byte(cleaned), &wrappers); err != nil {
		return nil, utils.E(utils.CodeMalformed, op, "generation output is not a JSON phrase array", err)
	}
	if len(wrappers) == 0 {
		return nil, utils.E(utils.CodeMalformed, op, "generation output is empty", nil)
	}
	for _, w := range wrappers {
		if !w.Valid() {
			return nil, utils.E(utils.CodeMalformed, op, "phrase entry has empty fields", nil)
		}
	}
	return wrappers, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop language tag, e.g. ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// trimConversation keeps the system seed plus the most recent turns.
func trimConversation(msgs []models.ChatMessage) []models.ChatMessage {
	if len(msgs) == 0 {
		return msgs
	}
	var system []models.ChatMessage
	rest := msgs
	if msgs[0].Role == models.RoleSystem {
		system = msgs[:1]
		rest = msgs[1:]
	}
	if len(rest) > maxConversationTurns {
		rest = rest[len(rest)-maxConversationTurns:]
	}
	return append(append([]models.ChatMessage(nil), system...), rest...)
}
