package models

import "time"

// Session is the per-client server-side memory of the last resolved place
// and the phrases cached for it. Created lazily on a client's first
// request, mutated on every subsequent one, and removed either when the
// client leaves all known places or by the stale-entry reaper.
type Session struct {
	ClientID string `json:"client_id"`

	LastPlaceKey  string          `json:"last_place_key,omitempty"`
	CachedPhrases []PhraseWrapper `json:"cached_phrases,omitempty"`

	LastRequestAt       time.Time  `json:"last_request_at"`
	PendingGenerationAt *time.Time `json:"pending_generation_at,omitempty"`

	// Conversation carries the generation context across calls for this
	// client. Reset to the system seed when the client requests mode=new.
	Conversation []ChatMessage `json:"conversation,omitempty"`

	// Epoch increments whenever a generation attempt starts. A completion
	// carrying a stale epoch must not write its result back.
	Epoch int64 `json:"epoch"`
}
