package batch

import (
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

// TokenTTL is how long a confirmation token stays valid after issuance.
const TokenTTL = 5 * time.Minute

type confirmationToken struct {
	tool    string
	count   int
	expires time.Time
}

// TokenStore holds in-memory, single-use confirmation tokens. Expired tokens
// are swept only at lookup time; there is no background reaper and no
// persistence.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]confirmationToken
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens: make(map[string]confirmationToken),
		ttl:    TokenTTL,
		now:    time.Now,
	}
}

// Issue mints a fresh token bound to one tool and item count.
func (s *TokenStore) Issue(tool string, count int) string {
	id, err := gonanoid.New()
	if err != nil {
		// nanoid only fails when the OS entropy source does; fall back to a
		// timestamp-derived id rather than refusing the batch.
		id = time.Now().UTC().Format("20060102150405.000000000")
	}

	s.mu.Lock()
	s.tokens[id] = confirmationToken{
		tool:    tool,
		count:   count,
		expires: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	log.Info().
		Str("tool", tool).
		Int("items", count).
		Msg("Confirmation token issued")
	return id
}

// Consume validates and spends a token in a single step: expiry sweep,
// lookup, match check, and deletion happen under one lock hold so a token can
// never be accepted twice. The sweep drops every expired token, not just the
// one being consumed, so abandoned batches do not leak entries. A token is
// honored only when present, unexpired, and bound to exactly this tool and
// count; acceptance invalidates it regardless of what the batch later does.
func (s *TokenStore) Consume(id, tool string, count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	swept := 0
	for key, tok := range s.tokens {
		if now.After(tok.expires) {
			delete(s.tokens, key)
			swept++
		}
	}
	if swept > 0 {
		log.Debug().Int("tokens", swept).Msg("Expired confirmation tokens swept")
	}

	tok, ok := s.tokens[id]
	if !ok {
		return false
	}
	if tok.tool != tool || tok.count != count {
		return false
	}

	delete(s.tokens, id)
	return true
}
