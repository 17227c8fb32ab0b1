package phrases

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/phraser/location-server/internal/models"
	"github.com/phraser/location-server/internal/session"
)

// Outcome names the branch the decision procedure took for a request.
type Outcome string

const (
	// OutcomeNotInPlace: no place resolved; the client's cached phrases
	// were cleared.
	OutcomeNotInPlace Outcome = "not_in_place"
	// OutcomeServedCached: repeat visit past the resend window; cached
	// phrases returned.
	OutcomeServedCached Outcome = "served_cached"
	// OutcomeSuppressed: repeat visit inside the resend window; place only.
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeCooldown: generation wanted but the shared cooldown is
	// active; place only.
	OutcomeCooldown Outcome = "cooldown"
	// OutcomeThrottled: this client already has a generation in flight
	// inside the debounce window; place only.
	OutcomeThrottled Outcome = "throttled"
	// OutcomeGenerated: a generation call ran. Phrases are nil when it
	// failed, which is a degraded success, not an error.
	OutcomeGenerated Outcome = "generated"
)

// Request modes.
const (
	ModeNew     = "new"
	ModeAppend  = "append"
	ModeRefresh = "refresh"
)

// Result is what the transport layer turns into a response body.
type Result struct {
	Outcome Outcome
	Place   *models.Place
	Phrases []models.PhraseWrapper // nil unless this call produced something to send
}

// Policy holds the orchestration timing knobs.
type Policy struct {
	Cooldown     time.Duration // shared minimum spacing between generation calls
	Debounce     time.Duration // per-client duplicate-trigger suppression
	ResendWindow time.Duration // quiet time before cached phrases are re-sent

	// AppendBypassesCooldown lets mode=append skip the shared cooldown.
	AppendBypassesCooldown bool
}

// Orchestrator runs the per-request decision procedure and owns all
// session mutation. Requests for the same client are serialized; the
// per-client lock is released while the generation call is in flight,
// with an epoch check guarding the write-back.
type Orchestrator struct {
	store  session.Store
	gen    *Generator
	policy Policy
	log    *logrus.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	cooldownMu       sync.Mutex
	lastGenerationAt time.Time

	clientMu sync.Mutex
	clients  map[string]*clientLock
}

// clientLock serializes requests for one client. Entries are
// reference-counted and dropped from the map once idle, so the map stays
// bounded by the number of in-flight requests regardless of how many
// distinct client IDs callers invent.
type clientLock struct {
	sync.Mutex
	refs int
}

func NewOrchestrator(store session.Store, gen *Generator, policy Policy, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		gen:     gen,
		policy:  policy,
		log:     log,
		Now:     time.Now,
		clients: make(map[string]*clientLock),
	}
}

// Handle runs the decision procedure for one location ping.
// place is nil when the resolver found nothing.
func (o *Orchestrator) Handle(ctx context.Context, clientID string, place *models.Place, mode string) (*Result, error) {
	if mode == "" {
		mode = ModeNew
	}

	lock := o.acquireLock(clientID)
	defer o.releaseLock(clientID, lock)
	lock.Lock()
	now := o.Now()

	// 1. Out of every known place: drop the session so phrases from a
	// previous place cannot leak into a place-less context.
	if place == nil {
		if err := o.store.Delete(ctx, clientID); err != nil {
			lock.Unlock()
			return nil, err
		}
		lock.Unlock()
		return &Result{Outcome: OutcomeNotInPlace}, nil
	}

	placeKey := place.Key()

	sess, err := o.store.GetOrCreate(ctx, clientID, now)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	// 2. Repeat visit to the same place with phrases already cached.
	if len(sess.CachedPhrases) > 0 && sess.LastPlaceKey == placeKey && mode != ModeAppend {
		sinceLast := now.Sub(sess.LastRequestAt)
		sess.LastRequestAt = now
		if err := o.store.Save(ctx, sess); err != nil {
			lock.Unlock()
			return nil, err
		}
		lock.Unlock()

		if sinceLast > o.policy.ResendWindow {
			return &Result{Outcome: OutcomeServedCached, Place: place, Phrases: sess.CachedPhrases}, nil
		}
		return &Result{Outcome: OutcomeSuppressed, Place: place}, nil
	}

	// 3. Generation is wanted. The shared cooldown goes first: the
	// upstream completion API is a rate-limited shared resource.
	honorCooldown := !(mode == ModeAppend && o.policy.AppendBypassesCooldown)
	if honorCooldown && o.cooldownActive(now) {
		sess.LastRequestAt = now
		if err := o.store.Save(ctx, sess); err != nil {
			lock.Unlock()
			return nil, err
		}
		lock.Unlock()
		return &Result{Outcome: OutcomeCooldown, Place: place}, nil
	}

	// 4. Per-client debounce: a generation recorded in flight within
	// the window means this ping is a duplicate. Checked before the
	// cooldown slot is claimed so a duplicate never consumes it.
	if sess.PendingGenerationAt != nil && now.Sub(*sess.PendingGenerationAt) < o.policy.Debounce {
		sess.LastRequestAt = now
		if err := o.store.Save(ctx, sess); err != nil {
			lock.Unlock()
			return nil, err
		}
		lock.Unlock()
		return &Result{Outcome: OutcomeThrottled, Place: place}, nil
	}

	if honorCooldown {
		if !o.tryAcquireCooldown(now) {
			sess.LastRequestAt = now
			if err := o.store.Save(ctx, sess); err != nil {
				lock.Unlock()
				return nil, err
			}
			lock.Unlock()
			return &Result{Outcome: OutcomeCooldown, Place: place}, nil
		}
	} else {
		o.markGeneration(now)
	}

	// 5. Generate. Mark the attempt, release the client lock for the
	// duration of the upstream call, and write back only if the epoch is
	// still ours.
	pending := now
	sess.PendingGenerationAt = &pending
	sess.LastRequestAt = now
	sess.Epoch++
	epoch := sess.Epoch

	conversation := sess.Conversation
	if mode == ModeNew {
		conversation = SeedConversation()
	}

	if err := o.store.Save(ctx, sess); err != nil {
		lock.Unlock()
		return nil, err
	}
	lock.Unlock()

	wrappers, updatedConv, genErr := o.gen.Generate(ctx, conversation, place)

	lock.Lock()
	defer lock.Unlock()

	cur, err := o.store.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if cur == nil || cur.Epoch != epoch {
		// superseded or reaped while we were away; drop the result
		o.log.WithFields(logrus.Fields{
			"client": clientID,
			"place":  placeKey,
		}).Debug("discarding stale generation result")
		return &Result{Outcome: OutcomeGenerated, Place: place}, nil
	}

	cur.PendingGenerationAt = nil
	if genErr != nil {
		if err := o.store.Save(ctx, cur); err != nil {
			return nil, err
		}
		o.log.WithError(genErr).WithFields(logrus.Fields{
			"client": clientID,
			"place":  placeKey,
		}).Warn("phrase generation failed")
		return &Result{Outcome: OutcomeGenerated, Place: place}, nil
	}

	cur.LastPlaceKey = placeKey
	cur.CachedPhrases = wrappers
	cur.Conversation = updatedConv
	if err := o.store.Save(ctx, cur); err != nil {
		return nil, err
	}

	o.log.WithFields(logrus.Fields{
		"client":  clientID,
		"place":   placeKey,
		"phrases": len(wrappers),
	}).Info("phrases generated")

	return &Result{Outcome: OutcomeGenerated, Place: place, Phrases: wrappers}, nil
}

func (o *Orchestrator) cooldownActive(now time.Time) bool {
	o.cooldownMu.Lock()
	defer o.cooldownMu.Unlock()
	return !o.lastGenerationAt.IsZero() && now.Sub(o.lastGenerationAt) < o.policy.Cooldown
}

// tryAcquireCooldown claims the shared generation slot when the cooldown
// has elapsed.
func (o *Orchestrator) tryAcquireCooldown(now time.Time) bool {
	o.cooldownMu.Lock()
	defer o.cooldownMu.Unlock()
	if !o.lastGenerationAt.IsZero() && now.Sub(o.lastGenerationAt) < o.policy.Cooldown {
		return false
	}
	o.lastGenerationAt = now
	return true
}

func (o *Orchestrator) markGeneration(now time.Time) {
	o.cooldownMu.Lock()
	o.lastGenerationAt = now
	o.cooldownMu.Unlock()
}

func (o *Orchestrator) acquireLock(clientID string) *clientLock {
	o.clientMu.Lock()
	defer o.clientMu.Unlock()
	l, ok := o.clients[clientID]
	if !ok {
		l = &clientLock{}
		o.clients[clientID] = l
	}
	l.refs++
	return l
}

func (o *Orchestrator) releaseLock(clientID string, l *clientLock) {
	o.clientMu.Lock()
	defer o.clientMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(o.clients, clientID)
	}
}

// lockCount reports the number of live per-client lock entries.
func (o *Orchestrator) lockCount() int {
	o.clientMu.Lock()
	defer o.clientMu.Unlock()
	return len(o.clients)
}
