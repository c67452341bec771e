package assets

import (
	"strings"
	"sync"
)

// Store holds tokens, collectibles and collectible contracts partitioned by
// (account, network) and projects the active scope. All methods are safe for
// concurrent use. Subscribers receive the full new State after every
// mutation.
type Store struct {
	mu sync.RWMutex

	account string
	network string

	tokens       map[string]map[string][]Token
	collectibles map[string]map[string][]Collectible
	contracts    map[string]map[string][]Contract

	subs    map[int]func(State)
	nextSub int
}

// NewStore returns an empty Store with no active scope.
func NewStore() *Store {
	return &Store{
		tokens:       make(map[string]map[string][]Token),
		collectibles: make(map[string]map[string][]Collectible),
		contracts:    make(map[string]map[string][]Contract),
		subs:         make(map[int]func(State)),
	}
}

// accKey normalizes the account map key so lookups are case-insensitive.
func accKey(account string) string {
	return strings.ToLower(account)
}

// SetActiveScope selects the (account, network) whose entities the
// current-view getters project. It recomputes the projection only, the
// underlying per-scope maps are not touched.
func (s *Store) SetActiveScope(account, network string) {
	s.mu.Lock()
	s.account, s.network = accKey(account), network
	state, subs := s.snapshot()
	s.mu.Unlock()
	emit(subs, state)
}

// ActiveScope returns the currently projected (account, network).
func (s *Store) ActiveScope() (account, network string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.account, s.network
}

// UpsertCollectibles merges items into the scope by index key: an item whose
// key is already stored replaces that entry in place, new keys are appended
// in order. Items with a zero balance are not stored.
func (s *Store) UpsertCollectibles(account, network string, items []Collectible) {
	s.mu.Lock()
	cur := s.collectibles[accKey(account)][network]
	for _, it := range items {
		if it.Balance != nil && it.Balance.Sign() == 0 {
			continue
		}
		replaced := false
		for i := range cur {
			if cur[i].Key() == it.Key() {
				cur[i] = it
				replaced = true

				break
			}
		}
		if !replaced {
			cur = append(cur, it)
		}
	}
	s.setCollectibles(accKey(account), network, cur)
	state, subs := s.snapshot()
	s.mu.Unlock()
	emit(subs, state)
}

// ReplaceCollectibles installs items as the scope's full collectible set,
// dropping whatever was stored before. Zero-balance items are filtered out.
func (s *Store) ReplaceCollectibles(account, network string, items []Collectible) {
	kept := make([]Collectible, 0, len(items))
	for _, it := range items {
		if it.Balance != nil && it.Balance.Sign() == 0 {
			continue
		}
		kept = append(kept, it)
	}

	s.mu.Lock()
	s.setCollectibles(accKey(account), network, kept)
	state, subs := s.snapshot()
	s.mu.Unlock()
	emit(subs, state)
}

// RemoveCollectible drops the entry matching (address, tokenID) from the
// scope. It reports whether an entry was removed.
func (s *Store) RemoveCollectible(account, network, address, tokenID string) bool {
	key := Collectible{Address: address, TokenID: tokenID}.Key()

	s.mu.Lock()
	cur := s.collectibles[accKey(account)][network]
	removed := false
	for i := range cur {
		if cur[i].Key() == key {
			cur = append(cur[:i], cur[i+1:]...)
			removed = true

			break
		}
	}
	if removed {
		s.setCollectibles(accKey(account), network, cur)
	}
	state, subs := s.snapshot()
	s.mu.Unlock()
	if removed {
		emit(subs, state)
	}

	return removed
}

// UpsertContracts merges contracts into the scope by checksummed address.
// Stored contracts are never pruned by omission, only replaced by key.
func (s *Store) UpsertContracts(account, network string, items []Contract) {
	s.mu.Lock()
	cur := s.contracts[accKey(account)][network]
	for _, it := range items {
		it.Address = ChecksumAddress(it.Address)
		replaced := false
		for i := range cur {
			if cur[i].Address == it.Address {
				cur[i] = it
				replaced = true

				break
			}
		}
		if !replaced {
			cur = append(cur, it)
		}
	}
	s.setContracts(accKey(account), network, cur)
	state, subs := s.snapshot()
	s.mu.Unlock()
	emit(subs, state)
}

// UpsertTokens merges fungible tokens into the scope by checksummed address.
func (s *Store) UpsertTokens(account, network string, items []Token) {
	s.mu.Lock()
	cur := s.tokens[accKey(account)][network]
	for _, it := range items {
		it.Address = ChecksumAddress(it.Address)
		replaced := false
		for i := range cur {
			if cur[i].Address == it.Address {
				cur[i] = it
				replaced = true

				break
			}
		}
		if !replaced {
			cur = append(cur, it)
		}
	}
	s.setTokens(accKey(account), network, cur)
	state, subs := s.snapshot()
	s.mu.Unlock()
	emit(subs, state)
}

// Collectibles returns a copy of the scope's collectibles in stored order.
func (s *Store) Collectibles(account, network string) []Collectible {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return CloneCollectibles(s.collectibles[accKey(account)][network])
}

// Contracts returns a copy of the scope's collectible contracts.
func (s *Store) Contracts(account, network string) []Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Contract(nil), s.contracts[accKey(account)][network]...)
}

// Tokens returns a copy of the scope's fungible tokens.
func (s *Store) Tokens(account, network string) []Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Token(nil), s.tokens[accKey(account)][network]...)
}

// State returns a snapshot of the whole store including the active-scope
// projection.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, _ := s.snapshot()

	return state
}

// Subscribe registers fn to be called with the full new State after every
// mutation. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// setCollectibles stores the scope's list, allocating the maps when needed.
// Callers must hold the write lock.
func (s *Store) setCollectibles(account, network string, items []Collectible) {
	if s.collectibles[account] == nil {
		s.collectibles[account] = make(map[string][]Collectible)
	}
	s.collectibles[account][network] = items
}

func (s *Store) setContracts(account, network string, items []Contract) {
	if s.contracts[account] == nil {
		s.contracts[account] = make(map[string][]Contract)
	}
	s.contracts[account][network] = items
}

func (s *Store) setTokens(account, network string, items []Token) {
	if s.tokens[account] == nil {
		s.tokens[account] = make(map[string][]Token)
	}
	s.tokens[account][network] = items
}

// snapshot builds a State copy and the subscriber list. Callers must hold at
// least the read lock.
func (s *Store) snapshot() (State, []func(State)) {
	st := State{
		AllTokens:       make(map[string]map[string][]Token, len(s.tokens)),
		AllCollectibles: make(map[string]map[string][]Collectible, len(s.collectibles)),
		AllContracts:    make(map[string]map[string][]Contract, len(s.contracts)),
	}
	for acc, nets := range s.tokens {
		st.AllTokens[acc] = make(map[string][]Token, len(nets))
		for net, items := range nets {
			st.AllTokens[acc][net] = append([]Token(nil), items...)
		}
	}
	for acc, nets := range s.collectibles {
		st.AllCollectibles[acc] = make(map[string][]Collectible, len(nets))
		for net, items := range nets {
			st.AllCollectibles[acc][net] = CloneCollectibles(items)
		}
	}
	for acc, nets := range s.contracts {
		st.AllContracts[acc] = make(map[string][]Contract, len(nets))
		for net, items := range nets {
			st.AllContracts[acc][net] = append([]Contract(nil), items...)
		}
	}
	st.Tokens = st.AllTokens[s.account][s.network]
	st.Collectibles = st.AllCollectibles[s.account][s.network]
	st.Contracts = st.AllContracts[s.account][s.network]

	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}

	return st, subs
}

// emit calls the subscribers outside the store lock.
func emit(subs []func(State), state State) {
	for _, fn := range subs {
		fn(state)
	}
}
