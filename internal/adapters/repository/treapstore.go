package repository

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then username ASC. "less" means ranks earlier, so an
// in-order walk yields the standings from first to last. Priorities are
// random, which keeps the tree balanced in expectation regardless of the
// score distribution.

type node struct {
	name  string
	score int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aName) should appear before (bScore, bName).
func less(aScore int, aName string, bScore int, bName string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aName < bName
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n, nn *node) *node {
	if n == nil {
		return nn
	}
	if less(nn.score, nn.name, n.score, n.name) {
		n.left = insert(n.left, nn)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, nn)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, name string, score int) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && name == n.name:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, name, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, name, score)
		}
	case less(score, name, n.score, n.name):
		n.left = deleteNode(n.left, name, score)
	default:
		n.right = deleteNode(n.right, name, score)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes hold a score strictly greater than score.
func countAbove(n *node, score int) int {
	c := 0
	for n != nil {
		if n.score > score {
			c += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return c
}

// collectTopN appends up to limit usernames in rank order.
func collectTopN(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.name)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapStore keeps standings in a size-augmented treap.
type TreapStore struct {
	mu     sync.RWMutex
	root   *node
	byName map[string]model.Standing
	rng    *rand.Rand
	seed   uint64
}

// NewTreapStore constructs an empty treap store.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byName: make(map[string]model.Standing),
		seed:   uint64(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
	return s
}

func normalize(row model.Standing) (model.Standing, bool) {
	row.Username = strings.TrimSpace(row.Username)
	return row, row.Username != ""
}

// Replace swaps the whole table for rows. Rows without a username are
// skipped; a repeated username keeps its last row.
func (s *TreapStore) Replace(ctx context.Context, rows []model.Standing) error {
	byName := make(map[string]model.Standing, len(rows))
	for _, r := range rows {
		if r, ok := normalize(r); ok {
			byName[r.Username] = r
		}
	}

	s.mu.Lock()
	var root *node
	for name, r := range byName {
		root = insert(root, &node{name: name, score: r.TotalScore, prio: s.rng.Uint64(), size: 1})
	}
	s.root = root
	s.byName = byName
	s.mu.Unlock()

	metrics.UpdateStandingsEntries(len(byName))
	return nil
}

// Upsert sets one user's row in O(log n) expected time.
func (s *TreapStore) Upsert(ctx context.Context, row model.Standing) error {
	row, ok := normalize(row)
	if !ok {
		return ErrInvalidRow
	}

	s.mu.Lock()
	if old, exists := s.byName[row.Username]; exists {
		s.root = deleteNode(s.root, old.Username, old.TotalScore)
	}
	s.byName[row.Username] = row
	s.root = insert(s.root, &node{name: row.Username, score: row.TotalScore, prio: s.rng.Uint64(), size: 1})
	count := len(s.byName)
	s.mu.Unlock()

	metrics.UpdateStandingsEntries(count)
	return nil
}

// Rank returns a user's competition rank: one more than the number of
// users with a strictly higher score.
func (s *TreapStore) Rank(ctx context.Context, username string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.byName[username]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{
		Rank:       countAbove(s.root, row.TotalScore) + 1,
		Username:   row.Username,
		TotalScore: row.TotalScore,
		LastRaces:  row.LastRaces,
	}, nil
}

// TopN returns the top n entries in rank order.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, min(n, len(s.byName)))
	collectTopN(s.root, n, &names)

	out := make([]Entry, len(names))
	for i, name := range names {
		row := s.byName[name]
		out[i] = Entry{Username: name, TotalScore: row.TotalScore, LastRaces: row.LastRaces}
	}
	assignRanksWithTies(out)
	return out, nil
}

// Count returns the total number of users.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

// assignRanksWithTies assigns competition ranks to a rank-ordered prefix:
// equal scores share a rank and the next distinct score skips ahead.
func assignRanksWithTies(entries []Entry) {
	for i := range entries {
		if i > 0 && entries[i].TotalScore == entries[i-1].TotalScore {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
