package ballotsim

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/okian/gridpick/internal/adapters/auth"
	"github.com/okian/gridpick/internal/domain/model"
	"github.com/okian/gridpick/internal/domain/registry"
	"github.com/okian/gridpick/pkg/logger"
)

// podium is how many distinct drivers a player picks per session.
const podium = 3

// Generator builds players whose picks follow a Zipf popularity curve, so a
// few drivers collect most of the votes the way a real grid does.
type Generator struct {
	rng     *rand.Rand
	skew    float64
	drivers []string
	quali   []string
	race    []string
}

// NewGenerator creates a generator. The same seed yields the same picks.
func NewGenerator(seed uint64, skew float64) *Generator {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	drivers := registry.Names()
	g := &Generator{rng: rng, skew: skew, drivers: drivers}
	g.quali = g.favourites()
	g.race = g.favourites()
	return g
}

// favourites returns the driver list in a random popularity order.
func (g *Generator) favourites() []string {
	out := make([]string, len(g.drivers))
	for i, j := range g.rng.Perm(len(g.drivers)) {
		out[i] = g.drivers[j]
	}
	return out
}

// pickPodium draws podium distinct drivers from order, favouring the front.
func (g *Generator) pickPodium(order []string) [podium]string {
	var out [podium]string
	zipf := rand.NewZipf(g.rng, g.skew, 1, uint64(len(order)-1))
	taken := make(map[int]struct{}, podium)
	for i := 0; i < podium; {
		idx := int(zipf.Uint64())
		if _, dup := taken[idx]; dup {
			continue
		}
		taken[idx] = struct{}{}
		out[i] = order[idx]
		i++
	}
	return out
}

// Ballot draws one full ballot for raceID.
func (g *Generator) Ballot(raceID int64) model.Ballot {
	q := g.pickPodium(g.quali)
	r := g.pickPodium(g.race)
	return model.Ballot{
		RaceID:  raceID,
		QualiP1: q[0],
		QualiP2: q[1],
		QualiP3: q[2],
		RaceP1:  r[0],
		RaceP2:  r[1],
		RaceP3:  r[2],
	}
}

// Players creates n players with ballots for raceID and session tokens
// signed by v.
func (g *Generator) Players(ctx context.Context, n int, raceID int64, v *auth.Verifier) ([]Player, error) {
	players := make([]Player, n)
	for i := range players {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation cancelled: %w", err)
		}
		p := Player{
			UserID:   uuid.NewString(),
			Username: fmt.Sprintf("sim-%05d", i),
			Ballot:   g.Ballot(raceID),
		}
		p.Ballot.UserID = p.UserID
		token, err := v.Mint(model.Session{UserID: p.UserID, Username: p.Username}, tokenTTL)
		if err != nil {
			return nil, fmt.Errorf("mint token for %s: %w", p.Username, err)
		}
		p.Token = token
		players[i] = p
	}
	logger.Get().Info(ctx, "generated players",
		logger.Int("count", n),
		logger.String("quali_favourite", g.quali[0]),
		logger.String("race_favourite", g.race[0]))
	return players, nil
}
