package match

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ernie/arena/internal/domain"
	"github.com/google/uuid"
)

var (
	partyBlocks = []string{"Stone", "Iron", "Gold", "Diamond", "Emerald", "Lapis", "Redstone", "Coal"}
	partyMobs   = []string{"Creepers", "Zombies", "Skeletons", "Spiders", "Endermen", "Chickens", "Cows", "Pigs"}
)

// partyNamer hands out "The <Block> <Mob>" names, avoiding repeats within
// a match until the combinations run out.
type partyNamer struct {
	rng  *rand.Rand
	used map[string]bool
}

func newPartyNamer(seed int64) *partyNamer {
	return &partyNamer{rng: rand.New(rand.NewSource(seed)), used: make(map[string]bool)}
}

func (n *partyNamer) reset() {
	n.used = make(map[string]bool)
}

func (n *partyNamer) next() string {
	total := len(partyBlocks) * len(partyMobs)
	for attempt := 0; attempt < total; attempt++ {
		name := fmt.Sprintf("The %s %s", partyBlocks[n.rng.Intn(len(partyBlocks))], partyMobs[n.rng.Intn(len(partyMobs))])
		if !n.used[name] {
			n.used[name] = true
			return name
		}
	}
	// Every combination taken: suffix with a counter
	name := fmt.Sprintf("The %s %s %d", partyBlocks[n.rng.Intn(len(partyBlocks))], partyMobs[n.rng.Intn(len(partyMobs))], len(n.used)+1)
	n.used[name] = true
	return name
}

func (n *partyNamer) party(matchID int64, now time.Time) domain.Party {
	return domain.Party{
		ID:        uuid.New(),
		MatchID:   matchID,
		Name:      n.next(),
		CreatedAt: now,
	}
}
