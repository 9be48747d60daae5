package reconcile

import (
	"context"
	"sort"
	"time"
)

// SaveStatus describes the state of one save mapping without touching it.
type SaveStatus struct {
	Identity string
	Local    FileState
	Remote   FileState
	Action   Action
}

// Inspect lists both sides of a game and reports what a reconciliation pass
// would do for every save, sorted by identity. It never writes.
func Inspect(ctx context.Context, game GamePlan, modTimeWindow time.Duration) ([]SaveStatus, error) {
	metrics := &NoopMetrics{}
	localSaves, err := listSaves(game, game.LocalDir, metrics)
	if err != nil {
		return nil, err
	}
	remoteSaves, err := listSaves(game, game.RemoteDir, metrics)
	if err != nil {
		return nil, err
	}

	localByID := indexByIdentity(localSaves)
	remoteByID := indexByIdentity(remoteSaves)

	identities := make(map[string]struct{}, len(localByID)+len(remoteByID))
	for id := range localByID {
		identities[id] = struct{}{}
	}
	for id := range remoteByID {
		identities[id] = struct{}{}
	}

	statuses := make([]SaveStatus, 0, len(identities))
	for id := range identities {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		local := localByID[id].state
		remote := remoteByID[id].state
		statuses = append(statuses, SaveStatus{
			Identity: id,
			Local:    local,
			Remote:   remote,
			Action:   Decide(local, remote, modTimeWindow),
		})
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Identity < statuses[j].Identity })
	return statuses, nil
}
