package routing

import (
	"fmt"

	"github.com/aspendos/council/internal/config"
	"github.com/aspendos/council/internal/models"
)

// Resolver turns seat tags and model IDs into ordered attempt lists
// using the static configuration. It holds no mutable state.
type Resolver struct {
	cfg *config.Config
}

func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// SeatChain returns the ordered attempt list for a seat: the primary
// model followed by its configured fallbacks. Config validation has
// already guaranteed every referenced model exists in the catalog and
// that adjacent entries differ in vendor.
func (r *Resolver) SeatChain(seat models.Seat) ([]ModelRef, error) {
	sc, ok := r.cfg.Seat(seat)
	if !ok {
		return nil, fmt.Errorf("unknown seat %q", seat)
	}

	ids := append([]string{sc.Primary}, sc.Fallbacks...)
	refs := make([]ModelRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.ref(id))
	}
	return refs, nil
}

// Chain returns the attempt list for an explicitly requested model.
// The requested model leads; the seat-independent default fallbacks
// follow, skipping any entry that repeats the requested model.
func (r *Resolver) Chain(modelID string) []ModelRef {
	refs := []ModelRef{r.ref(modelID)}
	for _, id := range []string{r.cfg.Routing.DefaultModel, r.cfg.Routing.BackupModel} {
		if id != modelID {
			refs = append(refs, r.ref(id))
		}
	}
	return refs
}

func (r *Resolver) ref(id string) ModelRef {
	ref := ModelRef{ID: id, Vendor: config.Vendor(id)}
	if mc, ok := r.cfg.Model(id); ok {
		ref.ContextWindow = mc.ContextWindow
	}
	return ref
}
