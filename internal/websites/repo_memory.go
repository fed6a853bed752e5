package websites

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores websites in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Website
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Website)}
}

// Create stores the website.
func (r *MemoryRepo) Create(ctx context.Context, site Website) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[site.ID] = site
	return nil
}

// GetByID returns a website only when it belongs to the given owner.
func (r *MemoryRepo) GetByID(ctx context.Context, websiteID, ownerID string) (Website, error) {
	if err := ctx.Err(); err != nil {
		return Website{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	site, ok := r.byID[websiteID]
	if !ok || site.OwnerID != ownerID {
		return Website{}, ErrNotFound
	}
	return site, nil
}

// ListByOwner returns an owner's websites, newest first.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string) ([]Website, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sites []Website
	for _, site := range r.byID {
		if site.OwnerID == ownerID {
			sites = append(sites, site)
		}
	}
	sort.Slice(sites, func(i, j int) bool {
		return sites[i].CreatedAt.After(sites[j].CreatedAt)
	})
	return sites, nil
}

// Delete removes a website owned by the given owner.
func (r *MemoryRepo) Delete(ctx context.Context, websiteID, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	site, ok := r.byID[websiteID]
	if !ok || site.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.byID, websiteID)
	return nil
}

// ClaimGuest reassigns a guest's websites to an authenticated owner and
// returns the number of migrated records.
func (r *MemoryRepo) ClaimGuest(ctx context.Context, guestOwnerID, newOwnerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	migrated := 0
	for id, site := range r.byID {
		if site.OwnerID == guestOwnerID {
			site.OwnerID = newOwnerID
			r.byID[id] = site
			migrated++
		}
	}
	return migrated, nil
}

// DeleteByOwner removes all websites for an owner.
func (r *MemoryRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, site := range r.byID {
		if site.OwnerID == ownerID {
			delete(r.byID, id)
		}
	}
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
