package rankmaniac

import (
	"bytes"
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/anatomi/rankmaniac/internal/pkg/rmstore"
)

// outputPoller reads and clears locations inside one tenant namespace.
type outputPoller struct {
	store  rmstore.ObjectStore
	tenant string
}

// key maps a tenant relative location to its object key, 'tenant/location'.
func (p *outputPoller) key(location string) string {
	return p.tenant + "/" + location
}

// uri returns the cluster visible address of a tenant relative location.
func (p *outputPoller) uri(location string) string {
	return p.store.URI(p.key(location))
}

// firstChunk returns the first chunk of the object at location. A missing
// object reads as empty.
func (p *outputPoller) firstChunk(ctx context.Context, location string) ([]byte, error) {
	chunk, err := p.store.FirstChunk(ctx, p.key(location))
	if errors.Is(err, rmstore.ErrObjectNotFound) {
		log.Warnf("expected output %s is missing", p.key(location))
		return []byte{}, nil
	}
	return chunk, err
}

// deleteByPrefix removes every object under prefix in the tenant namespace.
// An empty prefix clears the whole namespace.
func (p *outputPoller) deleteByPrefix(ctx context.Context, prefix string) error {
	objects, err := p.store.ListByPrefix(ctx, p.key(prefix))
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return nil
	}
	log.Debugf("deleting %d objects under %s", len(objects), p.key(prefix))
	return p.store.DeleteAll(ctx, objects)
}

func isTerminal(chunk []byte) bool {
	return bytes.HasPrefix(chunk, []byte(terminalMarker))
}
