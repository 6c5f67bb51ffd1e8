package zone

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mirelon/adnsd/internal/dnserrors"
	"github.com/mirelon/adnsd/internal/message"
	"github.com/mirelon/adnsd/internal/protocol"
)

// zoneFileSuffix identifies the master files a directory scan picks up
// (spec.md §4.14 supplement: one file per zone, named "<zone>.zone").
const zoneFileSuffix = ".zone"

// Result is the outcome of a Store.Lookup: enough information for the
// server loop to choose between NOERROR, an empty answer, and NXDOMAIN.
type Result struct {
	// ZoneFound is true if this class has any zone data loaded at all.
	ZoneFound bool
	// NameExists is true if the queried name has a node in the trie,
	// whether or not it carries a record of the requested type.
	NameExists bool
	// Records are the RRset matching the query's TYPE, or every RRset at
	// the name if the query TYPE is ANY.
	Records []message.ResourceRecord
}

// Store maps each class to its own domain trie, built from master files.
// Readers (queries) take a shared lock; Reload takes an exclusive lock
// only for the instant it swaps in a freshly parsed set of tries, so a
// query never observes a half-built zone.
type Store struct {
	mu      sync.RWMutex
	byClass map[protocol.Class]*domainTree
	logger  *zap.Logger
}

// NewStore creates an empty store. Call Reload to populate it from a
// zones directory before serving queries.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{byClass: make(map[protocol.Class]*domainTree), logger: logger}
}

// Lookup answers a single (class, name, qtype) query against the
// currently loaded zone data.
func (s *Store) Lookup(class protocol.Class, name message.Name, qtype protocol.Type) Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.byClass[class]
	if !ok {
		return Result{}
	}

	records, exists := tree.lookup(name)
	if !exists {
		return Result{ZoneFound: true}
	}
	if qtype == protocol.TypeANY {
		var all []message.ResourceRecord
		for _, typ := range sortedTypes(records) {
			all = append(all, records[typ]...)
		}
		return Result{ZoneFound: true, NameExists: true, Records: all}
	}
	return Result{ZoneFound: true, NameExists: true, Records: records[qtype]}
}

// Reload scans dir for "<zone>.zone" master files and atomically replaces
// the store's contents with what it finds. A zone file that fails to
// parse is skipped — not partially installed — while the rest of the
// directory still loads; the returned error aggregates every zone file
// that failed (go.uber.org/multierr), for the caller to log. A directory
// that cannot be read at all is a single Zone error and the store is left
// unchanged.
func (s *Store) Reload(dir string) error {
	byClass, err := loadZonesDir(dir, s.logger)
	if byClass == nil {
		return err
	}
	s.mu.Lock()
	s.byClass = byClass
	s.mu.Unlock()
	return err
}

func loadZonesDir(dir string, logger *zap.Logger) (map[protocol.Class]*domainTree, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &dnserrors.Zone{Operation: "read zones directory", Zone: dir, Message: err.Error(), Err: err}
	}

	byClass := make(map[protocol.Class]*domainTree)
	var errs error

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), zoneFileSuffix) {
			continue
		}
		zoneName := strings.TrimSuffix(entry.Name(), zoneFileSuffix)
		path := filepath.Join(dir, entry.Name())

		records, err := parseMasterFile(path, zoneName)
		if err != nil {
			errs = multierr.Append(errs, err)
			logger.Warn("skipping zone that failed to load",
				zap.String("zone", zoneName), zap.Error(err))
			continue
		}

		for class, recs := range records {
			tree := byClass[class]
			if tree == nil {
				tree = newDomainTree()
				byClass[class] = tree
			}
			for _, rr := range recs {
				tree.insert(rr.Name, rr)
			}
		}
	}

	return byClass, errs
}
