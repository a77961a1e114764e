// Package txpool implements the validated staging area for multi-transaction
// batches described in spec §4.8: admission with structural and signature
// checks, deduplication by digest, sender indexing, relational persistence,
// and aging.
//
// Grounded on EZ_Transaction_Pool/TransactionPool.py for the admission
// pipeline and schema, and on
// domain/miningmanager/mempool/transactions_pool.go for the "single lock,
// unexported non-locking helpers called while the lock is held" idiom that
// stands in for the spec's reentrant mutex (Go has no stdlib reentrant
// mutex primitive).
package txpool

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ezchain/ezchain-core/cryptoutil"
	"github.com/ezchain/ezchain-core/kind"
	"github.com/ezchain/ezchain-core/logs"
	"github.com/ezchain/ezchain-core/multitx"
)

// Stats holds the pool's cumulative admission counters.
type Stats struct {
	TotalReceived   uint64
	ValidReceived   uint64
	InvalidReceived uint64
	Duplicates      uint64
}

type entry struct {
	digest     string
	batch      *multitx.MultiTransaction
	processed  bool
	receivedAt time.Time
}

// Pool is the transaction pool's in-memory state plus its backing store.
// All exported methods acquire mu for their full duration; methods with a
// "Locked" suffix assume the caller already holds it.
type Pool struct {
	mu sync.Mutex

	db          *gorm.DB
	order       []string
	byDigest    map[string]*entry
	bySender    map[string][]string
	stats       Stats
	maxEntryAge time.Duration
	log         *logs.Logger
}

// Open opens (creating if necessary) the SQLite-backed pool at dbPath,
// migrates its schema, and rehydrates in-memory state from any
// previously-persisted, not-yet-processed entries.
func Open(dbPath string, maxEntryAge time.Duration) (*Pool, error) {
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, kind.Wrap(kind.StorageFailure, err, "txpool: open database")
	}
	if err := db.AutoMigrate(&dbMultiTransaction{}, &dbValidationResult{}).Error; err != nil {
		return nil, kind.Wrap(kind.StorageFailure, err, "txpool: migrate schema")
	}

	p := &Pool{
		db:          db,
		byDigest:    make(map[string]*entry),
		bySender:    make(map[string][]string),
		maxEntryAge: maxEntryAge,
		log:         logs.Get(logs.Pool),
	}
	if err := p.rehydrate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) rehydrate() error {
	var rows []dbMultiTransaction
	if err := p.db.Where("processed = ?", false).Order("id").Find(&rows).Error; err != nil {
		return kind.Wrap(kind.StorageFailure, err, "txpool: rehydrate")
	}
	for _, row := range rows {
		batch, err := decodeBatch(row.EncodedBlob)
		if err != nil {
			p.log.Warnf("skipping unreadable pool row digest=%s: %v", row.Digest, err)
			p.log.Dumpf("unreadable pool row", row)
			continue
		}
		e := &entry{digest: row.Digest, batch: batch, processed: row.Processed, receivedAt: time.Unix(row.ValidationTime, 0)}
		p.order = append(p.order, row.Digest)
		p.byDigest[row.Digest] = e
		p.bySender[row.Sender] = append(p.bySender[row.Sender], row.Digest)
	}
	return nil
}

// Close releases the pool's database handle.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.db.Close(); err != nil {
		return kind.Wrap(kind.StorageFailure, err, "txpool: close database")
	}
	return nil
}

// Add admits batch into the pool per spec §4.8's pipeline. It returns
// (accepted, message) describing the outcome; err is reserved for
// infrastructure failures (storage), never for rejection — rejections are
// reported through the boolean/message pair and reflected in stats.
func (p *Pool) Add(batch *multitx.MultiTransaction, pub *cryptoutil.PublicKey) (accepted bool, message string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.TotalReceived++

	if verr := batch.Validate(); verr != nil {
		p.stats.InvalidReceived++
		p.recordValidationLocked("", "structural", false, verr.Error())
		return false, verr.Error(), nil
	}

	if !batch.HasDigest {
		if serr := batch.SetDigest(); serr != nil {
			return false, "", serr
		}
	}
	digestHex := hex.EncodeToString(batch.Digest[:])

	if _, exists := p.byDigest[digestHex]; exists {
		p.stats.Duplicates++
		p.recordValidationLocked(digestHex, "duplicate", false, "digest already present in pool")
		return false, "duplicate batch digest", nil
	}

	if pub != nil {
		if !batch.VerifyBatch(pub) {
			p.stats.InvalidReceived++
			p.recordValidationLocked(digestHex, "signature", false, "aggregate signature invalid")
			return false, "aggregate signature invalid", nil
		}
		for _, tx := range batch.Txs {
			if !tx.Verify(pub) {
				p.stats.InvalidReceived++
				p.recordValidationLocked(digestHex, "signature", false, "child signature invalid")
				return false, "child signature invalid", nil
			}
		}
	} else if len(batch.Signature) == 0 {
		p.stats.InvalidReceived++
		p.recordValidationLocked(digestHex, "signature", false, "signature required")
		return false, "signature required", nil
	}

	blob, eerr := encodeBatch(batch)
	if eerr != nil {
		return false, "", eerr
	}
	now := time.Now()
	row := dbMultiTransaction{
		Digest:         digestHex,
		Sender:         batch.Sender,
		SenderID:       batch.Sender,
		Timestamp:      batch.Timestamp,
		SignatureHex:   hex.EncodeToString(batch.Signature),
		EncodedBlob:    blob,
		IsValid:        true,
		ValidationTime: now.Unix(),
		Processed:      false,
	}
	if cerr := p.db.Create(&row).Error; cerr != nil {
		return false, "", kind.Wrap(kind.StorageFailure, cerr, "txpool: persist batch")
	}
	p.recordValidationLocked(digestHex, "admission", true, "")

	p.order = append(p.order, digestHex)
	p.byDigest[digestHex] = &entry{digest: digestHex, batch: batch, receivedAt: now}
	p.bySender[batch.Sender] = append(p.bySender[batch.Sender], digestHex)
	p.stats.ValidReceived++
	return true, "", nil
}

func (p *Pool) recordValidationLocked(digest, validationType string, valid bool, errMessage string) {
	row := dbValidationResult{
		Digest:         digest,
		ValidationType: validationType,
		IsValid:        valid,
		ErrorMessage:   errMessage,
		ValidationTime: time.Now().Unix(),
	}
	if err := p.db.Create(&row).Error; err != nil {
		p.log.Warnf("failed to persist validation record: %v", err)
	}
}

// ByDigest looks up a batch by its hex digest.
func (p *Pool) ByDigest(digest string) (*multitx.MultiTransaction, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byDigest[digest]
	if !ok {
		return nil, false
	}
	return e.batch, true
}

// BySender returns every pooled batch from sender, in admission order.
func (p *Pool) BySender(sender string) []*multitx.MultiTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	digests := p.bySender[sender]
	out := make([]*multitx.MultiTransaction, 0, len(digests))
	for _, d := range digests {
		if e, ok := p.byDigest[d]; ok {
			out = append(out, e.batch)
		}
	}
	return out
}

// All returns every pooled batch in admission order.
func (p *Pool) All() []*multitx.MultiTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*multitx.MultiTransaction, 0, len(p.order))
	for _, d := range p.order {
		if e, ok := p.byDigest[d]; ok {
			out = append(out, e.batch)
		}
	}
	return out
}

// Remove unlinks digest from the in-memory list and indexes and marks its
// persisted row processed = true. Reports false if digest was not present.
func (p *Pool) Remove(digest string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(digest, true)
}

// removeLocked must be called with mu held. markProcessed controls whether
// the persisted row is updated (processed = true) or deleted outright
// (used by the aging sweep, which discards rather than marks).
func (p *Pool) removeLocked(digest string, markProcessed bool) (bool, error) {
	e, ok := p.byDigest[digest]
	if !ok {
		return false, nil
	}
	delete(p.byDigest, digest)
	p.order = removeString(p.order, digest)
	p.bySender[e.batch.Sender] = removeString(p.bySender[e.batch.Sender], digest)

	if markProcessed {
		if err := p.db.Model(&dbMultiTransaction{}).Where("digest = ?", digest).
			Update("processed", true).Error; err != nil {
			return false, kind.Wrap(kind.StorageFailure, err, "txpool: mark processed")
		}
	} else {
		if err := p.db.Where("digest = ?", digest).Delete(&dbMultiTransaction{}).Error; err != nil {
			return false, kind.Wrap(kind.StorageFailure, err, "txpool: delete aged row")
		}
	}
	return true, nil
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// AgeSweep removes every entry older than the pool's configured
// max-entry-age that is still unprocessed, from both memory and storage,
// per spec §4.8's aging task.
func (p *Pool) AgeSweep(now time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var stale []string
	for _, d := range p.order {
		e, ok := p.byDigest[d]
		if !ok || e.processed {
			continue
		}
		if now.Sub(e.receivedAt) > p.maxEntryAge {
			stale = append(stale, d)
		}
	}
	removed := 0
	for _, d := range stale {
		ok, err := p.removeLocked(d, false)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Stats returns a snapshot of the pool's cumulative counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Len returns the number of batches currently resident in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}
