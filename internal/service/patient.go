// Package service wires the pipeline: writes run encrypt -> tag -> chain
// append -> storage, reads run fetch -> tag verification -> completeness
// verification -> decryption -> field masking. Verification failures always
// reach the caller as distinct typed errors; tampered rows are excluded from
// the returned set, never silently included.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"secure-ehr-gateway/internal/access"
	"secure-ehr-gateway/internal/audit"
	"secure-ehr-gateway/internal/completeness"
	"secure-ehr-gateway/internal/integrity"
	"secure-ehr-gateway/internal/manifest"
	"secure-ehr-gateway/internal/models"
	"secure-ehr-gateway/internal/sensitive"
	"secure-ehr-gateway/internal/storage"
)

// Filter selects rows for a query. Nil bounds mean "all rows"; with bounds
// set, the backend filters on order-preserving codes over whole covering
// buckets and the exact range is re-applied here after decryption.
type Filter struct {
	WeightMin *float64
	WeightMax *float64
}

// QueryResult is a verified query answer. Records only contains rows that
// passed tag verification; TamperedRowIDs lists the ones that did not.
// Confidence is the omission-detection probability of the completeness check
// that was possible (1 when every touched bucket had a manifest digest).
type QueryResult struct {
	Records        []models.PatientView
	TamperedRowIDs []string
	Confidence     float64
}

// PatientService implements the client-facing operation surface.
type PatientService struct {
	store       storage.RowStore
	signer      *integrity.Signer
	chain       *completeness.Chain
	cipher      *sensitive.Cipher
	encoder     *sensitive.Encoder
	cache       manifest.Cache
	alerts      *audit.Publisher
	bucketWidth float64
}

// NewPatientService assembles the pipeline. alerts may be nil.
func NewPatientService(
	store storage.RowStore,
	signer *integrity.Signer,
	chain *completeness.Chain,
	cipher *sensitive.Cipher,
	encoder *sensitive.Encoder,
	cache manifest.Cache,
	alerts *audit.Publisher,
	bucketWidth float64,
) *PatientService {
	return &PatientService{
		store:       store,
		signer:      signer,
		chain:       chain,
		cipher:      cipher,
		encoder:     encoder,
		cache:       cache,
		alerts:      alerts,
		bucketWidth: bucketWidth,
	}
}

// InsertPatient encrypts, tags and chain-links a new record. Only role H may
// write. The row id is assigned here, before signing, and never reused.
func (s *PatientService) InsertPatient(ctx context.Context, sess access.Session, view models.PatientView) (string, error) {
	if !access.AuthorizeWrite(sess.Role) {
		return "", access.ErrForbidden
	}

	code, err := s.encoder.Encode(view.Weight)
	if err != nil {
		return "", err
	}

	rec := &models.PatientRecord{
		FirstName:     view.FirstName,
		LastName:      view.LastName,
		Height:        view.Height,
		HealthHistory: view.HealthHistory,
		WeightCode:    code,
		Bucket:        s.bucketFor(view.Weight),
	}
	rec.ID = uuid.New().String()
	if err := s.cipher.EncryptRecord(view, rec); err != nil {
		return "", err
	}

	head, count := s.chainState(ctx, rec.Bucket)
	rec.ChainPos = count
	rec.SeqCommitment = s.chain.Link(head, rec.ID)
	rec.IntegrityTag = s.signer.Tag(rec)

	digest := models.BucketDigest{
		Bucket:    rec.Bucket,
		Head:      rec.SeqCommitment,
		Count:     count + 1,
		UpdatedAt: time.Now(),
	}
	if _, err := s.store.InsertRow(ctx, rec, &digest); err != nil {
		return "", err
	}
	// The trusted manifest copy is refreshed only after the write committed.
	_ = s.cache.Put(ctx, digest)
	s.refreshRoot(ctx)
	return rec.ID, nil
}

// UpdatePatient rewrites a record's mutable fields and recomputes its tag.
// The weight is immutable here because moving a row between chain buckets
// would reorder both chains; a weight correction is an insert of a new row.
func (s *PatientService) UpdatePatient(ctx context.Context, sess access.Session, id string, view models.PatientView) error {
	if !access.AuthorizeWrite(sess.Role) {
		return access.ErrForbidden
	}

	rec, err := s.store.FetchByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.signer.Verify(rec); err != nil {
		return err
	}

	_, _, weight, err := s.cipher.DecryptRecord(rec)
	if err != nil {
		return err
	}
	view.Weight = weight

	rec.FirstName = view.FirstName
	rec.LastName = view.LastName
	rec.Height = view.Height
	rec.HealthHistory = view.HealthHistory
	if err := s.cipher.EncryptRecord(view, rec); err != nil {
		return err
	}
	rec.IntegrityTag = s.signer.Tag(rec)

	digest, err := s.store.Digest(ctx, rec.Bucket)
	if err != nil {
		return err
	}
	if err := s.store.UpdateRow(ctx, rec, digest); err != nil {
		return err
	}
	s.refreshRoot(ctx)
	return nil
}

// QueryByFilter runs the verified read path. The returned QueryResult always
// carries the surviving rows even when an error is returned alongside it:
// callers get the verified subset plus a distinct, actionable error for what
// failed verification.
func (s *PatientService) QueryByFilter(ctx context.Context, sess access.Session, filter Filter) (*QueryResult, error) {
	rows, buckets, err := s.fetch(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Confidence: 1}
	var verified []models.PatientRecord
	var failures []error
	for i := range rows {
		if err := s.signer.Verify(&rows[i]); err != nil {
			var v *integrity.ViolationError
			if errors.As(err, &v) {
				result.TamperedRowIDs = append(result.TamperedRowIDs, v.RowID)
			}
			failures = append(failures, err)
			continue
		}
		verified = append(verified, rows[i])
	}
	if len(result.TamperedRowIDs) > 0 && s.alerts != nil {
		_ = s.alerts.PublishTamperAlert(ctx, audit.TamperAlert{
			RowIDs:     result.TamperedRowIDs,
			Username:   sess.Username,
			DetectedAt: time.Now(),
		})
	}

	// Completeness runs over everything storage returned, tampered rows
	// included: tag verification judges contents, the chain judges presence.
	// Its failure joins the tag violations so a result that is both tampered
	// and incomplete reports both, never one masking the other.
	if incomplete := s.verifyCompleteness(ctx, rows, buckets, result); incomplete != nil {
		failures = append(failures, incomplete)
	}

	for i := range verified {
		view, err := s.toView(&verified[i])
		if err != nil {
			return nil, err
		}
		if !filter.matches(view.Weight) {
			continue
		}
		result.Records = append(result.Records, sess.Mask.Apply(view))
	}

	if len(failures) > 0 {
		return result, errors.Join(failures...)
	}
	return result, nil
}

// GetPatient returns one verified record together with its Merkle inclusion
// proof against the manifest root.
func (s *PatientService) GetPatient(ctx context.Context, sess access.Session, id string) (*models.PatientView, []completeness.ProofStep, error) {
	rec, err := s.store.FetchByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.signer.Verify(rec); err != nil {
		if s.alerts != nil {
			_ = s.alerts.PublishTamperAlert(ctx, audit.TamperAlert{
				RowIDs:     []string{id},
				Username:   sess.Username,
				DetectedAt: time.Now(),
			})
		}
		return nil, nil, err
	}

	view, err := s.toView(rec)
	if err != nil {
		return nil, nil, err
	}
	view = sess.Mask.Apply(view)

	proof, err := s.proveInclusion(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	return &view, proof, nil
}

// Manifest is the exportable digest artifact a client may cache for later
// completeness checks against a different gateway instance.
type Manifest struct {
	Buckets    []models.BucketDigest `json:"buckets"`
	MerkleRoot []byte                `json:"merkleRoot"`
	ExportedAt time.Time             `json:"exportedAt"`
}

// ExportManifest returns the current digest manifest.
func (s *PatientService) ExportManifest(ctx context.Context) (*Manifest, error) {
	digests, err := s.store.Digests(ctx)
	if err != nil {
		return nil, err
	}
	// Overlay the trusted cached copies where present.
	for i := range digests {
		if cached, err := s.cache.Get(ctx, digests[i].Bucket); err == nil {
			digests[i] = *cached
		}
	}
	root, err := s.cache.Root(ctx)
	if errors.Is(err, manifest.ErrMiss) {
		root = s.computeRoot(ctx)
	} else if err != nil {
		return nil, err
	}
	return &Manifest{Buckets: digests, MerkleRoot: root, ExportedAt: time.Now()}, nil
}

func (s *PatientService) bucketFor(weight float64) int {
	return int(weight / s.bucketWidth)
}

// chainState returns the current head and count for a bucket, preferring the
// trusted cache over the stored manifest.
func (s *PatientService) chainState(ctx context.Context, bucket int) ([]byte, int) {
	if digest, err := s.cache.Get(ctx, bucket); err == nil {
		return digest.Head, digest.Count
	}
	if digest, err := s.store.Digest(ctx, bucket); err == nil {
		return digest.Head, digest.Count
	}
	return s.chain.Seed(bucket), 0
}

// fetch retrieves the raw candidate rows and the buckets the query touches.
func (s *PatientService) fetch(ctx context.Context, filter Filter) ([]models.PatientRecord, []int, error) {
	if filter.WeightMin == nil && filter.WeightMax == nil {
		rows, err := s.store.FetchAll(ctx)
		if err != nil {
			return nil, nil, err
		}
		return rows, nil, nil
	}

	min, max := 0.0, float64(sensitive.MaxWeightKg)
	if filter.WeightMin != nil {
		min = *filter.WeightMin
	}
	if filter.WeightMax != nil {
		max = *filter.WeightMax
	}
	// The requested bounds are checked first so an empty or out-of-domain
	// range is rejected before storage is touched.
	if _, _, err := s.encoder.EncodeRange(min, max); err != nil {
		return nil, nil, err
	}
	var buckets []int
	for b := s.bucketFor(min); b <= s.bucketFor(max); b++ {
		buckets = append(buckets, b)
	}
	// The BETWEEN predicate the backend evaluates carries order-preserving
	// codes, never weights. The code bounds are widened to the covering
	// buckets' full span so each bucket chain comes back whole for
	// verification; the exact range is re-applied after decryption.
	lo, hi, err := s.encoder.EncodeRange(
		float64(buckets[0])*s.bucketWidth,
		float64(buckets[len(buckets)-1]+1)*s.bucketWidth,
	)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.store.FetchBuckets(ctx, buckets, lo, hi)
	if err != nil {
		return nil, nil, err
	}
	return rows, buckets, nil
}

// verifyCompleteness checks every touched bucket's chain. It lowers
// result.Confidence to the weakest check performed and returns every failure,
// joined, for the caller.
func (s *PatientService) verifyCompleteness(ctx context.Context, rows []models.PatientRecord, buckets []int, result *QueryResult) error {
	byBucket := make(map[int][]completeness.Entry)
	for i := range rows {
		r := &rows[i]
		byBucket[r.Bucket] = append(byBucket[r.Bucket], completeness.Entry{
			RowID:      r.ID,
			Pos:        r.ChainPos,
			Commitment: r.SeqCommitment,
		})
	}
	var failures []error
	if buckets == nil {
		// An all-rows query must also notice a bucket dropped wholesale:
		// every bucket the manifest knows about is checked, present or not.
		for b := range byBucket {
			buckets = append(buckets, b)
		}
		digests, err := s.store.Digests(ctx)
		if err != nil {
			// Without the manifest list, a wholesale bucket removal cannot
			// be ruled out; the caller has to hear about that.
			failures = append(failures, err)
		}
		for _, d := range digests {
			if _, ok := byBucket[d.Bucket]; !ok && d.Count > 0 {
				buckets = append(buckets, d.Bucket)
			}
		}
	}
	for _, bucket := range buckets {
		entries := byBucket[bucket]
		if digest := s.manifestFor(ctx, bucket); digest != nil {
			if err := s.chain.VerifyBucket(bucket, entries, digest.Head, digest.Count); err != nil {
				failures = append(failures, err)
			}
			continue
		}
		if len(entries) == 0 {
			continue
		}
		conf, err := s.chain.VerifyLinks(bucket, entries, len(entries))
		if conf < result.Confidence {
			result.Confidence = conf
		}
		if err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	return nil
}

func (s *PatientService) manifestFor(ctx context.Context, bucket int) *models.BucketDigest {
	if digest, err := s.cache.Get(ctx, bucket); err == nil {
		return digest
	}
	if digest, err := s.store.Digest(ctx, bucket); err == nil {
		return digest
	}
	return nil
}

func (s *PatientService) toView(rec *models.PatientRecord) (models.PatientView, error) {
	gender, age, weight, err := s.cipher.DecryptRecord(rec)
	if err != nil {
		return models.PatientView{}, err
	}
	return models.PatientView{
		ID:            rec.ID,
		FirstName:     rec.FirstName,
		LastName:      rec.LastName,
		Gender:        gender,
		Age:           age,
		Weight:        weight,
		Height:        rec.Height,
		HealthHistory: rec.HealthHistory,
	}, nil
}

func (f Filter) matches(weight float64) bool {
	if f.WeightMin != nil && weight < *f.WeightMin {
		return false
	}
	if f.WeightMax != nil && weight > *f.WeightMax {
		return false
	}
	return true
}

// refreshRoot recomputes the Merkle root over the full row set and caches it.
// Failures are tolerable: the root can always be recomputed on demand.
func (s *PatientService) refreshRoot(ctx context.Context) {
	if root := s.computeRoot(ctx); root != nil {
		_ = s.cache.PutRoot(ctx, root)
	}
}

func (s *PatientService) computeRoot(ctx context.Context) []byte {
	rows, err := s.store.FetchAll(ctx)
	if err != nil {
		return nil
	}
	leaves := make([][]byte, len(rows))
	for i := range rows {
		leaves[i] = completeness.LeafHash(rows[i].ID, rows[i].IntegrityTag)
	}
	return completeness.Root(leaves)
}

func (s *PatientService) proveInclusion(ctx context.Context, rec *models.PatientRecord) ([]completeness.ProofStep, error) {
	rows, err := s.store.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	leaves := make([][]byte, len(rows))
	idx := -1
	for i := range rows {
		leaves[i] = completeness.LeafHash(rows[i].ID, rows[i].IntegrityTag)
		if rows[i].ID == rec.ID {
			idx = i
		}
	}
	if idx < 0 {
		return nil, storage.ErrNotFound
	}
	return completeness.Proof(leaves, idx), nil
}
