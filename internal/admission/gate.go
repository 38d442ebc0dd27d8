package admission

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"gallerina/internal/cachekey"
	"gallerina/internal/config"
	"gallerina/internal/fileutil"
	"gallerina/internal/jobs"
	"gallerina/internal/logging"
	"gallerina/internal/services"
	"gallerina/internal/sources"
)

// Outcome classifies an admission decision. Rejections are reported as
// errors, not outcomes, so no row is ever written for a bad request.
type Outcome string

const (
	OutcomeQueued        Outcome = "queued"
	OutcomeAlreadyQueued Outcome = "already_queued"
	OutcomeAlreadyCached Outcome = "already_cached"
)

// Decision is the result of admitting one request. Job is populated for
// queued and already_queued outcomes; Artifact for already_cached.
type Decision struct {
	Outcome  Outcome
	Job      *jobs.Job
	Artifact string
}

// Gate is the single entry point for placing work on the queue. It validates
// targets against source roots, consults the cache before admitting, and
// applies the check-then-insert dedup so one target/tier tuple holds at most
// one live job. Two racing requests can both insert; the duplicate converges
// on the same artifact path and is harmless.
type Gate struct {
	store     *jobs.Store
	validator *sources.Validator
	paths     *cachekey.Resolver
	cfg       *config.Config
	logger    *slog.Logger
}

// NewGate constructs an admission gate.
func NewGate(store *jobs.Store, validator *sources.Validator, paths *cachekey.Resolver, cfg *config.Config, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{
		store:     store,
		validator: validator,
		paths:     paths,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "admission"),
	}
}

// EnqueueThumbnail admits a thumbnail request for one file at one size tier.
// RAW files are routed to the RAW preview queue automatically.
func (g *Gate) EnqueueThumbnail(ctx context.Context, contentKey string, sizeTier int) (Decision, error) {
	if err := g.checkTier(sizeTier); err != nil {
		return Decision{}, err
	}
	target, err := g.validator.ResolveFile(contentKey)
	if err != nil {
		return Decision{}, err
	}

	kind := jobs.KindThumbnail
	variant := cachekey.VariantStandard
	if g.validator.IsRawFile(target.RelativePath) {
		kind = jobs.KindRawPreview
		variant = cachekey.VariantRaw
	}

	key := target.ContentKey()
	artifact := g.paths.Resolve(key, sizeTier, variant)
	if fileutil.FileExistsNonEmpty(artifact) {
		return Decision{Outcome: OutcomeAlreadyCached, Artifact: artifact}, nil
	}

	return g.admit(ctx, &jobs.Job{
		Kind:     kind,
		Target:   key,
		SizeTier: sizeTier,
	})
}

// FolderDecision is the result of admitting a whole-folder thumbnail
// request. Decision describes the folder job itself; RawPreviews carries the
// per-file admissions for camera RAW files, which run on their own queue.
type FolderDecision struct {
	Decision
	RawPreviews []Decision
}

// EnqueueFolderThumbnails admits one folder-target thumbnail job covering
// every directly decodable image inside the folder, with the image count as
// the job's total units so clients can watch per-file progress. RAW files
// are admitted individually to the RAW preview queue since they need the
// external decoder. Subdirectories are not descended; folder jobs are per
// directory, matching how galleries page.
func (g *Gate) EnqueueFolderThumbnails(ctx context.Context, folderKey string, sizeTier int) (FolderDecision, error) {
	if err := g.checkTier(sizeTier); err != nil {
		return FolderDecision{}, err
	}
	dir, err := g.validator.ResolveDir(folderKey)
	if err != nil {
		return FolderDecision{}, err
	}

	plain, raw, err := g.validator.ListImages(dir)
	if err != nil {
		return FolderDecision{}, err
	}
	if len(plain) == 0 && len(raw) == 0 {
		return FolderDecision{}, services.Wrap(services.ErrValidation, "admission", "enqueue-folder", "folder has no images", nil)
	}

	var result FolderDecision
	for _, name := range raw {
		decision, err := g.EnqueueThumbnail(ctx, dir.ContentKey()+"/"+name, sizeTier)
		if err != nil {
			return result, err
		}
		result.RawPreviews = append(result.RawPreviews, decision)
	}

	switch {
	case len(plain) == 0:
		// RAW-only folder; the preview admissions above are the whole job.
		result.Decision = Decision{Outcome: summarizeOutcomes(result.RawPreviews)}
	case g.allCached(dir.ContentKey(), plain, sizeTier):
		result.Decision = Decision{Outcome: OutcomeAlreadyCached}
	default:
		decision, err := g.admit(ctx, &jobs.Job{
			Kind:       jobs.KindThumbnail,
			Target:     dir.ContentKey(),
			SizeTier:   sizeTier,
			TotalUnits: len(plain),
		})
		if err != nil {
			return result, err
		}
		result.Decision = decision
	}

	g.logger.InfoContext(ctx, "folder admission",
		logging.String(logging.FieldTarget, folderKey),
		logging.String("outcome", string(result.Outcome)),
		logging.Int("images", len(plain)),
		logging.Int("raw_previews", len(raw)))
	return result, nil
}

func (g *Gate) allCached(folderKey string, names []string, sizeTier int) bool {
	for _, name := range names {
		artifact := g.paths.Resolve(folderKey+"/"+name, sizeTier, cachekey.VariantStandard)
		if !fileutil.FileExistsNonEmpty(artifact) {
			return false
		}
	}
	return true
}

func summarizeOutcomes(decisions []Decision) Outcome {
	outcome := OutcomeAlreadyCached
	for _, decision := range decisions {
		switch decision.Outcome {
		case OutcomeQueued:
			return OutcomeQueued
		case OutcomeAlreadyQueued:
			outcome = OutcomeAlreadyQueued
		}
	}
	return outcome
}

// EnqueueZipFolder admits a zip job covering every file directly inside a
// folder. Protected folders are refused. The returned job carries the opaque
// download token clients poll with.
func (g *Gate) EnqueueZipFolder(ctx context.Context, folderKey, sessionID string) (Decision, error) {
	dir, err := g.validator.ResolveDir(folderKey)
	if err != nil {
		return Decision{}, err
	}
	if g.validator.IsProtected(dir) {
		return Decision{}, services.Wrap(services.ErrValidation, "admission", "enqueue-zip", "folder is protected", nil)
	}

	members, err := listArchiveFiles(dir.AbsolutePath)
	if err != nil {
		return Decision{}, services.Wrap(services.ErrTransient, "admission", "enqueue-zip", "list folder", err)
	}
	if len(members) == 0 {
		return Decision{}, services.Wrap(services.ErrValidation, "admission", "enqueue-zip", "folder has no files", nil)
	}
	if len(members) > g.cfg.Zip.MaxMembers {
		return Decision{}, services.Wrap(services.ErrValidation, "admission", "enqueue-zip", "folder exceeds member limit", nil)
	}

	return g.admit(ctx, &jobs.Job{
		Kind:       jobs.KindZip,
		Target:     dir.ContentKey(),
		TotalUnits: len(members),
		SessionID:  sessionID,
		Token:      uuid.NewString(),
	})
}

// EnqueueZipList admits a zip job over an explicit list of file content keys.
// Every member must validate; one bad key rejects the whole request. The
// target is the explicit-list sentinel, so list jobs never dedup against
// folder jobs.
func (g *Gate) EnqueueZipList(ctx context.Context, memberKeys []string, sessionID string) (Decision, error) {
	if len(memberKeys) == 0 {
		return Decision{}, services.Wrap(services.ErrValidation, "admission", "enqueue-zip-list", "empty member list", nil)
	}
	if len(memberKeys) > g.cfg.Zip.MaxMembers {
		return Decision{}, services.Wrap(services.ErrValidation, "admission", "enqueue-zip-list", "member list exceeds limit", nil)
	}

	canonical := make([]string, 0, len(memberKeys))
	for _, key := range memberKeys {
		target, err := g.validator.ResolveFile(key)
		if err != nil {
			return Decision{}, err
		}
		canonical = append(canonical, target.ContentKey())
	}

	job, err := g.store.Insert(ctx, &jobs.Job{
		Kind:       jobs.KindZip,
		Target:     jobs.ExplicitListTarget,
		TotalUnits: len(canonical),
		SessionID:  sessionID,
		Token:      uuid.NewString(),
		Members:    canonical,
	})
	if err != nil {
		return Decision{}, services.Wrap(services.ErrTransient, "admission", "enqueue-zip-list", "insert job", err)
	}
	g.logJob(ctx, job, OutcomeQueued)
	return Decision{Outcome: OutcomeQueued, Job: job}, nil
}

func (g *Gate) admit(ctx context.Context, candidate *jobs.Job) (Decision, error) {
	existing, err := g.store.FindActive(ctx, candidate.Kind, candidate.Target, candidate.SizeTier)
	if err != nil {
		return Decision{}, services.Wrap(services.ErrTransient, "admission", "admit", "dedup lookup", err)
	}
	if existing != nil {
		g.logJob(ctx, existing, OutcomeAlreadyQueued)
		return Decision{Outcome: OutcomeAlreadyQueued, Job: existing}, nil
	}

	job, err := g.store.Insert(ctx, candidate)
	if err != nil {
		return Decision{}, services.Wrap(services.ErrTransient, "admission", "admit", "insert job", err)
	}
	g.logJob(ctx, job, OutcomeQueued)
	return Decision{Outcome: OutcomeQueued, Job: job}, nil
}

func (g *Gate) checkTier(sizeTier int) error {
	if sizeTier == g.cfg.Thumbnails.StandardTier || sizeTier == g.cfg.Thumbnails.LargeTier {
		return nil
	}
	return services.Wrap(services.ErrValidation, "admission", "check-tier", "unsupported size tier", nil)
}

func (g *Gate) logJob(ctx context.Context, job *jobs.Job, outcome Outcome) {
	g.logger.InfoContext(ctx, "admission decision",
		logging.String("outcome", string(outcome)),
		logging.String(logging.FieldJobKind, string(job.Kind)),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldTarget, job.Target))
}

func listArchiveFiles(dir string) ([]string, error) {
	return listDir(dir, func(name string) bool {
		return !strings.HasPrefix(name, ".")
	})
}

func listDir(dir string, keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !keep(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
