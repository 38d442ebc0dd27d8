package worker

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gallerina/internal/config"
	"gallerina/internal/jobs"
	"gallerina/internal/services"
	"gallerina/internal/sources"
	"gallerina/internal/transform"
)

// ZipHandler assembles download archives from folders or explicit member
// lists.
type ZipHandler struct {
	validator *sources.Validator
	archiver  *transform.Archiver
	zipDir    string
	prefix    string
}

// NewZipHandler constructs the handler.
func NewZipHandler(cfg *config.Config, validator *sources.Validator, archiver *transform.Archiver) *ZipHandler {
	return &ZipHandler{
		validator: validator,
		archiver:  archiver,
		zipDir:    cfg.Paths.ZipDir,
		prefix:    cfg.Zip.NamePrefix,
	}
}

func (h *ZipHandler) Kind() jobs.Kind {
	return jobs.KindZip
}

func (h *ZipHandler) Execute(ctx context.Context, job *jobs.Job, progress Progress) (Result, error) {
	members, err := h.resolveMembers(job)
	if err != nil {
		return Result{}, err
	}

	dest := filepath.Join(h.zipDir, h.prefix+"-"+job.Token+".zip")
	err = h.archiver.Build(ctx, dest, members, func(done int, current string) error {
		progress(done, current)
		return ctx.Err()
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Artifact: dest, Message: "archive assembled"}, nil
}

func (h *ZipHandler) resolveMembers(job *jobs.Job) ([]transform.ArchiveMember, error) {
	if job.Target == jobs.ExplicitListTarget {
		return h.resolveListMembers(job.Members)
	}
	return h.resolveFolderMembers(job.Target)
}

func (h *ZipHandler) resolveListMembers(keys []string) ([]transform.ArchiveMember, error) {
	if len(keys) == 0 {
		return nil, services.Wrap(services.ErrValidation, "worker", "zip", "job has no member list", nil)
	}
	members := make([]transform.ArchiveMember, 0, len(keys))
	for _, key := range keys {
		target, err := h.validator.ResolveFile(key)
		if err != nil {
			return nil, err
		}
		members = append(members, transform.ArchiveMember{
			Name:       target.RelativePath,
			SourcePath: target.AbsolutePath,
		})
	}
	return members, nil
}

func (h *ZipHandler) resolveFolderMembers(folderKey string) ([]transform.ArchiveMember, error) {
	dir, err := h.validator.ResolveDir(folderKey)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir.AbsolutePath)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "worker", "zip", "list folder "+folderKey, err)
	}

	base := path.Base(dir.RelativePath)
	var members []transform.ArchiveMember
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		members = append(members, transform.ArchiveMember{
			Name:       base + "/" + entry.Name(),
			SourcePath: filepath.Join(dir.AbsolutePath, entry.Name()),
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	if len(members) == 0 {
		return nil, services.Wrap(services.ErrValidation, "worker", "zip", "folder has no files", nil)
	}
	return members, nil
}
