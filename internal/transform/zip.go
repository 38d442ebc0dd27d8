package transform

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"

	"gallerina/internal/fileutil"
	"gallerina/internal/services"
)

// ArchiveMember names one file placed into an archive.
type ArchiveMember struct {
	// Name is the path the member gets inside the archive.
	Name string
	// SourcePath is the absolute path of the file on disk.
	SourcePath string
}

// ProgressFunc is invoked after each member is written. Returning an error
// aborts the build; workers use this to stop on cancellation.
type ProgressFunc func(done int, current string) error

// Archiver assembles ZIP archives from source files.
type Archiver struct{}

// NewArchiver constructs an archiver.
func NewArchiver() *Archiver {
	return &Archiver{}
}

// Build streams members into a ZIP at destPath, reporting progress per
// member. The archive is written atomically; any failure leaves no partial
// file behind. Members are stored uncompressed since gallery sources are
// already compressed formats.
func (a *Archiver) Build(ctx context.Context, destPath string, members []ArchiveMember, progress ProgressFunc) error {
	if len(members) == 0 {
		return services.Wrap(services.ErrValidation, "transform", "archive", "no members", nil)
	}

	return fileutil.WriteAtomic(destPath, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for i, member := range members {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := a.addMember(zw, member); err != nil {
				return err
			}
			if progress != nil {
				if err := progress(i+1, member.Name); err != nil {
					return err
				}
			}
		}
		return zw.Close()
	})
}

func (a *Archiver) addMember(zw *zip.Writer, member ArchiveMember) error {
	src, err := os.Open(member.SourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrNotFound, "transform", "archive", member.SourcePath, nil)
		}
		return fmt.Errorf("open member %s: %w", member.SourcePath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat member %s: %w", member.SourcePath, err)
	}

	header := &zip.FileHeader{
		Name:     member.Name,
		Method:   zip.Store,
		Modified: info.ModTime(),
	}
	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", member.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write archive entry %s: %w", member.Name, err)
	}
	return nil
}
