// Package backup provides tar.gz-based backup and restore for Curio data.
package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/curio/internal/store"
	"github.com/HerbHall/curio/internal/version"
)

// ManifestName is the archive entry describing the backup.
const ManifestName = "manifest.yaml"

// maxEntrySize bounds a single restored file.
const maxEntrySize = 4 << 30

// ErrExists is returned by Restore when a target file exists and force is
// not set.
var ErrExists = errors.New("file already exists")

// Manifest records what a backup archive contains.
type Manifest struct {
	Version   string    `yaml:"version"`
	CreatedAt time.Time `yaml:"created_at"`
	Database  string    `yaml:"database"`
	Config    string    `yaml:"config,omitempty"`
}

// Backup creates a tar.gz archive containing the SQLite database, an optional
// config file and a manifest. It performs a WAL checkpoint before copying the
// database to ensure consistency.
func Backup(ctx context.Context, dbPath, configPath, outputPath string) (Manifest, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return Manifest{}, fmt.Errorf("database file not found: %w", err)
	}

	if err := checkpointWAL(ctx, dbPath); err != nil {
		return Manifest{}, fmt.Errorf("WAL checkpoint failed: %w", err)
	}

	m := Manifest{
		Version:   version.Short(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Database:  filepath.Base(dbPath),
	}
	if configPath != "" {
		// A missing config file is skipped.
		if _, err := os.Stat(configPath); err == nil {
			m.Config = filepath.Base(configPath)
		}
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return Manifest{}, fmt.Errorf("creating output file: %w", err)
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	if err := writeArchive(ctx, tw, m, dbPath, configPath); err != nil {
		return Manifest{}, err
	}
	if err := tw.Close(); err != nil {
		return Manifest{}, fmt.Errorf("finalizing archive: %w", err)
	}
	if err := gw.Close(); err != nil {
		return Manifest{}, fmt.Errorf("finalizing archive: %w", err)
	}
	return m, outFile.Sync()
}

func writeArchive(ctx context.Context, tw *tar.Writer, m Manifest, dbPath, configPath string) error {
	manifest, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := addBytesToTar(tw, ManifestName, manifest, m.CreatedAt); err != nil {
		return fmt.Errorf("adding manifest to archive: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := addFileToTar(tw, dbPath, m.Database); err != nil {
		return fmt.Errorf("adding database to archive: %w", err)
	}

	if m.Config != "" {
		if err := addFileToTar(tw, configPath, m.Config); err != nil {
			return fmt.Errorf("adding config to archive: %w", err)
		}
	}
	return nil
}

// checkpointWAL opens the database, runs a TRUNCATE checkpoint to flush the
// WAL, and closes the connection.
func checkpointWAL(ctx context.Context, dbPath string) error {
	db, err := store.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Checkpoint(ctx)
}

// addFileToTar adds a single file to the tar archive under the given name.
func addFileToTar(tw *tar.Writer, filePath, archiveName string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = archiveName

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	_, err = io.Copy(tw, f)
	return err
}

func addBytesToTar(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(data))
	return err
}

// Restore extracts a backup archive into dataDir and returns the manifest.
// Existing files are only replaced when force is set. Entries that are not
// plain files in the archive root are rejected.
func Restore(ctx context.Context, archivePath, dataDir string, force bool) (Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return Manifest{}, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading archive: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return Manifest{}, fmt.Errorf("creating data directory: %w", err)
	}

	var (
		m           Manifest
		sawManifest bool
	)
	tr := tar.NewReader(gr)
	for {
		if err := ctx.Err(); err != nil {
			return Manifest{}, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Manifest{}, fmt.Errorf("reading archive: %w", err)
		}

		if hdr.Typeflag != tar.TypeReg || hdr.Name != filepath.Base(hdr.Name) || hdr.Name == "." || hdr.Name == ".." {
			return Manifest{}, fmt.Errorf("unexpected archive entry %q", hdr.Name)
		}
		if hdr.Size > maxEntrySize {
			return Manifest{}, fmt.Errorf("archive entry %q too large", hdr.Name)
		}

		if hdr.Name == ManifestName {
			data, err := io.ReadAll(io.LimitReader(tr, 1<<20))
			if err != nil {
				return Manifest{}, fmt.Errorf("reading manifest: %w", err)
			}
			if err := yaml.Unmarshal(data, &m); err != nil {
				return Manifest{}, fmt.Errorf("decoding manifest: %w", err)
			}
			sawManifest = true
			continue
		}

		target := filepath.Join(dataDir, hdr.Name)
		if sawManifest && hdr.Name == m.Database {
			if err := clearSidecars(target, force); err != nil {
				return Manifest{}, err
			}
		}
		if err := extractFile(tr, target, hdr, force); err != nil {
			return Manifest{}, err
		}
	}

	if !sawManifest {
		return Manifest{}, errors.New("archive has no manifest")
	}
	return m, nil
}

// sqliteSidecars are the files SQLite keeps next to a database in WAL mode.
// Left in place they would be replayed onto the restored database.
var sqliteSidecars = []string{"-wal", "-shm"}

func clearSidecars(dbPath string, force bool) error {
	for _, suffix := range sqliteSidecars {
		path := dbPath + suffix
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if !force {
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

func extractFile(r io.Reader, target string, hdr *tar.Header, force bool) error {
	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, target)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+hdr.Name+".restore-*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.CopyN(tmp, r, hdr.Size); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	if err := os.Chmod(tmp.Name(), os.FileMode(hdr.Mode).Perm()); err != nil {
		return fmt.Errorf("setting mode on %s: %w", target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replacing %s: %w", target, err)
	}
	return nil
}
