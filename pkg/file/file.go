package file

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

// CreateFileP Creates a file and all its directories
// Make sure you close the file when using this function!
func CreateFileP(filePath string, perm fs.FileMode) (*os.File, error) {
	absDirPath, err := filepath.Abs(filepath.Dir(filePath))
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(absDirPath, perm)
	if err != nil {
		return nil, err
	}

	return os.Create(filePath)
}

// WriteTo replaces the file contents with data, creating parents as needed
func WriteTo(filePath string, data []byte) error {
	f, err := CreateFileP(filePath, 0750)
	if err != nil {
		return err
	}

	// Close the file when done
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	_, err = f.Write(data)
	return err
}

// CopyFile copies src to dst, dst is truncated if it exists
func CopyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func(in *os.File) {
		_ = in.Close()
	}(in)

	out, err := CreateFileP(dst, 0750)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

// UniquePath returns path unchanged when nothing exists there, otherwise
// the first free variant with a -001, -002, ... suffix.
func UniquePath(path string) (string, error) {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return path, nil
	}

	for i := 1; i < 1000; i++ {
		candidate := fmt.Sprintf("%s-%03d", path, i)
		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("no free name for %s", path)
}

// GetRelPathFromAbs Get the relative path from an absolute path with a specified base dir
func GetRelPathFromAbs(absPath string, base string) (string, error) {
	if !filepath.IsAbs(absPath) {
		return "", fmt.Errorf("path was not absolute %s", absPath)
	}

	// Check if the path is a prefix
	if !strings.HasPrefix(absPath, base) {
		return "", fmt.Errorf("path %s is not related to base path %s", absPath, base)
	}

	return filepath.Rel(base, absPath)
}

func addFileToZip(absFilePath string, writer *zip.Writer, baseDir string) error {
	// Open the source file for reading
	srcFile, err := os.Open(absFilePath)
	if err != nil {
		return err
	}

	defer func(srcFile *os.File) {
		_ = srcFile.Close()
	}(srcFile)

	name, err := GetRelPathFromAbs(absFilePath, baseDir)
	if err != nil {
		return err
	}

	zipFileWriter, err := writer.Create(filepath.ToSlash(name))
	if err != nil {
		return err
	}

	// Copy the file contents to the zip
	_, err = io.Copy(zipFileWriter, srcFile)
	return err
}

func verifyZipArchive(archivePath string, addedFiles map[string]int64) error {
	zf, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}

	defer func(zf *zip.ReadCloser) {
		_ = zf.Close()
	}(zf)

	if len(zf.File) != len(addedFiles) {
		return errors.New("not all files added to archive")
	}

	for _, f := range zf.File {
		size, ok := addedFiles[f.Name]
		if !ok {
			return fmt.Errorf("unexpected file %s in archive", f.Name)
		}
		if int64(f.UncompressedSize64) != size {
			log.Error("file was not written properly", zap.String("file", f.Name), zap.Int64("rawSize", size), zap.Uint64("zipSize", f.UncompressedSize64))
			return fmt.Errorf("file %s was not written properly", f.Name)
		}
	}

	return nil
}

// CreateArchive packs every regular file below dir into a zip archive,
// entries are named relative to dir.
func CreateArchive(archivePath string, dir string) error {
	if filepath.Ext(archivePath) != ".zip" {
		archivePath += ".zip"
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	// Create all files and directories
	archive, err := CreateFileP(archivePath, 0750)
	if err != nil {
		log.Error("error creating archive", zap.String("file", archivePath))
		return err
	}

	// Close the file later
	defer func(archive *os.File) {
		_ = archive.Close()
	}(archive)

	zipWriter := zip.NewWriter(archive)
	added := make(map[string]int64)

	walkErr := filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if err := addFileToZip(path, zipWriter, absDir); err != nil {
			// keep going, the verification below reports the missing entry
			log.Error("error in addFileToZip", zap.String("file", path), zap.Error(err))
			return nil
		}

		rel, _ := filepath.Rel(absDir, path)
		added[filepath.ToSlash(rel)] = info.Size()
		return nil
	})

	// can't use defer, otherwise verify would read an unfinished archive
	if err := zipWriter.Close(); err != nil {
		log.Error("error while closing zip file writer", zap.Error(err))
		return err
	}

	if walkErr != nil {
		return walkErr
	}

	// Verify all files are written completely (via size)
	return verifyZipArchive(archivePath, added)
}

func MoveFile(sourcePath string, destPath string) error {
	return os.Rename(sourcePath, destPath)
}

var (
	ErrPathIsDir  = errors.New("supplied path is a directory")
	ErrPathIsFile = errors.New("supplied path is a file")
)

func Info(path string) (fs.FileInfo, error) {
	s, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func Exists(path string) error {
	s, err := Info(path)
	if err != nil {
		return err
	}

	if s.IsDir() {
		return ErrPathIsDir
	}

	return nil
}

func IsDir(path string) error {
	s, err := Info(path)
	if err != nil {
		return err
	}

	if !s.IsDir() {
		return ErrPathIsFile
	}

	return nil
}

func GetFileSize(filePath string) (int64, error) {
	s, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return s.Size(), nil
}
