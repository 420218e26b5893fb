package loader

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// FileLoader is loader that is storing the new keys to a file. A new key is
// first written to a temporary file which is then renamed, so that a crash
// never leaves a partial key behind.
//
// - implements loader.Loader
type fileLoader struct {
	path string

	readFn   func(path string) ([]byte, error)
	writeFn  func(path string, data []byte, perm os.FileMode) error
	renameFn func(oldpath, newpath string) error
	statFn   func(path string) (os.FileInfo, error)
}

// NewFileLoader creates a new loader that is using the file given in parameter.
func NewFileLoader(path string) Loader {
	return fileLoader{
		path:     path,
		readFn:   os.ReadFile,
		writeFn:  os.WriteFile,
		renameFn: os.Rename,
		statFn:   os.Stat,
	}
}

// LoadOrCreate implements loader.Loader. It either loads the key from the file
// if it exists, or it generates a new one and stores it in the file. The file
// created has minimal read permission for the current user (0400).
func (l fileLoader) LoadOrCreate(g Generator) ([]byte, error) {
	_, err := l.statFn(l.path)
	if err == nil {
		data, err := l.readFn(l.path)
		if err != nil {
			return nil, xerrors.Errorf("while reading file: %v", err)
		}

		return data, nil
	}

	if !os.IsNotExist(err) {
		return nil, xerrors.Errorf("while checking file: %v", err)
	}

	data, err := g.Generate()
	if err != nil {
		return nil, xerrors.Errorf("generator failed: %v", err)
	}

	tmp := filepath.Join(filepath.Dir(l.path), "."+filepath.Base(l.path)+".tmp")

	err = l.writeFn(tmp, data, 0400)
	if err != nil {
		return nil, xerrors.Errorf("while writing: %v", err)
	}

	err = l.renameFn(tmp, l.path)
	if err != nil {
		return nil, xerrors.Errorf("while renaming: %v", err)
	}

	return data, nil
}
