package persistence

import (
	"encoding/base64"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/jrsteele09/go-pluggable-store/kvstore"
	"github.com/pkg/errors"
)

const (
	metaDataFilename = "metadata.json"
	dataFilename     = "data.bin"
	fileMode         = 0700
)

// folderEncoding maps arbitrary keys onto safe folder names.
var folderEncoding = base64.RawURLEncoding

// folderPrefix keeps the folder name non-empty for the empty key.
const folderPrefix = "k"

// Filesystem is responsible for persisting key-values to a filesystem.
// Each key is a folder holding a metadata file and a data file.
// All access is confined to the root folder.
type Filesystem struct {
	rootFS *os.Root
}

// New opens a Filesystem persister rooted at folder. The folder must exist.
func New(folder string) (*Filesystem, error) {
	root, err := os.OpenRoot(folder)
	if err != nil {
		return nil, errors.Wrap(err, "New: OpenRoot")
	}
	return &Filesystem{rootFS: root}, nil
}

// Close releases the root folder. Operations after Close fail.
func (fs *Filesystem) Close() {
	fs.rootFS.Close()
}

// Keys returns a list of keys available in the folder.
func (fs *Filesystem) Keys() ([]string, error) {
	entries, err := fs.readDir()
	if err != nil {
		return nil, errors.Wrap(err, "Keys: ReadDir")
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name, ok := strings.CutPrefix(entry.Name(), folderPrefix)
		if !ok {
			continue
		}
		key, err := folderEncoding.DecodeString(name)
		if err != nil {
			continue
		}
		keys = append(keys, string(key))
	}

	return keys, nil
}

// Write writes the ValueItem to the folder specified by the key.
// The data file is written before the metadata so a readable metadata file implies readable data.
func (fs *Filesystem) Write(key string, data *kvstore.ValueItem) error {
	folder := keyFolder(key)

	if err := fs.rootFS.Mkdir(folder, fileMode); err != nil && !errors.Is(err, os.ErrExist) {
		return errors.Wrap(err, "Write: Mkdir")
	}

	payload, err := data.MarshalData()
	if err != nil {
		return errors.Wrap(err, "Write: MarshalData")
	}
	if err := fs.writeFile(path.Join(folder, dataFilename), payload); err != nil {
		return errors.Wrap(err, "Write: WriteFile data")
	}

	serializedData, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "Write: Marshal")
	}
	if err := fs.writeFile(path.Join(folder, metaDataFilename), serializedData); err != nil {
		return errors.Wrap(err, "Write: WriteFile metadata")
	}

	return nil
}

// Delete removes the folder specified by the key. Missing keys are not an error.
func (fs *Filesystem) Delete(key string) error {
	folder := keyFolder(key)
	for _, name := range []string{path.Join(folder, metaDataFilename), path.Join(folder, dataFilename), folder} {
		if err := fs.rootFS.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrap(err, "Delete: Remove")
		}
	}
	return nil
}

// Read retrieves the ValueItem identified by the key.
func (fs *Filesystem) Read(key string, readValue bool) (*kvstore.ValueItem, error) {
	folder := keyFolder(key)

	metaData, err := fs.readFile(path.Join(folder, metaDataFilename))
	if err != nil {
		return nil, errors.Wrap(err, "Read: ReadFile metadata")
	}

	var valueItem kvstore.ValueItem
	if err := json.Unmarshal(metaData, &valueItem); err != nil {
		return nil, errors.Wrap(err, "Read: Unmarshal")
	}

	if readValue {
		data, err := fs.readFile(path.Join(folder, dataFilename))
		if err != nil {
			return nil, errors.Wrap(err, "Read: ReadFile data")
		}

		if err := valueItem.SetData(data); err != nil {
			return nil, errors.Wrap(err, "Read: SetData")
		}
	}

	return &valueItem, nil
}

func (fs *Filesystem) readDir() ([]os.DirEntry, error) {
	dir, err := fs.rootFS.Open(".")
	if err != nil {
		return nil, err
	}
	defer dir.Close()
	return dir.ReadDir(-1)
}

func (fs *Filesystem) readFile(name string) ([]byte, error) {
	return readRootFile(fs.rootFS, name)
}

func (fs *Filesystem) writeFile(name string, data []byte) error {
	f, err := fs.rootFS.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readRootFile(root *os.Root, name string) ([]byte, error) {
	return fs.ReadFile(root.FS(), name)
}

func keyFolder(key string) string {
	return folderPrefix + folderEncoding.EncodeToString([]byte(key))
}
