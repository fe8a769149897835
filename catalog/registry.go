package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"heapdb/common"
)

const NullFileID common.FileID = 0

type registryDoc struct {
	NextID common.FileID            `yaml:"next_id"`
	Files  map[string]common.FileID `yaml:"files"`
}

// Registry assigns stable ids to heap files. Ids are kept in a yaml file so that a file gets the same id
// every time the database is opened.
type Registry struct {
	path   string
	files  map[string]common.FileID
	nextID common.FileID
	l      *sync.Mutex
}

// OpenRegistry loads the registry at path. A missing file yields an empty registry which is created on the
// first Save.
func OpenRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:   path,
		files:  map[string]common.FileID{},
		nextID: NullFileID + 1,
		l:      &sync.Mutex{},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, common.WrapIO(err, "read registry %v", path)
	}

	doc := registryDoc{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(common.ErrSerialization, "registry %v: %v", path, err)
	}
	for name, id := range doc.Files {
		r.files[name] = id
		if id >= r.nextID {
			r.nextID = id + 1
		}
	}
	if doc.NextID > r.nextID {
		r.nextID = doc.NextID
	}
	return r, nil
}

// Assign returns the id of the named file, allocating a new one if the file is not registered yet.
func (r *Registry) Assign(name string) common.FileID {
	r.l.Lock()
	defer r.l.Unlock()

	if id, ok := r.files[name]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.files[name] = id
	return id
}

func (r *Registry) Lookup(name string) (common.FileID, error) {
	r.l.Lock()
	defer r.l.Unlock()

	if id, ok := r.files[name]; ok {
		return id, nil
	}
	return NullFileID, errors.Wrapf(common.ErrFileNotRegistered, "%q", name)
}

func (r *Registry) Names() []string {
	r.l.Lock()
	defer r.l.Unlock()

	res := make([]string, 0, len(r.files))
	for name := range r.files {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

func (r *Registry) Path() string {
	return r.path
}

// Save writes the registry to a temp file and renames it over the old one.
func (r *Registry) Save() error {
	r.l.Lock()
	doc := registryDoc{NextID: r.nextID, Files: make(map[string]common.FileID, len(r.files))}
	for name, id := range r.files {
		doc.Files[name] = id
	}
	r.l.Unlock()

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return errors.Wrapf(common.ErrSerialization, "registry: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return common.WrapIO(err, "create registry dir")
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return common.WrapIO(err, "write registry %v", tmp)
	}
	return common.WrapIO(os.Rename(tmp, r.path), "rename registry %v", tmp)
}
