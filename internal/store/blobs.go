package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// AccessRule is attached to an uploaded file, e.g. read("any").
type AccessRule string

const ReadAny AccessRule = `read("any")`

var ErrInvalidName = errors.New("store: invalid bucket or file id")

type File struct {
	ID        string     `json:"id"`
	Bucket    string     `json:"bucket"`
	Name      string     `json:"name"`
	MimeType  string     `json:"mimeType"`
	Size      int64      `json:"size"`
	Access    AccessRule `json:"access"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Public reports whether anyone may read the file.
func (f File) Public() bool {
	return f.Access == ReadAny
}

type Blobs interface {
	// Upload stores r under bucket; an empty id is generated.
	Upload(ctx context.Context, bucket, id, name string, r io.Reader, access AccessRule) (File, error)
	Open(ctx context.Context, bucket, id string) (io.ReadCloser, File, error)
	Delete(ctx context.Context, bucket, id string) error
}

// ViewURL builds the public URL of an uploaded file:
// {endpoint}/storage/buckets/{bucket}/files/{id}/view?project={project}
func ViewURL(endpoint, bucket, id, project string) string {
	return fmt.Sprintf("%s/storage/buckets/%s/files/%s/view?project=%s", endpoint, bucket, id, project)
}

var safeName = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// AferoBlobs keeps files and their metadata on an afero filesystem:
// {root}/{bucket}/files/{id} and {root}/{bucket}/meta/{id}.json.
// sniffLen is how much of an upload is inspected to detect its type.
const sniffLen = 3072

type AferoBlobs struct {
	fs   afero.Fs
	root string
}

func NewAferoBlobs(fs afero.Fs, root string) *AferoBlobs {
	return &AferoBlobs{fs: fs, root: root}
}

func (b *AferoBlobs) paths(bucket, id string) (string, string, error) {
	if !safeName.MatchString(bucket) || !safeName.MatchString(id) {
		return "", "", ErrInvalidName
	}
	dir := filepath.Join(b.root, bucket)
	return filepath.Join(dir, "files", id), filepath.Join(dir, "meta", id+".json"), nil
}

func (b *AferoBlobs) Upload(ctx context.Context, bucket, id, name string, r io.Reader, access AccessRule) (File, error) {
	if id == "" {
		id = NewID()
	}
	dataPath, metaPath, err := b.paths(bucket, id)
	if err != nil {
		return File{}, err
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}

	// The type comes from the content, never from the file name.
	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)
	mimeType := mimetype.Detect(head).String()

	if err := b.fs.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return File{}, fmt.Errorf("create bucket dir: %w", err)
	}
	if err := b.fs.MkdirAll(filepath.Dir(metaPath), 0o755); err != nil {
		return File{}, fmt.Errorf("create bucket dir: %w", err)
	}
	if err := afero.WriteReader(b.fs, dataPath, br); err != nil {
		return File{}, fmt.Errorf("write file: %w", err)
	}

	info, err := b.fs.Stat(dataPath)
	if err != nil {
		return File{}, fmt.Errorf("stat file: %w", err)
	}

	file := File{
		ID:        id,
		Bucket:    bucket,
		Name:      filepath.Base(name),
		MimeType:  mimeType,
		Size:      info.Size(),
		Access:    access,
		CreatedAt: time.Now().UTC(),
	}
	meta, err := json.Marshal(file)
	if err != nil {
		return File{}, err
	}
	if err := afero.WriteFile(b.fs, metaPath, meta, 0o644); err != nil {
		_ = b.fs.Remove(dataPath)
		return File{}, fmt.Errorf("write metadata: %w", err)
	}
	return file, nil
}

func (b *AferoBlobs) Open(ctx context.Context, bucket, id string) (io.ReadCloser, File, error) {
	dataPath, metaPath, err := b.paths(bucket, id)
	if err != nil {
		return nil, File{}, err
	}
	meta, err := afero.ReadFile(b.fs, metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, File{}, ErrNotFound
	}
	if err != nil {
		return nil, File{}, err
	}
	var file File
	if err := json.Unmarshal(meta, &file); err != nil {
		return nil, File{}, fmt.Errorf("read metadata: %w", err)
	}
	f, err := b.fs.Open(dataPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, File{}, ErrNotFound
	}
	if err != nil {
		return nil, File{}, err
	}
	return f, file, nil
}

func (b *AferoBlobs) Delete(ctx context.Context, bucket, id string) error {
	dataPath, metaPath, err := b.paths(bucket, id)
	if err != nil {
		return err
	}
	if _, err := b.fs.Stat(metaPath); errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err := b.fs.Remove(dataPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return b.fs.Remove(metaPath)
}
