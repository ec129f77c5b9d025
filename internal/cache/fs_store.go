package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	dirPerm  = 0o775
	filePerm = 0o644

	// tempPrefix 标记写入中的临时文件，List 会跳过它们。
	tempPrefix = ".page-cache-"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(basePath string) (Store, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("cache root required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}

	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}

	return &fileStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 串行化同一文件的写入/删除，后写者覆盖先写者。
type fileStore struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Root() string {
	return s.basePath
}

func (s *fileStore) Path(parts ...string) string {
	return filepath.FromSlash(JoinPaths(append([]string{filepath.ToSlash(s.basePath)}, parts...)...))
}

func (s *fileStore) Write(ctx context.Context, relPath string, body []byte) (*FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(s.Path(relPath))
	if err != nil {
		return nil, err
	}

	unlock := s.lockEntry(filePath)
	defer unlock()

	dir := filepath.Dir(filePath)
	// MkdirAll 对已存在的目录返回 nil，并发创建同一目录不会报错。
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, bytes.NewReader(body))
	if err == nil {
		err = tempFile.Chmod(filePerm)
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}

	return &FileEntry{
		FilePath:  filePath,
		RelPath:   s.relPath(filePath),
		SizeBytes: written,
		ModTime:   info.ModTime(),
	}, nil
}

func (s *fileStore) Read(ctx context.Context, relPath string) ([]byte, *FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	filePath, err := s.entryPath(s.Path(relPath))
	if err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if info.IsDir() {
		return nil, nil, ErrNotFound
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	return body, &FileEntry{
		FilePath:  filePath,
		RelPath:   s.relPath(filePath),
		SizeBytes: int64(len(body)),
		ModTime:   info.ModTime(),
	}, nil
}

func (s *fileStore) Delete(ctx context.Context, fullPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	filePath, err := s.entryPath(fullPath)
	if err != nil {
		return false, err
	}

	unlock := s.lockEntry(filePath)
	defer unlock()

	info, err := os.Lstat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *fileStore) Clear(ctx context.Context) error {
	children, err := os.ReadDir(s.basePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	var errs []error
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.RemoveAll(filepath.Join(s.basePath, child.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *fileStore) List(root string) iter.Seq2[FileEntry, error] {
	return func(yield func(FileEntry, error) bool) {
		base, err := s.containedPath(root)
		if err != nil {
			yield(FileEntry{FilePath: root}, err)
			return
		}

		_ = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				// 根目录不存在等价于空缓存；遍历期间被删除的条目直接忽略。
				if errors.Is(walkErr, fs.ErrNotExist) {
					return nil
				}
				if !yield(FileEntry{FilePath: p}, walkErr) {
					return filepath.SkipAll
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() || strings.HasPrefix(d.Name(), tempPrefix) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				if !yield(FileEntry{FilePath: p}, err) {
					return filepath.SkipAll
				}
				return nil
			}

			rel, err := filepath.Rel(base, p)
			if err != nil {
				rel = d.Name()
			}
			entry := FileEntry{
				FilePath:  p,
				RelPath:   filepath.ToSlash(rel),
				SizeBytes: info.Size(),
				ModTime:   info.ModTime(),
			}
			if !yield(entry, nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (s *fileStore) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// entryPath 校验目标是根目录之下的文件路径（不能是根目录本身）。
func (s *fileStore) entryPath(target string) (string, error) {
	clean, err := s.containedPath(target)
	if err != nil {
		return "", err
	}
	if clean == s.basePath {
		return "", ErrInvalidPath
	}
	return clean, nil
}

// containedPath 清理路径并拒绝任何逃逸出根目录的目标。
func (s *fileStore) containedPath(target string) (string, error) {
	if strings.TrimSpace(target) == "" {
		return "", ErrInvalidPath
	}
	clean := filepath.Clean(target)
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(s.basePath, clean)
	}

	rel, err := filepath.Rel(s.basePath, clean)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, target)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, target)
	}
	return clean, nil
}

func (s *fileStore) relPath(filePath string) string {
	rel, err := filepath.Rel(s.basePath, filePath)
	if err != nil {
		return filepath.Base(filePath)
	}
	return filepath.ToSlash(rel)
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
