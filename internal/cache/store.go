package cache

import (
	"context"
	"errors"
	"iter"
	"time"
)

// Store 负责管理磁盘页面缓存。磁盘布局遵循：
//
//	<CacheRoot>/<url 路径去掉最后一段>/<最后一段或哨兵>.html
//
// 不维护任何索引文件，文件树本身就是索引；ModTime/Size 由文件系统提供。
type Store interface {
	// Root 返回缓存根目录的绝对路径。
	Root() string

	// Path 把若干子路径拼接到根目录之下，不做存在性检查。
	Path(parts ...string) string

	// Write 将正文写入 relPath（相对根目录）。实现需通过临时文件 + rename
	// 保证并发读者看不到半截文件，并在失败时清理临时文件。
	Write(ctx context.Context, relPath string, body []byte) (*FileEntry, error)

	// Read 读取 relPath 对应的正文；不存在时返回 ErrNotFound。
	Read(ctx context.Context, relPath string) ([]byte, *FileEntry, error)

	// Delete 删除单个文件，返回是否真的删除了文件；文件不存在不是错误。
	Delete(ctx context.Context, fullPath string) (bool, error)

	// Clear 递归清空根目录下的全部内容，根目录本身保留。
	Clear(ctx context.Context) error

	// List 惰性遍历 root 下的所有普通文件，只能消费一次；重新扫描需再次调用。
	List(root string) iter.Seq2[FileEntry, error]
}

// FileEntry 描述一个缓存文件：绝对路径、相对 root 的 slash 路径及文件信息。
type FileEntry struct {
	FilePath  string    `json:"file_path"`
	RelPath   string    `json:"rel_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrOutsideRoot 表示目标路径逃逸出缓存根目录（例如 ../ 穿越），属于配置或调用方错误。
	ErrOutsideRoot = errors.New("cache path outside root")
	// ErrInvalidPath 表示目标路径指向根目录本身等无法作为缓存文件的位置。
	ErrInvalidPath = errors.New("invalid cache path")
)
