package pagecache

import "strings"

const (
	// IndexAlias 替代空的最后一段（请求指向目录本身），不会与真实路径段冲突。
	IndexAlias = "pc__index__pc"
	// Extension 是所有缓存文件的固定扩展名。
	Extension = ".html"
)

// Key 将请求映射为相对缓存根目录的 (目录, 文件名)。
//
// 路径与原始查询串直接拼接（不插入 "?"、不解码、不排序），去掉一个前导 "/" 后按 "/" 切分；
// 最后一段加上 .html 作为文件名，为空时使用 IndexAlias。
// 因此 "/" 映射为 pc__index__pc.html，"/?page=2" 映射为 page=2.html。
func Key(req Request) (dir, file string) {
	raw := strings.TrimPrefix(req.Path+req.RawQuery, "/")
	segments := strings.Split(raw, "/")

	last := segments[len(segments)-1]
	if last == "" {
		last = IndexAlias
	}
	return strings.Join(segments[:len(segments)-1], "/"), last + Extension
}
