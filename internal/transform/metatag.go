package transform

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
)

// MetaTagName 是内置 meta 标记钩子的注册名。
const MetaTagName = "meta-tag"

var headClose = regexp.MustCompile(`(?i)</head>`)

// NewMetaTag 返回一个在每个 </head> 前插入 <meta name="tag" content="true" /> 的钩子，
// 便于前端或排查时识别页面来自静态缓存。已含标记的正文保持不变。
func NewMetaTag(tag string) Hook {
	if tag == "" {
		tag = "page-cache"
	}
	marker := []byte(fmt.Sprintf(`<meta name="%s" content="true" />`, html.EscapeString(tag)))

	return func(body []byte, _ string) ([]byte, error) {
		if bytes.Contains(body, marker) {
			return body, nil
		}
		return headClose.ReplaceAllFunc(body, func(match []byte) []byte {
			out := make([]byte, 0, len(marker)+len(match))
			out = append(out, marker...)
			return append(out, match...)
		}), nil
	}
}

func init() {
	MustRegister(MetaTagName, NewMetaTag("page-cache"))
}
