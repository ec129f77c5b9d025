package pagecache

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/page-cache/page-cache/internal/config"
	"github.com/page-cache/page-cache/internal/logging"
)

func newPolicy(allow, deny []string) *Policy {
	cfg := &config.Config{
		Global:    config.GlobalConfig{Enabled: true},
		AllowList: allow,
		DenyList:  deny,
	}
	return NewPolicy(cfg, logging.NewDiscardLogger())
}

func TestShouldCacheRequiresGetAnd200(t *testing.T) {
	p := newPolicy([]string{"*"}, nil)
	cases := []struct {
		method string
		status int
		want   bool
	}{
		{http.MethodGet, http.StatusOK, true},
		{http.MethodHead, http.StatusOK, false},
		{http.MethodPost, http.StatusOK, false},
		{"get", http.StatusOK, false},
		{http.MethodGet, http.StatusCreated, false},
		{http.MethodGet, http.StatusNotModified, false},
		{http.MethodGet, http.StatusNotFound, false},
	}
	for _, tc := range cases {
		got := p.ShouldCache(Request{Method: tc.method}, Response{StatusCode: tc.status})
		assert.Equal(t, tc.want, got, "%s %d", tc.method, tc.status)
	}
}

func TestCanCacheAllowAndDeny(t *testing.T) {
	p := newPolicy([]string{"web.*", "shop.product"}, []string{"web.admin.*", "*.preview"})

	assert.True(t, p.CanCache(Request{RouteName: "web.news.show"}))
	assert.True(t, p.CanCache(Request{RouteName: "shop.product"}))
	assert.False(t, p.CanCache(Request{RouteName: "web.admin.users"}), "deny wins over allow")
	assert.False(t, p.CanCache(Request{RouteName: "web.page.preview"}))
	assert.False(t, p.CanCache(Request{RouteName: "api.users"}))
	assert.False(t, p.CanCache(Request{RouteName: "shop.product.edit"}))
}

func TestCanCacheEmptyAllowListCachesNothing(t *testing.T) {
	p := newPolicy(nil, nil)
	assert.False(t, p.CanCache(Request{RouteName: "web.home"}))
}

func TestCanCacheMissingRouteName(t *testing.T) {
	p := newPolicy([]string{"*"}, nil)
	assert.False(t, p.CanCache(Request{RouteName: ""}))
}

func TestCanCacheMalformedPatternNeverMatches(t *testing.T) {
	p := newPolicy([]string{"web.[", "shop.*"}, []string{"[unterminated"})
	assert.False(t, p.CanCache(Request{RouteName: "web.["}))
	assert.True(t, p.CanCache(Request{RouteName: "shop.cart"}))
}

func TestCanCacheCharacterClasses(t *testing.T) {
	p := newPolicy([]string{"page.v[0-9]", "doc.?"}, nil)
	assert.True(t, p.CanCache(Request{RouteName: "page.v2"}))
	assert.False(t, p.CanCache(Request{RouteName: "page.vx"}))
	assert.True(t, p.CanCache(Request{RouteName: "doc.a"}))
	assert.False(t, p.CanCache(Request{RouteName: "doc.ab"}))
}

func TestCanCacheKillSwitch(t *testing.T) {
	cfg := &config.Config{AllowList: []string{"*"}}
	p := NewPolicy(cfg, nil)
	assert.False(t, p.Enabled())
	assert.False(t, p.CanCache(Request{RouteName: "web.home"}))
	assert.True(t, p.Allowed("web.home"))
}
